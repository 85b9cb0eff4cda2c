// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	errorsfeature "github.com/dalemusser/camphub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/camphub/internal/app/features/health"
	impersonatefeature "github.com/dalemusser/camphub/internal/app/features/impersonate"
	invitesfeature "github.com/dalemusser/camphub/internal/app/features/invites"
	loginfeature "github.com/dalemusser/camphub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/camphub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/camphub/internal/app/features/members"
	notificationsfeature "github.com/dalemusser/camphub/internal/app/features/notifications"
	passwordfeature "github.com/dalemusser/camphub/internal/app/features/password"
	schoolsfeature "github.com/dalemusser/camphub/internal/app/features/schools"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	signupfeature "github.com/dalemusser/camphub/internal/app/features/signup"
	userinfofeature "github.com/dalemusser/camphub/internal/app/features/userinfo"
	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	"github.com/dalemusser/camphub/internal/app/store/regtokens"
	subscriptionstore "github.com/dalemusser/camphub/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/credential"
	"github.com/dalemusser/camphub/internal/app/system/impersonation"
	"github.com/dalemusser/camphub/internal/app/system/mailer"
	"github.com/dalemusser/camphub/internal/app/system/onboarding"
	"github.com/dalemusser/camphub/internal/app/system/push"
	"github.com/dalemusser/camphub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root router. WAFFLE calls it after Startup.
// Credential cookies are Secure in prod.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	return newRouter(coreCfg.Env == "prod", appCfg, deps, logger)
}

func newRouter(secure bool, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (chi.Router, error) {
	db := deps.MongoDatabase
	m := appMetrics()
	auditLog := newAuditLogger(appCfg, deps, logger)

	codec, err := credential.New(appCfg.JWTSecret, appCfg.JWTIssuer)
	if err != nil {
		logger.Error("credential codec init failed", zap.Error(err))
		return nil, err
	}
	grants := grantsFor(deps)
	resolver := auth.NewResolver(codec, grants, m, logger)
	sessionMgr, err := auth.NewSessionManager(codec, resolver, auth.SessionConfig{
		Name:   appCfg.SessionName,
		Domain: appCfg.SessionDomain,
		TTL:    appCfg.CredentialTTL,
		Secure: secure,
	}, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	limiter := ratelimit.NewAttemptLimiter()
	background.mu.Lock()
	if background.limiter != nil {
		background.limiter.Close()
	}
	background.limiter = limiter
	background.mu.Unlock()

	mail := mailer.New(mailer.Config{
		SendGridAPIKey: appCfg.SendGridAPIKey,
		SMTPHost:       appCfg.MailSMTPHost,
		SMTPPort:       appCfg.MailSMTPPort,
		SMTPUser:       appCfg.MailSMTPUser,
		SMTPPassword:   appCfg.MailSMTPPass,
		FromAddress:    appCfg.MailFrom,
		FromName:       appCfg.MailFromName,
	}, logger)
	accounts := onboarding.New(db, regtokens.New(db), mail, onboarding.Config{
		SiteName:  appCfg.SiteName,
		BaseURL:   appCfg.BaseURL,
		InviteTTL: appCfg.InviteTTL,
		ResetTTL:  appCfg.PasswordResetTTL,
		LinkTTL:   appCfg.SchoolLinkTTL,
	}, logger)
	impersonations := impersonation.NewService(userstore.New(db), membershipstore.New(db), grants, sessionMgr, appCfg.ImpersonationTTL)
	subs := subscriptionstore.New(db)
	broadcaster := push.NewBroadcaster(subs, push.NewLogSender(logger), m, logger)
	onDeny := shared.DenyObserver(m, auditLog)
	errs := errorsfeature.NewHandler(logger)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Use(sessionMgr.LoadSessionUser)

	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)))
	r.Handle("/metrics", m.Handler())

	r.Mount("/login", loginfeature.Routes(loginfeature.NewHandler(accounts, sessionMgr, limiter, auditLog, m, logger)))
	r.Mount("/logout", logoutfeature.Routes(logoutfeature.NewHandler(sessionMgr, auditLog, logger)))
	r.Mount("/signup", signupfeature.Routes(signupfeature.NewHandler(accounts, limiter, auditLog, m, logger)))
	r.Mount("/password", passwordfeature.Routes(passwordfeature.NewHandler(accounts, limiter, auditLog, m, logger)))
	userinfofeature.MountRoutes(r, userinfofeature.NewHandler(db, logger))

	schoolsfeature.MountRoutes(r, schoolsfeature.NewHandler(db, auditLog, logger), onDeny)
	membersfeature.MountRoutes(r, membersfeature.NewHandler(db, auditLog, logger), onDeny)
	invitesfeature.MountRoutes(r, invitesfeature.NewHandler(accounts, sessionMgr, limiter, auditLog, m, logger), onDeny)
	notificationsfeature.MountRoutes(r, notificationsfeature.NewHandler(subs, broadcaster, auditLog, logger), onDeny)

	r.Mount("/admin/impersonate", impersonatefeature.Routes(impersonatefeature.NewHandler(impersonations, sessionMgr, auditLog, m, logger)))

	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.MethodNotAllowed)
	return r, nil
}
