// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/credential"
	"github.com/dalemusser/camphub/internal/app/system/impersonation"
	"github.com/dalemusser/camphub/internal/app/system/onboarding"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devJWTSecret is only acceptable outside prod.
const devJWTSecret = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys are read from config files (mongo_uri), environment
// variables (CAMPHUB_MONGO_URI) and flags (--mongo_uri).
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "camphub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "redis_addr", Default: "", Desc: "Redis address for impersonation grants (blank uses MongoDB)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HMAC secret for credentials (at least 32 characters)"},
	{Name: "jwt_issuer", Default: "camphub", Desc: "Credential issuer claim"},
	{Name: "credential_ttl", Default: "168h", Desc: "Credential lifetime"},
	{Name: "impersonation_ttl", Default: "1h", Desc: "Impersonation credential lifetime"},
	{Name: "session_name", Default: auth.DefaultCookieName, Desc: "Credential cookie name"},
	{Name: "session_domain", Default: "", Desc: "Credential cookie domain (blank means current host)"},

	{Name: "invite_ttl", Default: "168h", Desc: "Email invite lifetime"},
	{Name: "password_reset_ttl", Default: "1h", Desc: "Password reset link lifetime"},
	{Name: "school_link_ttl", Default: "720h", Desc: "Reusable school invite link lifetime"},
	{Name: "token_cleanup_interval", Default: "15m", Desc: "How often expired tokens and grants are purged"},

	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank disables SMTP)"},
	{Name: "mail_smtp_port", Default: 587, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@camphub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Camphub", Desc: "From display name"},
	{Name: "sendgrid_api_key", Default: "", Desc: "SendGrid API key (takes precedence over SMTP)"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links"},
	{Name: "site_name", Default: "Camphub", Desc: "Name used in emails"},

	{Name: "audit_log_auth", Default: auditlog.All, Desc: "Auth event logging: 'all', 'db', 'log' or 'off'"},
	{Name: "audit_log_admin", Default: auditlog.All, Desc: "Admin event logging: 'all', 'db', 'log' or 'off'"},

	{Name: "superadmin_email", Default: "", Desc: "Email of the super-admin (created or promoted on startup)"},
	{Name: "superadmin_password", Default: "", Desc: "Initial password when the super-admin must be created"},
}

// LoadConfig loads WAFFLE core config and camphub's app config.
// Precedence is flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CAMPHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		JWTSecret:        appValues.String("jwt_secret"),
		JWTIssuer:        appValues.String("jwt_issuer"),
		CredentialTTL:    appValues.Duration("credential_ttl", auth.DefaultTTL),
		ImpersonationTTL: appValues.Duration("impersonation_ttl", impersonation.DefaultTTL),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),

		InviteTTL:            appValues.Duration("invite_ttl", onboarding.DefaultInviteTTL),
		PasswordResetTTL:     appValues.Duration("password_reset_ttl", onboarding.DefaultResetTTL),
		SchoolLinkTTL:        appValues.Duration("school_link_ttl", onboarding.DefaultLinkTTL),
		TokenCleanupInterval: appValues.Duration("token_cleanup_interval", 15*time.Minute),

		MailSMTPHost:   appValues.String("mail_smtp_host"),
		MailSMTPPort:   appValues.Int("mail_smtp_port"),
		MailSMTPUser:   appValues.String("mail_smtp_user"),
		MailSMTPPass:   appValues.String("mail_smtp_pass"),
		MailFrom:       appValues.String("mail_from"),
		MailFromName:   appValues.String("mail_from_name"),
		SendGridAPIKey: appValues.String("sendgrid_api_key"),

		BaseURL:  appValues.String("base_url"),
		SiteName: appValues.String("site_name"),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		SuperAdminEmail:    appValues.String("superadmin_email"),
		SuperAdminPassword: appValues.String("superadmin_password"),
	}
	return coreCfg, appCfg, nil
}

// ValidateConfig rejects configurations that would fail later or run insecurely.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := validateAppConfig(coreCfg.Env, appCfg); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	return nil
}

func validateAppConfig(env string, appCfg AppConfig) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := credential.ValidateSecret(appCfg.JWTSecret); err != nil {
		return fmt.Errorf("jwt_secret: %w", err)
	}
	if env == "prod" && appCfg.JWTSecret == devJWTSecret {
		return errors.New("jwt_secret must be changed from the development default in prod")
	}
	for name, d := range map[string]time.Duration{
		"credential_ttl":         appCfg.CredentialTTL,
		"impersonation_ttl":      appCfg.ImpersonationTTL,
		"invite_ttl":             appCfg.InviteTTL,
		"password_reset_ttl":     appCfg.PasswordResetTTL,
		"school_link_ttl":        appCfg.SchoolLinkTTL,
		"token_cleanup_interval": appCfg.TokenCleanupInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for name, v := range map[string]string{
		"audit_log_auth":  appCfg.AuditLogAuth,
		"audit_log_admin": appCfg.AuditLogAdmin,
	} {
		switch v {
		case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", name, v)
		}
	}
	if appCfg.SuperAdminPassword != "" && appCfg.SuperAdminEmail == "" {
		return errors.New("superadmin_password is set without superadmin_email")
	}
	return nil
}
