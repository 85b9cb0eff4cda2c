// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dalemusser/camphub/internal/app/store/audit"
	"github.com/dalemusser/camphub/internal/app/store/regtokens"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/authutil"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/app/system/ratelimit"
	"github.com/dalemusser/camphub/internal/app/system/workers"
	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// background holds what Startup and BuildHandler start and Shutdown stops.
var background struct {
	mu      sync.Mutex
	metrics *metrics.Metrics
	cleanup *workers.Cleanup
	limiter *ratelimit.AttemptLimiter
}

// appMetrics returns the process-wide metrics registry.
func appMetrics() *metrics.Metrics {
	background.mu.Lock()
	defer background.mu.Unlock()
	if background.metrics == nil {
		background.metrics = metrics.New()
	}
	return background.metrics
}

func newAuditLogger(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *auditlog.Logger {
	return auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
}

// Startup bootstraps the super-admin and starts the token cleanup worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	auditLog := newAuditLogger(appCfg, deps, logger)
	if err := ensureSuperAdmin(ctx, deps, auditLog, appCfg.SuperAdminEmail, appCfg.SuperAdminPassword, logger); err != nil {
		logger.Error("superadmin bootstrap failed", zap.Error(err))
		return err
	}

	w := workers.NewCleanup(logger, appMetrics(), appCfg.TokenCleanupInterval,
		workers.Target{Name: "registration_tokens", Cleaner: regtokens.New(deps.MongoDatabase)},
		workers.Target{Name: "impersonation_grants", Cleaner: grantsFor(deps)},
	)
	w.Start()

	background.mu.Lock()
	background.cleanup = w
	background.mu.Unlock()
	return nil
}

// ensureSuperAdmin makes sure email belongs to a super-admin. An existing
// account is promoted and keeps its password; a missing one is created with
// password. An empty email skips the bootstrap.
func ensureSuperAdmin(ctx context.Context, deps DBDeps, auditLog *auditlog.Logger, email, password string, logger *zap.Logger) error {
	if email == "" {
		logger.Info("superadmin_email not set; skipping superadmin bootstrap")
		return nil
	}
	email, err := authutil.ValidEmail(email)
	if err != nil {
		return fmt.Errorf("superadmin_email: %w", err)
	}

	users := userstore.New(deps.MongoDatabase)
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.IsAdmin {
			return nil
		}
		if err := users.SetAdmin(ctx, u.ID, true); err != nil {
			return err
		}
		logger.Info("promoted existing user to superadmin", zap.String("email", email))
		auditLog.SuperAdminBootstrapped(ctx, u.ID, email)
		return nil
	case !errors.Is(err, userstore.ErrNotFound):
		return err
	}

	if password == "" {
		return errors.New("superadmin_password is required to create the superadmin account")
	}
	if err := authutil.ValidatePassword(password); err != nil {
		return fmt.Errorf("superadmin_password: %w", err)
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return err
	}
	created, err := users.Create(ctx, models.User{
		Email:        email,
		FullName:     "Super Admin",
		PasswordHash: hash,
		IsAdmin:      true,
	})
	if err != nil {
		return err
	}
	logger.Info("created superadmin", zap.String("email", email))
	auditLog.SuperAdminBootstrapped(ctx, created.ID, email)
	return nil
}
