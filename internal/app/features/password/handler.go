// internal/app/features/password/handler.go
package password

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/app/system/onboarding"
	"github.com/dalemusser/camphub/internal/app/system/ratelimit"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// forgotMessage is sent whether or not the address has an account.
const forgotMessage = "If an account exists for that address, a reset link has been sent."

type Handler struct {
	Accounts *onboarding.Service
	Limiter  *ratelimit.AttemptLimiter
	AuditLog *auditlog.Logger
	Metrics  *metrics.Metrics
	Errs     *uierrors.Handler
	Log      *zap.Logger
}

func NewHandler(accounts *onboarding.Service, limiter *ratelimit.AttemptLimiter, audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts: accounts,
		Limiter:  limiter,
		AuditLog: audit,
		Metrics:  m,
		Errs:     uierrors.NewHandler(logger),
		Log:      logger,
	}
}

type forgotRequest struct {
	Email string `json:"email"`
}

// ServeForgot handles POST /password/forgot. Known, unknown and disabled
// addresses all get the same 200 response; lookup and delivery failures are
// only logged.
func (h *Handler) ServeForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAuthBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if h.Limiter != nil && !h.Limiter.Check(r, req.Email) {
		h.Metrics.IncRateLimitRejection("password_forgot")
		h.AuditLog.RateLimited(r.Context(), r, "password_forgot")
		respond.Error(w, http.StatusTooManyRequests, "too_many_requests")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "forgot password")
	defer cancel()

	found, err := h.Accounts.ForgotPassword(ctx, req.Email)
	if err != nil {
		h.Log.Error("forgot password", zap.Error(err))
	}
	if found && err == nil {
		h.Metrics.IncTokenIssued("password_reset")
	}
	h.AuditLog.PasswordResetRequested(ctx, r, primitive.NilObjectID, req.Email, found)
	respond.JSON(w, http.StatusOK, map[string]string{"message": forgotMessage})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ServeReset handles POST /password/reset. Every token problem answers the
// same 400 "invalid_token".
func (h *Handler) ServeReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAuthBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "reset password")
	defer cancel()

	u, err := h.Accounts.ResetPassword(ctx, req.Token, req.Password)
	switch {
	case shared.WeakPassword(err):
		respond.Error(w, http.StatusBadRequest, "weak_password")
		return
	case errors.Is(err, onboarding.ErrInvalidToken):
		h.Metrics.IncTokenRedemption("password_reset", "invalid")
		h.AuditLog.PasswordResetFailed(ctx, r, "invalid_token")
		respond.Error(w, http.StatusBadRequest, "invalid_token")
		return
	case err != nil:
		h.Errs.Internal(w, r, "reset password", err)
		return
	}

	h.Metrics.IncTokenRedemption("password_reset", "ok")
	h.AuditLog.PasswordResetCompleted(ctx, r, u.ID)
	respond.NoContent(w)
}

type changeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ServeChange handles POST /password/change for the signed-in user.
// Impersonators cannot change the impersonated user's password.
func (h *Handler) ServeChange(w http.ResponseWriter, r *http.Request) {
	c, ok := shared.Current(w, r)
	if !ok {
		return
	}
	if c.Impersonating() {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	var req changeRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAuthBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "change password")
	defer cancel()

	err := h.Accounts.ChangePassword(ctx, c.UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, onboarding.ErrWrongPassword):
		respond.Error(w, http.StatusForbidden, "wrong_password")
		return
	case shared.WeakPassword(err):
		respond.Error(w, http.StatusBadRequest, "weak_password")
		return
	case err != nil:
		h.Errs.Internal(w, r, "change password", err)
		return
	}

	h.AuditLog.PasswordChanged(ctx, r, c.UserID)
	respond.NoContent(w)
}
