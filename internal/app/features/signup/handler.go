// internal/app/features/signup/handler.go
package signup

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/authutil"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/app/system/onboarding"
	"github.com/dalemusser/camphub/internal/app/system/ratelimit"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

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

type signupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// ServeSignup handles POST /signup. The new account has no school; it joins
// one by redeeming an invite, so no credential is issued here.
func (h *Handler) ServeSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAuthBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if h.Limiter != nil && !h.Limiter.Check(r, "") {
		h.Metrics.IncRateLimitRejection("signup")
		h.AuditLog.RateLimited(r.Context(), r, "signup")
		respond.Error(w, http.StatusTooManyRequests, "too_many_requests")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "signup")
	defer cancel()

	u, err := h.Accounts.Signup(ctx, req.FullName, req.Email, req.Password)
	switch {
	case errors.Is(err, authutil.ErrInvalidEmail):
		respond.Error(w, http.StatusBadRequest, "invalid_email")
		return
	case errors.Is(err, onboarding.ErrDetailsRequired):
		respond.Error(w, http.StatusBadRequest, "full_name_required")
		return
	case shared.WeakPassword(err):
		respond.Error(w, http.StatusBadRequest, "weak_password")
		return
	case errors.Is(err, userstore.ErrDuplicateEmail):
		respond.Error(w, http.StatusConflict, "email_taken")
		return
	case err != nil:
		h.Errs.Internal(w, r, "signup", err)
		return
	}

	h.AuditLog.Signup(ctx, r, u.ID)
	respond.JSON(w, http.StatusCreated, signupResponse{ID: u.ID.Hex(), Email: u.Email, FullName: u.FullName})
}
