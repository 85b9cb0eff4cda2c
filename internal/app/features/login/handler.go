// internal/app/features/login/handler.go
package login

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/app/system/onboarding"
	"github.com/dalemusser/camphub/internal/app/system/ratelimit"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Accounts   *onboarding.Service
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.AttemptLimiter
	AuditLog   *auditlog.Logger
	Metrics    *metrics.Metrics
	Errs       *uierrors.Handler
	Log        *zap.Logger
}

func NewHandler(
	accounts *onboarding.Service,
	sessionMgr *auth.SessionManager,
	limiter *ratelimit.AttemptLimiter,
	audit *auditlog.Logger,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Accounts:   accounts,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		AuditLog:   audit,
		Metrics:    m,
		Errs:       uierrors.NewHandler(logger),
		Log:        logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	SchoolID string `json:"school_id,omitempty"`
}

// HandleLogin handles POST /login.
//
// Success answers with the credential (also set as a cookie) and the
// resolved context. Unknown emails, wrong passwords and disabled accounts
// all answer 401 "invalid_credentials".
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAuthBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if h.Limiter != nil && !h.Limiter.Check(r, req.Email) {
		h.Metrics.IncRateLimitRejection("login")
		h.AuditLog.RateLimited(r.Context(), r, "login")
		respond.Error(w, http.StatusTooManyRequests, "too_many_requests")
		return
	}

	schoolID := primitive.NilObjectID
	if req.SchoolID != "" {
		id, ok := shared.ObjectIDParam(req.SchoolID)
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_request")
			return
		}
		schoolID = id
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login")
	defer cancel()

	u, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, onboarding.ErrInvalidCredentials) {
		h.Metrics.IncAuthFailure("password", "invalid_credentials")
		h.AuditLog.LoginFailed(ctx, r, primitive.NilObjectID, req.Email, "invalid_credentials")
		respond.Error(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "login: authenticate", err)
		return
	}

	c, err := h.Accounts.SessionContext(ctx, u, schoolID)
	if errors.Is(err, onboarding.ErrNoActiveSchool) {
		h.Metrics.IncAuthFailure("password", "no_active_school")
		h.AuditLog.LoginFailed(ctx, r, u.ID, u.Email, "no_active_school")
		respond.Error(w, http.StatusForbidden, "no_active_school")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "login: session context", err)
		return
	}

	if err := shared.IssueSession(w, h.SessionMgr, c); err != nil {
		h.Errs.Internal(w, r, "login: issue credential", err)
		return
	}
	if h.Limiter != nil {
		h.Limiter.Succeeded(req.Email)
	}
	h.Metrics.IncAuthSuccess("password")
	h.AuditLog.LoginSuccess(ctx, r, u.ID, c.SchoolID)
}

type switchRequest struct {
	SchoolID string `json:"school_id"`
}

// HandleSwitchSchool handles POST /login/school: re-issues the caller's
// credential for another school they are an active member of.
func (h *Handler) HandleSwitchSchool(w http.ResponseWriter, r *http.Request) {
	cur, ok := shared.Current(w, r)
	if !ok {
		return
	}

	var req switchRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAuthBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	schoolID, ok := shared.ObjectIDParam(req.SchoolID)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "switch school")
	defer cancel()

	next, err := h.Accounts.SwitchSchool(ctx, cur, schoolID)
	switch {
	case errors.Is(err, onboarding.ErrNoActiveSchool),
		errors.Is(err, onboarding.ErrAdminCannotJoin),
		errors.Is(err, onboarding.ErrImpersonating),
		errors.Is(err, onboarding.ErrInvalidCredentials):
		h.Metrics.IncAccessDenied("school_switch")
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	case err != nil:
		h.Errs.Internal(w, r, "switch school", err)
		return
	}

	if err := shared.IssueSession(w, h.SessionMgr, next); err != nil {
		h.Errs.Internal(w, r, "switch school: issue credential", err)
		return
	}
	h.AuditLog.SchoolSwitched(ctx, r, next.UserID, next.SchoolID)
}
