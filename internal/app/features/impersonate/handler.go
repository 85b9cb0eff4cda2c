// internal/app/features/impersonate/handler.go
package impersonate

import (
	"errors"
	"io"
	"net/http"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/impersonation"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Service    *impersonation.Service
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Metrics    *metrics.Metrics
	Errs       *uierrors.Handler
	Log        *zap.Logger
}

func NewHandler(svc *impersonation.Service, sessionMgr *auth.SessionManager, audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Service:    svc,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
		Metrics:    m,
		Errs:       uierrors.NewHandler(logger),
		Log:        logger,
	}
}

type startRequest struct {
	SchoolID string `json:"school_id,omitempty"`
}

// startErrors maps Start failures to status and error code. The caller is a
// super-admin, so the specific reason is returned.
var startErrors = []struct {
	err    error
	status int
	code   string
}{
	{impersonation.ErrAlreadyImpersonating, http.StatusConflict, "already_impersonating"},
	{impersonation.ErrNotAdmin, http.StatusForbidden, "forbidden"},
	{impersonation.ErrTargetNotFound, http.StatusNotFound, "not_found"},
	{impersonation.ErrTargetIsAdmin, http.StatusForbidden, "target_is_admin"},
	{impersonation.ErrTargetInactive, http.StatusForbidden, "target_disabled"},
	{impersonation.ErrNoActiveMembership, http.StatusForbidden, "no_active_school"},
}

// HandleStart handles POST /admin/impersonate/{userID}. The optional body
// names the school to act in; otherwise the target's oldest membership is used.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Current(w, r)
	if !ok {
		return
	}
	targetID, ok := shared.ObjectIDParam(chi.URLParam(r, "userID"))
	if !ok {
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	}

	var req startRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAdminBody); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	schoolID := primitive.NilObjectID
	if req.SchoolID != "" {
		if schoolID, ok = shared.ObjectIDParam(req.SchoolID); !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "start impersonation")
	defer cancel()

	sess, err := h.Service.Start(ctx, actor, targetID, schoolID)
	if err != nil {
		for _, se := range startErrors {
			if errors.Is(err, se.err) {
				h.Metrics.IncImpersonation("start", se.code)
				h.AuditLog.ImpersonationRejected(ctx, r, actor.UserID, targetID, se.code)
				respond.Error(w, se.status, se.code)
				return
			}
		}
		h.Errs.Internal(w, r, "start impersonation", err)
		return
	}

	h.Metrics.IncImpersonation("start", "ok")
	h.AuditLog.ImpersonationStarted(ctx, r, actor.UserID, targetID, sess.Context.SchoolID, sess.Context.Impersonator.GrantID)
	shared.WriteSession(w, h.SessionMgr, sess.Context, sess.Token, sess.ExpiresAt)
}

// HandleStop handles POST /admin/impersonate/stop: consumes the grant and
// answers with a fresh admin credential. A replayed or forged stop is 403.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.Current(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "stop impersonation")
	defer cancel()

	sess, err := h.Service.Stop(ctx, actor)
	switch {
	case errors.Is(err, impersonation.ErrNotImpersonating):
		respond.Error(w, http.StatusForbidden, "not_impersonating")
		return
	case errors.Is(err, impersonation.ErrRestoreInvalid):
		h.Metrics.IncImpersonation("stop", "rejected")
		h.AuditLog.RestoreReplayRejected(ctx, r, actor.Impersonator.AdminID, actor.Impersonator.GrantID)
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	case err != nil:
		h.Errs.Internal(w, r, "stop impersonation", err)
		return
	}

	h.Metrics.IncImpersonation("stop", "ok")
	h.AuditLog.ImpersonationStopped(ctx, r, sess.Context.UserID, actor.UserID, actor.Impersonator.GrantID)
	shared.WriteSession(w, h.SessionMgr, sess.Context, sess.Token, sess.ExpiresAt)
}
