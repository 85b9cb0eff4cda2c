// internal/app/features/notifications/handler.go
package notifications

import (
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	subscriptionstore "github.com/dalemusser/camphub/internal/app/store/subscriptions"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/gates"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/push"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Subs        *subscriptionstore.Store
	Broadcaster *push.Broadcaster
	AuditLog    *auditlog.Logger
	Errs        *uierrors.Handler
	Log         *zap.Logger
}

func NewHandler(subs *subscriptionstore.Store, b *push.Broadcaster, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Subs:        subs,
		Broadcaster: b,
		AuditLog:    audit,
		Errs:        uierrors.NewHandler(logger),
		Log:         logger,
	}
}

// HandleBroadcast handles POST /schools/{schoolID}/push. Endpoint failures
// are reported in the body; the request itself still succeeds.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	c, ok := shared.Current(w, r)
	if !ok {
		return
	}
	schoolID, _ := primitive.ObjectIDFromHex(chi.URLParam(r, "schoolID"))

	var msg push.Message
	if err := respond.DecodeJSON(r, &msg, limits.MaxPushBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	msg.Title = strings.TrimSpace(msg.Title)
	if msg.Title == "" {
		respond.Error(w, http.StatusBadRequest, "title_required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "push broadcast")
	defer cancel()

	rep, err := h.Broadcaster.Broadcast(ctx, schoolID, msg)
	if err != nil {
		h.Errs.Internal(w, r, "push broadcast", err)
		return
	}
	h.AuditLog.PushBroadcast(ctx, r, c.UserID, schoolID, rep.Delivered, len(rep.Failed))
	respond.JSON(w, http.StatusOK, rep)
}

type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// HandleSubscribe handles POST /push/subscriptions. The endpoint is filed
// under the caller's active school; registering it again moves it there.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	c, ok := gates.RequireActiveSchool(w, r)
	if !ok {
		return
	}
	if c.Impersonating() {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	var req subscriptionRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxPushBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "push subscribe")
	defer cancel()

	sub, err := h.Subs.Upsert(ctx, models.PushSubscription{
		UserID:   c.UserID,
		SchoolID: c.SchoolID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if errors.Is(err, subscriptionstore.ErrBadEndpoint) {
		respond.Error(w, http.StatusBadRequest, "invalid_endpoint")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "push subscribe", err)
		return
	}
	respond.JSON(w, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// HandleUnsubscribe handles DELETE /push/subscriptions for the caller's own endpoint.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	c, ok := gates.RequireAuth(w, r)
	if !ok {
		return
	}
	if c.Impersonating() {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	var req unsubscribeRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxPushBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "push unsubscribe")
	defer cancel()

	err := h.Subs.Delete(ctx, c.UserID, req.Endpoint)
	if errors.Is(err, subscriptionstore.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "push unsubscribe", err)
		return
	}
	respond.NoContent(w)
}
