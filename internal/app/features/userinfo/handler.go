// internal/app/features/userinfo/handler.go
package userinfo

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's identity and context.
type Handler struct {
	Users       *userstore.Store
	Memberships *membershipstore.Store
	Errs        *uierrors.Handler
	Log         *zap.Logger
}

// NewHandler creates a new userinfo handler.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Users:       userstore.New(db),
		Memberships: membershipstore.New(db),
		Errs:        uierrors.NewHandler(logger),
		Log:         logger,
	}
}

type membershipView struct {
	SchoolID string `json:"school_id"`
	Role     string `json:"role"`
}

type meResponse struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	FullName    string             `json:"full_name"`
	Context     shared.ContextView `json:"context"`
	Memberships []membershipView   `json:"memberships"`
}

// ServeUserInfo handles GET /me.
//
// While impersonating, the identity is the impersonated user and the
// context carries the impersonator.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	c, ok := shared.Current(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "userinfo")
	defer cancel()

	u, err := h.Users.GetByID(ctx, c.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "userinfo: load user", err)
		return
	}

	resp := meResponse{
		ID:          u.ID.Hex(),
		Email:       u.Email,
		FullName:    u.FullName,
		Context:     shared.ViewOf(c),
		Memberships: []membershipView{},
	}
	if !c.IsAdmin {
		ms, err := h.Memberships.ListActiveByUser(ctx, u.ID)
		if err != nil {
			h.Errs.Internal(w, r, "userinfo: list memberships", err)
			return
		}
		for _, m := range ms {
			resp.Memberships = append(resp.Memberships, membershipView{SchoolID: m.SchoolID.Hex(), Role: m.Role})
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}
