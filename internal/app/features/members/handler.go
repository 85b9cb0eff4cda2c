// internal/app/features/members/handler.go
package members

import (
	"errors"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/paging"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users       *userstore.Store
	Memberships *membershipstore.Store
	AuditLog    *auditlog.Logger
	Errs        *uierrors.Handler
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:       userstore.New(db),
		Memberships: membershipstore.New(db),
		AuditLog:    audit,
		Errs:        uierrors.NewHandler(logger),
		Log:         logger,
	}
}

type memberView struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// ServeList handles GET /schools/{schoolID}/members.
//
// Only rows of the guarded school are read. Inactive rows are included with
// ?include_inactive=true. Results are paged with ?limit= and ?after=; the
// response carries "next" while more rows remain.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	schoolID, _ := primitive.ObjectIDFromHex(chi.URLParam(r, "schoolID"))
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	page, err := paging.Parse(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_page")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list members")
	defer cancel()

	rows, err := h.Memberships.PageBySchool(ctx, schoolID, includeInactive, page)
	if err != nil {
		h.Errs.Internal(w, r, "list members", err)
		return
	}
	rows, next := paging.Trim(rows, page, func(m models.UserSchool) primitive.ObjectID { return m.ID })

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.UserID)
	}
	users, err := h.Users.GetMany(ctx, ids)
	if err != nil {
		h.Errs.Internal(w, r, "list members: load users", err)
		return
	}

	out := make([]memberView, 0, len(rows))
	for _, m := range rows {
		u, ok := users[m.UserID]
		if !ok {
			continue
		}
		out = append(out, memberView{UserID: u.ID.Hex(), FullName: u.FullName, Email: u.Email, Role: m.Role})
	}
	respond.JSON(w, http.StatusOK, memberList{Members: out, Next: next})
}

type memberList struct {
	Members []memberView `json:"members"`
	Next    string       `json:"next,omitempty"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// HandleSetRole handles PATCH /schools/{schoolID}/members/{userID}.
//
// The membership row is updated in place; "inactive" removes the member
// without deleting the row. Leaders cannot change their own role.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	c, ok := shared.Current(w, r)
	if !ok {
		return
	}
	schoolID, _ := primitive.ObjectIDFromHex(chi.URLParam(r, "schoolID"))
	userID, ok := shared.ObjectIDParam(chi.URLParam(r, "userID"))
	if !ok {
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	}

	var req roleRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAdminBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	role, ok := authz.ParseRole(req.Role)
	if !ok || !role.IsMembershipRole() {
		respond.Error(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if userID == c.UserID && !c.IsAdmin {
		respond.Error(w, http.StatusForbidden, "cannot_change_own_role")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "set member role")
	defer cancel()

	cur, err := h.Memberships.Get(ctx, userID, schoolID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "set member role: load", err)
		return
	}

	if cur.Role != string(role) {
		if err := h.Memberships.SetRole(ctx, userID, schoolID, role); err != nil {
			if errors.Is(err, membershipstore.ErrNotFound) {
				respond.Error(w, http.StatusNotFound, "not_found")
				return
			}
			h.Errs.Internal(w, r, "set member role", err)
			return
		}
		h.AuditLog.MemberRoleChanged(ctx, r, c.UserID, userID, schoolID, cur.Role, string(role))
	}
	respond.JSON(w, http.StatusOK, map[string]string{"user_id": userID.Hex(), "role": string(role)})
}
