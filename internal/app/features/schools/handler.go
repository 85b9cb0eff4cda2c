// internal/app/features/schools/handler.go
package schools

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	schoolstore "github.com/dalemusser/camphub/internal/app/store/schools"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Schools  *schoolstore.Store
	AuditLog *auditlog.Logger
	Errs     *uierrors.Handler
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Schools:  schoolstore.New(db),
		AuditLog: audit,
		Errs:     uierrors.NewHandler(logger),
		Log:      logger,
	}
}

type createRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type schoolView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

// HandleCreate handles POST /schools (super-admin only).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	c, ok := shared.Current(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAdminBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create school")
	defer cancel()

	sc, err := h.Schools.Create(ctx, req.Name, req.Slug)
	switch {
	case errors.Is(err, schoolstore.ErrBadName):
		respond.Error(w, http.StatusBadRequest, "name_required")
		return
	case errors.Is(err, schoolstore.ErrBadSlug):
		respond.Error(w, http.StatusBadRequest, "invalid_slug")
		return
	case errors.Is(err, schoolstore.ErrDuplicateSlug):
		respond.Error(w, http.StatusConflict, "slug_taken")
		return
	case err != nil:
		h.Errs.Internal(w, r, "create school", err)
		return
	}

	h.AuditLog.SchoolCreated(ctx, r, c.UserID, sc.ID, sc.Slug)
	respond.JSON(w, http.StatusCreated, schoolView{ID: sc.ID.Hex(), Name: sc.Name, Slug: sc.Slug, Status: sc.Status})
}

// ServeView handles GET /schools/{schoolID}. The route guard has already
// checked the caller belongs to the school.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.ObjectIDParam(chi.URLParam(r, "schoolID"))
	if !ok {
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "view school")
	defer cancel()

	sc, err := h.Schools.GetByID(ctx, id)
	if errors.Is(err, schoolstore.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "view school", err)
		return
	}
	respond.JSON(w, http.StatusOK, schoolView{ID: sc.ID.Hex(), Name: sc.Name, Slug: sc.Slug, Status: sc.Status})
}
