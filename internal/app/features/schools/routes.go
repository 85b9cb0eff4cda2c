// internal/app/features/schools/routes.go
package schools

import (
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the school routes on r. School-scoped features mount
// their own routes under /schools/{schoolID} beside these.
func MountRoutes(r chi.Router, h *Handler, onDeny authz.DenyHook) {
	r.With(auth.RequireSuperAdmin).Post("/schools", h.HandleCreate)
	r.With(authz.SchoolGuard("schoolID", onDeny)).Get("/schools/{schoolID}", h.ServeView)
}
