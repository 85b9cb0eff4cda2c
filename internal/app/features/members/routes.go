// internal/app/features/members/routes.go
package members

import (
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the member routes under /schools/{schoolID}/members.
func MountRoutes(r chi.Router, h *Handler, onDeny authz.DenyHook) {
	r.Route("/schools/{schoolID}/members", func(mr chi.Router) {
		mr.With(authz.SchoolGuard("schoolID", onDeny, authz.RoleLeader, authz.RoleAnimator)).Get("/", h.ServeList)
		mr.With(authz.SchoolGuard("schoolID", onDeny, authz.RoleLeader)).Patch("/{userID}", h.HandleSetRole)
	})
}
