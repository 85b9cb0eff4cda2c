// internal/app/features/invites/routes.go
package invites

import (
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the leader-only invite routes under
// /schools/{schoolID}/invites and the public POST /invites/redeem.
func MountRoutes(r chi.Router, h *Handler, onDeny authz.DenyHook) {
	r.Route("/schools/{schoolID}/invites", func(ir chi.Router) {
		ir.Use(authz.SchoolGuard("schoolID", onDeny, authz.RoleLeader))
		ir.Post("/", h.HandleIssue)
		ir.Get("/current", h.ServeCurrentLink)
	})
	r.Post("/invites/redeem", h.HandleRedeem)
}
