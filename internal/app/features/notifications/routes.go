// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the broadcast route under /schools/{schoolID}/push
// and the subscription routes under /push/subscriptions.
func MountRoutes(r chi.Router, h *Handler, onDeny authz.DenyHook) {
	r.With(authz.SchoolGuard("schoolID", onDeny, authz.RoleLeader, authz.RoleAnimator)).
		Post("/schools/{schoolID}/push", h.HandleBroadcast)

	r.Route("/push/subscriptions", func(sr chi.Router) {
		sr.Use(auth.RequireSignedIn)
		sr.Post("/", h.HandleSubscribe)
		sr.Delete("/", h.HandleUnsubscribe)
	})
}
