// internal/app/features/userinfo/routes.go
package userinfo

import (
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers GET /me on the supplied router.
func MountRoutes(r chi.Router, h *Handler) {
	r.With(auth.RequireSignedIn).Get("/me", h.ServeUserInfo)
}
