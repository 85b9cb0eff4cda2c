// internal/app/features/impersonate/routes.go
package impersonate

import (
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /admin/impersonate. Start only requires a signed-in
// caller; the service itself refuses non-admins and nested impersonation.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireImpersonating).Post("/stop", h.HandleStop)
	r.With(auth.RequireSignedIn).Post("/{userID}", h.HandleStart)
	return r
}
