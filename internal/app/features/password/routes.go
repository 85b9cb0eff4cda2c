// internal/app/features/password/routes.go
package password

import (
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/forgot", h.ServeForgot)
	r.Post("/reset", h.ServeReset)
	r.With(auth.RequireSignedIn).Post("/change", h.ServeChange)
	return r
}
