// internal/app/features/login/routes.go
package login

import (
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleLogin)
	r.With(auth.RequireSignedIn).Post("/school", h.HandleSwitchSchool)
	return r
}
