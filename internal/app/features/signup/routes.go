// internal/app/features/signup/routes.go
package signup

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeSignup)
	return r
}
