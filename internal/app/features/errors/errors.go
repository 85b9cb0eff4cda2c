// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/camphub/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler answers router-level failures with the API's JSON error shape.
type Handler struct {
	Log *zap.Logger
}

// NewHandler constructs an errors Handler.
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Log: logger}
}

// NotFound is installed as the router's NotFound handler.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, http.StatusNotFound, "not_found")
}

// MethodNotAllowed is installed as the router's MethodNotAllowed handler.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, http.StatusMethodNotAllowed, "method_not_allowed")
}

// Internal logs err and writes a generic 500. Details never reach the client.
func (h *Handler) Internal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.Log.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	respond.Error(w, http.StatusInternalServerError, "internal_error")
}
