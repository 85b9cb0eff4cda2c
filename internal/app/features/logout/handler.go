// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// ServeLogout handles POST /logout.
//
// Credentials are stateless, so logging out only expires the cookie. Bearer
// clients discard their token themselves.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	h.SessionMgr.ClearCookie(w)
	if c, ok := authz.FromRequest(r); ok {
		h.AuditLog.Logout(r.Context(), r, c.UserID)
	}
	respond.NoContent(w)
}
