// internal/app/system/authz/middleware.go
package authz

import (
	"net/http"

	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DenyHook observes guard denials (metrics, audit). It must not write to w.
type DenyHook func(r *http.Request, schoolID primitive.ObjectID, d Decision)

// SchoolGuard authorizes every request against the school named by the chi URL
// parameter param. Denials are answered uniformly: 401 when unauthenticated,
// 403 otherwise, with no hint of which tenant or role was expected.
func SchoolGuard(param string, onDeny DenyHook, roles ...Role) func(http.Handler) http.Handler {
	required := append([]Role(nil), roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, _ := FromRequest(r)

			schoolID, err := primitive.ObjectIDFromHex(chi.URLParam(r, param))
			if err != nil {
				// An unparseable id cannot belong to the caller's school.
				schoolID = primitive.NilObjectID
			}

			d := Authorize(c, required, schoolID)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			if onDeny != nil {
				onDeny(r, schoolID, d)
			}
			if d.Reason == ReasonUnauthenticated {
				respond.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			respond.Error(w, http.StatusForbidden, "forbidden")
		})
	}
}
