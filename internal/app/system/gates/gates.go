// Package gates provides handler-level authorization checks.
//
// Route groups use authz.SchoolGuard and the auth.Require* middleware. Gates
// cover handlers whose tenant is not in the URL, such as one acting on the
// caller's active school. A failed gate has already written the uniform
// 401/403 response; the handler just returns.
package gates

import (
	"net/http"

	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequireAuth ensures the request is authenticated.
func RequireAuth(w http.ResponseWriter, r *http.Request) (authz.Context, bool) {
	c, ok := authz.FromRequest(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return authz.Context{}, false
	}
	return c, true
}

// RequireSchool authorizes the request against schoolID. onDeny may be nil.
func RequireSchool(w http.ResponseWriter, r *http.Request, schoolID primitive.ObjectID, onDeny authz.DenyHook, roles ...authz.Role) (authz.Context, bool) {
	c, _ := authz.FromRequest(r)
	d := authz.Authorize(c, roles, schoolID)
	if d.Allowed {
		return c, true
	}
	if onDeny != nil {
		onDeny(r, schoolID, d)
	}
	if d.Reason == authz.ReasonUnauthenticated {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
	} else {
		respond.Error(w, http.StatusForbidden, "forbidden")
	}
	return authz.Context{}, false
}

// RequireActiveSchool ensures the caller is a member acting within a school.
// Super-admins have no active school and are refused.
func RequireActiveSchool(w http.ResponseWriter, r *http.Request, roles ...authz.Role) (authz.Context, bool) {
	c, ok := RequireAuth(w, r)
	if !ok {
		return authz.Context{}, false
	}
	if c.IsAdmin || c.SchoolID.IsZero() {
		respond.Error(w, http.StatusForbidden, "no_active_school")
		return authz.Context{}, false
	}
	return RequireSchool(w, r, c.SchoolID, nil, roles...)
}
