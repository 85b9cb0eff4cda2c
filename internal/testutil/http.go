package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/camphub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminContext is a super-admin authorization context.
func AdminContext() authz.Context {
	return authz.Context{
		UserID:  primitive.NewObjectID(),
		Role:    authz.RoleSuperAdmin,
		IsAdmin: true,
	}
}

// MemberContext is a context active in schoolID with role.
func MemberContext(schoolID primitive.ObjectID, role authz.Role) authz.Context {
	return authz.Context{
		UserID:   primitive.NewObjectID(),
		Role:     role,
		SchoolID: schoolID,
	}
}

// WithAuthz attaches c to the request the way the session middleware does.
func WithAuthz(r *http.Request, c authz.Context) *http.Request {
	return r.WithContext(authz.WithContext(r.Context(), c))
}

// NewJSONRequest builds a request with a JSON body.
func NewJSONRequest(method, target, body string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, rd)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewAuthenticatedRequest builds a JSON request carrying c.
func NewAuthenticatedRequest(method, target, body string, c authz.Context) *http.Request {
	return WithAuthz(NewJSONRequest(method, target, body), c)
}
