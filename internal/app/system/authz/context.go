// internal/app/system/authz/context.go
package authz

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Impersonator identifies the super-admin behind an impersonated context.
type Impersonator struct {
	AdminID primitive.ObjectID
	GrantID string
}

// Context is the normalized authorization context of a request.
// The zero value is the anonymous context.
type Context struct {
	UserID   primitive.ObjectID
	Role     Role
	SchoolID primitive.ObjectID // NilObjectID for super-admins
	IsAdmin  bool

	// Impersonator is set when a super-admin is acting as UserID.
	Impersonator *Impersonator
}

// Authenticated reports whether c belongs to a signed-in user.
func (c Context) Authenticated() bool {
	return !c.UserID.IsZero()
}

// Impersonating reports whether c carries an impersonation back-pointer.
func (c Context) Impersonating() bool {
	return c.Impersonator != nil
}

type ctxKey string

const authzCtxKey ctxKey = "authzContext"

// WithContext returns a copy of parent carrying c.
func WithContext(parent context.Context, c Context) context.Context {
	return context.WithValue(parent, authzCtxKey, c)
}

// FromContext returns the authorization context stored on ctx.
// ok is false for anonymous requests.
func FromContext(ctx context.Context) (Context, bool) {
	c, found := ctx.Value(authzCtxKey).(Context)
	if !found || !c.Authenticated() {
		return Context{}, false
	}
	return c, true
}

// FromRequest is FromContext(r.Context()).
func FromRequest(r *http.Request) (Context, bool) {
	return FromContext(r.Context())
}

// IsSuperAdmin reports whether the request's context is a super-admin.
func IsSuperAdmin(r *http.Request) bool {
	c, ok := FromRequest(r)
	return ok && c.IsAdmin
}

// SchoolID returns the request's active school, or NilObjectID for anonymous
// and super-admin requests.
func SchoolID(r *http.Request) primitive.ObjectID {
	c, ok := FromRequest(r)
	if !ok {
		return primitive.NilObjectID
	}
	return c.SchoolID
}
