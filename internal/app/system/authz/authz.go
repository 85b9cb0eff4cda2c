// Package authz is the tenancy access guard.
//
// Rules:
//   - Super-admins are allowed everything, in every school.
//   - Anyone else must be active in the resource's school AND hold one of the
//     required roles. An empty role list admits any role.
//   - A school mismatch is always WrongTenant, whatever the role.
//
// Every read or write on a school-partitioned collection goes through
// Authorize (directly or via SchoolGuard).
package authz

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reason explains a denial.
type Reason string

const (
	ReasonUnauthenticated  Reason = "unauthenticated"
	ReasonWrongTenant      Reason = "wrong_tenant"
	ReasonInsufficientRole Reason = "insufficient_role"
)

var (
	ErrUnauthenticated  = errors.New("authz: unauthenticated")
	ErrWrongTenant      = errors.New("authz: wrong tenant")
	ErrInsufficientRole = errors.New("authz: insufficient role")
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow is the allowing decision.
var Allow = Decision{Allowed: true}

// Deny returns a denying decision with reason.
func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Err returns nil for an allowing decision, otherwise the sentinel matching its reason.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonWrongTenant:
		return ErrWrongTenant
	default:
		return ErrInsufficientRole
	}
}

// Authorize decides whether c may act on a resource owned by schoolID with one of required.
func Authorize(c Context, required []Role, schoolID primitive.ObjectID) Decision {
	if !c.Authenticated() {
		return Deny(ReasonUnauthenticated)
	}
	if c.IsAdmin {
		return Allow
	}
	if c.SchoolID.IsZero() || schoolID.IsZero() || c.SchoolID != schoolID {
		return Deny(ReasonWrongTenant)
	}
	if !c.Role.IsActive() {
		return Deny(ReasonInsufficientRole)
	}
	if len(required) == 0 {
		return Allow
	}
	for _, want := range required {
		if c.Role == want {
			return Allow
		}
	}
	return Deny(ReasonInsufficientRole)
}

// Can is Authorize reduced to a boolean.
func Can(c Context, required []Role, schoolID primitive.ObjectID) bool {
	return Authorize(c, required, schoolID).Allowed
}
