// internal/app/system/auth/resolver.go
package auth

import (
	"context"
	"errors"

	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/credential"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrBadClaims means a credential verified but its claims do not describe a
// valid context (admin with a school, member without one, unknown role...).
var ErrBadClaims = errors.New("auth: credential claims are inconsistent")

// GrantChecker reports whether an impersonation grant is still live.
type GrantChecker interface {
	Active(ctx context.Context, grantID string) (bool, error)
}

// Resolver turns a raw credential into an authorization context.
//
// Credentials are not re-checked against memberships: a role revoked after
// issuance keeps working until the credential expires. Impersonation
// credentials are the exception; they die with their grant.
type Resolver struct {
	codec   *credential.Codec
	grants  GrantChecker
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewResolver(codec *credential.Codec, grants GrantChecker, m *metrics.Metrics, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{codec: codec, grants: grants, metrics: m, log: log}
}

// Resolve returns the context carried by raw, or ok=false (anonymous) when
// raw is empty or fails any check. It never returns an error.
func (rv *Resolver) Resolve(ctx context.Context, raw string) (c authz.Context, ok bool) {
	if raw == "" {
		return authz.Context{}, false
	}

	claims, err := rv.codec.Verify(raw)
	if err != nil {
		rv.reject(reasonFor(err))
		return authz.Context{}, false
	}

	c, err = ContextFromClaims(claims)
	if err != nil {
		rv.reject("bad_claims")
		rv.log.Warn("credential with inconsistent claims", zap.String("sub", claims.Subject), zap.Error(err))
		return authz.Context{}, false
	}

	if c.Impersonating() {
		if rv.grants == nil {
			rv.reject("grant_unchecked")
			return authz.Context{}, false
		}
		live, err := rv.grants.Active(ctx, c.Impersonator.GrantID)
		if err != nil {
			rv.reject("grant_check_failed")
			rv.log.Error("impersonation grant lookup failed", zap.String("grant_id", c.Impersonator.GrantID), zap.Error(err))
			return authz.Context{}, false
		}
		if !live {
			rv.reject("grant_revoked")
			return authz.Context{}, false
		}
	}
	return c, true
}

func (rv *Resolver) reject(reason string) {
	rv.metrics.IncCredentialRejection(reason)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, credential.ErrExpired):
		return "expired"
	case errors.Is(err, credential.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, credential.ErrConfiguration):
		return "configuration"
	default:
		return "malformed"
	}
}

// ContextFromClaims validates the shape of verified claims.
//   - admin: no school, no impersonation pointer
//   - everyone else: a school and an active membership role
func ContextFromClaims(cl *credential.Claims) (authz.Context, error) {
	userID, err := primitive.ObjectIDFromHex(cl.UserID())
	if err != nil || userID.IsZero() {
		return authz.Context{}, ErrBadClaims
	}

	if cl.IsAdmin {
		if cl.SchoolID != "" || cl.Impersonation != nil {
			return authz.Context{}, ErrBadClaims
		}
		return authz.Context{UserID: userID, Role: authz.RoleSuperAdmin, IsAdmin: true}, nil
	}

	role, ok := authz.ParseRole(cl.Role)
	if !ok || !role.IsActive() {
		return authz.Context{}, ErrBadClaims
	}
	schoolID, err := primitive.ObjectIDFromHex(cl.SchoolID)
	if err != nil || schoolID.IsZero() {
		return authz.Context{}, ErrBadClaims
	}

	c := authz.Context{UserID: userID, Role: role, SchoolID: schoolID}
	if imp := cl.Impersonation; imp != nil {
		adminID, err := primitive.ObjectIDFromHex(imp.AdminID)
		if err != nil || adminID.IsZero() || imp.GrantID == "" || adminID == userID {
			return authz.Context{}, ErrBadClaims
		}
		c.Impersonator = &authz.Impersonator{AdminID: adminID, GrantID: imp.GrantID}
	}
	return c, nil
}

// ClaimsFor is the inverse of ContextFromClaims.
func ClaimsFor(c authz.Context) credential.Claims {
	var cl credential.Claims
	cl.Subject = c.UserID.Hex()
	if c.IsAdmin {
		cl.IsAdmin = true
		cl.Role = string(authz.RoleSuperAdmin)
		return cl
	}
	cl.Role = string(c.Role)
	cl.SchoolID = c.SchoolID.Hex()
	if c.Impersonator != nil {
		cl.Impersonation = &credential.Impersonation{
			AdminID: c.Impersonator.AdminID.Hex(),
			GrantID: c.Impersonator.GrantID,
		}
	}
	return cl
}
