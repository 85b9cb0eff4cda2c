// Package impersonation lets a super-admin act as another user and later
// return to their own context.
//
// Start records a grant and issues a short-lived credential carrying the
// target's claims plus a back-pointer to the admin and the grant. Stop
// consumes the grant and re-issues the admin credential. A grant can be
// consumed once, so replaying a stop request fails.
package impersonation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTTL is the lifetime of an impersonation credential and its grant.
const DefaultTTL = time.Hour

var (
	ErrNotAdmin             = errors.New("impersonation: only a super-admin can impersonate")
	ErrAlreadyImpersonating = errors.New("impersonation: already impersonating")
	ErrNotImpersonating     = errors.New("impersonation: not impersonating")
	ErrTargetIsAdmin        = errors.New("impersonation: cannot impersonate a super-admin")
	ErrTargetNotFound       = errors.New("impersonation: target user not found")
	ErrTargetInactive       = errors.New("impersonation: target user is disabled")
	ErrNoActiveMembership   = errors.New("impersonation: target has no active membership")
	ErrRestoreInvalid       = errors.New("impersonation: restore is no longer valid")
)

// Users loads accounts.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Memberships resolves a target's school and role.
type Memberships interface {
	ActiveRole(ctx context.Context, userID, schoolID primitive.ObjectID) (authz.Role, error)
	FirstActive(ctx context.Context, userID primitive.ObjectID) (models.UserSchool, error)
}

// GrantStore persists grants. Consume must be atomic and single-use.
type GrantStore interface {
	Save(ctx context.Context, g models.ImpersonationGrant) error
	Consume(ctx context.Context, grantID string) (models.ImpersonationGrant, error)
}

// Issuer signs a credential for a context.
type Issuer interface {
	Issue(c authz.Context, ttl time.Duration) (string, time.Time, error)
}

// Session is the outcome of Start or Stop: the new context and its credential.
type Session struct {
	Context   authz.Context
	Token     string
	ExpiresAt time.Time
}

// Service runs the impersonation state machine.
type Service struct {
	users       Users
	memberships Memberships
	grants      GrantStore
	issuer      Issuer
	ttl         time.Duration
	now         func() time.Time
}

// NewService returns a Service. A non-positive ttl uses DefaultTTL.
func NewService(users Users, memberships Memberships, grants GrantStore, issuer Issuer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		users:       users,
		memberships: memberships,
		grants:      grants,
		issuer:      issuer,
		ttl:         ttl,
		now:         time.Now,
	}
}

// WithClock returns a copy of the service that reads time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// TTL returns the impersonation credential lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Start begins impersonating targetID. When schoolID is zero the target's
// oldest active membership is used.
func (s *Service) Start(ctx context.Context, actor authz.Context, targetID, schoolID primitive.ObjectID) (Session, error) {
	if actor.Impersonating() {
		return Session{}, ErrAlreadyImpersonating
	}
	if !actor.IsAdmin {
		return Session{}, ErrNotAdmin
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
	}
	if target.IsAdmin {
		return Session{}, ErrTargetIsAdmin
	}
	if target.Status == models.StatusDisabled {
		return Session{}, ErrTargetInactive
	}

	var role authz.Role
	if schoolID.IsZero() {
		m, err := s.memberships.FirstActive(ctx, targetID)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrNoActiveMembership, err)
		}
		role, schoolID = authz.Role(m.Role), m.SchoolID
	} else {
		role, err = s.memberships.ActiveRole(ctx, targetID, schoolID)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrNoActiveMembership, err)
		}
	}

	now := s.now().UTC()
	grant := models.ImpersonationGrant{
		GrantID:   uuid.NewString(),
		AdminID:   actor.UserID,
		TargetID:  targetID,
		SchoolID:  schoolID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.grants.Save(ctx, grant); err != nil {
		return Session{}, fmt.Errorf("save impersonation grant: %w", err)
	}

	c := authz.Context{
		UserID:   targetID,
		Role:     role,
		SchoolID: schoolID,
		Impersonator: &authz.Impersonator{
			AdminID: actor.UserID,
			GrantID: grant.GrantID,
		},
	}
	token, exp, err := s.issuer.Issue(c, s.ttl)
	if err != nil {
		return Session{}, fmt.Errorf("sign impersonation credential: %w", err)
	}
	return Session{Context: c, Token: token, ExpiresAt: exp}, nil
}

// Stop ends impersonation and returns the admin's own context. The issued
// credential uses the issuer's default lifetime.
func (s *Service) Stop(ctx context.Context, actor authz.Context) (Session, error) {
	if !actor.Impersonating() {
		return Session{}, ErrNotImpersonating
	}

	grant, err := s.grants.Consume(ctx, actor.Impersonator.GrantID)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRestoreInvalid, err)
	}
	if grant.AdminID != actor.Impersonator.AdminID || grant.TargetID != actor.UserID {
		return Session{}, ErrRestoreInvalid
	}

	admin, err := s.users.GetByID(ctx, grant.AdminID)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRestoreInvalid, err)
	}
	if !admin.IsAdmin || admin.Status == models.StatusDisabled {
		return Session{}, ErrRestoreInvalid
	}

	c := authz.Context{UserID: admin.ID, Role: authz.RoleSuperAdmin, IsAdmin: true}
	token, exp, err := s.issuer.Issue(c, 0)
	if err != nil {
		return Session{}, fmt.Errorf("sign admin credential: %w", err)
	}
	return Session{Context: c, Token: token, ExpiresAt: exp}, nil
}
