// internal/app/system/onboarding/accounts.go
package onboarding

import (
	"context"
	"errors"

	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/authutil"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/normalize"
	"github.com/dalemusser/camphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// dummyHash keeps Authenticate's timing uniform for unknown emails.
var dummyHash, _ = authutil.HashPassword("camphub-timing-equalizer")

// Signup creates an account with no school membership.
func (s *Service) Signup(ctx context.Context, fullName, email, password string) (models.User, error) {
	email, err := authutil.ValidEmail(email)
	if err != nil {
		return models.User{}, err
	}
	if normalize.Name(fullName) == "" {
		return models.User{}, ErrDetailsRequired
	}
	if err := authutil.ValidatePassword(password); err != nil {
		return models.User{}, err
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.users.Create(ctx, models.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
	})
}

// Authenticate checks email and password. Every failure, including a
// disabled account, is ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		authutil.CheckPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !authutil.CheckPassword(password, u.PasswordHash) || u.Status == models.StatusDisabled {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SessionContext builds the context a new credential for u should carry.
// Super-admins get the admin context. Everyone else needs an active
// membership: in schoolID when it is set, otherwise their oldest one.
func (s *Service) SessionContext(ctx context.Context, u *models.User, schoolID primitive.ObjectID) (authz.Context, error) {
	if u.IsAdmin {
		return authz.Context{UserID: u.ID, Role: authz.RoleSuperAdmin, IsAdmin: true}, nil
	}
	if schoolID.IsZero() {
		m, err := s.memberships.FirstActive(ctx, u.ID)
		if errors.Is(err, membershipstore.ErrNotFound) {
			return authz.Context{}, ErrNoActiveSchool
		}
		if err != nil {
			return authz.Context{}, err
		}
		return authz.Context{UserID: u.ID, Role: authz.Role(m.Role), SchoolID: m.SchoolID}, nil
	}
	role, err := s.memberships.ActiveRole(ctx, u.ID, schoolID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return authz.Context{}, ErrNoActiveSchool
	}
	if err != nil {
		return authz.Context{}, err
	}
	return authz.Context{UserID: u.ID, Role: role, SchoolID: schoolID}, nil
}

// SwitchSchool re-derives the context of an already signed-in user for schoolID.
func (s *Service) SwitchSchool(ctx context.Context, c authz.Context, schoolID primitive.ObjectID) (authz.Context, error) {
	if c.IsAdmin {
		return authz.Context{}, ErrAdminCannotJoin
	}
	if c.Impersonating() {
		return authz.Context{}, ErrImpersonating
	}
	u, err := s.users.GetByID(ctx, c.UserID)
	if err != nil {
		return authz.Context{}, err
	}
	if u.Status == models.StatusDisabled {
		return authz.Context{}, ErrInvalidCredentials
	}
	return s.SessionContext(ctx, u, schoolID)
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID primitive.ObjectID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !authutil.CheckPassword(current, u.PasswordHash) {
		return ErrWrongPassword
	}
	if err := authutil.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := authutil.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.SetPasswordHash(ctx, userID, hash)
}
