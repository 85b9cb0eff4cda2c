// internal/app/system/onboarding/passwords.go
package onboarding

import (
	"context"
	"errors"

	"github.com/dalemusser/camphub/internal/app/store/regtokens"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/authutil"
	"github.com/dalemusser/camphub/internal/app/system/mailer"
	"github.com/dalemusser/camphub/internal/app/system/normalize"
	"github.com/dalemusser/camphub/internal/domain/models"
	"go.uber.org/zap"
)

// ForgotPassword mails a reset link when email belongs to an active account.
// found is for auditing only; callers must answer identically either way.
// Issuing a link retires any earlier one for the same address.
func (s *Service) ForgotPassword(ctx context.Context, email string) (found bool, err error) {
	email = normalize.Email(email)
	if email == "" {
		return false, nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if u.Status == models.StatusDisabled {
		return false, nil
	}

	if _, err := s.tokens.DeleteByEmail(ctx, u.Email, regtokens.KindPasswordReset); err != nil {
		return true, err
	}
	tok, err := s.tokens.Issue(ctx, regtokens.KindPasswordReset, models.TokenPayload{
		UserID: &u.ID,
		Email:  u.Email,
	}, s.cfg.ResetTTL)
	if err != nil {
		return true, err
	}

	s.send(ctx, mailer.BuildPasswordResetEmail(u.Email, mailer.LinkEmailData{
		SiteName:  s.cfg.SiteName,
		Link:      s.link(ResetPath, tok.Token),
		ExpiresIn: humanize(s.cfg.ResetTTL),
	}), "password_reset")
	return true, nil
}

// ResetPassword consumes a reset token and sets a new password. The password
// is validated first so a weak choice does not burn the token.
func (s *Service) ResetPassword(ctx context.Context, raw, password string) (*models.User, error) {
	if err := authutil.ValidatePassword(password); err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrInvalidToken
	}
	p, err := s.tokens.Redeem(ctx, raw, regtokens.KindPasswordReset)
	if err != nil {
		return nil, tokenErr(err)
	}
	if p.UserID == nil {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, *p.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if u.Status == models.StatusDisabled {
		return nil, ErrInvalidToken
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPasswordHash(ctx, u.ID, hash); err != nil {
		return nil, err
	}
	if _, err := s.tokens.DeleteByEmail(ctx, u.Email, regtokens.KindPasswordReset); err != nil {
		s.log.Warn("retire reset tokens", zap.String("email", u.Email), zap.Error(err))
	}
	return u, nil
}
