// Package onboarding holds the account flows that sit on top of the stores:
// signup and sign-in, school invites and invite links, password reset.
//
// Token failures are collapsed into ErrInvalidToken so callers cannot tell a
// missing token from an expired or already used one.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	"github.com/dalemusser/camphub/internal/app/store/regtokens"
	schoolstore "github.com/dalemusser/camphub/internal/app/store/schools"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/mailer"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoActiveSchool     = errors.New("user has no active school membership")
	ErrEmailMismatch      = errors.New("invite was sent to a different email address")
	ErrLinkCredentials    = errors.New("wrong password for this email, or full name and password missing for a new account")
	ErrDetailsRequired    = errors.New("full name and password are required to create an account")
	ErrBadRole            = errors.New(`role must be "leader"|"animator"|"user"`)
	ErrAdminCannotJoin    = errors.New("super-admins do not join schools")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSchoolNotFound     = errors.New("school not found")
	ErrImpersonating      = errors.New("not allowed while impersonating")
)

const (
	DefaultInviteTTL = 7 * 24 * time.Hour
	DefaultResetTTL  = time.Hour
	DefaultLinkTTL   = 30 * 24 * time.Hour
)

// Config carries the link base and token lifetimes.
type Config struct {
	SiteName  string
	BaseURL   string
	InviteTTL time.Duration
	ResetTTL  time.Duration
	LinkTTL   time.Duration
}

type Service struct {
	users       *userstore.Store
	schools     *schoolstore.Store
	memberships *membershipstore.Store
	tokens      *regtokens.Store
	mail        mailer.Sender
	cfg         Config
	log         *zap.Logger
}

func New(db *mongo.Database, tokens *regtokens.Store, mail mailer.Sender, cfg Config, log *zap.Logger) *Service {
	if cfg.SiteName == "" {
		cfg.SiteName = "Camphub"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = DefaultInviteTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	if mail == nil {
		mail = mailer.NewLog(log)
	}
	return &Service{
		users:       userstore.New(db),
		schools:     schoolstore.New(db),
		memberships: membershipstore.New(db),
		tokens:      tokens,
		mail:        mail,
		cfg:         cfg,
		log:         log,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

func (s *Service) link(path, token string) string {
	return urlutil.AddOrSetQueryParams(s.cfg.BaseURL+path, map[string]string{"token": token})
}

// send delivers e and only logs a failure.
func (s *Service) send(ctx context.Context, e mailer.Email, kind string) {
	if err := s.mail.Send(ctx, e); err != nil {
		s.log.Warn("email delivery failed", zap.String("kind", kind), zap.String("to", e.To), zap.Error(err))
	}
}

// tokenErr collapses store failures that must look identical to callers.
func tokenErr(err error) error {
	if errors.Is(err, regtokens.ErrNotFound) || errors.Is(err, regtokens.ErrExpired) || errors.Is(err, regtokens.ErrInvalidKind) {
		return ErrInvalidToken
	}
	return err
}

func humanize(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	case d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d >= time.Hour:
		return "1 hour"
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
