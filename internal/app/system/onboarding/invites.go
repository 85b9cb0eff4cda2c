// internal/app/system/onboarding/invites.go
package onboarding

import (
	"context"
	"errors"

	"github.com/dalemusser/camphub/internal/app/store/regtokens"
	schoolstore "github.com/dalemusser/camphub/internal/app/store/schools"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/authutil"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/mailer"
	"github.com/dalemusser/camphub/internal/app/system/normalize"
	"github.com/dalemusser/camphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AcceptPath = "/invites/accept"
	ResetPath  = "/password/reset"
)

// inviteRole parses s as a role an invite may grant. Empty means user.
func inviteRole(s string) (authz.Role, error) {
	if s == "" {
		return authz.RoleUser, nil
	}
	r, ok := authz.ParseRole(s)
	if !ok || !r.IsActive() {
		return "", ErrBadRole
	}
	return r, nil
}

func (s *Service) school(ctx context.Context, id primitive.ObjectID) (*models.School, error) {
	sc, err := s.schools.GetByID(ctx, id)
	if errors.Is(err, schoolstore.ErrNotFound) {
		return nil, ErrSchoolNotFound
	}
	return sc, err
}

// Invite is an issued invite and the link that redeems it.
type Invite struct {
	Token models.RegistrationToken
	Link  string
}

// InviteByEmail issues a single-use invite into schoolID and mails it.
// A delivery failure is logged and does not fail the call.
func (s *Service) InviteByEmail(ctx context.Context, schoolID primitive.ObjectID, email, role string) (Invite, error) {
	email, err := authutil.ValidEmail(email)
	if err != nil {
		return Invite{}, err
	}
	r, err := inviteRole(role)
	if err != nil {
		return Invite{}, err
	}
	sc, err := s.school(ctx, schoolID)
	if err != nil {
		return Invite{}, err
	}

	tok, err := s.tokens.Issue(ctx, regtokens.KindInvite, models.TokenPayload{
		SchoolID: &sc.ID,
		Email:    email,
		Role:     string(r),
	}, s.cfg.InviteTTL)
	if err != nil {
		return Invite{}, err
	}

	link := s.link(AcceptPath, tok.Token)
	s.send(ctx, mailer.BuildInviteEmail(email, mailer.LinkEmailData{
		SiteName:   s.cfg.SiteName,
		SchoolName: sc.Name,
		Role:       string(r),
		Link:       link,
		ExpiresIn:  humanize(s.cfg.InviteTTL),
	}), "invite")
	return Invite{Token: tok, Link: link}, nil
}

// CurrentLink returns the school's live invite link, issuing one when none
// exists. issued reports whether a new link was created.
func (s *Service) CurrentLink(ctx context.Context, schoolID primitive.ObjectID) (inv Invite, issued bool, err error) {
	tok, err := s.tokens.CurrentActive(ctx, schoolID, regtokens.KindSchoolLink)
	if err == nil {
		return Invite{Token: tok, Link: s.link(AcceptPath, tok.Token)}, false, nil
	}
	if !errors.Is(err, regtokens.ErrNotFound) {
		return Invite{}, false, err
	}

	sc, err := s.school(ctx, schoolID)
	if err != nil {
		return Invite{}, false, err
	}
	tok, err = s.tokens.Issue(ctx, regtokens.KindSchoolLink, models.TokenPayload{
		SchoolID: &sc.ID,
		Role:     string(authz.RoleUser),
	}, s.cfg.LinkTTL)
	if err != nil {
		return Invite{}, false, err
	}
	return Invite{Token: tok, Link: s.link(AcceptPath, tok.Token)}, true, nil
}

// RedeemInput describes who is redeeming a token. Actor is the zero context
// for anonymous callers, who then identify by the invite's email (or Email
// for invite links) and supply FullName and Password for a new account.
type RedeemInput struct {
	Token    string
	Actor    authz.Context
	Email    string
	FullName string
	Password string
}

// RedeemResult is the membership a redemption produced.
type RedeemResult struct {
	User     models.User
	SchoolID primitive.ObjectID
	Role     authz.Role
	Kind     regtokens.Kind
	Joined   bool // false when the user was already a member
	Created  bool // a new account was created
}

// Redeem accepts an invite or invite link. Joining a school the user already
// belongs to succeeds with Joined=false.
func (s *Service) Redeem(ctx context.Context, in RedeemInput) (RedeemResult, error) {
	tok, err := s.lookup(ctx, in.Token)
	if err != nil {
		return RedeemResult{}, err
	}
	if tok.SchoolID == nil || tok.SchoolID.IsZero() {
		return RedeemResult{}, ErrInvalidToken
	}
	kind := regtokens.Kind(tok.Kind)
	role, err := inviteRole(tok.Role)
	if err != nil {
		return RedeemResult{}, ErrInvalidToken
	}

	user, create, err := s.redeemer(ctx, in, kind, tok.TokenPayload)
	if err != nil {
		return RedeemResult{}, err
	}

	if _, err := s.tokens.Redeem(ctx, in.Token, kind); err != nil {
		return RedeemResult{}, tokenErr(err)
	}

	res := RedeemResult{SchoolID: *tok.SchoolID, Role: role, Kind: kind}
	if create != nil {
		user, res.Created, err = s.createOrLoad(ctx, *create, kind, in.Password)
		if err != nil {
			return RedeemResult{}, err
		}
	}
	res.User = *user

	m, joined, err := s.memberships.Join(ctx, user.ID, *tok.SchoolID, role)
	if err != nil {
		return RedeemResult{}, err
	}
	res.Role = authz.Role(m.Role)
	res.Joined = joined
	return res, nil
}

// lookup finds raw as a live invite or invite link.
func (s *Service) lookup(ctx context.Context, raw string) (models.RegistrationToken, error) {
	if raw == "" {
		return models.RegistrationToken{}, ErrInvalidToken
	}
	for _, k := range []regtokens.Kind{regtokens.KindInvite, regtokens.KindSchoolLink} {
		tok, err := s.tokens.Lookup(ctx, raw, k)
		if err == nil {
			return tok, nil
		}
		if err = tokenErr(err); !errors.Is(err, ErrInvalidToken) {
			return models.RegistrationToken{}, err
		}
	}
	return models.RegistrationToken{}, ErrInvalidToken
}

// redeemer decides who redeems the token. It returns either an existing
// user or the account to create once the token has been consumed.
func (s *Service) redeemer(ctx context.Context, in RedeemInput, kind regtokens.Kind, p models.TokenPayload) (*models.User, *models.User, error) {
	if in.Actor.Authenticated() {
		if in.Actor.IsAdmin {
			return nil, nil, ErrAdminCannotJoin
		}
		u, err := s.users.GetByID(ctx, in.Actor.UserID)
		if err != nil {
			return nil, nil, err
		}
		if kind == regtokens.KindInvite && u.Email != normalize.Email(p.Email) {
			return nil, nil, ErrEmailMismatch
		}
		if u.Status == models.StatusDisabled {
			return nil, nil, ErrInvalidCredentials
		}
		return u, nil, nil
	}

	email := p.Email
	link := kind == regtokens.KindSchoolLink
	if link {
		e, err := authutil.ValidEmail(in.Email)
		if err != nil {
			return nil, nil, err
		}
		email = e
		if in.Password != "" {
			if err := authutil.ValidatePassword(in.Password); err != nil {
				return nil, nil, err
			}
		}
	} else if in.Email != "" && normalize.Email(in.Email) != normalize.Email(email) {
		return nil, nil, ErrEmailMismatch
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// The invite email proves ownership of the address; a shared link does
		// not, so a link redeemer gets one answer for every refusal.
		if link {
			if !authutil.CheckPassword(in.Password, u.PasswordHash) || u.IsAdmin || u.Status == models.StatusDisabled {
				return nil, nil, ErrLinkCredentials
			}
			return u, nil, nil
		}
		if u.IsAdmin {
			return nil, nil, ErrAdminCannotJoin
		}
		if u.Status == models.StatusDisabled {
			return nil, nil, ErrInvalidCredentials
		}
		return u, nil, nil
	case errors.Is(err, userstore.ErrNotFound):
	default:
		return nil, nil, err
	}

	if normalize.Name(in.FullName) == "" || in.Password == "" {
		if link {
			return nil, nil, ErrLinkCredentials
		}
		return nil, nil, ErrDetailsRequired
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		return nil, nil, err
	}
	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}
	return nil, &models.User{Email: email, FullName: in.FullName, PasswordHash: hash}, nil
}

// createOrLoad creates u. When a concurrent signup took the address after the
// token was consumed, it joins that account instead, provided the redeemer
// could have signed in to it.
func (s *Service) createOrLoad(ctx context.Context, u models.User, kind regtokens.Kind, password string) (*models.User, bool, error) {
	created, err := s.users.Create(ctx, u)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		return nil, false, err
	}
	existing, err := s.users.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, false, err
	}
	if existing.IsAdmin || existing.Status == models.StatusDisabled {
		return nil, false, ErrInvalidCredentials
	}
	if kind == regtokens.KindSchoolLink && !authutil.CheckPassword(password, existing.PasswordHash) {
		return nil, false, ErrLinkCredentials
	}
	return existing, false, nil
}
