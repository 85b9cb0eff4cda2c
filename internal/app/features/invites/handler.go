// internal/app/features/invites/handler.go
package invites

import (
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/camphub/internal/app/features/errors"
	"github.com/dalemusser/camphub/internal/app/features/shared"
	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/authutil"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/limits"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/app/system/onboarding"
	"github.com/dalemusser/camphub/internal/app/system/ratelimit"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/dalemusser/camphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Onboarding *onboarding.Service
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.AttemptLimiter
	AuditLog   *auditlog.Logger
	Metrics    *metrics.Metrics
	Errs       *uierrors.Handler
	Log        *zap.Logger
}

func NewHandler(
	svc *onboarding.Service,
	sessionMgr *auth.SessionManager,
	limiter *ratelimit.AttemptLimiter,
	audit *auditlog.Logger,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Onboarding: svc,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		AuditLog:   audit,
		Metrics:    m,
		Errs:       uierrors.NewHandler(logger),
		Log:        logger,
	}
}

type inviteView struct {
	Kind      string    `json:"kind"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

func viewOf(inv onboarding.Invite) inviteView {
	return inviteView{
		Kind:      inv.Token.Kind,
		Email:     inv.Token.Email,
		Role:      inv.Token.Role,
		Link:      inv.Link,
		ExpiresAt: inv.Token.ExpiresAt,
	}
}

type issueRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// HandleIssue handles POST /schools/{schoolID}/invites: mails a single-use
// invite. Delivery failures are logged only; the link is returned either way.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	c, ok := shared.Current(w, r)
	if !ok {
		return
	}
	schoolID, _ := primitive.ObjectIDFromHex(chi.URLParam(r, "schoolID"))

	var req issueRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAdminBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "issue invite")
	defer cancel()

	inv, err := h.Onboarding.InviteByEmail(ctx, schoolID, req.Email, req.Role)
	switch {
	case errors.Is(err, authutil.ErrInvalidEmail):
		respond.Error(w, http.StatusBadRequest, "invalid_email")
		return
	case errors.Is(err, onboarding.ErrBadRole):
		respond.Error(w, http.StatusBadRequest, "invalid_role")
		return
	case errors.Is(err, onboarding.ErrSchoolNotFound):
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	case err != nil:
		h.Errs.Internal(w, r, "issue invite", err)
		return
	}

	h.Metrics.IncTokenIssued("invite")
	h.AuditLog.InviteIssued(ctx, r, c.UserID, schoolID, inv.Token.Email, inv.Token.Role)
	respond.JSON(w, http.StatusCreated, viewOf(inv))
}

// ServeCurrentLink handles GET /schools/{schoolID}/invites/current, issuing
// a reusable link when the school has no live one.
func (h *Handler) ServeCurrentLink(w http.ResponseWriter, r *http.Request) {
	c, ok := shared.Current(w, r)
	if !ok {
		return
	}
	schoolID, _ := primitive.ObjectIDFromHex(chi.URLParam(r, "schoolID"))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "current invite link")
	defer cancel()

	inv, issued, err := h.Onboarding.CurrentLink(ctx, schoolID)
	if errors.Is(err, onboarding.ErrSchoolNotFound) {
		respond.Error(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		h.Errs.Internal(w, r, "current invite link", err)
		return
	}
	if issued {
		h.Metrics.IncTokenIssued("school_link")
		h.AuditLog.SchoolLinkIssued(ctx, r, c.UserID, schoolID)
	}
	respond.JSON(w, http.StatusOK, viewOf(inv))
}

type redeemRequest struct {
	Token    string `json:"token"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password,omitempty"`
}

type redeemResponse struct {
	shared.SessionResponse
	Message string `json:"message"`
	Joined  bool   `json:"joined"`
	Created bool   `json:"created"`
}

// HandleRedeem handles POST /invites/redeem.
//
// Signed-in callers redeem as themselves. Anonymous callers identify by the
// invite's address (or Email for a school link) and sign up on the way when
// no account exists. Success answers with a credential for the joined school.
// Joining a school twice is a 200 "already a member".
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.FromRequest(r)
	if actor.Impersonating() {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	}

	var req redeemRequest
	if err := respond.DecodeJSON(r, &req, limits.MaxAuthBody); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if h.Limiter != nil && !h.Limiter.Check(r, req.Email) {
		h.Metrics.IncRateLimitRejection("invite_redeem")
		h.AuditLog.RateLimited(r.Context(), r, "invite_redeem")
		respond.Error(w, http.StatusTooManyRequests, "too_many_requests")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "redeem invite")
	defer cancel()

	res, err := h.Onboarding.Redeem(ctx, onboarding.RedeemInput{
		Token:    req.Token,
		Actor:    actor,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		h.redeemFailed(w, r, err)
		return
	}

	c := authz.Context{UserID: res.User.ID, Role: res.Role, SchoolID: res.SchoolID}
	token, exp, err := h.SessionMgr.Issue(c, 0)
	if err != nil {
		h.Errs.Internal(w, r, "redeem invite: issue credential", err)
		return
	}

	h.Metrics.IncTokenRedemption(string(res.Kind), "ok")
	h.AuditLog.InviteRedeemed(ctx, r, res.User.ID, res.SchoolID, string(res.Kind), res.Joined)
	if res.Created {
		h.AuditLog.Signup(ctx, r, res.User.ID)
	}

	msg := "joined"
	if !res.Joined {
		msg = "already a member"
	}
	h.SessionMgr.IssueCookie(w, token, exp)
	respond.JSON(w, http.StatusOK, redeemResponse{
		SessionResponse: shared.SessionResponse{Token: token, ExpiresAt: exp, Context: shared.ViewOf(c)},
		Message:         msg,
		Joined:          res.Joined,
		Created:         res.Created,
	})
}

// redeemFailed maps a redemption error to its response. Every token problem
// is the same 400 "invalid_token", and every refused school-link identity is
// the same 400 "invalid_credentials_or_details".
func (h *Handler) redeemFailed(w http.ResponseWriter, r *http.Request, err error) {
	status, code, reason := http.StatusBadRequest, "", ""
	switch {
	case errors.Is(err, onboarding.ErrInvalidToken):
		code, reason = "invalid_token", "invalid_token"
	case errors.Is(err, onboarding.ErrDetailsRequired):
		code, reason = "details_required", "details_required"
	case errors.Is(err, authutil.ErrInvalidEmail):
		code, reason = "invalid_email", "invalid_email"
	case shared.WeakPassword(err):
		code, reason = "weak_password", "weak_password"
	case errors.Is(err, onboarding.ErrLinkCredentials):
		code, reason = "invalid_credentials_or_details", "invalid_credentials_or_details"
	case errors.Is(err, onboarding.ErrEmailMismatch):
		status, code, reason = http.StatusForbidden, "forbidden", "email_mismatch"
	case errors.Is(err, onboarding.ErrAdminCannotJoin):
		status, code, reason = http.StatusForbidden, "forbidden", "admin_cannot_join"
	case errors.Is(err, onboarding.ErrInvalidCredentials):
		status, code, reason = http.StatusForbidden, "forbidden", "account_disabled"
	default:
		h.Errs.Internal(w, r, "redeem invite", err)
		return
	}
	h.Metrics.IncTokenRedemption("invite", reason)
	h.AuditLog.InviteRedeemFailed(r.Context(), r, "invite", reason)
	respond.Error(w, status, code)
}
