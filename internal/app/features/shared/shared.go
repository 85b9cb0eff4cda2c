// Package shared holds helpers used by several API features.
package shared

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/auditlog"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/authutil"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/metrics"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DenyObserver counts and audits tenancy denials.
func DenyObserver(m *metrics.Metrics, audit *auditlog.Logger) authz.DenyHook {
	return func(r *http.Request, schoolID primitive.ObjectID, d authz.Decision) {
		m.IncAccessDenied(string(d.Reason))
		c, _ := authz.FromRequest(r)
		audit.AccessDenied(context.WithoutCancel(r.Context()), r, c.UserID, schoolID, string(d.Reason))
	}
}

// ContextView is the JSON shape of an authorization context.
type ContextView struct {
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	SchoolID       string `json:"school_id,omitempty"`
	IsAdmin        bool   `json:"is_admin"`
	Impersonating  bool   `json:"impersonating"`
	ImpersonatorID string `json:"impersonator_id,omitempty"`
}

// ViewOf renders c for API responses.
func ViewOf(c authz.Context) ContextView {
	v := ContextView{
		UserID:  c.UserID.Hex(),
		Role:    string(c.Role),
		IsAdmin: c.IsAdmin,
	}
	if !c.SchoolID.IsZero() {
		v.SchoolID = c.SchoolID.Hex()
	}
	if c.Impersonator != nil {
		v.Impersonating = true
		v.ImpersonatorID = c.Impersonator.AdminID.Hex()
	}
	return v
}

// SessionResponse is returned whenever a new credential is issued.
type SessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Context   ContextView `json:"context"`
}

// WriteSession sets the credential cookie and answers with the credential
// in the body for bearer clients.
func WriteSession(w http.ResponseWriter, sm *auth.SessionManager, c authz.Context, token string, exp time.Time) {
	sm.IssueCookie(w, token, exp)
	respond.JSON(w, http.StatusOK, SessionResponse{Token: token, ExpiresAt: exp, Context: ViewOf(c)})
}

// IssueSession signs a credential for c with the default lifetime and writes it.
func IssueSession(w http.ResponseWriter, sm *auth.SessionManager, c authz.Context) error {
	token, exp, err := sm.Issue(c, 0)
	if err != nil {
		return err
	}
	WriteSession(w, sm, c, token, exp)
	return nil
}

// ObjectIDParam parses a hex ObjectID; ok is false when it is malformed or zero.
func ObjectIDParam(s string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil || id.IsZero() {
		return primitive.NilObjectID, false
	}
	return id, true
}

// Current returns the caller's context, answering 401 when there is none.
func Current(w http.ResponseWriter, r *http.Request) (authz.Context, bool) {
	c, ok := authz.FromRequest(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return authz.Context{}, false
	}
	return c, true
}

// WeakPassword reports whether err is a password rule violation.
func WeakPassword(err error) bool {
	return errors.Is(err, authutil.ErrPasswordTooShort) ||
		errors.Is(err, authutil.ErrPasswordTooLong) ||
		errors.Is(err, authutil.ErrPasswordCommon)
}
