// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/camphub/internal/app/store/audit"
	"github.com/dalemusser/camphub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	All = "all" // MongoDB and zap
	DB  = "db"
	Log = "log"
	Off = "off"
)

// Config selects where each category is written. Security events always go everywhere.
type Config struct {
	Auth  string
	Admin string
}

// Logger writes audit events to audit.Store and zap according to Config.
// A nil *Logger is valid and drops everything.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) destination(category string) string {
	var setting string
	switch category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	}
	switch setting {
	case DB, Log, Off:
		return setting
	}
	return All
}

// Log records event according to its category's destination.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	dest := l.destination(event.Category)
	if dest == Off {
		return
	}
	if dest == All || dest == Log {
		l.logToZap(event)
	}
	if (dest == All || dest == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.SchoolID != nil {
		fields = append(fields, zap.String("school_id", event.SchoolID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func newEvent(r *http.Request, category, eventType string, success bool) audit.Event {
	e := audit.Event{Category: category, EventType: eventType, Success: success}
	if r != nil {
		e.IP = ratelimit.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return e
}

func oid(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- auth ---

func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, schoolID primitive.ObjectID) {
	e := newEvent(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID, e.SchoolID = oid(userID), oid(schoolID)
	l.Log(ctx, e)
}

// LoginFailed records a rejected login. userID is zero when no account matched.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, reason string) {
	e := newEvent(r, audit.CategoryAuth, audit.EventLoginFailed, false)
	e.UserID = oid(userID)
	e.FailureReason = reason
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

func (l *Logger) Logout(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	e := newEvent(r, audit.CategoryAuth, audit.EventLogout, true)
	e.UserID = oid(userID)
	l.Log(ctx, e)
}

func (l *Logger) Signup(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	e := newEvent(r, audit.CategoryAuth, audit.EventSignup, true)
	e.UserID = oid(userID)
	l.Log(ctx, e)
}

func (l *Logger) SchoolSwitched(ctx context.Context, r *http.Request, userID, schoolID primitive.ObjectID) {
	e := newEvent(r, audit.CategoryAuth, audit.EventSchoolSwitched, true)
	e.UserID, e.SchoolID = oid(userID), oid(schoolID)
	l.Log(ctx, e)
}

func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	e := newEvent(r, audit.CategoryAuth, audit.EventPasswordChanged, true)
	e.UserID = oid(userID)
	l.Log(ctx, e)
}

// PasswordResetRequested records a forgot-password request; found tells
// whether a token was actually issued.
func (l *Logger) PasswordResetRequested(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string, found bool) {
	e := newEvent(r, audit.CategoryAuth, audit.EventPasswordResetRequested, found)
	e.UserID = oid(userID)
	e.Details = map[string]string{"email": email}
	if !found {
		e.FailureReason = "unknown email"
	}
	l.Log(ctx, e)
}

func (l *Logger) PasswordResetCompleted(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	e := newEvent(r, audit.CategoryAuth, audit.EventPasswordResetCompleted, true)
	e.UserID = oid(userID)
	l.Log(ctx, e)
}

func (l *Logger) PasswordResetFailed(ctx context.Context, r *http.Request, reason string) {
	e := newEvent(r, audit.CategoryAuth, audit.EventPasswordResetFailed, false)
	e.FailureReason = reason
	l.Log(ctx, e)
}

// --- admin ---

func (l *Logger) SchoolCreated(ctx context.Context, r *http.Request, actorID, schoolID primitive.ObjectID, slug string) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventSchoolCreated, true)
	e.ActorID, e.SchoolID = oid(actorID), oid(schoolID)
	e.Details = map[string]string{"slug": slug}
	l.Log(ctx, e)
}

func (l *Logger) MemberRoleChanged(ctx context.Context, r *http.Request, actorID, userID, schoolID primitive.ObjectID, from, to string) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventMemberRoleChanged, true)
	e.ActorID, e.UserID, e.SchoolID = oid(actorID), oid(userID), oid(schoolID)
	e.Details = map[string]string{"from": from, "to": to}
	l.Log(ctx, e)
}

func (l *Logger) InviteIssued(ctx context.Context, r *http.Request, actorID, schoolID primitive.ObjectID, email, role string) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventInviteIssued, true)
	e.ActorID, e.SchoolID = oid(actorID), oid(schoolID)
	e.Details = map[string]string{"email": email, "role": role}
	l.Log(ctx, e)
}

func (l *Logger) SchoolLinkIssued(ctx context.Context, r *http.Request, actorID, schoolID primitive.ObjectID) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventSchoolLinkIssued, true)
	e.ActorID, e.SchoolID = oid(actorID), oid(schoolID)
	l.Log(ctx, e)
}

func (l *Logger) InviteRedeemed(ctx context.Context, r *http.Request, userID, schoolID primitive.ObjectID, kind string, joined bool) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventInviteRedeemed, true)
	e.UserID, e.SchoolID = oid(userID), oid(schoolID)
	e.Details = map[string]string{"kind": kind, "joined": strconv.FormatBool(joined)}
	l.Log(ctx, e)
}

func (l *Logger) InviteRedeemFailed(ctx context.Context, r *http.Request, kind, reason string) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventInviteRedeemFailed, false)
	e.FailureReason = reason
	e.Details = map[string]string{"kind": kind}
	l.Log(ctx, e)
}

func (l *Logger) ImpersonationStarted(ctx context.Context, r *http.Request, adminID, targetID, schoolID primitive.ObjectID, grantID string) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventImpersonationStarted, true)
	e.ActorID, e.UserID, e.SchoolID = oid(adminID), oid(targetID), oid(schoolID)
	e.Details = map[string]string{"grant_id": grantID}
	l.Log(ctx, e)
}

func (l *Logger) ImpersonationStopped(ctx context.Context, r *http.Request, adminID, targetID primitive.ObjectID, grantID string) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventImpersonationStopped, true)
	e.ActorID, e.UserID = oid(adminID), oid(targetID)
	e.Details = map[string]string{"grant_id": grantID}
	l.Log(ctx, e)
}

func (l *Logger) PushBroadcast(ctx context.Context, r *http.Request, actorID, schoolID primitive.ObjectID, delivered, failed int) {
	e := newEvent(r, audit.CategoryAdmin, audit.EventPushBroadcast, failed == 0)
	e.ActorID, e.SchoolID = oid(actorID), oid(schoolID)
	e.Details = map[string]string{"delivered": strconv.Itoa(delivered), "failed": strconv.Itoa(failed)}
	l.Log(ctx, e)
}

// --- security ---

// AccessDenied records a guard denial with its internal reason.
func (l *Logger) AccessDenied(ctx context.Context, r *http.Request, userID, schoolID primitive.ObjectID, reason string) {
	e := newEvent(r, audit.CategorySecurity, audit.EventAccessDenied, false)
	e.UserID, e.SchoolID = oid(userID), oid(schoolID)
	e.FailureReason = reason
	if r != nil {
		e.Details = map[string]string{"method": r.Method, "path": r.URL.Path}
	}
	l.Log(ctx, e)
}

func (l *Logger) ImpersonationRejected(ctx context.Context, r *http.Request, actorID, targetID primitive.ObjectID, reason string) {
	e := newEvent(r, audit.CategorySecurity, audit.EventImpersonationRejected, false)
	e.ActorID, e.UserID = oid(actorID), oid(targetID)
	e.FailureReason = reason
	l.Log(ctx, e)
}

func (l *Logger) RestoreReplayRejected(ctx context.Context, r *http.Request, adminID primitive.ObjectID, grantID string) {
	e := newEvent(r, audit.CategorySecurity, audit.EventRestoreReplayRejected, false)
	e.ActorID = oid(adminID)
	e.FailureReason = "grant already consumed or expired"
	e.Details = map[string]string{"grant_id": grantID}
	l.Log(ctx, e)
}

func (l *Logger) RateLimited(ctx context.Context, r *http.Request, endpoint string) {
	e := newEvent(r, audit.CategorySecurity, audit.EventRateLimited, false)
	e.Details = map[string]string{"endpoint": endpoint}
	l.Log(ctx, e)
}

func (l *Logger) SuperAdminBootstrapped(ctx context.Context, userID primitive.ObjectID, email string) {
	e := newEvent(nil, audit.CategorySecurity, audit.EventSuperAdminBootstrapped, true)
	e.UserID = oid(userID)
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}
