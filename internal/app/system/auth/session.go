// internal/app/system/auth/session.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/credential"
	"github.com/dalemusser/camphub/internal/app/system/respond"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCookieName is used when SessionConfig.Name is empty.
const DefaultCookieName = "camphub-session"

// DefaultTTL is the credential lifetime when SessionConfig.TTL is zero.
const DefaultTTL = 7 * 24 * time.Hour

// SessionConfig controls how credentials are carried in cookies.
type SessionConfig struct {
	Name   string
	Domain string
	TTL    time.Duration
	Secure bool
}

// SessionManager issues credentials and loads them from incoming requests.
// A credential travels either as a cookie or as an Authorization bearer token.
type SessionManager struct {
	codec    *credential.Codec
	resolver *Resolver
	cfg      SessionConfig
	log      *zap.Logger
}

// NewSessionManager returns a SessionManager. The codec and resolver must be non-nil.
func NewSessionManager(codec *credential.Codec, resolver *Resolver, cfg SessionConfig, log *zap.Logger) (*SessionManager, error) {
	if codec == nil || resolver == nil {
		return nil, errors.New("auth: codec and resolver are required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{codec: codec, resolver: resolver, cfg: cfg, log: log}, nil
}

// TTL returns the default credential lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.cfg.TTL }

// CookieName returns the session cookie name.
func (sm *SessionManager) CookieName() string { return sm.cfg.Name }

// Issue signs a credential for c. A zero ttl uses the configured default.
func (sm *SessionManager) Issue(c authz.Context, ttl time.Duration) (string, time.Time, error) {
	if !c.Authenticated() {
		return "", time.Time{}, authz.ErrUnauthenticated
	}
	if ttl <= 0 {
		ttl = sm.cfg.TTL
	}
	claims := ClaimsFor(c)
	claims.ID = uuid.NewString()
	token, err := sm.codec.Sign(claims, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	verified, err := sm.codec.Verify(token)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, verified.ExpiresAt.Time, nil
}

// IssueCookie writes the credential cookie, expiring at exp.
func (sm *SessionManager) IssueCookie(w http.ResponseWriter, token string, exp time.Time) {
	maxAge := int(time.Until(exp).Seconds())
	if maxAge <= 0 {
		maxAge = int(sm.cfg.TTL.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cfg.Name,
		Value:    token,
		Path:     "/",
		Domain:   sm.cfg.Domain,
		MaxAge:   maxAge,
		Expires:  exp,
		HttpOnly: true,
		Secure:   sm.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the credential cookie.
func (sm *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cfg.Name,
		Value:    "",
		Path:     "/",
		Domain:   sm.cfg.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   sm.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Resolve resolves a raw credential. See Resolver.Resolve.
func (sm *SessionManager) Resolve(ctx context.Context, raw string) (authz.Context, bool) {
	return sm.resolver.Resolve(ctx, raw)
}

// Credential extracts the raw credential from r. The Authorization header
// wins over the cookie.
func (sm *SessionManager) Credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	if ck, err := r.Cookie(sm.cfg.Name); err == nil {
		return ck.Value
	}
	return ""
}

// LoadSessionUser resolves the request credential and stores the context.
// Requests without a valid credential pass through anonymous.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := sm.Credential(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		c, ok := sm.resolver.Resolve(r.Context(), raw)
		if !ok {
			sm.log.Debug("credential rejected; continuing anonymous", zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(authz.WithContext(r.Context(), c)))
	})
}

// RequireSignedIn rejects anonymous requests with 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authz.FromRequest(r); !ok {
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperAdmin allows only a genuine (non-impersonating) super-admin.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := authz.FromRequest(r)
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !c.IsAdmin {
			respond.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireImpersonating allows only requests carrying an impersonation credential.
func RequireImpersonating(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := authz.FromRequest(r)
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !c.Impersonating() {
			respond.Error(w, http.StatusForbidden, "not_impersonating")
			return
		}
		next.ServeHTTP(w, r)
	})
}
