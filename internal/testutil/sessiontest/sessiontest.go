// Package sessiontest builds session managers for handler tests.
package sessiontest

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/credential"
)

// Secret is the signing secret of every test session manager.
const Secret = "camphub-test-secret-0123456789abcdef"

// New returns a SessionManager signing with Secret. grants may be nil when
// the test issues no impersonation credentials.
func New(t *testing.T, grants auth.GrantChecker) *auth.SessionManager {
	t.Helper()
	codec, err := credential.New(Secret, "camphub-test")
	if err != nil {
		t.Fatalf("credential.New: %v", err)
	}
	sm, err := auth.NewSessionManager(codec, auth.NewResolver(codec, grants, nil, nil), auth.SessionConfig{TTL: time.Hour}, nil)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sm
}

// Bearer signs a credential for c and sets it on r.
func Bearer(t *testing.T, sm *auth.SessionManager, r *http.Request, c authz.Context) *http.Request {
	t.Helper()
	token, _, err := sm.Issue(c, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
