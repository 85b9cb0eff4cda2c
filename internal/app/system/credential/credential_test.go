package credential_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/credential"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

func newCodec(t *testing.T, now time.Time) *credential.Codec {
	t.Helper()
	c, err := credential.New(testSecret, "camphub-test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c.WithClock(func() time.Time { return now })
}

func leaderClaims() credential.Claims {
	return credential.Claims{
		SchoolID: "65f000000000000000000002",
		Role:     "leader",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "65f000000000000000000001",
		},
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newCodec(t, now)

	raw, err := c.Sign(leaderClaims(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	got, err := c.Verify(raw)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.UserID() != "65f000000000000000000001" {
		t.Errorf("user id: got %q", got.UserID())
	}
	if got.SchoolID != "65f000000000000000000002" || got.Role != "leader" {
		t.Errorf("unexpected tenancy claims: %+v", got)
	}
	if got.IsAdmin {
		t.Error("expected IsAdmin=false")
	}
	if !got.ExpiresAt.Time.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Errorf("expiry: got %v", got.ExpiresAt.Time)
	}
	if got.Issuer != "camphub-test" {
		t.Errorf("issuer: got %q", got.Issuer)
	}
}

func TestSign_Deterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newCodec(t, now)

	a, err := c.Sign(leaderClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	b, err := c.Sign(leaderClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if a != b {
		t.Error("expected identical credentials for identical claims and clock")
	}
}

func TestVerify_ImpersonationClaimSurvives(t *testing.T) {
	c := newCodec(t, time.Now())
	claims := leaderClaims()
	claims.Impersonation = &credential.Impersonation{AdminID: "65f0000000000000000000aa", GrantID: "g-1"}

	raw, err := c.Sign(claims, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	got, err := c.Verify(raw)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.Impersonation == nil || got.Impersonation.AdminID != "65f0000000000000000000aa" || got.Impersonation.GrantID != "g-1" {
		t.Errorf("impersonation claim lost: %+v", got.Impersonation)
	}
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := newCodec(t, issued).Sign(leaderClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{"before expiry", issued.Add(59 * time.Minute), nil},
		{"one hour past expiry", issued.Add(2 * time.Hour), credential.ErrExpired},
		{"a week later", issued.Add(7 * 24 * time.Hour), credential.ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCodec(t, tt.at).Verify(raw)
			if !errors.Is(err, tt.wantErr) && !(tt.wantErr == nil && err == nil) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	c := newCodec(t, time.Now())
	raw, err := c.Sign(leaderClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	parts := strings.Split(raw, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	forged := strings.Replace(string(payload), `"role":"leader"`, `"adm":true,"role":"leader"`, 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = c.Verify(strings.Join(parts, "."))
	if !errors.Is(err, credential.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	raw, err := newCodec(t, time.Now()).Sign(leaderClaims(), time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	other, err := credential.New("another-secret-that-is-also-32-chars-long", "camphub-test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := other.Verify(raw); !errors.Is(err, credential.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	c := newCodec(t, time.Now())
	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c"} {
		if _, err := c.Verify(raw); !errors.Is(err, credential.ErrMalformed) {
			t.Errorf("Verify(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	c := newCodec(t, time.Now())
	claims := leaderClaims()
	claims.Issuer = "camphub-test"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := c.Verify(raw); !errors.Is(err, credential.ErrMalformed) {
		t.Errorf("expected ErrMalformed for an unsigned credential, got %v", err)
	}
}

func TestVerify_OtherHMACAlgorithmIsMalformed(t *testing.T) {
	c := newCodec(t, time.Now())
	claims := leaderClaims()
	claims.Issuer = "camphub-test"
	claims.IssuedAt = jwt.NewNumericDate(time.Now())
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))

	for _, m := range []jwt.SigningMethod{jwt.SigningMethodHS384, jwt.SigningMethodHS512} {
		raw, err := jwt.NewWithClaims(m, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign %s: %v", m.Alg(), err)
		}
		if _, err := c.Verify(raw); !errors.Is(err, credential.ErrMalformed) {
			t.Errorf("%s with the right secret: expected ErrMalformed, got %v", m.Alg(), err)
		}
	}
}

func TestNew_EmptySecret(t *testing.T) {
	if _, err := credential.New("", "camphub"); !errors.Is(err, credential.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestSign_ZeroCodec(t *testing.T) {
	var c credential.Codec
	if _, err := c.Sign(leaderClaims(), time.Hour); !errors.Is(err, credential.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestValidateSecret(t *testing.T) {
	if err := credential.ValidateSecret(""); !errors.Is(err, credential.ErrConfiguration) {
		t.Errorf("empty secret: got %v", err)
	}
	if err := credential.ValidateSecret("short"); !errors.Is(err, credential.ErrConfiguration) {
		t.Errorf("short secret: got %v", err)
	}
	if err := credential.ValidateSecret(testSecret); err != nil {
		t.Errorf("good secret: got %v", err)
	}
}
