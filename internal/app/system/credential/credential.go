// Package credential signs and verifies the session credential: an HS256 JWT
// binding a user to an admin flag or a single school/role pair.
//
// The codec is pure. It never consults the database; whether the claims still
// reflect reality is the caller's concern.
package credential

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrConfiguration is returned when the codec has no signing secret.
	ErrConfiguration = errors.New("credential: signing secret is not configured")
	// ErrInvalidSignature is returned when the signature does not match the payload.
	ErrInvalidSignature = errors.New("credential: invalid signature")
	// ErrExpired is returned when the credential is past its expiry.
	ErrExpired = errors.New("credential: expired")
	// ErrMalformed is returned when the credential cannot be parsed.
	ErrMalformed = errors.New("credential: malformed")
)

// MinSecretLength is the shortest secret ValidateSecret accepts.
const MinSecretLength = 32

// Impersonation is the back-pointer carried by a credential issued to a
// super-admin acting as another user.
type Impersonation struct {
	AdminID string `json:"by"`
	GrantID string `json:"grant"`
}

// Claims is the payload of a session credential.
// Subject holds the user ID (hex ObjectID).
type Claims struct {
	IsAdmin       bool           `json:"adm,omitempty"`
	SchoolID      string         `json:"sid,omitempty"`
	Role          string         `json:"role,omitempty"`
	Impersonation *Impersonation `json:"imp,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the credential.
func (c *Claims) UserID() string {
	return c.Subject
}

// Codec signs and verifies credentials with a server-held secret.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New returns a Codec. An empty secret is a configuration error.
func New(secret, issuer string) (*Codec, error) {
	if secret == "" {
		return nil, ErrConfiguration
	}
	return &Codec{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// ValidateSecret reports whether secret is usable for production signing.
func ValidateSecret(secret string) error {
	if secret == "" {
		return ErrConfiguration
	}
	if len(secret) < MinSecretLength {
		return errors.Join(ErrConfiguration, errors.New("credential: secret must be at least 32 characters"))
	}
	return nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Issuer returns the issuer stamped on signed credentials.
func (c *Codec) Issuer() string {
	return c.issuer
}

// Sign stamps iat/exp/iss on a copy of claims and returns the signed credential.
// Output is deterministic for identical claims, ttl and clock.
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, error) {
	if c == nil || len(c.secret) == 0 {
		return "", ErrConfiguration
	}
	now := c.now().UTC().Truncate(time.Second)
	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks the signature and expiry of raw and returns its claims.
// The HMAC comparison inside jwt is constant-time.
func (c *Codec) Verify(raw string) (*Claims, error) {
	if c == nil || len(c.secret) == 0 {
		return nil, ErrConfiguration
	}
	if raw == "" {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errAlgorithm
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// errAlgorithm rejects any header alg other than HS256, before the signature
// is checked.
var errAlgorithm = errors.New("credential: unexpected signing algorithm")

// classify maps jwt parse errors onto the package taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, errAlgorithm):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
