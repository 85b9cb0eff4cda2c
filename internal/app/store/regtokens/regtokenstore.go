// internal/app/store/regtokens/regtokenstore.go
package regtokens

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/camphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Kind selects a token's purpose and redemption semantics.
type Kind string

const (
	KindInvite        Kind = "invite"         // email invite into a school, single use
	KindPasswordReset Kind = "password_reset" // single use
	KindSchoolLink    Kind = "school_link"    // shareable "current invite link", reusable until expiry
)

// SingleUse reports whether redeeming k deletes the token.
func (k Kind) SingleUse() bool {
	return k != KindSchoolLink
}

func (k Kind) valid() bool {
	switch k {
	case KindInvite, KindPasswordReset, KindSchoolLink:
		return true
	}
	return false
}

const (
	// TokenBytes is the entropy of an issued token.
	TokenBytes = 32

	// expiredGrace keeps expired rows around briefly so Redeem can still
	// report Expired instead of NotFound; the TTL monitor removes them afterwards.
	expiredGrace = 24 * time.Hour

	issueAttempts = 3
)

var (
	ErrNotFound    = errors.New("registration token not found")
	ErrExpired     = errors.New("registration token expired")
	ErrInvalidKind = errors.New("invalid registration token kind")
	ErrInvalidTTL  = errors.New("registration token ttl must be positive")
)

type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:   db.Collection("registration_tokens"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of s that reads time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = func() time.Time { return now().UTC() }
	return &cp
}

// EnsureIndexes creates the unique token index and the TTL index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName("uniq_regtoken_token").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_regtoken_expires_ttl").SetExpireAfterSeconds(int32(expiredGrace / time.Second)),
		},
		{
			Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_regtoken_school_kind_created"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().SetName("idx_regtoken_email_kind"),
		},
	})
	return err
}

// Issue persists a new token of kind carrying payload, valid for ttl.
func (s *Store) Issue(ctx context.Context, kind Kind, payload models.TokenPayload, ttl time.Duration) (models.RegistrationToken, error) {
	if !kind.valid() {
		return models.RegistrationToken{}, ErrInvalidKind
	}
	if ttl <= 0 {
		return models.RegistrationToken{}, ErrInvalidTTL
	}

	now := s.now()
	for attempt := 0; ; attempt++ {
		raw, err := newToken()
		if err != nil {
			return models.RegistrationToken{}, err
		}
		t := models.RegistrationToken{
			Token:        raw,
			Kind:         string(kind),
			TokenPayload: payload,
			ExpiresAt:    now.Add(ttl),
			CreatedAt:    now,
		}
		res, err := s.c.InsertOne(ctx, t)
		if err == nil {
			if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
				t.ID = oid
			}
			return t, nil
		}
		if !wafflemongo.IsDup(err) || attempt+1 >= issueAttempts {
			return models.RegistrationToken{}, fmt.Errorf("issue %s token: %w", kind, err)
		}
	}
}

// Redeem validates raw as a live token of kind and returns its payload.
// Single-use kinds are deleted in the same operation, so of two concurrent
// calls at most one succeeds; the other sees ErrNotFound.
func (s *Store) Redeem(ctx context.Context, raw string, kind Kind) (models.TokenPayload, error) {
	if raw == "" {
		return models.TokenPayload{}, ErrNotFound
	}
	if !kind.valid() {
		return models.TokenPayload{}, ErrInvalidKind
	}

	now := s.now()
	live := bson.M{"token": raw, "kind": string(kind), "expires_at": bson.M{"$gt": now}}

	var t models.RegistrationToken
	var err error
	if kind.SingleUse() {
		err = s.c.FindOneAndDelete(ctx, live).Decode(&t)
	} else {
		err = s.c.FindOne(ctx, live).Decode(&t)
	}
	if err == nil {
		return t.TokenPayload, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.TokenPayload{}, err
	}

	// Nothing live matched: tell expired apart from absent.
	n, err := s.c.CountDocuments(ctx, bson.M{"token": raw, "kind": string(kind)}, options.Count().SetLimit(1))
	if err != nil {
		return models.TokenPayload{}, err
	}
	if n > 0 {
		return models.TokenPayload{}, ErrExpired
	}
	return models.TokenPayload{}, ErrNotFound
}

// Lookup returns the live token raw of kind without consuming it.
func (s *Store) Lookup(ctx context.Context, raw string, kind Kind) (models.RegistrationToken, error) {
	var t models.RegistrationToken
	err := s.c.FindOne(ctx, bson.M{
		"token":      raw,
		"kind":       string(kind),
		"expires_at": bson.M{"$gt": s.now()},
	}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return t, ErrNotFound
	}
	return t, err
}

// CurrentActive returns the most recently created unexpired token of kind for schoolID.
func (s *Store) CurrentActive(ctx context.Context, schoolID primitive.ObjectID, kind Kind) (models.RegistrationToken, error) {
	var t models.RegistrationToken
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	err := s.c.FindOne(ctx, bson.M{
		"school_id":  schoolID,
		"kind":       string(kind),
		"expires_at": bson.M{"$gte": s.now()},
	}, opts).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return t, ErrNotFound
	}
	return t, err
}

// DeleteByEmail removes every token of kind addressed to email.
func (s *Store) DeleteByEmail(ctx context.Context, email string, kind Kind) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"email": email, "kind": string(kind)})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteBySchool removes every token scoped to schoolID.
func (s *Store) DeleteBySchool(ctx context.Context, schoolID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"school_id": schoolID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CleanupExpired removes tokens that expired more than the grace period ago.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": s.now().Add(-expiredGrace)}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func newToken() (string, error) {
	b := securecookie.GenerateRandomKey(TokenBytes)
	if b == nil {
		return "", errors.New("regtokens: random source unavailable")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
