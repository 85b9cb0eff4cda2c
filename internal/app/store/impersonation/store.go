// Package impersonationstore persists impersonation grants. Two backends
// share one contract: Save stores a grant, Active reports whether it is
// still live, Consume removes and returns it in a single atomic step.
package impersonationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/camphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound means the grant never existed, was consumed, or expired.
	ErrNotFound  = errors.New("impersonation grant not found")
	ErrDuplicate = errors.New("impersonation grant already exists")
	errBadGrant  = errors.New("impersonation grant needs an id and a future expiry")
)

// MongoStore keeps grants in impersonation_grants.
type MongoStore struct {
	c   *mongo.Collection
	now func() time.Time
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{
		c:   db.Collection("impersonation_grants"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of s that reads time from now.
func (s *MongoStore) WithClock(now func() time.Time) *MongoStore {
	cp := *s
	cp.now = func() time.Time { return now().UTC() }
	return &cp
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "grant_id", Value: 1}},
			Options: options.Index().SetName("uniq_impgrant_grant").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_impgrant_expires_ttl").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "admin_id", Value: 1}},
			Options: options.Index().SetName("idx_impgrant_admin"),
		},
	})
	return err
}

func (s *MongoStore) Save(ctx context.Context, g models.ImpersonationGrant) error {
	if g.GrantID == "" || !g.ExpiresAt.After(s.now()) {
		return errBadGrant
	}
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoStore) Active(ctx context.Context, grantID string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, s.live(grantID), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MongoStore) Consume(ctx context.Context, grantID string) (models.ImpersonationGrant, error) {
	var g models.ImpersonationGrant
	err := s.c.FindOneAndDelete(ctx, s.live(grantID)).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return g, ErrNotFound
	}
	return g, err
}

// CleanupExpired deletes grants past expiry ahead of the TTL monitor.
func (s *MongoStore) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": s.now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) live(grantID string) bson.M {
	return bson.M{"grant_id": grantID, "expires_at": bson.M{"$gt": s.now()}}
}
