// internal/app/store/subscriptions/subscriptionstore.go
package subscriptionstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrBadEndpoint = errors.New("push endpoint must be an absolute http(s) URL")
	ErrNotFound    = errors.New("push subscription not found")
)

// Store persists push endpoints. A (user_id, endpoint) pair has one row;
// registering it again moves it to the user's current school.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("push_subscriptions")}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "endpoint", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pushsub_user_endpoint"),
		},
		{
			Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_pushsub_school_created"),
		},
	})
	return err
}

// Upsert registers sub.Endpoint for sub.UserID in sub.SchoolID.
func (s *Store) Upsert(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if !urlutil.IsValidAbsHTTPURL(sub.Endpoint) {
		return models.PushSubscription{}, ErrBadEndpoint
	}
	now := time.Now().UTC()

	var out models.PushSubscription
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"user_id": sub.UserID, "endpoint": sub.Endpoint},
		bson.M{
			"$set": bson.M{
				"school_id": sub.SchoolID,
				"p256dh":    sub.P256dh,
				"auth":      sub.Auth,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	return out, err
}

// ListBySchool returns every subscription registered in schoolID, oldest first.
func (s *Store) ListBySchool(ctx context.Context, schoolID primitive.ObjectID) ([]models.PushSubscription, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"school_id": schoolID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.PushSubscription
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one subscription of userID.
func (s *Store) Delete(ctx context.Context, userID primitive.ObjectID, endpoint string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"user_id": userID, "endpoint": strings.TrimSpace(endpoint)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes a subscription the push service reported as gone.
func (s *Store) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
