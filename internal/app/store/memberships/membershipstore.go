// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/paging"
	"github.com/dalemusser/camphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateMembership = errors.New("user is already a member of this school")
	ErrNotFound            = errors.New("membership not found")
	errBadRole             = errors.New(`role must be "leader"|"animator"|"user"|"inactive"`)
)

// Store manages user_schools. A (user_id, school_id) pair has at most one row;
// role changes, including leaving, update that row in place.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("user_schools")}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "school_id", Value: 1}},
			Options: options.Index().SetName("uniq_userschool_user_school").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_userschool_school_role"),
		},
	})
	return err
}

// Add inserts a new membership. A second row for the same pair fails with
// ErrDuplicateMembership.
func (s *Store) Add(ctx context.Context, userID, schoolID primitive.ObjectID, role authz.Role) (models.UserSchool, error) {
	if !role.IsMembershipRole() {
		return models.UserSchool{}, errBadRole
	}
	now := time.Now().UTC()
	m := models.UserSchool{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		SchoolID:  schoolID,
		Role:      string(role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.UserSchool{}, ErrDuplicateMembership
		}
		return models.UserSchool{}, err
	}
	return m, nil
}

// Join makes userID an active member of schoolID with role.
//
//   - no row: inserted, joined=true
//   - inactive row: reactivated in place with role, joined=true
//   - active row: left untouched, joined=false
//
// Concurrent joins for the same pair settle on one row; the losers report joined=false.
func (s *Store) Join(ctx context.Context, userID, schoolID primitive.ObjectID, role authz.Role) (m models.UserSchool, joined bool, err error) {
	if !role.IsActive() {
		return models.UserSchool{}, false, errBadRole
	}

	existing, err := s.Get(ctx, userID, schoolID)
	switch {
	case err == nil && authz.Role(existing.Role).IsActive():
		return existing, false, nil
	case err == nil:
		var out models.UserSchool
		err = s.c.FindOneAndUpdate(ctx,
			bson.M{"_id": existing.ID, "role": string(authz.RoleInactive)},
			bson.M{"$set": bson.M{"role": string(role), "updated_at": time.Now().UTC()}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&out)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Reactivated by someone else in the meantime.
			cur, gerr := s.Get(ctx, userID, schoolID)
			return cur, false, gerr
		}
		return out, err == nil, err
	case !errors.Is(err, ErrNotFound):
		return models.UserSchool{}, false, err
	}

	m, err = s.Add(ctx, userID, schoolID, role)
	if errors.Is(err, ErrDuplicateMembership) {
		cur, gerr := s.Get(ctx, userID, schoolID)
		return cur, false, gerr
	}
	return m, err == nil, err
}

// Get loads the membership row for the pair, active or not.
func (s *Store) Get(ctx context.Context, userID, schoolID primitive.ObjectID) (models.UserSchool, error) {
	var m models.UserSchool
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "school_id": schoolID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return m, ErrNotFound
	}
	return m, err
}

// ActiveRole returns the user's role in schoolID, or ErrNotFound when the
// user has no row there or the row is inactive.
func (s *Store) ActiveRole(ctx context.Context, userID, schoolID primitive.ObjectID) (authz.Role, error) {
	m, err := s.Get(ctx, userID, schoolID)
	if err != nil {
		return "", err
	}
	r := authz.Role(m.Role)
	if !r.IsActive() {
		return "", ErrNotFound
	}
	return r, nil
}

// SetRole changes the role of an existing membership in place.
func (s *Store) SetRole(ctx context.Context, userID, schoolID primitive.ObjectID, role authz.Role) error {
	if !role.IsMembershipRole() {
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "school_id": schoolID},
		bson.M{"$set": bson.M{"role": string(role), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate marks the membership inactive. The row is kept.
func (s *Store) Deactivate(ctx context.Context, userID, schoolID primitive.ObjectID) error {
	return s.SetRole(ctx, userID, schoolID, authz.RoleInactive)
}

// FirstActive returns the user's oldest active membership.
func (s *Store) FirstActive(ctx context.Context, userID primitive.ObjectID) (models.UserSchool, error) {
	var m models.UserSchool
	err := s.c.FindOne(ctx,
		bson.M{"user_id": userID, "role": bson.M{"$ne": string(authz.RoleInactive)}},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return m, ErrNotFound
	}
	return m, err
}

// ListActiveByUser returns every active membership of userID.
func (s *Store) ListActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]models.UserSchool, error) {
	return s.find(ctx,
		bson.M{"user_id": userID, "role": bson.M{"$ne": string(authz.RoleInactive)}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
}

// ListBySchool returns the memberships of schoolID, optionally including inactive rows.
func (s *Store) ListBySchool(ctx context.Context, schoolID primitive.ObjectID, includeInactive bool) ([]models.UserSchool, error) {
	filter := bson.M{"school_id": schoolID}
	if !includeInactive {
		filter["role"] = bson.M{"$ne": string(authz.RoleInactive)}
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: 1}}))
}

// PageBySchool is ListBySchool in _id order, one page at a time. It fetches
// one extra row; pass the result through paging.Trim.
func (s *Store) PageBySchool(ctx context.Context, schoolID primitive.ObjectID, includeInactive bool, p paging.Page) ([]models.UserSchool, error) {
	filter := bson.M{"school_id": schoolID}
	if !includeInactive {
		filter["role"] = bson.M{"$ne": string(authz.RoleInactive)}
	}
	opts := p.Apply(filter)
	return s.find(ctx, filter, opts)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.UserSchool, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.UserSchool
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
