package schoolstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/camphub/internal/app/system/normalize"
	"github.com/dalemusser/camphub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateSlug = errors.New("a school with this slug already exists")
	ErrNotFound      = errors.New("school not found")
	ErrBadName       = errors.New("school name is required")
	ErrBadSlug       = errors.New("school slug must contain letters or digits")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("schools")}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("uniq_schools_slug").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_schools_nameci__id"),
		},
	})
	return err
}

// Create inserts a school. An empty slug is derived from the name.
func (s *Store) Create(ctx context.Context, name, slug string) (models.School, error) {
	name = normalize.Name(name)
	if name == "" {
		return models.School{}, ErrBadName
	}
	if slug == "" {
		slug = name
	}
	slug = normalize.Slug(slug)
	if slug == "" {
		return models.School{}, ErrBadSlug
	}

	now := time.Now().UTC()
	sc := models.School{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    normalize.NameCI(name),
		Slug:      slug,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, sc); err != nil {
		if wafflemongo.IsDup(err) {
			return models.School{}, ErrDuplicateSlug
		}
		return models.School{}, err
	}
	return sc, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.School, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (*models.School, error) {
	return s.findOne(ctx, bson.M{"slug": normalize.Slug(slug)})
}

// Exists reports whether an active school with id exists.
func (s *Store) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id, "status": models.StatusActive}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.School, error) {
	var sc models.School
	if err := s.c.FindOne(ctx, filter).Decode(&sc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sc, nil
}
