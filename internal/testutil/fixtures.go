package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "campfire-42"

// WithChiURLParam adds a chi URL parameter to the request context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts test documents directly, bypassing the stores.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateSchool inserts an active school.
func (f *Fixtures) CreateSchool(ctx context.Context, name, slug string) models.School {
	f.t.Helper()

	now := time.Now().UTC()
	s := models.School{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Slug:      slug,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("schools").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("CreateSchool: %v", err)
	}
	return s
}

// CreateUser inserts an active user whose password is TestPassword.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.insertUser(ctx, fullName, email, false)
}

// CreateAdmin inserts an active super-admin whose password is TestPassword.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.insertUser(ctx, fullName, email, true)
}

func (f *Fixtures) insertUser(ctx context.Context, fullName, email string, admin bool) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		PasswordHash: string(hash),
		IsAdmin:      admin,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("insert user: %v", err)
	}
	return u
}

// AddMembership inserts a user_schools row.
func (f *Fixtures) AddMembership(ctx context.Context, userID, schoolID primitive.ObjectID, role string) models.UserSchool {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.UserSchool{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		SchoolID:  schoolID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("user_schools").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("AddMembership: %v", err)
	}
	return m
}
