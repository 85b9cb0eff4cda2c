package impersonationstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	impersonationstore "github.com/dalemusser/camphub/internal/app/store/impersonation"
	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/dalemusser/camphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// grantStore is the contract both backends satisfy.
type grantStore interface {
	Save(ctx context.Context, g models.ImpersonationGrant) error
	Active(ctx context.Context, grantID string) (bool, error)
	Consume(ctx context.Context, grantID string) (models.ImpersonationGrant, error)
}

func backends(t *testing.T) map[string]grantStore {
	t.Helper()
	out := map[string]grantStore{}

	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ms := impersonationstore.NewMongo(db)
	if err := ms.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	out["mongo"] = ms

	if rdb, prefix, err := testutil.OpenTestRedis(t); err == nil {
		out["redis"] = impersonationstore.NewRedis(rdb, prefix)
	} else {
		t.Logf("redis backend skipped: %v", err)
	}
	return out
}

func newGrant(id string) models.ImpersonationGrant {
	now := time.Now().UTC()
	return models.ImpersonationGrant{
		GrantID:   id,
		AdminID:   primitive.NewObjectID(),
		TargetID:  primitive.NewObjectID(),
		SchoolID:  primitive.NewObjectID(),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
}

func TestGrantStores(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g := newGrant("grant-" + name)
			if err := s.Save(ctx, g); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(ctx, g); !errors.Is(err, impersonationstore.ErrDuplicate) {
				t.Errorf("second Save err = %v, want ErrDuplicate", err)
			}

			ok, err := s.Active(ctx, g.GrantID)
			if err != nil || !ok {
				t.Fatalf("Active = %v, %v", ok, err)
			}

			got, err := s.Consume(ctx, g.GrantID)
			if err != nil {
				t.Fatalf("Consume: %v", err)
			}
			if got.AdminID != g.AdminID || got.TargetID != g.TargetID {
				t.Errorf("Consume returned %+v", got)
			}

			if _, err := s.Consume(ctx, g.GrantID); !errors.Is(err, impersonationstore.ErrNotFound) {
				t.Errorf("replayed Consume err = %v, want ErrNotFound", err)
			}
			if ok, _ := s.Active(ctx, g.GrantID); ok {
				t.Error("consumed grant still active")
			}
		})
	}
}

func TestGrantStores_ConcurrentConsume(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g := newGrant("race-" + name)
			if err := s.Save(ctx, g); err != nil {
				t.Fatalf("Save: %v", err)
			}

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.Consume(ctx, g.GrantID); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if wins != 1 {
				t.Fatalf("%d consumers succeeded, want 1", wins)
			}
		})
	}
}

func TestGrantStores_RejectExpired(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g := newGrant("stale-" + name)
			g.ExpiresAt = time.Now().Add(-time.Minute)
			if err := s.Save(ctx, g); err == nil {
				t.Fatal("expected Save to reject an expired grant")
			}
		})
	}
}

func TestMongoStore_ExpiryAndCleanup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	s := impersonationstore.NewMongo(db).WithClock(func() time.Time { return now })

	g := newGrant("clocked")
	g.ExpiresAt = now.Add(time.Hour)
	if err := s.Save(ctx, g); err != nil {
		t.Fatalf("Save: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if ok, _ := s.Active(ctx, g.GrantID); ok {
		t.Error("expired grant reported active")
	}
	if _, err := s.Consume(ctx, g.GrantID); !errors.Is(err, impersonationstore.ErrNotFound) {
		t.Errorf("Consume expired err = %v, want ErrNotFound", err)
	}
	n, err := s.CleanupExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("CleanupExpired = %d, %v; want 1", n, err)
	}
}
