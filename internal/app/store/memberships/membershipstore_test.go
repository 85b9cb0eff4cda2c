package membershipstore_test

import (
	"errors"
	"sync"
	"testing"

	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func newStore(t *testing.T) (*membershipstore.Store, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := membershipstore.New(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return s, db
}

func TestAdd_Duplicate(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user, school := primitive.NewObjectID(), primitive.NewObjectID()
	if _, err := s.Add(ctx, user, school, authz.RoleLeader); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, user, school, authz.RoleUser); !errors.Is(err, membershipstore.ErrDuplicateMembership) {
		t.Fatalf("err = %v, want ErrDuplicateMembership", err)
	}
}

func TestAdd_RejectsSuperAdminRole(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := s.Add(ctx, primitive.NewObjectID(), primitive.NewObjectID(), authz.RoleSuperAdmin); err == nil {
		t.Fatal("superadmin is not a membership role")
	}
}

func TestJoin(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user, school := primitive.NewObjectID(), primitive.NewObjectID()

	m, joined, err := s.Join(ctx, user, school, authz.RoleAnimator)
	if err != nil || !joined {
		t.Fatalf("first Join = %v, %v", joined, err)
	}
	if m.Role != "animator" {
		t.Errorf("Role = %q", m.Role)
	}

	again, joined, err := s.Join(ctx, user, school, authz.RoleUser)
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if joined {
		t.Error("second Join should report already a member")
	}
	if again.ID != m.ID || again.Role != "animator" {
		t.Errorf("existing membership changed: %+v", again)
	}
}

func TestJoin_ReactivatesInPlace(t *testing.T) {
	s, db := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user, school := primitive.NewObjectID(), primitive.NewObjectID()
	orig, _ := s.Add(ctx, user, school, authz.RoleLeader)
	if err := s.Deactivate(ctx, user, school); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := s.ActiveRole(ctx, user, school); !errors.Is(err, membershipstore.ErrNotFound) {
		t.Fatalf("ActiveRole after Deactivate err = %v", err)
	}

	m, joined, err := s.Join(ctx, user, school, authz.RoleUser)
	if err != nil || !joined {
		t.Fatalf("Join = %v, %v", joined, err)
	}
	if m.ID != orig.ID || m.Role != "user" {
		t.Errorf("expected row %v reactivated as user, got %+v", orig.ID, m)
	}

	n, _ := db.Collection("user_schools").CountDocuments(ctx, bson.M{"user_id": user, "school_id": school})
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestJoin_Concurrent(t *testing.T) {
	s, db := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user, school := primitive.NewObjectID(), primitive.NewObjectID()

	const n = 6
	var wg sync.WaitGroup
	joins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, joined, err := s.Join(ctx, user, school, authz.RoleUser)
			if err != nil {
				t.Errorf("Join: %v", err)
			}
			joins <- joined
		}()
	}
	wg.Wait()
	close(joins)

	count := 0
	for j := range joins {
		if j {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d joins reported joined, want 1", count)
	}
	rows, _ := db.Collection("user_schools").CountDocuments(ctx, bson.M{"user_id": user, "school_id": school})
	if rows != 1 {
		t.Errorf("rows = %d, want 1", rows)
	}
}

func TestSetRole(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user, school := primitive.NewObjectID(), primitive.NewObjectID()
	s.Add(ctx, user, school, authz.RoleUser)

	if err := s.SetRole(ctx, user, school, authz.RoleLeader); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	r, err := s.ActiveRole(ctx, user, school)
	if err != nil || r != authz.RoleLeader {
		t.Fatalf("ActiveRole = %v, %v", r, err)
	}
	if err := s.SetRole(ctx, user, primitive.NewObjectID(), authz.RoleLeader); !errors.Is(err, membershipstore.ErrNotFound) {
		t.Errorf("unknown pair err = %v", err)
	}
}

func TestFirstActiveAndLists(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	s1, s2, s3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	s.Add(ctx, user, s1, authz.RoleInactive)
	s.Add(ctx, user, s2, authz.RoleAnimator)
	s.Add(ctx, user, s3, authz.RoleLeader)

	first, err := s.FirstActive(ctx, user)
	if err != nil {
		t.Fatalf("FirstActive: %v", err)
	}
	if first.SchoolID != s2 {
		t.Errorf("FirstActive school = %v, want %v", first.SchoolID, s2)
	}

	active, _ := s.ListActiveByUser(ctx, user)
	if len(active) != 2 {
		t.Errorf("ListActiveByUser len = %d, want 2", len(active))
	}

	other := primitive.NewObjectID()
	s.Add(ctx, other, s2, authz.RoleInactive)
	withInactive, _ := s.ListBySchool(ctx, s2, true)
	onlyActive, _ := s.ListBySchool(ctx, s2, false)
	if len(withInactive) != 2 || len(onlyActive) != 1 {
		t.Errorf("ListBySchool = %d/%d, want 2/1", len(withInactive), len(onlyActive))
	}

	if _, err := s.FirstActive(ctx, other); !errors.Is(err, membershipstore.ErrNotFound) {
		t.Errorf("FirstActive for inactive-only user err = %v", err)
	}
}
