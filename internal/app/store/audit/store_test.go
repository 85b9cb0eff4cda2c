package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/camphub/internal/app/store/audit"
	"github.com/dalemusser/camphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLogAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}

	school := primitive.NewObjectID()
	user := primitive.NewObjectID()
	base := time.Now().UTC().Add(-time.Hour)

	events := []audit.Event{
		{Timestamp: base, Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &user, Success: true},
		{Timestamp: base.Add(time.Minute), Category: audit.CategoryAdmin, EventType: audit.EventInviteIssued, SchoolID: &school, Success: true},
		{Timestamp: base.Add(2 * time.Minute), Category: audit.CategorySecurity, EventType: audit.EventAccessDenied, SchoolID: &school, UserID: &user, FailureReason: "wrong_tenant"},
	}
	for _, e := range events {
		if err := s.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	got, err := s.Query(ctx, audit.QueryFilter{SchoolID: &school})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("school events = %d, want 2", len(got))
	}
	if got[0].EventType != audit.EventAccessDenied {
		t.Errorf("newest first: got %q", got[0].EventType)
	}

	n, err := s.Count(ctx, audit.QueryFilter{UserID: &user})
	if err != nil || n != 2 {
		t.Errorf("Count(user) = %d, %v; want 2", n, err)
	}

	start := base.Add(30 * time.Second)
	n, _ = s.Count(ctx, audit.QueryFilter{StartTime: &start})
	if n != 2 {
		t.Errorf("Count(since) = %d, want 2", n)
	}

	page, _ := s.Query(ctx, audit.QueryFilter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].EventType != audit.EventInviteIssued {
		t.Errorf("paged query = %+v", page)
	}
}
