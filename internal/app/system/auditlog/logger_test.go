package auditlog

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/camphub/internal/app/store/audit"
	"github.com/dalemusser/camphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Log(context.Background(), audit.Event{Category: audit.CategoryAuth})
	l.LoginSuccess(context.Background(), httptest.NewRequest("POST", "/login", nil), primitive.NewObjectID(), primitive.NilObjectID)
}

func TestDestination(t *testing.T) {
	l := New(nil, nil, Config{Auth: "off", Admin: "log"})

	tests := []struct {
		category string
		want     string
	}{
		{audit.CategoryAuth, Off},
		{audit.CategoryAdmin, Log},
		{audit.CategorySecurity, All},
		{"unknown", All},
	}
	for _, tt := range tests {
		if got := l.destination(tt.category); got != tt.want {
			t.Errorf("destination(%q) = %q, want %q", tt.category, got, tt.want)
		}
	}

	if got := New(nil, nil, Config{Auth: "bogus"}).destination(audit.CategoryAuth); got != All {
		t.Errorf("unknown setting = %q, want all", got)
	}
}

func TestLog_ZapOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(nil, zap.New(core), Config{Auth: Log, Admin: Off})

	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "10.1.2.3:4000"
	user := primitive.NewObjectID()

	l.LoginSuccess(context.Background(), r, user, primitive.NilObjectID)
	l.SchoolCreated(context.Background(), r, user, primitive.NewObjectID(), "camp")

	if logs.Len() != 1 {
		t.Fatalf("entries = %d, want 1 (admin is off)", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["event_type"] != audit.EventLoginSuccess || fields["ip"] != "10.1.2.3" || fields["user_id"] != user.Hex() {
		t.Errorf("fields = %v", fields)
	}
}

func TestAccessDenied_StoresEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := audit.New(db)
	l := New(store, zap.NewNop(), Config{Auth: DB, Admin: DB})

	school := primitive.NewObjectID()
	r := httptest.NewRequest("GET", "/schools/"+school.Hex()+"/members", nil)
	l.AccessDenied(ctx, r, primitive.NewObjectID(), school, "wrong_tenant")

	events, err := store.Query(ctx, audit.QueryFilter{SchoolID: &school})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Category != audit.CategorySecurity || e.FailureReason != "wrong_tenant" || e.Success {
		t.Errorf("event = %+v", e)
	}
	if e.Details["path"] != r.URL.Path {
		t.Errorf("path detail = %q", e.Details["path"])
	}
}
