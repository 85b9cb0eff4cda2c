package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dalemusser/camphub/internal/app/features/notifications"
	subscriptionstore "github.com/dalemusser/camphub/internal/app/store/subscriptions"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/push"
	"github.com/dalemusser/camphub/internal/domain/models"
	"github.com/dalemusser/camphub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// scriptedSender fails endpoints listed in errs and records the rest.
type scriptedSender struct {
	mu        sync.Mutex
	errs      map[string]error
	delivered []string
}

func (s *scriptedSender) Deliver(_ context.Context, sub models.PushSubscription, _ push.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[sub.Endpoint]; err != nil {
		return err
	}
	s.delivered = append(s.delivered, sub.Endpoint)
	return nil
}

type env struct {
	router http.Handler
	subs   *subscriptionstore.Store
	sender *scriptedSender
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	subs := subscriptionstore.New(db)
	if err := subs.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	sender := &scriptedSender{errs: map[string]error{}}
	h := notifications.NewHandler(subs, push.NewBroadcaster(subs, sender, nil, zap.NewNop()), nil, zap.NewNop())
	r := chi.NewRouter()
	notifications.MountRoutes(r, h, nil)
	return &env{router: r, subs: subs, sender: sender}
}

func (e *env) do(method, target, body string, c *authz.Context) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(method, target, body)
	if c != nil {
		req = testutil.WithAuthz(req, *c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func subscribe(t *testing.T, e *env, c authz.Context, endpoint string) {
	t.Helper()
	rec := e.do(http.MethodPost, "/push/subscriptions", `{"endpoint":"`+endpoint+`","keys":{"p256dh":"k","auth":"a"}}`, &c)
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe %s: status = %d (%s)", endpoint, rec.Code, rec.Body.String())
	}
}

func TestBroadcast_CollectsFailures(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := primitive.NewObjectID()
	other := primitive.NewObjectID()
	subscribe(t, e, testutil.MemberContext(school, authz.RoleUser), "https://push.example/ok")
	subscribe(t, e, testutil.MemberContext(school, authz.RoleUser), "https://push.example/down")
	subscribe(t, e, testutil.MemberContext(school, authz.RoleUser), "https://push.example/gone")
	subscribe(t, e, testutil.MemberContext(other, authz.RoleUser), "https://push.example/elsewhere")

	e.sender.errs["https://push.example/down"] = errors.New("503 from push service")
	e.sender.errs["https://push.example/gone"] = push.ErrGone

	leader := testutil.MemberContext(school, authz.RoleLeader)
	rec := e.do(http.MethodPost, "/schools/"+school.Hex()+"/push", `{"title":"Lights out","body":"22:00"}`, &leader)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var rep push.Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Delivered != 1 || rep.Removed != 1 || len(rep.Failed) != 2 {
		t.Errorf("report = %+v", rep)
	}
	if len(e.sender.delivered) != 1 || e.sender.delivered[0] != "https://push.example/ok" {
		t.Errorf("delivered = %v, other school must not be reached", e.sender.delivered)
	}

	left, err := e.subs.ListBySchool(ctx, school)
	if err != nil {
		t.Fatalf("ListBySchool: %v", err)
	}
	if len(left) != 2 {
		t.Errorf("subscriptions left = %d, want 2 (gone endpoint removed)", len(left))
	}
}

func TestBroadcast_Guard(t *testing.T) {
	e := newEnv(t)
	school := primitive.NewObjectID()
	target := "/schools/" + school.Hex() + "/push"

	tests := []struct {
		name string
		c    *authz.Context
		body string
		want int
	}{
		{"user denied", ptr(testutil.MemberContext(school, authz.RoleUser)), `{"title":"x"}`, http.StatusForbidden},
		{"other school animator denied", ptr(testutil.MemberContext(primitive.NewObjectID(), authz.RoleAnimator)), `{"title":"x"}`, http.StatusForbidden},
		{"anonymous", nil, `{"title":"x"}`, http.StatusUnauthorized},
		{"missing title", ptr(testutil.MemberContext(school, authz.RoleAnimator)), `{"body":"x"}`, http.StatusBadRequest},
		{"empty school is fine", ptr(testutil.MemberContext(school, authz.RoleAnimator)), `{"title":"x"}`, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := e.do(http.MethodPost, target, tc.body, tc.c); rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestSubscribe_Rules(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := primitive.NewObjectID()
	member := testutil.MemberContext(school, authz.RoleUser)
	admin := testutil.AdminContext()
	imp := testutil.MemberContext(school, authz.RoleUser)
	imp.Impersonator = &authz.Impersonator{AdminID: admin.UserID, GrantID: "g"}

	if rec := e.do(http.MethodPost, "/push/subscriptions", `{"endpoint":"ftp://nope"}`, &member); rec.Code != http.StatusBadRequest {
		t.Errorf("bad endpoint: status = %d, want 400", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/push/subscriptions", `{"endpoint":"https://push.example/a"}`, &admin); rec.Code != http.StatusForbidden {
		t.Errorf("admin: status = %d, want 403", rec.Code)
	}
	if rec := e.do(http.MethodPost, "/push/subscriptions", `{"endpoint":"https://push.example/a"}`, &imp); rec.Code != http.StatusForbidden {
		t.Errorf("impersonating: status = %d, want 403", rec.Code)
	}

	// Registering twice keeps one row.
	subscribe(t, e, member, "https://push.example/a")
	subscribe(t, e, member, "https://push.example/a")
	subs, err := e.subs.ListBySchool(ctx, school)
	if err != nil || len(subs) != 1 {
		t.Fatalf("subscriptions = %d, %v; want 1", len(subs), err)
	}

	if rec := e.do(http.MethodDelete, "/push/subscriptions", `{"endpoint":"https://push.example/a"}`, &member); rec.Code != http.StatusNoContent {
		t.Errorf("unsubscribe: status = %d, want 204", rec.Code)
	}
	if rec := e.do(http.MethodDelete, "/push/subscriptions", `{"endpoint":"https://push.example/a"}`, &member); rec.Code != http.StatusNotFound {
		t.Errorf("unsubscribe again: status = %d, want 404", rec.Code)
	}
}

func TestUnsubscribe_ImpersonatorRefused(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := primitive.NewObjectID()
	member := testutil.MemberContext(school, authz.RoleUser)
	subscribe(t, e, member, "https://push.example/kept")

	imp := member
	imp.Impersonator = &authz.Impersonator{AdminID: testutil.AdminContext().UserID, GrantID: "g"}
	if rec := e.do(http.MethodDelete, "/push/subscriptions", `{"endpoint":"https://push.example/kept"}`, &imp); rec.Code != http.StatusForbidden {
		t.Errorf("impersonating: status = %d, want 403", rec.Code)
	}

	subs, err := e.subs.ListBySchool(ctx, school)
	if err != nil || len(subs) != 1 {
		t.Errorf("subscriptions after refused unsubscribe = %d, %v; want 1", len(subs), err)
	}
}

func ptr(c authz.Context) *authz.Context { return &c }
