package invites_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/camphub/internal/app/features/invites"
	membershipstore "github.com/dalemusser/camphub/internal/app/store/memberships"
	"github.com/dalemusser/camphub/internal/app/store/regtokens"
	userstore "github.com/dalemusser/camphub/internal/app/store/users"
	"github.com/dalemusser/camphub/internal/app/system/auth"
	"github.com/dalemusser/camphub/internal/app/system/authz"
	"github.com/dalemusser/camphub/internal/app/system/mailer"
	"github.com/dalemusser/camphub/internal/app/system/onboarding"
	"github.com/dalemusser/camphub/internal/testutil"
	"github.com/dalemusser/camphub/internal/testutil/sessiontest"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (o *outbox) Send(_ context.Context, e mailer.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, e)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type env struct {
	router http.Handler
	sm     *auth.SessionManager
	db     *mongo.Database
	fx     *testutil.Fixtures
	mail   *outbox
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := userstore.New(db).EnsureIndexes(ctx); err != nil {
		t.Fatalf("user indexes: %v", err)
	}
	if err := membershipstore.New(db).EnsureIndexes(ctx); err != nil {
		t.Fatalf("membership indexes: %v", err)
	}

	mail := &outbox{}
	svc := onboarding.New(db, regtokens.New(db), mail, onboarding.Config{BaseURL: "https://camp.example"}, zap.NewNop())
	sm := sessiontest.New(t, nil)
	r := chi.NewRouter()
	invites.MountRoutes(r, invites.NewHandler(svc, sm, nil, nil, nil, zap.NewNop()), nil)
	return &env{router: sm.LoadSessionUser(r), sm: sm, db: db, fx: testutil.NewFixtures(t, db), mail: mail}
}

func (e *env) do(t *testing.T, method, target, body string, c *authz.Context) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(method, target, body)
	if c != nil {
		req = sessiontest.Bearer(t, e.sm, req, *c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type inviteBody struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Link  string `json:"link"`
}

type redeemBody struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	Joined  bool   `json:"joined"`
	Created bool   `json:"created"`
	Context struct {
		UserID   string `json:"user_id"`
		SchoolID string `json:"school_id"`
		Role     string `json:"role"`
	} `json:"context"`
}

func tokenOf(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestInvite_IssueAndRedeemAsNewUser(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := e.fx.CreateSchool(ctx, "Cedar", "cedar")
	leader := e.fx.CreateUser(ctx, "Sam", "sam@example.com")
	e.fx.AddMembership(ctx, leader.ID, school.ID, "leader")
	lc := authz.Context{UserID: leader.ID, Role: authz.RoleLeader, SchoolID: school.ID}

	rec := e.do(t, http.MethodPost, "/schools/"+school.ID.Hex()+"/invites", `{"email":"Tess@Example.com","role":"animator"}`, &lc)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue: status = %d (%s)", rec.Code, rec.Body.String())
	}
	inv := decode[inviteBody](t, rec)
	if inv.Kind != "invite" || inv.Email != "tess@example.com" || inv.Role != "animator" {
		t.Errorf("invite = %+v", inv)
	}
	if e.mail.count() != 1 {
		t.Errorf("emails sent = %d, want 1", e.mail.count())
	}
	token := tokenOf(t, inv.Link)

	rec = e.do(t, http.MethodPost, "/invites/redeem", `{"token":"`+token+`","full_name":"Tess T","password":"hiking-boots-5"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem: status = %d (%s)", rec.Code, rec.Body.String())
	}
	got := decode[redeemBody](t, rec)
	if !got.Created || !got.Joined || got.Context.SchoolID != school.ID.Hex() || got.Context.Role != "animator" {
		t.Errorf("redeem = %+v", got)
	}
	if c, ok := e.sm.Resolve(ctx, got.Token); !ok || c.Role != authz.RoleAnimator {
		t.Errorf("credential resolves to %+v, %v", c, ok)
	}

	rec = e.do(t, http.MethodPost, "/invites/redeem", `{"token":"`+token+`","full_name":"Tess T","password":"hiking-boots-5"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replay: status = %d, want 400", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] != "invalid_token" {
		t.Errorf("replay error = %q", body["error"])
	}
}

func TestInvite_Validation(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := e.fx.CreateSchool(ctx, "Cedar", "cedar")
	other := e.fx.CreateSchool(ctx, "Elm", "elm")
	lc := testutil.MemberContext(school.ID, authz.RoleLeader)
	ac := testutil.MemberContext(school.ID, authz.RoleAnimator)
	foreign := testutil.MemberContext(other.ID, authz.RoleLeader)
	target := "/schools/" + school.ID.Hex() + "/invites"

	tests := []struct {
		name string
		body string
		c    *authz.Context
		want int
	}{
		{"bad email", `{"email":"nope"}`, &lc, http.StatusBadRequest},
		{"superadmin role", `{"email":"a@example.com","role":"superadmin"}`, &lc, http.StatusBadRequest},
		{"inactive role", `{"email":"a@example.com","role":"inactive"}`, &lc, http.StatusBadRequest},
		{"animator cannot invite", `{"email":"a@example.com"}`, &ac, http.StatusForbidden},
		{"other school's leader", `{"email":"a@example.com"}`, &foreign, http.StatusForbidden},
		{"anonymous", `{"email":"a@example.com"}`, nil, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := e.do(t, http.MethodPost, target, tc.body, tc.c); rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
	if e.mail.count() != 0 {
		t.Errorf("emails sent = %d, want 0", e.mail.count())
	}
}

func TestSchoolLink_ReusableAndIdempotentJoin(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := e.fx.CreateSchool(ctx, "Cedar", "cedar")
	home := e.fx.CreateSchool(ctx, "Home", "home")
	lc := testutil.MemberContext(school.ID, authz.RoleLeader)
	target := "/schools/" + school.ID.Hex() + "/invites/current"

	first := decode[inviteBody](t, e.do(t, http.MethodGet, target, "", &lc))
	second := decode[inviteBody](t, e.do(t, http.MethodGet, target, "", &lc))
	if first.Link == "" || first.Link != second.Link || first.Kind != "school_link" {
		t.Fatalf("links = %q / %q (%s)", first.Link, second.Link, first.Kind)
	}
	token := tokenOf(t, first.Link)

	u := e.fx.CreateUser(ctx, "Uma", "uma@example.com")
	e.fx.AddMembership(ctx, u.ID, home.ID, "user")
	uc := authz.Context{UserID: u.ID, Role: authz.RoleUser, SchoolID: home.ID}

	rec := e.do(t, http.MethodPost, "/invites/redeem", `{"token":"`+token+`"}`, &uc)
	if rec.Code != http.StatusOK {
		t.Fatalf("join: status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := decode[redeemBody](t, rec); !got.Joined || got.Created || got.Context.SchoolID != school.ID.Hex() {
		t.Errorf("join = %+v", got)
	}

	rec = e.do(t, http.MethodPost, "/invites/redeem", `{"token":"`+token+`"}`, &uc)
	if rec.Code != http.StatusOK {
		t.Fatalf("rejoin: status = %d", rec.Code)
	}
	if got := decode[redeemBody](t, rec); got.Joined || got.Message != "already a member" {
		t.Errorf("rejoin = %+v", got)
	}

	n, err := e.db.Collection("user_schools").CountDocuments(ctx, map[string]any{"user_id": u.ID, "school_id": school.ID})
	if err != nil || n != 1 {
		t.Errorf("membership rows = %d, %v; want 1", n, err)
	}

	// Anonymous redemption of a shared link for an existing account needs the password.
	rec = e.do(t, http.MethodPost, "/invites/redeem", `{"token":"`+token+`","email":"uma@example.com","password":"wrong-password"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("anonymous existing account: status = %d, want 400", rec.Code)
	}
}

func TestSchoolLink_AnonymousRefusalsAreIdentical(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := e.fx.CreateSchool(ctx, "Cedar", "cedar")
	lc := testutil.MemberContext(school.ID, authz.RoleLeader)
	link := decode[inviteBody](t, e.do(t, http.MethodGet, "/schools/"+school.ID.Hex()+"/invites/current", "", &lc))
	token := tokenOf(t, link.Link)

	e.fx.CreateUser(ctx, "Known", "known@example.com")
	e.fx.CreateAdmin(ctx, "Root", "root@example.com")
	gone := e.fx.CreateUser(ctx, "Gone", "gone@example.com")
	if err := userstore.New(e.db).SetStatus(ctx, gone.ID, "disabled"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		email string
		extra string
	}{
		{"unknown address", "stranger@example.com", ""},
		{"existing without password", "known@example.com", ""},
		{"existing wrong password", "known@example.com", `,"password":"wrong-password"`},
		{"admin", "root@example.com", `,"password":"` + testutil.TestPassword + `"`},
		{"disabled", "gone@example.com", `,"password":"` + testutil.TestPassword + `"`},
	}
	const want = `{"error":"invalid_credentials_or_details"}`
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := `{"token":"` + token + `","email":"` + tc.email + `"` + tc.extra + `}`
			rec := e.do(t, http.MethodPost, "/invites/redeem", body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != want {
				t.Errorf("body = %s, want %s", got, want)
			}
		})
	}
}

func TestRedeem_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := e.fx.CreateSchool(ctx, "Cedar", "cedar")
	lc := testutil.MemberContext(school.ID, authz.RoleLeader)
	inv := decode[inviteBody](t, e.do(t, http.MethodPost, "/schools/"+school.ID.Hex()+"/invites", `{"email":"vic@example.com"}`, &lc))
	token := tokenOf(t, inv.Link)

	admin := e.fx.CreateAdmin(ctx, "Root", "root@example.com")
	ac := authz.Context{UserID: admin.ID, Role: authz.RoleSuperAdmin, IsAdmin: true}
	someone := e.fx.CreateUser(ctx, "Wes", "wes@example.com")
	e.fx.AddMembership(ctx, someone.ID, school.ID, "user")
	wc := authz.Context{UserID: someone.ID, Role: authz.RoleUser, SchoolID: school.ID}

	tests := []struct {
		name string
		body string
		c    *authz.Context
		want int
	}{
		{"unknown token", `{"token":"bogus","full_name":"V","password":"hiking-boots-5"}`, nil, http.StatusBadRequest},
		{"missing details", `{"token":"` + token + `"}`, nil, http.StatusBadRequest},
		{"other email signed in", `{"token":"` + token + `"}`, &wc, http.StatusForbidden},
		{"admin cannot join", `{"token":"` + token + `"}`, &ac, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := e.do(t, http.MethodPost, "/invites/redeem", tc.body, tc.c); rec.Code != tc.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	// None of the failures consumed the invite.
	rec := e.do(t, http.MethodPost, "/invites/redeem", `{"token":"`+token+`","full_name":"Vic","password":"hiking-boots-5"}`, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("final redeem: status = %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRedeem_ImpersonatorRefused(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	school := e.fx.CreateSchool(ctx, "Cedar", "cedar")
	c := testutil.MemberContext(school.ID, authz.RoleUser)
	c.Impersonator = &authz.Impersonator{AdminID: testutil.AdminContext().UserID, GrantID: "g"}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/invites/redeem", `{"token":"x"}`, c))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
