package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/esig/task-manager/internal/core/service"
	"github.com/esig/task-manager/internal/infrastructure/db/memory"
)

type testServer struct {
	t *testing.T
	e *echo.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	accounts := memory.NewStore()
	tasks := memory.NewTaskStore()

	codec, err := service.NewTokenCodec([]byte("an-hmac-key-of-at-least-32-bytes!"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	auth := service.NewAuthService(accounts, codec, log, service.WithBcryptCost(bcrypt.MinCost))
	if _, err := auth.SeedAdmin(context.Background(), "root", "rootpw"); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	policy := service.NewAccessPolicy(accounts)

	e := NewRouter(Deps{
		Auth:       auth,
		Tasks:      service.NewTaskService(tasks, accounts, policy, log),
		Tokens:     codec,
		Identities: service.NewIdentityResolver(accounts),
		Logger:     log,
	})
	return &testServer{t: t, e: e}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) decode(rec *httptest.ResponseRecorder, v any) {
	s.t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		s.t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
}

func (s *testServer) token(path, username, password string, want int) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, path, "", `{"username":"`+username+`","password":"`+password+`"}`)
	if rec.Code != want {
		s.t.Fatalf("%s %s: expected %d, got %d (%s)", path, username, want, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
	}
	s.decode(rec, &resp)
	if resp.TokenType != "Bearer" || resp.Token == "" {
		s.t.Fatalf("unexpected auth payload: %s", rec.Body.String())
	}
	return resp.Token
}

type taskJSON struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Owner struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"owner"`
}

// ---

func TestRouter_OwnershipScenario(t *testing.T) {
	s := newTestServer(t)

	alice := s.token("/auth/register", "alice", "pw-alice", http.StatusCreated)
	bob := s.token("/auth/register", "bob", "pw-bob", http.StatusCreated)
	root := s.token("/auth/login", "root", "rootpw", http.StatusOK)

	var aliceTask, bobTask taskJSON
	rec := s.do(http.MethodPost, "/tasks", alice, `{"title":"alice task","priority":"HIGH"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	s.decode(rec, &aliceTask)

	rec = s.do(http.MethodPost, "/tasks", bob, `{"title":"bob task"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	s.decode(rec, &bobTask)

	if aliceTask.Owner.Username != "alice" || bobTask.Owner.Username != "bob" {
		t.Fatalf("tasks must be owned by their creators: %+v %+v", aliceTask.Owner, bobTask.Owner)
	}

	// Each user sees only their own task.
	var list []taskJSON
	s.decode(s.do(http.MethodGet, "/tasks", alice, ""), &list)
	if len(list) != 1 || list[0].ID != aliceTask.ID {
		t.Fatalf("alice should see only her task, got %+v", list)
	}
	s.decode(s.do(http.MethodGet, "/tasks", bob, ""), &list)
	if len(list) != 1 || list[0].ID != bobTask.ID {
		t.Fatalf("bob should see only his task, got %+v", list)
	}

	// The admin sees the union.
	s.decode(s.do(http.MethodGet, "/tasks", root, ""), &list)
	if len(list) != 2 {
		t.Fatalf("admin should see both tasks, got %d", len(list))
	}

	// Cross-owner access is refused; unknown ids are not found.
	if rec := s.do(http.MethodGet, "/tasks/"+aliceTask.ID, bob, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("bob reading alice's task: expected 403, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/tasks/"+aliceTask.ID, bob, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("bob deleting alice's task: expected 403, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/tasks/does-not-exist", bob, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task: expected 404, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/tasks/user/"+aliceTask.Owner.ID, bob, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("bob listing alice's tasks: expected 403, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/tasks/user/"+aliceTask.Owner.ID, root, ""); rec.Code != http.StatusOK {
		t.Fatalf("admin listing alice's tasks: expected 200, got %d", rec.Code)
	}

	// The admin may modify anyone's task; alice may complete her own.
	if rec := s.do(http.MethodPatch, "/tasks/"+bobTask.ID, root, `{"title":"renamed"}`); rec.Code != http.StatusOK {
		t.Fatalf("admin patch: expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPatch, "/tasks/"+aliceTask.ID+"/complete", alice, ""); rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/tasks/"+aliceTask.ID, alice, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete: expected 204, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/tasks/"+aliceTask.ID, alice, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted task: expected 404, got %d", rec.Code)
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, tok := range []string{"", "not-a-jwt"} {
		rec := s.do(http.MethodGet, "/tasks", tok, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", tok, rec.Code)
		}
		var body map[string]string
		s.decode(rec, &body)
		if body["error"] == "" {
			t.Fatalf("expected error envelope, got %s", rec.Body.String())
		}
	}

	if rec := s.do(http.MethodPost, "/auth/create-admin", "", `{"username":"x","password":"y"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create-admin: expected 401, got %d", rec.Code)
	}
}

func TestRouter_TokenForDeletedIdentityIsRejected(t *testing.T) {
	s := newTestServer(t)

	// A token from another server instance with the same key names a user
	// this instance has never seen.
	other := newTestServer(t)
	ghost := other.token("/auth/register", "ghost", "pw", http.StatusCreated)

	if rec := s.do(http.MethodGet, "/tasks", ghost, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown identity: expected 401, got %d", rec.Code)
	}
}

func TestRouter_Credentials(t *testing.T) {
	s := newTestServer(t)
	s.token("/auth/register", "carol", "right", http.StatusCreated)

	wrongPassword := s.do(http.MethodPost, "/auth/login", "", `{"username":"carol","password":"wrong"}`)
	unknownUser := s.do(http.MethodPost, "/auth/login", "", `{"username":"nobody","password":"wrong"}`)
	if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrongPassword.Code, unknownUser.Code)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Fatalf("failures must be indistinguishable: %q vs %q", wrongPassword.Body.String(), unknownUser.Body.String())
	}

	if rec := s.do(http.MethodPost, "/auth/register", "", `{"username":"carol","password":"again"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate registration: expected 400, got %d", rec.Code)
	}
}

func TestRouter_RegisterRejectsOverlongMultibytePassword(t *testing.T) {
	s := newTestServer(t)

	// 40 runes pass the rune-counted max=72 tag but encode to 80 bytes.
	body := `{"username":"erin","password":"` + strings.Repeat("é", 40) + `"}`
	rec := s.do(http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, "/auth/login", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("rejected account must not exist: expected 401, got %d", rec.Code)
	}
}

func TestRouter_CreateAdmin(t *testing.T) {
	s := newTestServer(t)
	user := s.token("/auth/register", "dave", "pw", http.StatusCreated)
	root := s.token("/auth/login", "root", "rootpw", http.StatusOK)

	if rec := s.do(http.MethodPost, "/auth/create-admin", user, `{"username":"eve","password":"pw"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("user create-admin: expected 403, got %d", rec.Code)
	}

	rec := s.do(http.MethodPost, "/auth/create-admin", root, `{"username":"eve","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create-admin: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	s.decode(rec, &resp)
	if resp["role"] != "ADMIN" {
		t.Fatalf("expected ADMIN role, got %q", resp["role"])
	}

	eve := s.token("/auth/login", "eve", "pw", http.StatusOK)
	if rec := s.do(http.MethodGet, "/tasks", eve, ""); rec.Code != http.StatusOK {
		t.Fatalf("new admin list: expected 200, got %d", rec.Code)
	}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics", "/swagger/doc.json"} {
		if rec := s.do(http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_AdminDeletesAnyTask(t *testing.T) {
	s := newTestServer(t)

	alice := s.token("/auth/register", "alice", "pw1", http.StatusCreated)
	s.token("/auth/login", "alice", "pw1", http.StatusOK)
	if rec := s.do(http.MethodPost, "/auth/login", "", `{"username":"alice","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/auth/register", "", `{"username":"alice","password":"pw1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("second registration: expected 400, got %d", rec.Code)
	}
	bob := s.token("/auth/register", "bob", "pw2", http.StatusCreated)
	root := s.token("/auth/login", "root", "rootpw", http.StatusOK)

	var task taskJSON
	s.decode(s.do(http.MethodPost, "/tasks", alice, `{"title":"groceries"}`), &task)

	if rec := s.do(http.MethodDelete, "/tasks/"+task.ID, bob, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("bob delete: expected 403, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/tasks/"+task.ID, alice, ""); rec.Code != http.StatusOK {
		t.Fatalf("task should survive a refused delete, got %d", rec.Code)
	}

	if rec := s.do(http.MethodDelete, "/tasks/"+task.ID, root, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204, got %d", rec.Code)
	}
	for _, tok := range []string{alice, bob, root} {
		if rec := s.do(http.MethodGet, "/tasks/"+task.ID, tok, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("deleted task: expected 404, got %d", rec.Code)
		}
	}
}
