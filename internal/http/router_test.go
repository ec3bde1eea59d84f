package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/tripdesk/internal/config"
	"github.com/geocoder89/tripdesk/internal/domain/role"
	apphttp "github.com/geocoder89/tripdesk/internal/http"
	"github.com/geocoder89/tripdesk/internal/repo/memory"
	"github.com/geocoder89/tripdesk/internal/security"
	"github.com/geocoder89/tripdesk/internal/session"
	"github.com/gin-gonic/gin"
)

const testPassword = "correct-horse-battery"

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		Port:                8080,
		SessionTTLHours:     1,
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 15,
		IdentityTimeoutMS:   2000,
		LoginRateLimit:      100,
		AdminDefaultRole:    string(role.Manager),
	}
}

type testApp struct {
	router   *gin.Engine
	users    *memory.UsersRepo
	sessions *session.MemoryStore
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := memory.NewUsersRepo()
	sessions := session.NewMemoryStore(time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := apphttp.NewRouter(logger, apphttp.Deps{
		Users:    users,
		Sessions: sessions,
	}, testConfig())

	return &testApp{router: router, users: users, sessions: sessions}
}

func (a *testApp) createUser(t *testing.T, email string, base role.Base) {
	t.Helper()

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if _, err := a.users.Create(context.Background(), email, hash, "Test "+string(base), base); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

// login returns the session cookie.
func (a *testApp) login(t *testing.T, email string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "password": testPassword})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	a.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			if !c.HttpOnly {
				t.Fatalf("session cookie must be HttpOnly")
			}
			return c
		}
	}

	t.Fatalf("login: no %s cookie set", session.CookieName)
	return nil
}

func (a *testApp) do(t *testing.T, method, path string, cookie *http.Cookie, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type meResponse struct {
	Role          string  `json:"role"`
	ActiveRole    *string `json:"activeRole"`
	EffectiveRole string  `json:"effectiveRole"`
	Home          string  `json:"home"`
}

func (a *testApp) me(t *testing.T, cookie *http.Cookie) meResponse {
	t.Helper()

	rec := a.do(t, http.MethodGet, "/api/user", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/user: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected Cache-Control no-store, got %q", got)
	}

	var out meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			RedirectTo string `json:"redirectTo"`
			Notify     bool   `json:"notify"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var out errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/api/user", "/api/dashboard/manager", "/api/admin/users"} {
		rec := app.do(t, http.MethodGet, path, nil, nil)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}

		env := decodeError(t, rec)
		if env.Error.Code != "unauthenticated" || env.Error.Details.RedirectTo != "/login" {
			t.Fatalf("%s: unexpected error body %+v", path, env)
		}
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "pm@example.com", role.BaseProjectManager)

	rec := app.do(t, http.MethodPost, "/api/login", nil, map[string]string{
		"email":    "pm@example.com",
		"password": "not-the-password",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// The very next request after a switch sees the new role.
func TestAdminRoleSwitchIsVisibleImmediately(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "admin@example.com", role.BaseAdmin)
	cookie := app.login(t, "admin@example.com")

	before := app.me(t, cookie)
	if before.EffectiveRole != string(role.Manager) || before.Home != "/manager" {
		t.Fatalf("expected admin default manager, got %+v", before)
	}

	rec := app.do(t, http.MethodGet, "/api/dashboard/pm", cookie, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("pm dashboard before switch: expected 403, got %d", rec.Code)
	}
	env := decodeError(t, rec)
	if env.Error.Details.RedirectTo != "/manager" || !env.Error.Details.Notify {
		t.Fatalf("unexpected deny body %+v", env)
	}

	rec = app.do(t, http.MethodPost, "/api/user/switch-role", cookie, map[string]string{"role": "pm"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("switch-role: expected 204, got %d body=%s", rec.Code, rec.Body.String())
	}

	after := app.me(t, cookie)
	if after.EffectiveRole != string(role.ProjectManager) || after.Home != "/pm" {
		t.Fatalf("expected pm after switch, got %+v", after)
	}
	if after.ActiveRole == nil || *after.ActiveRole != "pm" {
		t.Fatalf("expected activeRole pm, got %v", after.ActiveRole)
	}

	rec = app.do(t, http.MethodGet, "/api/dashboard/pm", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pm dashboard after switch: expected 200, got %d", rec.Code)
	}

	rec = app.do(t, http.MethodGet, "/api/dashboard/manager", cookie, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager dashboard after switch: expected 403, got %d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Details.RedirectTo != "/pm" {
		t.Fatalf("expected redirect to /pm, got %q", env.Error.Details.RedirectTo)
	}

	// admin-only sections stay open whatever the previewed role is
	rec = app.do(t, http.MethodGet, "/api/admin/users", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin users: expected 200, got %d", rec.Code)
	}

	rec = app.do(t, http.MethodGet, "/api/admin/role-switches", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("role switches: expected 200, got %d", rec.Code)
	}
	var audit struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &audit); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if audit.Count != 1 {
		t.Fatalf("expected 1 audit row, got %d", audit.Count)
	}
}

// A non-admin cannot switch roles, whatever the target.
func TestNonAdminCannotSwitchRole(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "pm@example.com", role.BaseProjectManager)
	cookie := app.login(t, "pm@example.com")

	for _, target := range []string{"manager", "bogus"} {
		rec := app.do(t, http.MethodPost, "/api/user/switch-role", cookie, map[string]string{"role": target})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("target %q: expected 403, got %d", target, rec.Code)
		}
	}

	if got := app.me(t, cookie); got.EffectiveRole != "pm" || got.ActiveRole != nil {
		t.Fatalf("role must be unchanged, got %+v", got)
	}
}

func TestAdminSwitchToUnknownRole(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "admin@example.com", role.BaseAdmin)
	cookie := app.login(t, "admin@example.com")

	rec := app.do(t, http.MethodPost, "/api/user/switch-role", cookie, map[string]string{"role": "admin"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env := decodeError(t, rec); env.Error.Code != "invalid_role" {
		t.Fatalf("expected invalid_role, got %q", env.Error.Code)
	}

	if got := app.me(t, cookie); got.EffectiveRole != "manager" {
		t.Fatalf("expected unchanged manager, got %+v", got)
	}
}

// Regional operations roles share the operations section.
func TestOperationsRolesShareSection(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "ksa@example.com", role.BaseOperationsKSA)
	app.createUser(t, "uae@example.com", role.BaseOperationsUAE)

	for _, email := range []string{"ksa@example.com", "uae@example.com"} {
		cookie := app.login(t, email)

		rec := app.do(t, http.MethodGet, "/api/dashboard/operations", cookie, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", email, rec.Code)
		}

		rec = app.do(t, http.MethodGet, "/api/admin/users", cookie, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s admin: expected 403, got %d", email, rec.Code)
		}
		if env := decodeError(t, rec); env.Error.Details.RedirectTo != "/operations" {
			t.Fatalf("%s: expected redirect to /operations, got %q", email, env.Error.Details.RedirectTo)
		}
	}
}

func TestAccessCheckFailsClosed(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "manager@example.com", role.BaseManager)
	cookie := app.login(t, "manager@example.com")

	tests := []struct {
		path     string
		decision string
		redirect string
	}{
		{"/manager/requests", "allow", ""},
		{"/pm", "deny", "/manager"},
		{"/not-a-section", "deny", "/manager"},
		{"/login", "redirect", "/manager"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := app.do(t, http.MethodGet, "/api/access?path="+tt.path, cookie, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}

			var out struct {
				Decision   string `json:"decision"`
				RedirectTo string `json:"redirectTo"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}

			if out.Decision != tt.decision || out.RedirectTo != tt.redirect {
				t.Fatalf("expected %s/%q, got %s/%q", tt.decision, tt.redirect, out.Decision, out.RedirectTo)
			}
		})
	}
}

func TestLogoutEndsSession(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "manager@example.com", role.BaseManager)
	cookie := app.login(t, "manager@example.com")

	rec := app.do(t, http.MethodPost, "/api/logout", cookie, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	rec = app.do(t, http.MethodGet, "/api/user", cookie, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", rec.Code)
	}
}

// loginToken logs in and returns the session cookie and the access token.
func (a *testApp) loginToken(t *testing.T, email string) (*http.Cookie, string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/login", nil, map[string]string{"email": email, "password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.AccessToken == "" {
		t.Fatalf("login: no access token (%v)", err)
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c, body.AccessToken
		}
	}

	t.Fatalf("login: no %s cookie set", session.CookieName)
	return nil, ""
}

func (a *testApp) getWithBearer(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestLogoutEverywhereRevokesAccessTokens(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "manager@example.com", role.BaseManager)

	cookie, token := app.loginToken(t, "manager@example.com")
	_, otherToken := app.loginToken(t, "manager@example.com")

	if rec := app.getWithBearer(t, "/api/user", token); rec.Code != http.StatusOK {
		t.Fatalf("bearer before logout: expected 200, got %d", rec.Code)
	}

	rec := app.do(t, http.MethodPost, "/api/logout/all", cookie, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout all: expected 204, got %d", rec.Code)
	}

	for _, tok := range []string{token, otherToken} {
		if rec := app.getWithBearer(t, "/api/user", tok); rec.Code != http.StatusUnauthorized {
			t.Fatalf("bearer after logout all: expected 401, got %d", rec.Code)
		}
	}
}

func TestLoginIgnoresEmailCase(t *testing.T) {
	app := setupApp(t)
	app.createUser(t, "manager@example.com", role.BaseManager)

	cookie := app.login(t, "Manager@Example.com")
	if got := app.me(t, cookie); got.EffectiveRole != string(role.Manager) {
		t.Fatalf("effectiveRole = %q, want manager", got.EffectiveRole)
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := app.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
