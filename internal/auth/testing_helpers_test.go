package auth

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/member-portal/internal/config"
	"github.com/yourusername/member-portal/internal/flash"
	"github.com/yourusername/member-portal/internal/sessionstore"
	"github.com/yourusername/member-portal/internal/users"
)

const testJWTSecret = "test-jwt-secret"

func newTestConfig() *config.Config {
	return &config.Config{
		AppEnv:           "development",
		JWTSecret:        testJWTSecret,
		TokenTTLHours:    24,
		BcryptCost:       bcrypt.MinCost,
		LoginMaxAttempts: 5,
	}
}

func newTestStore(t *testing.T) *users.Store {
	t.Helper()
	store, err := users.Open(context.Background(), users.DriverSQLite, ":memory:", 0)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return store
}

func newTestManager(t *testing.T, store UserStore) *Manager {
	t.Helper()
	m, err := NewManager(newTestConfig(), store, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func newTestRouter(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := sessionstore.New(sessionstore.NewMemoryBackend(), []byte("0123456789abcdef0123456789abcdef"))
	router.Use(sessions.Sessions("mp_session", store))
	router.Use(m.Gate())

	router.POST(RegisterPath, m.Register)
	router.POST(LoginPath, m.Login)
	router.GET("/logout", m.Logout)
	router.GET("/flash", func(c *gin.Context) {
		c.JSON(http.StatusOK, flash.Pop(c))
	})
	router.GET("/csrf", func(c *gin.Context) {
		c.String(http.StatusOK, CSRFToken(c))
	})
	router.GET("/me", m.RequireLogin(), func(c *gin.Context) {
		id, _ := CurrentUser(c)
		c.JSON(http.StatusOK, id)
	})
	router.POST("/protected-form", m.VerifyCSRF(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

// testClient は Cookie を引き継ぎながらリクエストを送る簡易ブラウザです。
type testClient struct {
	t       *testing.T
	router  http.Handler
	cookies map[string]*http.Cookie
}

func newTestClient(t *testing.T, router http.Handler) *testClient {
	return &testClient{t: t, router: router, cookies: map[string]*http.Cookie{}}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	tc.t.Helper()
	for _, c := range tc.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(tc.cookies, c.Name)
			continue
		}
		tc.cookies[c.Name] = c
	}
	return rec
}

func (tc *testClient) get(path string) *httptest.ResponseRecorder {
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (tc *testClient) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return tc.do(req)
}

func (tc *testClient) flashes() flash.Messages {
	tc.t.Helper()
	rec := tc.get("/flash")
	var msgs flash.Messages
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		tc.t.Fatalf("failed to decode flashes: %v (%s)", err, rec.Body.String())
	}
	return msgs
}

func setCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func countUsers(t *testing.T, store *users.Store) int {
	t.Helper()
	conn, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer conn.Release()
	list, err := conn.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	return len(list)
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, code int, location string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("unexpected status: %d, want %d (body=%s)", rec.Code, code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("unexpected Location: %q, want %q", got, location)
	}
}

func assertFlash(t *testing.T, got []string, want string) {
	t.Helper()
	if len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected flash: %#v, want %q", got, want)
	}
}
