package identity_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/identity"
	"github.com/showcaselabs/showcase-go/internal/store"
	_ "github.com/showcaselabs/showcase-go/internal/store/memory"
)

func newUserStore(t *testing.T) store.UserStore {
	t.Helper()

	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := driver.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	users, ok := driver.(store.UserStore)
	if !ok {
		t.Fatal("memory driver does not implement UserStore")
	}
	return users
}

func newAuthHandler(t *testing.T) (*identity.Handler, *identity.TokenIssuer, store.UserStore) {
	t.Helper()
	users := newUserStore(t)
	auth := identity.NewUserAuth(4)
	tokens := identity.NewTokenIssuer("test-secret", time.Hour)
	return identity.NewHandler(users, auth, tokens), tokens, users
}

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return w
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	w := postJSON(h.HandleRegister, "/api/v1/auth/register", `{"username":"alice","password":"pw"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp identity.TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if !resp.User.IsAdmin {
		t.Error("first registered user should be admin")
	}

	// The second user is a regular account.
	w = postJSON(h.HandleRegister, "/api/v1/auth/register", `{"username":"bob","password":"pw"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.IsAdmin {
		t.Error("second registered user must not be admin")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	postJSON(h.HandleRegister, "/api/v1/auth/register", `{"username":"alice","password":"pw"}`)
	w := postJSON(h.HandleRegister, "/api/v1/auth/register", `{"username":"alice","password":"other"}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestRegister_Validation(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	for _, body := range []string{`{`, `{"username":"alice"}`, `{"password":"pw"}`} {
		w := postJSON(h.HandleRegister, "/api/v1/auth/register", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestLogin(t *testing.T) {
	h, _, _ := newAuthHandler(t)
	postJSON(h.HandleRegister, "/api/v1/auth/register", `{"username":"alice","password":"pw"}`)

	w := postJSON(h.HandleLogin, "/api/v1/auth/login", `{"username":"alice","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp identity.TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Username != "alice" {
		t.Errorf("unexpected user: %+v", resp.User)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	h, _, _ := newAuthHandler(t)
	postJSON(h.HandleRegister, "/api/v1/auth/register", `{"username":"alice","password":"pw"}`)

	// Wrong password and unknown user look identical to the caller.
	for _, body := range []string{
		`{"username":"alice","password":"wrong"}`,
		`{"username":"nobody","password":"pw"}`,
	} {
		w := postJSON(h.HandleLogin, "/api/v1/auth/login", body)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("body %q: expected 401, got %d", body, w.Code)
		}
		var envelope api.ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if envelope.Error.ReasonCode != api.ReasonInvalidCredentials {
			t.Errorf("expected invalid_credentials, got %q", envelope.Error.ReasonCode)
		}
	}
}

func TestMe_WithMiddleware(t *testing.T) {
	h, tokens, _ := newAuthHandler(t)

	w := postJSON(h.HandleRegister, "/api/v1/auth/register", `{"username":"alice","password":"pw"}`)
	var reg identity.TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&reg); err != nil {
		t.Fatalf("decode: %v", err)
	}

	protected := identity.RequireAuth(tokens)(http.HandlerFunc(h.HandleMe))

	// Valid token.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Token)
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var me identity.UserView
	if err := json.NewDecoder(w.Body).Decode(&me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.Username != "alice" || !me.IsAdmin {
		t.Errorf("unexpected me response: %+v", me)
	}

	// Missing and invalid tokens.
	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	tokens := identity.NewTokenIssuer("test-secret", time.Hour)

	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	protected := identity.RequireAuth(tokens)(identity.RequireAdmin(http.HandlerFunc(ok)))

	adminToken, _, _ := tokens.Issue("u1", "admin", true)
	userToken, _, _ := tokens.Issue("u2", "user", false)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"admin allowed", adminToken, http.StatusNoContent},
		{"non-admin forbidden", userToken, http.StatusForbidden},
		{"anonymous unauthorized", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			protected.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	users := newUserStore(t)
	auth := identity.NewUserAuth(4)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	// Blank username disables bootstrapping.
	if err := identity.EnsureAdmin(ctx, users, auth, "", "", logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := users.CountUsers(ctx); n != 0 {
		t.Errorf("expected no users, got %d", n)
	}

	// Username without password is a configuration error.
	if err := identity.EnsureAdmin(ctx, users, auth, "admin", "", logger); err == nil {
		t.Error("expected error for missing password")
	}

	if err := identity.EnsureAdmin(ctx, users, auth, "admin", "pw", logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	admin, err := users.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if !admin.IsAdmin {
		t.Error("bootstrap account must be admin")
	}

	// Idempotent on repeat.
	if err := identity.EnsureAdmin(ctx, users, auth, "admin", "pw", logger); err != nil {
		t.Fatalf("unexpected error on repeat: %v", err)
	}
	if n, _ := users.CountUsers(ctx); n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}
