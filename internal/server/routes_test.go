package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/showcaselabs/showcase-go/internal/api"
	"github.com/showcaselabs/showcase-go/internal/config"
	"github.com/showcaselabs/showcase-go/internal/identity"
)

// newTestServer wires a full server against in-memory stores and returns
// an httptest server over its router.
func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}

	srv, err := New(cfg, testLogger(), testDeps(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// registerUser creates an account and returns its bearer token. The first
// account registered on a fresh server is the admin.
func registerUser(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/register", "", identity.CredentialsRequest{
		Username: username,
		Password: password,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register returned %d, want 201", resp.StatusCode)
	}

	var tok identity.TokenResponse
	decodeInto(t, resp, &tok)
	return tok.Token
}

func TestRoutes_Healthz(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz returned %d, want 200", resp.StatusCode)
	}

	var health api.HealthResponse
	decodeInto(t, resp, &health)
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path returned %d, want 404", resp.StatusCode)
	}
}

func TestRoutes_AuthFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	token := registerUser(t, ts, "alice", "correct horse")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", identity.CredentialsRequest{
		Username: "alice",
		Password: "correct horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d, want 200", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me returned %d, want 200", resp.StatusCode)
	}
	var me identity.UserView
	decodeInto(t, resp, &me)
	if me.Username != "alice" || !me.IsAdmin {
		t.Errorf("me = %+v, want alice with admin", me)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/auth/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous me returned %d, want 401", resp.StatusCode)
	}
}

func TestRoutes_ProjectMutationsAreAdminOnly(t *testing.T) {
	ts := newTestServer(t, nil)

	admin := registerUser(t, ts, "admin", "admin pass")
	user := registerUser(t, ts, "bob", "bob pass")

	body := map[string]any{"title": "Demo"}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/projects/", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous create returned %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/projects/", user, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin create returned %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/projects/", admin, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create returned %d, want 201", resp.StatusCode)
	}

	// Reads stay public.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/projects/", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("anonymous list returned %d, want 200", resp.StatusCode)
	}
}

func TestRoutes_SignalingFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	link := "https://meet.example.com/room/1"
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/signaling/invite", "", map[string]any{
		"invite_link":     link,
		"expected_guests": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register invite returned %d, want 200", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/signaling/invite", "", nil)
	var invite struct {
		InviteLink *string `json:"invite_link"`
	}
	decodeInto(t, resp, &invite)
	if invite.InviteLink == nil || *invite.InviteLink != link {
		t.Errorf("invite_link = %v, want %q", invite.InviteLink, link)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/signaling/guest_join", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first join returned %d, want 200", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/signaling/guest_join", "", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("join past capacity returned %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/signaling/share_link", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("promote share link returned %d, want 200", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/signaling/clear", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear returned %d, want 200", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/signaling/share_link", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("promote after clear returned %d, want 400", resp.StatusCode)
	}
}

func TestRoutes_ChatFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/chat/", "", map[string]any{
		"message": "hi there",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat returned %d, want 200", resp.StatusCode)
	}

	var reply struct {
		SessionID string `json:"session_id"`
		Sender    string `json:"sender"`
		Message   string `json:"message"`
	}
	decodeInto(t, resp, &reply)
	if reply.Sender != "bot" || reply.Message != "hello from the bot" {
		t.Errorf("reply = %+v, want bot reply", reply)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/chat/history?session_id="+reply.SessionID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history returned %d, want 200", resp.StatusCode)
	}
	var history struct {
		SessionID string           `json:"session_id"`
		Messages  []map[string]any `json:"messages"`
	}
	decodeInto(t, resp, &history)
	if len(history.Messages) != 2 {
		t.Errorf("history has %d messages, want 2", len(history.Messages))
	}
}

func TestRoutes_AnalyticsStatsAreAdminOnly(t *testing.T) {
	ts := newTestServer(t, nil)

	admin := registerUser(t, ts, "admin", "admin pass")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/analytics/view", "", map[string]any{
		"path":    "/projects",
		"visitor": "v1",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("record view returned %d, want 202", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/analytics/stats", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous stats returned %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/analytics/stats", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin stats returned %d, want 200", resp.StatusCode)
	}
}

func TestRoutes_LoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.LoginPerMinute = 2
	ts := newTestServer(t, cfg)

	creds := identity.CredentialsRequest{Username: "nobody", Password: "wrong"}

	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", creds)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d returned %d, want 401", i+1, resp.StatusCode)
		}
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("attempt 3 returned %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}

	var env api.ErrorEnvelope
	decodeInto(t, resp, &env)
	if env.Error.ReasonCode != api.ReasonRateLimited {
		t.Errorf("reason = %q, want %q", env.Error.ReasonCode, api.ReasonRateLimited)
	}
}
