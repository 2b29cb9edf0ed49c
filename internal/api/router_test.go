package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gpis-formation/satisform/internal/middleware"
)

func newTestServer(t *testing.T) (*httptest.Server, *Router) {
	t.Helper()
	rt := NewRouter(NewMemoryStore())
	mux := http.NewServeMux()
	rt.Register(mux)
	srv := httptest.NewServer(middleware.LocaleMiddleware(middleware.WithAuth(mux)))
	t.Cleanup(srv.Close)
	return srv, rt
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func surveyPayload(session string) map[string]any {
	return map[string]any{
		"session":                 session,
		"lieuGlobal":              "Très satisfait",
		"lieuAdapte":              "Oui",
		"lieuRealite":             "Oui",
		"scenarios":               "Plutôt satisfait",
		"difficulte":              "Facile",
		"evolutionDifficulte":     "Bien équilibré",
		"rythme":                  "Correct",
		"duree":                   "Correct",
		"attentes":                "Oui",
		"pedagogie":               "Très bien",
		"qualiteReponses":         "Bien",
		"disponibiliteFormateurs": "Très disponible",
		"satisfactionFormation":   "Oui",
	}
}

func TestSubmitResponseEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/responses", surveyPayload("SECTION 1"),
		map[string]string{"Idempotency-Key": "item-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if body["success"] != true || body["id"] == "" {
		t.Fatalf("body = %v", body)
	}

	// Same Idempotency-Key replays without storing a second row.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/responses", surveyPayload("SECTION 1"),
		map[string]string{"Idempotency-Key": "item-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", resp.StatusCode)
	}
	if body["replayed"] != true {
		t.Fatalf("replay body = %v", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/responses", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if body["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", body["count"])
	}
}

func TestSubmitRejectsIncompletePayload(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := surveyPayload("SECTION 1")
	delete(payload, "rythme")
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/responses", payload, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitLocalizedAck(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/responses?lang=fr", surveyPayload("SECTION 2"), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "enregistrée") {
		t.Fatalf("expected french ack, got %q", msg)
	}
}

func TestClosedFormRejectsSubmissions(t *testing.T) {
	srv, rt := newTestServer(t)
	rt.store.SetFormOpen(false)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/responses", surveyPayload("SECTION 1"), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestConnectionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/connections",
		map[string]any{"action": "register", "sessionId": "sess-1", "userAgent": "kiosk/1.0"}, nil)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("register: status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/connections/active", nil, nil)
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("active: status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/active-users", nil, nil)
	if resp.StatusCode != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("active-users: status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/connections",
		map[string]any{"action": "unregister", "sessionId": "sess-1"}, nil)
	if resp.StatusCode != http.StatusOK || body["removed"] != true {
		t.Fatalf("unregister: status=%d body=%v", resp.StatusCode, body)
	}
}

func TestAdminGuardedRoutes(t *testing.T) {
	srv, rt := newTestServer(t)
	if err := rt.Auth().Bootstrap("admin@example.com", "secret"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// No token: everything admin-gated is refused.
	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/responses", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("delete without token = %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/form/status", map[string]any{"open": false}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("form toggle without token = %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/connections", map[string]any{"action": "unregister_all"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unregister_all without token = %d, want 401", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login",
		map[string]any{"email": "admin@example.com", "password": "secret"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login = %d", resp.StatusCode)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login body = %v", body)
	}
	auth := map[string]string{"Authorization": "Bearer " + token}

	doJSON(t, http.MethodPost, srv.URL+"/api/responses", surveyPayload("SECTION 1"), nil)
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/responses", nil, auth)
	if resp.StatusCode != http.StatusOK || body["deleted"] != float64(1) {
		t.Fatalf("delete with token: status=%d body=%v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/form/status", map[string]any{"open": false}, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("form toggle with token = %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/form/status", nil, nil)
	if resp.StatusCode != http.StatusOK || body["open"] != false {
		t.Fatalf("form status: status=%d body=%v", resp.StatusCode, body)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, rt := newTestServer(t)
	if err := rt.Auth().Bootstrap("admin@example.com", "secret"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login",
		map[string]any{"email": "admin@example.com", "password": "wrong"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/responses", surveyPayload("SECTION 1"), nil)

	payload := surveyPayload("SECTION 2")
	payload["satisfactionFormation"] = "Non"
	doJSON(t, http.MethodPost, srv.URL+"/api/responses", payload, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/stats", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["totalResponses"] != float64(2) || body["satisfactionRate"] != float64(50) {
		t.Fatalf("stats = %v", body)
	}
}

func TestDashboardWebsocketReceivesBroadcasts(t *testing.T) {
	srv, rt := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/dashboard"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The hub registers the client just after the handshake; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for rt.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/responses", surveyPayload("SECTION 1"), nil)

	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "stats" {
		t.Fatalf("first event = %q, want stats", ev.Type)
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if ev.Type != "connections" {
		t.Fatalf("second event = %q, want connections", ev.Type)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Head(srv.URL + "/health")
	if err != nil {
		t.Fatalf("HEAD /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
