//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gpis-formation/satisform/internal/kvstore"
	"github.com/gpis-formation/satisform/internal/syncq"
)

func baseURL() string {
	if v := os.Getenv("SATISFORM_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func surveyBody(session string) map[string]any {
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

// Exercises the full kiosk journey against a live collector: register a
// session, submit directly, then queue items against a dead endpoint and
// drain them to the real server, verifying at-most-once delivery.
func TestOfflineSyncJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()
	ctx := context.Background()

	sessionID := fmt.Sprintf("integration-%d", time.Now().UnixNano())
	remote := syncq.NewHTTPRemote(base, client)
	if !remote.Ping(ctx) {
		t.Fatalf("collector at %s is not reachable", base)
	}
	if err := remote.RegisterConnection(ctx, "", map[string]any{"sessionId": sessionID, "userAgent": "integration"}); err != nil {
		t.Fatalf("register connection: %v", err)
	}

	var active struct {
		Count int `json:"count"`
	}
	doGet(t, client, base+"/api/connections/active", &active)
	if active.Count < 1 {
		t.Fatalf("expected at least one active connection, got %d", active.Count)
	}

	before := responseCount(t, client, base)

	// Submit online through the submitter.
	store := kvstore.NewMemoryStore()
	queue := syncq.NewQueue(store)
	submitter := syncq.NewSubmitter(queue, remote)
	outcome, err := submitter.SubmitResponse(ctx, surveyBody("SECTION 1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome != syncq.Delivered {
		t.Fatalf("online submit = %s, want delivered", outcome)
	}

	// Point the submitter at a dead endpoint so everything queues.
	dead := syncq.NewHTTPRemote("http://127.0.0.1:1", &http.Client{Timeout: 500 * time.Millisecond})
	offline := syncq.NewSubmitter(queue, dead)
	offline.Online = func() bool { return false }
	for i := 0; i < 3; i++ {
		if outcome, err := offline.SubmitResponse(ctx, surveyBody("SECTION 2")); err != nil || outcome != syncq.Queued {
			t.Fatalf("offline submit %d: outcome=%s err=%v", i, outcome, err)
		}
	}
	if queue.Len() != 3 {
		t.Fatalf("queue = %d, want 3", queue.Len())
	}

	// Reconnect: drain against the live server, twice to prove idempotency.
	syncer := syncq.NewSynchronizer(queue, remote)
	synced, remaining := syncer.Drain(ctx)
	if synced != 3 || remaining != 0 {
		t.Fatalf("drain: synced=%d remaining=%d", synced, remaining)
	}
	syncer.Drain(ctx)

	after := responseCount(t, client, base)
	if after != before+4 {
		t.Fatalf("responses went %d -> %d, want +4 (1 online + 3 drained, no dups)", before, after)
	}

	// Admin login flow, when the collector was started with credentials.
	if email := os.Getenv("SATISFORM_TEST_ADMIN_EMAIL"); email != "" {
		var login struct {
			Token string `json:"token"`
		}
		doPost(t, client, base+"/api/auth/login", "", map[string]string{
			"email":    email,
			"password": os.Getenv("SATISFORM_TEST_ADMIN_PASSWORD"),
		}, &login)
		if login.Token == "" {
			t.Fatalf("login did not return token")
		}
	}

	if err := remote.UnregisterConnection(ctx, sessionID); err != nil {
		t.Fatalf("unregister: %v", err)
	}
}

func responseCount(t *testing.T, client *http.Client, base string) int {
	t.Helper()
	var out struct {
		Count int `json:"count"`
	}
	doGet(t, client, base+"/api/responses", &out)
	return out.Count
}

func doGet(t *testing.T, client *http.Client, url string, out any) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("http get %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response from %s: %v", url, err)
	}
}

func doPost(t *testing.T, client *http.Client, url, token string, body any, out any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}
