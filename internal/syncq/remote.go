package syncq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Remote is the collection server as seen by the sync engine.
type Remote interface {
	// SubmitResponse delivers a survey response. The idempotency key is the
	// pending item's ID; the server drops replays of a key it has seen.
	SubmitResponse(ctx context.Context, idempotencyKey string, payload map[string]any) error
	// RegisterConnection delivers a connection registration event.
	RegisterConnection(ctx context.Context, idempotencyKey string, payload map[string]any) error
	// UnregisterConnection removes the session server-side. Best effort.
	UnregisterConnection(ctx context.Context, sessionID string) error
	// Heartbeat refreshes the session's lastActivity.
	Heartbeat(ctx context.Context, sessionID string) error
	// Ping reports whether the server is reachable.
	Ping(ctx context.Context) bool
}

// HTTPRemote talks to the collection API over HTTP. The client may carry a
// caching/replay transport; the engine does not care.
type HTTPRemote struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPRemote(baseURL string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPRemote{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (r *HTTPRemote) postJSON(ctx context.Context, path, idempotencyKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

func (r *HTTPRemote) SubmitResponse(ctx context.Context, idempotencyKey string, payload map[string]any) error {
	return r.postJSON(ctx, "/api/responses", idempotencyKey, payload)
}

func (r *HTTPRemote) RegisterConnection(ctx context.Context, idempotencyKey string, payload map[string]any) error {
	body := map[string]any{"action": "register"}
	for k, v := range payload {
		body[k] = v
	}
	return r.postJSON(ctx, "/api/connections", idempotencyKey, body)
}

func (r *HTTPRemote) UnregisterConnection(ctx context.Context, sessionID string) error {
	return r.postJSON(ctx, "/api/connections", "", map[string]any{
		"action":    "unregister",
		"sessionId": sessionID,
	})
}

func (r *HTTPRemote) Heartbeat(ctx context.Context, sessionID string) error {
	return r.postJSON(ctx, "/api/connections", "", map[string]any{
		"action":    "register",
		"sessionId": sessionID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *HTTPRemote) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

var _ Remote = (*HTTPRemote)(nil)
