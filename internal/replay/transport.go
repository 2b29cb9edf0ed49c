// Package replay is the transport-level counterpart of the submission
// queue: it caches fetched assets for offline use and spools failed API
// POSTs durably, independent of whatever component issued the request. The
// two layers deliberately coexist; the shared Idempotency-Key header keeps
// delivery at-most-once when both end up replaying the same submission.
package replay

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gpis-formation/satisform/internal/kvstore"
)

const (
	// SpoolKey is the durable-store key for the failed-request list.
	SpoolKey = "failedRequests"

	cacheKeyPrefix = "assetCache_"

	// maxCachedBody caps a cached asset body.
	maxCachedBody = 2 << 20
)

// FailedRequest is one spooled POST awaiting background replay.
type FailedRequest struct {
	ID             string    `json:"id"`
	Method         string    `json:"method"`
	URL            string    `json:"url"`
	Body           []byte    `json:"body"`
	ContentType    string    `json:"contentType,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	QueuedAt       time.Time `json:"queuedAt"`
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
}

// Transport wraps a base RoundTripper with offline behavior:
//
//   - GET/HEAD: network first; successful responses are cached; on failure
//     the cached copy is served, then the offline fallback body.
//   - API POST: network first; on failure the request is spooled durably
//     and a synthetic 202 "queued" response is returned instead of an error.
//
// Everything else passes through untouched.
type Transport struct {
	Base  http.RoundTripper
	store kvstore.Store

	// OfflineBody is served for page requests with no cached copy.
	OfflineBody []byte
	// APIPathPrefix marks requests eligible for spooling. Defaults to /api/.
	APIPathPrefix string

	mu    sync.Mutex
	spool []FailedRequest

	newID func() string
	now   func() time.Time
}

func NewTransport(base http.RoundTripper, store kvstore.Store) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		Base:          base,
		store:         store,
		APIPathPrefix: "/api/",
		OfflineBody:   []byte(`{"error":"offline"}`),
		newID:         uuid.NewString,
		now:           func() time.Time { return time.Now().UTC() },
	}
	t.spool = kvstore.LoadList[FailedRequest](store, SpoolKey)
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case req.Method == http.MethodGet || req.Method == http.MethodHead:
		return t.fetchWithCache(req)
	case req.Method == http.MethodPost && strings.HasPrefix(req.URL.Path, t.APIPathPrefix):
		return t.postWithSpool(req)
	default:
		return t.Base.RoundTrip(req)
	}
}

func (t *Transport) fetchWithCache(req *http.Request) (*http.Response, error) {
	resp, err := t.Base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		t.cacheResponse(req, resp)
		return resp, nil
	}
	if err == nil {
		return resp, nil
	}

	if cached := t.cachedResponse(req); cached != nil {
		return cached, nil
	}

	// No cached copy: serve the designated offline fallback.
	return syntheticResponse(req, http.StatusServiceUnavailable, "application/json", t.OfflineBody), nil
}

func (t *Transport) postWithSpool(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = b
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	resp, err := t.Base.RoundTrip(req)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	if err == nil {
		resp.Body.Close()
	}

	fr := FailedRequest{
		ID:             t.newID(),
		Method:         req.Method,
		URL:            req.URL.String(),
		Body:           body,
		ContentType:    req.Header.Get("Content-Type"),
		IdempotencyKey: req.Header.Get("Idempotency-Key"),
		QueuedAt:       t.now(),
	}
	t.mu.Lock()
	t.spool = append(t.spool, fr)
	t.persistLocked()
	t.mu.Unlock()

	ack, _ := json.Marshal(map[string]any{
		"success": true,
		"queued":  true,
		"message": "accepted, will sync",
		"id":      fr.ID,
	})
	return syntheticResponse(req, http.StatusAccepted, "application/json", ack), nil
}

func (t *Transport) cacheResponse(req *http.Request, resp *http.Response) {
	if req.Method != http.MethodGet || resp.Body == nil {
		return
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedBody+1))
	resp.Body.Close()
	if err != nil {
		log.Printf("replay: read body for cache %s: %v", req.URL, err)
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > maxCachedBody {
		return
	}
	blob, err := json.Marshal(cachedResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	})
	if err != nil {
		return
	}
	if err := t.store.Set(cacheKey(req), blob); err != nil {
		log.Printf("replay: cache %s: %v", req.URL, err)
	}
}

func (t *Transport) cachedResponse(req *http.Request) *http.Response {
	blob, ok := t.store.Get(cacheKey(req))
	if !ok {
		return nil
	}
	var c cachedResponse
	if err := json.Unmarshal(blob, &c); err != nil {
		log.Printf("replay: decode cached %s: %v", req.URL, err)
		return nil
	}
	resp := syntheticResponse(req, c.Status, c.ContentType, c.Body)
	resp.Header.Set("X-Served-From", "offline-cache")
	return resp
}

// Spooled returns a copy of the failed-request list in queue order.
func (t *Transport) Spooled() []FailedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FailedRequest, len(t.spool))
	copy(out, t.spool)
	return out
}

// SpoolLen reports the number of spooled requests.
func (t *Transport) SpoolLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spool)
}

func (t *Transport) removeSpooled(ids map[string]struct{}) {
	if len(ids) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.spool[:0]
	for _, fr := range t.spool {
		if _, drop := ids[fr.ID]; !drop {
			kept = append(kept, fr)
		}
	}
	t.spool = kept
	t.persistLocked()
}

func (t *Transport) persistLocked() {
	if err := kvstore.SaveList(t.store, SpoolKey, t.spool); err != nil {
		log.Printf("replay: persist spool: %v", err)
	}
}

func cacheKey(req *http.Request) string {
	return cacheKeyPrefix + req.URL.String()
}

func syntheticResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

var _ http.RoundTripper = (*Transport)(nil)
