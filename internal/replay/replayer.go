package replay

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Replayer drains the failed-request spool: FIFO, remove on success, skip
// and continue on failure. It sends through the transport's base round
// tripper directly so a replay failure cannot re-spool its own request.
type Replayer struct {
	transport *Transport

	// ItemTimeout bounds one replayed request.
	ItemTimeout time.Duration
	// Notify, when set, receives the count of synced requests after a pass
	// that delivered at least one.
	Notify func(synced int)

	drainMu chan struct{}
}

func NewReplayer(t *Transport) *Replayer {
	r := &Replayer{
		transport:   t,
		ItemTimeout: 15 * time.Second,
		drainMu:     make(chan struct{}, 1),
	}
	r.drainMu <- struct{}{}
	return r
}

// Drain replays spooled requests. Like the queue synchronizer, passes are
// serialized so overlapping triggers cannot double-send.
func (r *Replayer) Drain(ctx context.Context) (synced, remaining int) {
	select {
	case <-r.drainMu:
	case <-ctx.Done():
		return 0, r.transport.SpoolLen()
	}
	defer func() { r.drainMu <- struct{}{} }()

	spooled := r.transport.Spooled()
	if len(spooled) == 0 {
		return 0, 0
	}

	done := map[string]struct{}{}
	for _, fr := range spooled {
		if ctx.Err() != nil {
			break
		}
		if err := r.replay(ctx, fr); err != nil {
			log.Printf("replay: resend %s %s: %v", fr.Method, fr.URL, err)
			continue
		}
		done[fr.ID] = struct{}{}
	}

	r.transport.removeSpooled(done)
	synced = len(done)
	if synced > 0 && r.Notify != nil {
		r.Notify(synced)
	}
	return synced, r.transport.SpoolLen()
}

func (r *Replayer) replay(ctx context.Context, fr FailedRequest) error {
	cctx, cancel := context.WithTimeout(ctx, r.itemTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, fr.Method, fr.URL, bytes.NewReader(fr.Body))
	if err != nil {
		return err
	}
	if fr.ContentType != "" {
		req.Header.Set("Content-Type", fr.ContentType)
	}
	if fr.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", fr.IdempotencyKey)
	}

	resp, err := r.transport.Base.RoundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &replayStatusError{status: resp.StatusCode}
	}
	return nil
}

func (r *Replayer) itemTimeout() time.Duration {
	if r.ItemTimeout > 0 {
		return r.ItemTimeout
	}
	return 15 * time.Second
}

type replayStatusError struct{ status int }

func (e *replayStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}
