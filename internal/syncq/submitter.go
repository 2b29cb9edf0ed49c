package syncq

import (
	"context"
	"log"
	"time"

	"github.com/gpis-formation/satisform/internal/models"
)

// Outcome is the result of a submit call. Every accepted submission ends in
// exactly one of these; transient network failures never reach the caller.
type Outcome string

const (
	// Delivered means the remote endpoint acknowledged the item.
	Delivered Outcome = "delivered"
	// Queued means the item is stored locally and will sync later.
	Queued Outcome = "queued"
)

// Submitter performs best-effort immediate delivery with the pending queue
// as the safety net.
type Submitter struct {
	queue  *Queue
	remote Remote

	// Online reports the current connectivity signal. When nil the
	// submitter always attempts the immediate send.
	Online func() bool
	// Timeout bounds one immediate send attempt.
	Timeout time.Duration

	now func() time.Time
}

func NewSubmitter(queue *Queue, remote Remote) *Submitter {
	return &Submitter{
		queue:   queue,
		remote:  remote,
		Timeout: 15 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SubmitResponse validates and delivers a survey response. Missing required
// fields are rejected up front; any delivery failure (offline, non-2xx,
// transport error, timeout) converts into a Queued outcome.
func (s *Submitter) SubmitResponse(ctx context.Context, payload map[string]any) (Outcome, error) {
	if err := models.ValidateResponsePayload(payload); err != nil {
		return "", err
	}
	return s.submit(ctx, models.KindResponse, payload), nil
}

// SubmitConnection delivers a connection registration event. Registration
// carries no user input, so there is nothing to validate.
func (s *Submitter) SubmitConnection(ctx context.Context, payload map[string]any) Outcome {
	return s.submit(ctx, models.KindConnection, payload)
}

func (s *Submitter) submit(ctx context.Context, kind models.PendingKind, payload map[string]any) Outcome {
	// The item ID is fixed before the first attempt so the immediate send
	// and any later replays present the same idempotency key.
	item := models.PendingItem{
		ID:        s.queue.newID(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: s.now(),
	}

	if s.Online == nil || s.Online() {
		cctx, cancel := context.WithTimeout(ctx, s.timeout())
		err := s.send(cctx, item)
		cancel()
		if err == nil {
			return Delivered
		}
		log.Printf("syncq: immediate send failed, queuing %s item: %v", kind, err)
	}

	s.queue.EnqueueItem(item)
	return Queued
}

func (s *Submitter) send(ctx context.Context, item models.PendingItem) error {
	switch item.Kind {
	case models.KindConnection:
		return s.remote.RegisterConnection(ctx, item.ID, item.Payload)
	default:
		return s.remote.SubmitResponse(ctx, item.ID, item.Payload)
	}
}

func (s *Submitter) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 15 * time.Second
}
