package syncq

import (
	"context"
	"log"
	"time"

	"github.com/gpis-formation/satisform/internal/models"
)

// Synchronizer drains the pending queue. Drains are serialized by a mutex:
// reconnect events and periodic ticks can both fire in quick succession, and
// two overlapping read-modify-write passes over the same list would race.
type Synchronizer struct {
	queue  *Queue
	remote Remote

	// ItemTimeout bounds one remote call so a hung request cannot stall the
	// whole pass. On timeout the item stays queued.
	ItemTimeout time.Duration
	// Notify, when set, receives the number of items synced by a pass that
	// delivered at least one item.
	Notify func(synced int)

	drainMu chan struct{}
}

func NewSynchronizer(queue *Queue, remote Remote) *Synchronizer {
	s := &Synchronizer{
		queue:       queue,
		remote:      remote,
		ItemTimeout: 15 * time.Second,
		drainMu:     make(chan struct{}, 1),
	}
	s.drainMu <- struct{}{}
	return s
}

// Drain replays pending items in FIFO order. Delivered items are removed by
// ID; failed items are skipped and stay for the next pass, so one stuck item
// never blocks the rest. The shrunken list is persisted before returning.
// Returns the number of items delivered and the number left pending.
func (s *Synchronizer) Drain(ctx context.Context) (synced, remaining int) {
	select {
	case <-s.drainMu:
	case <-ctx.Done():
		return 0, s.queue.Len()
	}
	defer func() { s.drainMu <- struct{}{} }()

	items := s.queue.Items()
	if len(items) == 0 {
		return 0, 0
	}

	done := map[string]struct{}{}
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		cctx, cancel := context.WithTimeout(ctx, s.itemTimeout())
		err := s.send(cctx, item)
		cancel()
		if err != nil {
			// Skip within this pass; the item is retried on the next one.
			log.Printf("syncq: drain %s item %s: %v", item.Kind, item.ID, err)
			continue
		}
		done[item.ID] = struct{}{}
	}

	s.queue.RemoveIDs(done)
	synced = len(done)
	if synced > 0 && s.Notify != nil {
		s.Notify(synced)
	}
	return synced, s.queue.Len()
}

func (s *Synchronizer) send(ctx context.Context, item models.PendingItem) error {
	switch item.Kind {
	case models.KindConnection:
		return s.remote.RegisterConnection(ctx, item.ID, item.Payload)
	case models.KindResponse:
		return s.remote.SubmitResponse(ctx, item.ID, item.Payload)
	default:
		// Unknown kinds are acked locally so they cannot clog the queue.
		log.Printf("syncq: dropping pending item %s with unknown kind %q", item.ID, item.Kind)
		return nil
	}
}

func (s *Synchronizer) itemTimeout() time.Duration {
	if s.ItemTimeout > 0 {
		return s.ItemTimeout
	}
	return 15 * time.Second
}
