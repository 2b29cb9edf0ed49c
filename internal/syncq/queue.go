// Package syncq implements the offline-first submission pipeline: a durable
// pending queue, an online/heartbeat monitor, and a synchronizer that drains
// the queue whenever conditions allow. One execution context owns one Queue;
// only this package mutates the pending list, readers get copies.
package syncq

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gpis-formation/satisform/internal/kvstore"
	"github.com/gpis-formation/satisform/internal/models"
)

// PendingKey is the durable-store key holding the pending item list.
const PendingKey = "pendingResponses"

// Queue holds items awaiting remote delivery. Every mutation is written
// through to the durable store before it returns, so a restart cannot lose
// unsynced items. When durable writes fail (quota exhausted and chunking
// also failed), the queue keeps items in memory for the session and logs a
// warning instead of failing the submission.
type Queue struct {
	mu    sync.Mutex
	store kvstore.Store
	items []models.PendingItem

	newID func() string
	now   func() time.Time
}

// NewQueue loads any persisted pending items from the store.
func NewQueue(store kvstore.Store) *Queue {
	q := &Queue{
		store: store,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	q.items = kvstore.LoadList[models.PendingItem](store, PendingKey)
	return q
}

// Enqueue appends a new pending item and persists the list.
func (q *Queue) Enqueue(kind models.PendingKind, payload map[string]any) models.PendingItem {
	item := models.PendingItem{
		ID:        q.newID(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: q.now(),
	}
	q.EnqueueItem(item)
	return item
}

// EnqueueItem appends a prepared item, keeping its pre-assigned ID so the
// immediate-send path and the queued path share one idempotency key.
func (q *Queue) EnqueueItem(item models.PendingItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	q.persistLocked()
}

// Items returns a copy of the pending list in enqueue order.
func (q *Queue) Items() []models.PendingItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.PendingItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports how many items are pending.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RemoveIDs drops the given item IDs and persists the shrunken list. Items
// are matched by their enqueue-time ID, never by position, so concurrent
// enqueues cannot shift what gets removed.
func (q *Queue) RemoveIDs(ids map[string]struct{}) {
	if len(ids) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	for _, it := range q.items {
		if _, drop := ids[it.ID]; !drop {
			kept = append(kept, it)
		}
	}
	q.items = kept
	q.persistLocked()
}

// Clear empties the queue and its persisted form.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.persistLocked()
}

func (q *Queue) persistLocked() {
	if err := kvstore.SaveList(q.store, PendingKey, q.items); err != nil {
		// Non-fatal: the list stays in memory for the rest of the session.
		log.Printf("syncq: persist pending list: %v", err)
	}
}
