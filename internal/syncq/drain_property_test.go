package syncq

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/gpis-formation/satisform/internal/kvstore"
	"github.com/gpis-formation/satisform/internal/models"
)

// Delivery contract under arbitrary enqueue/drain interleavings: a reachable
// item is delivered exactly once and leaves the queue, an unreachable item
// is delivered zero times and stays pending.
func TestDrainDeliveryContract(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		remote := newFakeRemote()
		queue := NewQueue(kvstore.NewMemoryStore())
		syncer := NewSynchronizer(queue, remote)

		n := rapid.IntRange(0, 40).Draw(rt, "items")
		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			kind := models.KindResponse
			if rapid.Bool().Draw(rt, "isConnection") {
				kind = models.KindConnection
			}
			item := queue.Enqueue(kind, map[string]any{"sessionId": "s"})
			ids = append(ids, item.ID)
			if rapid.Bool().Draw(rt, "unreachable") {
				remote.failKeys[item.ID] = true
			}
		}

		passes := rapid.IntRange(1, 4).Draw(rt, "passes")
		for p := 0; p < passes; p++ {
			syncer.Drain(context.Background())
		}

		pending := map[string]bool{}
		for _, it := range queue.Items() {
			pending[it.ID] = true
		}
		for _, id := range ids {
			switch {
			case remote.failKeys[id]:
				if remote.byKey[id] != 0 {
					rt.Fatalf("failing item %s delivered %d times, want 0", id, remote.byKey[id])
				}
				if !pending[id] {
					rt.Fatalf("failing item %s fell out of the pending list", id)
				}
			default:
				if remote.byKey[id] != 1 {
					rt.Fatalf("item %s delivered %d times, want exactly 1", id, remote.byKey[id])
				}
				if pending[id] {
					rt.Fatalf("delivered item %s still pending", id)
				}
			}
		}
	})
}
