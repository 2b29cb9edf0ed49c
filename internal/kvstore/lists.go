package kvstore

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

const (
	listVersion = "1.0"
	// DefaultBatchSize is how many items go into one derived key when a
	// single write exceeds the store quota.
	DefaultBatchSize = 50
)

type listMeta struct {
	Version    string    `json:"version"`
	Total      int       `json:"totalItems"`
	Batched    bool      `json:"batched,omitempty"`
	BatchCount int       `json:"batchCount,omitempty"`
	UpdatedAt  time.Time `json:"lastUpdated"`
}

func metaKey(key string) string { return key + "_meta" }

func batchKey(key string, i int) string { return fmt.Sprintf("%s_batch_%d", key, i) }

// SaveList persists a JSON list under key. When the whole list exceeds the
// store quota, it is split into DefaultBatchSize batches under derived keys
// and the meta record describes how to reassemble them. An error is returned
// only when even the chunked write fails; the caller then holds the data in
// memory for the rest of the session.
func SaveList[T any](s Store, key string, items []T) error {
	blob, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("save list %s: %w", key, err)
	}

	oldMeta := readMeta(s, key)

	err = s.Set(key, blob)
	if err == nil {
		writeMeta(s, key, listMeta{Version: listVersion, Total: len(items), UpdatedAt: time.Now().UTC()})
		removeBatches(s, key, 0, oldMeta)
		return nil
	}
	if err != ErrQuotaExceeded {
		return fmt.Errorf("save list %s: %w", key, err)
	}

	// Quota fallback: fixed-size batches under derived keys.
	count := (len(items) + DefaultBatchSize - 1) / DefaultBatchSize
	for i := 0; i < count; i++ {
		end := (i + 1) * DefaultBatchSize
		if end > len(items) {
			end = len(items)
		}
		bb, err := json.Marshal(items[i*DefaultBatchSize : end])
		if err != nil {
			return fmt.Errorf("save list %s batch %d: %w", key, i, err)
		}
		if err := s.Set(batchKey(key, i), bb); err != nil {
			return fmt.Errorf("save list %s batch %d: %w", key, i, err)
		}
	}
	writeMeta(s, key, listMeta{
		Version:    listVersion,
		Total:      len(items),
		Batched:    true,
		BatchCount: count,
		UpdatedAt:  time.Now().UTC(),
	})
	s.Remove(key)
	removeBatches(s, key, count, oldMeta)
	return nil
}

// LoadList reads a list previously written by SaveList, reassembling batches
// in order when the meta record says the data was chunked. Malformed stored
// JSON is treated as no data, never an error.
func LoadList[T any](s Store, key string) []T {
	if meta := readMeta(s, key); meta != nil && meta.Batched {
		out := make([]T, 0, meta.Total)
		for i := 0; i < meta.BatchCount; i++ {
			bb, ok := s.Get(batchKey(key, i))
			if !ok {
				continue
			}
			var batch []T
			if err := json.Unmarshal(bb, &batch); err != nil {
				log.Printf("kvstore: decode %s batch %d: %v", key, i, err)
				continue
			}
			out = append(out, batch...)
		}
		return out
	}

	blob, ok := s.Get(key)
	if !ok {
		return nil
	}
	var out []T
	if err := json.Unmarshal(blob, &out); err != nil {
		log.Printf("kvstore: decode %s: %v", key, err)
		return nil
	}
	return out
}

func readMeta(s Store, key string) *listMeta {
	b, ok := s.Get(metaKey(key))
	if !ok {
		return nil
	}
	var m listMeta
	if err := json.Unmarshal(b, &m); err != nil {
		log.Printf("kvstore: decode %s meta: %v", key, err)
		return nil
	}
	return &m
}

func writeMeta(s Store, key string, m listMeta) {
	b, err := json.Marshal(m)
	if err != nil {
		log.Printf("kvstore: encode %s meta: %v", key, err)
		return
	}
	if err := s.Set(metaKey(key), b); err != nil {
		log.Printf("kvstore: write %s meta: %v", key, err)
	}
}

// removeBatches deletes stale batch keys left behind by a previous, larger
// chunked write.
func removeBatches(s Store, key string, from int, old *listMeta) {
	if old == nil || !old.Batched {
		return
	}
	for i := from; i < old.BatchCount; i++ {
		s.Remove(batchKey(key, i))
	}
}
