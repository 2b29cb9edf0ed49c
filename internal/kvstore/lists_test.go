package kvstore

import (
	"fmt"
	"testing"
)

type entry struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

func makeEntries(n int) []entry {
	out := make([]entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entry{ID: fmt.Sprintf("item-%04d", i), Note: "rep"})
	}
	return out
}

func TestSaveLoadListRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	in := makeEntries(7)
	if err := SaveList(s, "pendingResponses", in); err != nil {
		t.Fatalf("SaveList: %v", err)
	}
	out := LoadList[entry](s, "pendingResponses")
	if len(out) != 7 {
		t.Fatalf("loaded %d items, want 7", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("item %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestQuotaFallbackRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	// Small enough that 500 items cannot fit in one write but one batch can.
	s.MaxValueBytes = 4096

	in := makeEntries(500)
	if err := SaveList(s, "satisfaction-responses", in); err != nil {
		t.Fatalf("SaveList with quota: %v", err)
	}
	if _, ok := s.Get("satisfaction-responses"); ok {
		t.Fatalf("plain key should be removed after chunked write")
	}
	if _, ok := s.Get("satisfaction-responses_batch_0"); !ok {
		t.Fatalf("expected first batch key to exist")
	}

	out := LoadList[entry](s, "satisfaction-responses")
	if len(out) != 500 {
		t.Fatalf("loaded %d items, want 500", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("item %d = %+v, want %+v (order must be preserved)", i, out[i], in[i])
		}
	}
}

func TestShrinkingListDropsStaleBatches(t *testing.T) {
	s := NewMemoryStore()
	s.MaxValueBytes = 4096

	if err := SaveList(s, "k", makeEntries(500)); err != nil {
		t.Fatalf("initial SaveList: %v", err)
	}
	if err := SaveList(s, "k", makeEntries(60)); err != nil {
		t.Fatalf("second SaveList: %v", err)
	}
	out := LoadList[entry](s, "k")
	if len(out) != 60 {
		t.Fatalf("loaded %d items, want 60", len(out))
	}
	if _, ok := s.Get("k_batch_5"); ok {
		t.Fatalf("stale batch key from larger write should be removed")
	}
}

func TestLoadListCorruptDataIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Set("broken", []byte("{not json")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if out := LoadList[entry](s, "broken"); len(out) != 0 {
		t.Fatalf("corrupt blob should load as empty, got %d items", len(out))
	}
}

func TestLoadListMissingKeyIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	if out := LoadList[entry](s, "nothing"); out != nil {
		t.Fatalf("missing key should load as nil, got %v", out)
	}
}

func TestSaveListFailsWhenBatchExceedsQuota(t *testing.T) {
	s := NewMemoryStore()
	s.MaxValueBytes = 8 // even one batch cannot fit

	err := SaveList(s, "k", makeEntries(10))
	if err == nil {
		t.Fatalf("expected error when chunked write also exceeds quota")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set("formOpen", []byte(`{"open":true}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, ok := s.Get("formOpen")
	if !ok || string(b) != `{"open":true}` {
		t.Fatalf("Get = %q, %v", b, ok)
	}

	// A fresh store over the same directory sees the data (reload survival).
	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore reopen: %v", err)
	}
	if _, ok := s2.Get("formOpen"); !ok {
		t.Fatalf("value should survive store reopen")
	}

	s2.Remove("formOpen")
	if _, ok := s2.Get("formOpen"); ok {
		t.Fatalf("value should be gone after Remove")
	}
}

func TestFileStoreQuota(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s.MaxValueBytes = 4
	if err := s.Set("k", []byte("too large")); err != ErrQuotaExceeded {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestFileStoreClear(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Set(fmt.Sprintf("k%d", i), []byte("v")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	s.Clear()
	for i := 0; i < 3; i++ {
		if _, ok := s.Get(fmt.Sprintf("k%d", i)); ok {
			t.Fatalf("k%d should be cleared", i)
		}
	}
}
