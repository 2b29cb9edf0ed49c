package kvstore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists each key as a JSON file inside a directory, so queued
// items survive process restarts the way localStorage survives reloads.
// Writes go through a temp file plus rename to stay atomic.
type FileStore struct {
	dir string
	mu  sync.Mutex

	// MaxValueBytes caps a single value when > 0. Oversized writes fail
	// with ErrQuotaExceeded so callers can fall back to chunked lists.
	MaxValueBytes int
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// keyPath maps a storage key to a file name. Keys are well-known constants
// plus derived batch suffixes, so a conservative character filter suffices.
func (s *FileStore) keyPath(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

func (s *FileStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("file store: read %s: %v", key, err)
		}
		return nil, false
	}
	return b, true
}

func (s *FileStore) Set(key string, value []byte) error {
	if s.MaxValueBytes > 0 && len(value) > s.MaxValueBytes {
		return ErrQuotaExceeded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.keyPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("file store: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("file store: rename %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.keyPath(key)); err != nil && !os.IsNotExist(err) {
		log.Printf("file store: remove %s: %v", key, err)
	}
}

func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("file store: clear: %v", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			log.Printf("file store: clear %s: %v", e.Name(), err)
		}
	}
}

var _ Store = (*FileStore)(nil)
var _ Store = (*MemoryStore)(nil)
