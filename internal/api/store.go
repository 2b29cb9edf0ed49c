package api

import (
	"strings"
	"sync"

	"github.com/gpis-formation/satisform/internal/models"
)

type memoryStore struct {
	mu            sync.RWMutex
	responses     []*models.Response
	responseByKey map[string]*models.Response
	connections   map[string]*models.ConnectionRecord
	connOrder     []string
	adminsByEmail map[string]*models.Admin
	formOpen      bool
}

// NewMemoryStore returns the in-memory Store used when no SQLite path is
// configured and in tests.
func NewMemoryStore() Store { return newMemoryStore() }

func newMemoryStore() *memoryStore {
	return &memoryStore{
		responseByKey: map[string]*models.Response{},
		connections:   map[string]*models.ConnectionRecord{},
		adminsByEmail: map[string]*models.Admin{},
		formOpen:      true,
	}
}

func (s *memoryStore) AddResponse(r *models.Response, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	if idempotencyKey != "" {
		s.responseByKey[idempotencyKey] = r
	}
	return nil
}

func (s *memoryStore) FindResponseByKey(idempotencyKey string) *models.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.responseByKey[idempotencyKey]
}

func (s *memoryStore) ListResponses() []*models.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Response(nil), s.responses...)
}

func (s *memoryStore) ClearResponses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.responses)
	s.responses = nil
	s.responseByKey = map[string]*models.Response{}
	return n
}

func (s *memoryStore) UpsertConnection(c *models.ConnectionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[c.SessionID]; !ok {
		s.connOrder = append(s.connOrder, c.SessionID)
	}
	s.connections[c.SessionID] = c
}

func (s *memoryStore) GetConnection(sessionID string) *models.ConnectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connections[sessionID]
}

func (s *memoryStore) RemoveConnection(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[sessionID]; !ok {
		return false
	}
	delete(s.connections, sessionID)
	for i, id := range s.connOrder {
		if id == sessionID {
			s.connOrder = append(s.connOrder[:i], s.connOrder[i+1:]...)
			break
		}
	}
	return true
}

func (s *memoryStore) ClearConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.connections)
	s.connections = map[string]*models.ConnectionRecord{}
	s.connOrder = nil
	return n
}

func (s *memoryStore) ListConnections() []*models.ConnectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ConnectionRecord, 0, len(s.connOrder))
	for _, id := range s.connOrder {
		out = append(out, s.connections[id])
	}
	return out
}

func (s *memoryStore) MarkSubmitted(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.connections[sessionID]; c != nil {
		c.HasSubmitted = true
	}
}

func (s *memoryStore) FormOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.formOpen
}

func (s *memoryStore) SetFormOpen(open bool) {
	s.mu.Lock()
	s.formOpen = open
	s.mu.Unlock()
}

func (s *memoryStore) FindAdminByEmail(email string) *models.Admin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminsByEmail[strings.ToLower(email)]
}

func (s *memoryStore) AddAdmin(a *models.Admin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminsByEmail[strings.ToLower(a.Email)] = a
}
