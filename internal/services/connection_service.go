package services

import (
	"strings"
	"time"

	"github.com/gpis-formation/satisform/internal/models"
)

// DefaultIdleAfter is the canonical idle threshold: a session with no
// heartbeat for this long is filtered out of the active view.
const DefaultIdleAfter = 2 * time.Minute

// ConnectionStore abstracts persistence for session connection records.
type ConnectionStore interface {
	UpsertConnection(c *models.ConnectionRecord)
	GetConnection(sessionID string) *models.ConnectionRecord
	RemoveConnection(sessionID string) bool
	ClearConnections() int
	ListConnections() []*models.ConnectionRecord
}

// ConnectionService tracks respondent sessions: registration, heartbeat
// refresh, explicit unregister, and the idle-filtered active view.
type ConnectionService struct {
	store ConnectionStore
	now   func() time.Time

	// IdleAfter overrides DefaultIdleAfter when > 0.
	IdleAfter time.Duration
}

func NewConnectionService(store ConnectionStore) *ConnectionService {
	return &ConnectionService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register records a session or, when it already exists, refreshes its
// lastActivity. Re-registering doubles as the heartbeat.
func (s *ConnectionService) Register(sessionID, userAgent string, timestamp time.Time) (*models.ConnectionRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, NewInvalidError("sessionId required")
	}
	now := s.now()
	if existing := s.store.GetConnection(sessionID); existing != nil {
		existing.LastActivity = now
		s.store.UpsertConnection(existing)
		return existing, nil
	}
	if timestamp.IsZero() {
		timestamp = now
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "Unknown"
	}
	rec := &models.ConnectionRecord{
		SessionID:    sessionID,
		Timestamp:    timestamp,
		LastActivity: now,
		UserAgent:    userAgent,
	}
	s.store.UpsertConnection(rec)
	return rec, nil
}

// Unregister removes a session record. Reports whether it existed.
func (s *ConnectionService) Unregister(sessionID string) bool {
	if strings.TrimSpace(sessionID) == "" {
		return false
	}
	return s.store.RemoveConnection(sessionID)
}

// UnregisterAll clears every session record and returns how many there were.
func (s *ConnectionService) UnregisterAll() int {
	return s.store.ClearConnections()
}

// Active returns sessions whose last heartbeat is within the idle
// threshold, oldest registration first.
func (s *ConnectionService) Active() []*models.ConnectionRecord {
	cutoff := s.now().Add(-s.idleAfter())
	all := s.store.ListConnections()
	out := make([]*models.ConnectionRecord, 0, len(all))
	for _, c := range all {
		if c.LastActivity.After(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

// ActiveCount reports the number of non-idle sessions.
func (s *ConnectionService) ActiveCount() int {
	return len(s.Active())
}

func (s *ConnectionService) idleAfter() time.Duration {
	if s.IdleAfter > 0 {
		return s.IdleAfter
	}
	return DefaultIdleAfter
}
