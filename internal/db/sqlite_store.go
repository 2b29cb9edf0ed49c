package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gpis-formation/satisform/internal/api"
	"github.com/gpis-formation/satisform/internal/models"
)

// SQLiteStore persists responses, connections and admin accounts. The
// collector is a single process, so no cross-process locking is needed; WAL
// keeps dashboard reads from blocking kiosk writes.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func NewStore(db *sql.DB) (api.Store, error) {
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		log.Printf("sqlite store: %s: %v", prefix, err)
	}
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func decodeResponse(payload string) *models.Response {
	var r models.Response
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		log.Printf("sqlite store: decode response: %v", err)
		return nil
	}
	return &r
}

func (s *SQLiteStore) AddResponse(r *models.Response, idempotencyKey string) error {
	if r == nil {
		return errors.New("nil response")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO responses (id, idempotency_key, session, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, toNullString(idempotencyKey), r.Session, string(payload), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindResponseByKey(idempotencyKey string) *models.Response {
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil
	}
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM responses WHERE idempotency_key = ?`, idempotencyKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logErr("find response by key", err)
		return nil
	}
	return decodeResponse(payload)
}

func (s *SQLiteStore) ListResponses() []*models.Response {
	rows, err := s.db.Query(`SELECT payload FROM responses ORDER BY rowid`)
	if err != nil {
		s.logErr("list responses", err)
		return nil
	}
	defer rows.Close()
	var out []*models.Response
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			s.logErr("scan response", err)
			continue
		}
		if r := decodeResponse(payload); r != nil {
			out = append(out, r)
		}
	}
	s.logErr("list responses rows", rows.Err())
	return out
}

func (s *SQLiteStore) ClearResponses() int {
	res, err := s.db.Exec(`DELETE FROM responses`)
	if err != nil {
		s.logErr("clear responses", err)
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *SQLiteStore) UpsertConnection(c *models.ConnectionRecord) {
	if c == nil {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO connections (session_id, registered_at, last_activity, user_agent, has_submitted)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   last_activity = excluded.last_activity,
		   user_agent = excluded.user_agent,
		   has_submitted = excluded.has_submitted`,
		c.SessionID, c.Timestamp, c.LastActivity, toNullString(c.UserAgent), boolToInt64(c.HasSubmitted),
	)
	s.logErr("upsert connection", err)
}

func (s *SQLiteStore) scanConnection(row interface{ Scan(...any) error }) *models.ConnectionRecord {
	var c models.ConnectionRecord
	var ua sql.NullString
	var submitted int64
	if err := row.Scan(&c.SessionID, &c.Timestamp, &c.LastActivity, &ua, &submitted); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logErr("scan connection", err)
		}
		return nil
	}
	c.UserAgent = ua.String
	c.HasSubmitted = int64ToBool(submitted)
	return &c
}

func (s *SQLiteStore) GetConnection(sessionID string) *models.ConnectionRecord {
	row := s.db.QueryRow(
		`SELECT session_id, registered_at, last_activity, user_agent, has_submitted
		 FROM connections WHERE session_id = ?`, sessionID)
	return s.scanConnection(row)
}

func (s *SQLiteStore) RemoveConnection(sessionID string) bool {
	res, err := s.db.Exec(`DELETE FROM connections WHERE session_id = ?`, sessionID)
	if err != nil {
		s.logErr("remove connection", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

func (s *SQLiteStore) ClearConnections() int {
	res, err := s.db.Exec(`DELETE FROM connections`)
	if err != nil {
		s.logErr("clear connections", err)
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

func (s *SQLiteStore) ListConnections() []*models.ConnectionRecord {
	rows, err := s.db.Query(
		`SELECT session_id, registered_at, last_activity, user_agent, has_submitted
		 FROM connections ORDER BY rowid`)
	if err != nil {
		s.logErr("list connections", err)
		return nil
	}
	defer rows.Close()
	var out []*models.ConnectionRecord
	for rows.Next() {
		if c := s.scanConnection(rows); c != nil {
			out = append(out, c)
		}
	}
	s.logErr("list connections rows", rows.Err())
	return out
}

func (s *SQLiteStore) MarkSubmitted(sessionID string) {
	_, err := s.db.Exec(`UPDATE connections SET has_submitted = 1 WHERE session_id = ?`, sessionID)
	s.logErr("mark submitted", err)
}

func (s *SQLiteStore) FormOpen() bool {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = 'form_open'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	if err != nil {
		s.logErr("form open", err)
		return true
	}
	return value == "1"
}

func (s *SQLiteStore) SetFormOpen(open bool) {
	value := "0"
	if open {
		value = "1"
	}
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES ('form_open', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, value)
	s.logErr("set form open", err)
}

func (s *SQLiteStore) FindAdminByEmail(email string) *models.Admin {
	var a models.Admin
	err := s.db.QueryRow(
		`SELECT id, email, pass_hash, created_at FROM admins WHERE email = ? COLLATE NOCASE`,
		email).Scan(&a.ID, &a.Email, &a.PassHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logErr("find admin", err)
		return nil
	}
	return &a
}

func (s *SQLiteStore) AddAdmin(a *models.Admin) {
	if a == nil {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO admins (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Email, a.PassHash, a.CreatedAt)
	s.logErr("add admin", err)
}

var _ api.Store = (*SQLiteStore)(nil)
