package api

import "github.com/gpis-formation/satisform/internal/models"

// Store is the persistence surface the HTTP layer needs. Two implementations
// exist: the in-memory store below and the SQLite store in internal/db.
type Store interface {
	AddResponse(r *models.Response, idempotencyKey string) error
	FindResponseByKey(idempotencyKey string) *models.Response
	ListResponses() []*models.Response
	ClearResponses() int

	UpsertConnection(c *models.ConnectionRecord)
	GetConnection(sessionID string) *models.ConnectionRecord
	RemoveConnection(sessionID string) bool
	ClearConnections() int
	ListConnections() []*models.ConnectionRecord
	MarkSubmitted(sessionID string)

	FormOpen() bool
	SetFormOpen(open bool)

	FindAdminByEmail(email string) *models.Admin
	AddAdmin(a *models.Admin)
}

var _ Store = (*memoryStore)(nil)
