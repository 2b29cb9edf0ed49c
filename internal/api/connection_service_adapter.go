package api

import (
	"github.com/gpis-formation/satisform/internal/models"
	"github.com/gpis-formation/satisform/internal/services"
)

type connectionStoreAdapter struct {
	store Store
}

func newConnectionStoreAdapter(store Store) services.ConnectionStore {
	return &connectionStoreAdapter{store: store}
}

func (a *connectionStoreAdapter) UpsertConnection(c *models.ConnectionRecord) {
	a.store.UpsertConnection(c)
}

func (a *connectionStoreAdapter) GetConnection(sessionID string) *models.ConnectionRecord {
	return a.store.GetConnection(sessionID)
}

func (a *connectionStoreAdapter) RemoveConnection(sessionID string) bool {
	return a.store.RemoveConnection(sessionID)
}

func (a *connectionStoreAdapter) ClearConnections() int {
	return a.store.ClearConnections()
}

func (a *connectionStoreAdapter) ListConnections() []*models.ConnectionRecord {
	return a.store.ListConnections()
}

var _ services.ConnectionStore = (*connectionStoreAdapter)(nil)
