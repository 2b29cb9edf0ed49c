package api

import (
	"github.com/gpis-formation/satisform/internal/models"
	"github.com/gpis-formation/satisform/internal/services"
)

type responseStoreAdapter struct {
	store Store
}

func newResponseStoreAdapter(store Store) services.ResponseStore {
	return &responseStoreAdapter{store: store}
}

func (a *responseStoreAdapter) AddResponse(r *models.Response, idempotencyKey string) error {
	if r == nil {
		return services.NewInvalidError("response required")
	}
	return a.store.AddResponse(r, idempotencyKey)
}

func (a *responseStoreAdapter) FindResponseByKey(idempotencyKey string) *models.Response {
	return a.store.FindResponseByKey(idempotencyKey)
}

func (a *responseStoreAdapter) MarkSubmitted(sessionID string) {
	a.store.MarkSubmitted(sessionID)
}

func (a *responseStoreAdapter) FormOpen() bool {
	return a.store.FormOpen()
}

var _ services.ResponseStore = (*responseStoreAdapter)(nil)

type statsStoreAdapter struct {
	store Store
}

func newStatsStoreAdapter(store Store) services.StatsStore {
	return &statsStoreAdapter{store: store}
}

func (a *statsStoreAdapter) ListResponses() []*models.Response {
	return a.store.ListResponses()
}

var _ services.StatsStore = (*statsStoreAdapter)(nil)
