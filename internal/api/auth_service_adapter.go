package api

import (
	"github.com/gpis-formation/satisform/internal/models"
	"github.com/gpis-formation/satisform/internal/services"
)

type authStoreAdapter struct {
	store Store
}

func newAuthStoreAdapter(store Store) services.AuthStore {
	return &authStoreAdapter{store: store}
}

func (a *authStoreAdapter) FindAdminByEmail(email string) (*models.Admin, error) {
	return a.store.FindAdminByEmail(email), nil
}

func (a *authStoreAdapter) AddAdmin(admin *models.Admin) error {
	if admin == nil {
		return services.NewInvalidError("admin required")
	}
	a.store.AddAdmin(admin)
	return nil
}

var _ services.AuthStore = (*authStoreAdapter)(nil)
