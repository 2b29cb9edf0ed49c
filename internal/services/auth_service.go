package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gpis-formation/satisform/internal/models"
)

// AuthStore abstracts admin account persistence.
type AuthStore interface {
	FindAdminByEmail(email string) (*models.Admin, error)
	AddAdmin(a *models.Admin) error
}

// TokenSigner issues a bearer token for an authenticated admin.
type TokenSigner func(uid, email string, ttl time.Duration) (string, error)

// AuthService guards the dashboard's administrative routes. The form itself
// needs no account; only clear-all, form open/close and unregister_all do.
type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

// AuthResult is the login outcome handed back to the HTTP layer.
type AuthResult struct {
	Token   string
	AdminID string
}

func NewAuthService(store AuthStore, signer TokenSigner) *AuthService {
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     func() string { return "a" + strings.ReplaceAll(uuid.NewString(), "-", "")[:7] },
		signToken: signer,
		tokenTTL:  24 * time.Hour,
	}
}

// Bootstrap creates the admin account when it does not exist yet. Called at
// startup with credentials from the environment; a second run is a no-op.
func (s *AuthService) Bootstrap(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return NewInvalidError("email/password required")
	}
	existing, err := s.store.FindAdminByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.AddAdmin(&models.Admin{
		ID:        s.idGen(),
		Email:     email,
		PassHash:  hash,
		CreatedAt: s.now(),
	})
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	a, err := s.store.FindAdminByEmail(email)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(a.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(a.ID, a.Email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, AdminID: a.ID}, nil
}

// TokenTTL reports how long issued tokens stay valid.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
