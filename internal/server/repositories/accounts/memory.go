package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in a map. Callers always receive copies.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]*models.Account), now: time.Now}
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) Insert(_ context.Context, email, passwordHash string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[email]; ok {
		return nil, common.ErrConflict
	}

	a := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Version:      1,
		CreatedAt:    r.now().UTC(),
	}
	r.accounts[email] = a
	return a.Clone(), nil
}

func (r *MemoryRepository) Persist(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[a.Email]
	if !ok || stored.Version != a.Version {
		return common.ErrVersionConflict
	}

	next := stored.Clone()
	next.Verified = a.Verified
	next.RefreshToken = normalize(a.RefreshToken)
	next.AvatarKey = normalize(a.AvatarKey)
	next.Version++
	r.accounts[a.Email] = next

	a.Version = next.Version
	return nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func normalize(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
