// Package services contains the authentication business logic: sessions,
// email verification, registration and avatars. Services reach the
// credential store through a repomanager and never hold account state
// between calls.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/server/auth"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/notify"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/accounts"
)

// TokenCodec mints and verifies scoped tokens.
type TokenCodec interface {
	Encode(subject string, scope auth.Scope, ttl time.Duration) (string, error)
	Decode(token string, expected auth.Scope) (string, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// MessageQueue hands messages to background delivery.
type MessageQueue interface {
	Enqueue(ctx context.Context, msg notify.Message) bool
}

// maxUpdateAttempts bounds compare-and-set retries on one account.
const maxUpdateAttempts = 3

// errUnchanged lets a mutation skip the write.
var errUnchanged = errors.New("unchanged")

// updateAccount reads the account, applies mutate and persists it guarded by
// the read version. On a version conflict it re-reads and applies mutate
// again, so mutate must decide from the fresh state it is given.
func updateAccount(ctx context.Context, repo accounts.Repository, email string, mutate func(*models.Account) error) (*models.Account, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		a, err := repo.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}

		if err := mutate(a); err != nil {
			if errors.Is(err, errUnchanged) {
				return a, nil
			}
			return nil, err
		}

		err = repo.Persist(ctx, a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, common.ErrVersionConflict
}
