// Package accounts is the credential store: lookup and conditional update of
// accounts by email.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/contactsapi/internal/server/models"
)

// Repository persists accounts.
//
// FindByEmail returns common.ErrorNotFound for an unknown email.
// Insert returns common.ErrConflict when the email is taken.
// Persist writes the mutable fields (Verified, RefreshToken, AvatarKey) only if
// the stored version still equals account.Version, and bumps the version on
// success; otherwise it returns common.ErrVersionConflict and leaves the
// account untouched.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Insert(ctx context.Context, email, passwordHash string) (*models.Account, error)
	Persist(ctx context.Context, account *models.Account) error
	Ping(ctx context.Context) error
}
