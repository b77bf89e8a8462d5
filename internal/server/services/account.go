package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/logging"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/repomanager"
)

// Verifier starts the email handshake for a new account.
type Verifier interface {
	Start(ctx context.Context, email, baseURL string) error
}

// AccountService registers accounts.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	verifier    Verifier
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, verifier Verifier, logger logging.Logger) *AccountService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AccountService{db: db, repomanager: m, hasher: hasher, verifier: verifier, logger: logger}
}

// Signup stores a new unverified account and starts verification. A
// duplicate email yields common.ErrConflict. Failing to start verification
// does not undo the signup; the user can ask for a resend.
func (s *AccountService) Signup(ctx context.Context, email, password, baseURL string) (*models.Account, error) {
	log := logging.From(ctx, s.logger)
	repo := s.repomanager.Accounts(s.db)

	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		log.Error(ctx, "signup lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	account, err := repo.Insert(ctx, email, hash)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrConflict
		}
		log.Error(ctx, "account insert failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.verifier.Start(ctx, account.Email, baseURL); err != nil {
		log.Error(ctx, "starting verification failed", "error", err)
	}

	log.Info(ctx, "account created", "email", logging.RedactEmail(account.Email))
	return account, nil
}
