package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/logging"
	"github.com/dmitrijs2005/contactsapi/internal/server/auth"
	"github.com/dmitrijs2005/contactsapi/internal/server/config"
	"github.com/dmitrijs2005/contactsapi/internal/server/metrics"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// errReplay marks a refresh token that is no longer the account's current one.
var errReplay = errors.New("refresh token replay")

// SessionService issues, rotates and revokes sessions. Each account holds at
// most one live refresh token; presenting any other refresh token for that
// account revokes the session.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       TokenCodec
	hasher      PasswordHasher
	logger      logging.Logger
	metrics     *metrics.Metrics

	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration

	// dummyHash is compared against when the email is unknown so both login
	// failures cost one bcrypt comparison.
	dummyHash string
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, codec TokenCodec, hasher PasswordHasher,
	cfg *config.Config, logger logging.Logger, mx *metrics.Metrics) (*SessionService, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("dummy hash seed: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	return &SessionService{
		db:                           db,
		repomanager:                  m,
		codec:                        codec,
		hasher:                       hasher,
		logger:                       logger,
		metrics:                      mx,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		dummyHash:                    dummy,
	}, nil
}

// Login checks credentials and starts a new session, replacing any previous
// refresh token of the account.
//
// Unknown email and wrong password both yield common.ErrInvalidCredentials.
// An unverified account yields common.ErrEmailNotVerified before the password
// is checked.
func (s *SessionService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	log := logging.From(ctx, s.logger)
	repo := s.repomanager.Accounts(s.db)

	account, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			s.metrics.Login("invalid_credentials")
			return nil, common.ErrInvalidCredentials
		}
		log.Error(ctx, "login lookup failed", "error", err)
		s.metrics.Login(metrics.OutcomeFailure)
		return nil, common.ErrorInternal
	}

	if !account.Verified {
		s.metrics.Login("not_verified")
		return nil, common.ErrEmailNotVerified
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.metrics.Login("invalid_credentials")
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.generateTokenPair(account.Email)
	if err != nil {
		log.Error(ctx, "token generation failed", "error", err)
		s.metrics.Login(metrics.OutcomeFailure)
		return nil, common.ErrorInternal
	}

	if _, err := updateAccount(ctx, repo, account.Email, func(a *models.Account) error {
		a.RefreshToken = &pair.RefreshToken
		return nil
	}); err != nil {
		log.Error(ctx, "storing refresh token failed", "error", err)
		s.metrics.Login(metrics.OutcomeFailure)
		return nil, common.ErrorInternal
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	log.Info(ctx, "login succeeded", "email", logging.RedactEmail(account.Email))
	return pair, nil
}

// Refresh rotates a session. The presented token must verify, carry the
// refresh scope and equal the stored refresh token. A verified token that is
// not the stored one is a replay: the session is revoked and the caller gets
// common.ErrorUnauthorized. A concurrent refresh that loses the race sees the
// rotated token on re-read and is handled the same way.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	log := logging.From(ctx, s.logger)
	repo := s.repomanager.Accounts(s.db)

	email, err := s.codec.Decode(presented, auth.ScopeRefresh)
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeFailure)
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.generateTokenPair(email)
	if err != nil {
		log.Error(ctx, "token generation failed", "error", err)
		s.metrics.Refresh(metrics.OutcomeFailure)
		return nil, common.ErrorInternal
	}

	_, err = updateAccount(ctx, repo, email, func(a *models.Account) error {
		if !a.HasRefreshToken(presented) {
			return errReplay
		}
		a.RefreshToken = &pair.RefreshToken
		return nil
	})

	switch {
	case err == nil:
		s.metrics.Refresh(metrics.OutcomeSuccess)
		return pair, nil
	case errors.Is(err, common.ErrorNotFound):
		s.metrics.Refresh(metrics.OutcomeFailure)
		return nil, common.ErrorUnauthorized
	case errors.Is(err, errReplay):
		s.metrics.Replay()
		s.metrics.Refresh(metrics.OutcomeFailure)
		log.Warn(ctx, "refresh token replay, revoking session", "email", logging.RedactEmail(email))
		if err := s.revoke(ctx, email); err != nil && !errors.Is(err, common.ErrorNotFound) {
			log.Error(ctx, "session revocation failed", "error", err)
		}
		return nil, common.ErrorUnauthorized
	default:
		log.Error(ctx, "refresh failed", "error", err)
		s.metrics.Refresh(metrics.OutcomeFailure)
		return nil, common.ErrorInternal
	}
}

// Logout clears the account's refresh token. Logging out an account without
// a session is a no-op.
func (s *SessionService) Logout(ctx context.Context, account *models.Account) error {
	if err := s.revoke(ctx, account.Email); err != nil && !errors.Is(err, common.ErrorNotFound) {
		logging.From(ctx, s.logger).Error(ctx, "logout failed", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// Authenticate resolves an access token to its account.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*models.Account, error) {
	email, err := s.codec.Decode(accessToken, auth.ScopeAccess)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	account, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		logging.From(ctx, s.logger).Error(ctx, "authenticate lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	return account, nil
}

func (s *SessionService) revoke(ctx context.Context, email string) error {
	_, err := updateAccount(ctx, s.repomanager.Accounts(s.db), email, func(a *models.Account) error {
		if a.RefreshToken == nil {
			return errUnchanged
		}
		a.RefreshToken = nil
		return nil
	})
	return err
}

func (s *SessionService) generateTokenPair(email string) (*TokenPair, error) {
	access, err := s.codec.Encode(email, auth.ScopeAccess, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Encode(email, auth.ScopeRefresh, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
