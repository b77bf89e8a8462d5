package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/logging"
	"github.com/dmitrijs2005/contactsapi/internal/server/auth"
	"github.com/dmitrijs2005/contactsapi/internal/server/config"
	"github.com/dmitrijs2005/contactsapi/internal/server/metrics"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/notify"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/repomanager"
)

// VerifyPath is appended to the public base URL to build verification links.
const VerifyPath = "api/auth/verify/"

type VerificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       TokenCodec
	queue       MessageQueue
	logger      logging.Logger
	metrics     *metrics.Metrics

	verificationTokenValidityDuration time.Duration
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, codec TokenCodec, queue MessageQueue,
	cfg *config.Config, logger logging.Logger, mx *metrics.Metrics) *VerificationService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &VerificationService{
		db:                                db,
		repomanager:                       m,
		codec:                             codec,
		queue:                             queue,
		logger:                            logger,
		metrics:                           mx,
		verificationTokenValidityDuration: cfg.VerificationTokenValidityDuration,
	}
}

// VerificationURL joins baseURL and the verification path for token.
func VerificationURL(baseURL, token string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + VerifyPath + url.PathEscape(token)
}

// Start mints a verification token for email and queues the link for
// delivery. It returns once the message is queued; delivery problems are
// logged by the dispatcher and never reach the caller.
func (s *VerificationService) Start(ctx context.Context, email, baseURL string) error {
	token, err := s.codec.Encode(email, auth.ScopeVerify, s.verificationTokenValidityDuration)
	if err != nil {
		return common.ErrorInternal
	}

	s.queue.Enqueue(ctx, notify.Message{
		To:       email,
		Subject:  notify.SubjectVerifyEmail,
		Template: notify.TemplateVerifyEmail,
		Data:     notify.VerifyEmailData{URL: VerificationURL(baseURL, token)},
	})
	return nil
}

// Redeem marks the token's account verified. It fails with
// common.ErrInvalidToken for undecodable tokens or unknown accounts and with
// common.ErrAlreadyVerified when there is nothing to do.
func (s *VerificationService) Redeem(ctx context.Context, token string) error {
	log := logging.From(ctx, s.logger)

	email, err := s.codec.Decode(token, auth.ScopeVerify)
	if err != nil {
		s.metrics.Verification("invalid_token")
		return common.ErrInvalidToken
	}

	_, err = updateAccount(ctx, s.repomanager.Accounts(s.db), email, func(a *models.Account) error {
		if a.Verified {
			return common.ErrAlreadyVerified
		}
		a.Verified = true
		return nil
	})

	switch {
	case err == nil:
		s.metrics.Verification(metrics.OutcomeSuccess)
		log.Info(ctx, "email verified", "email", logging.RedactEmail(email))
		return nil
	case errors.Is(err, common.ErrorNotFound):
		s.metrics.Verification("invalid_token")
		return common.ErrInvalidToken
	case errors.Is(err, common.ErrAlreadyVerified):
		s.metrics.Verification("already_verified")
		return common.ErrAlreadyVerified
	default:
		log.Error(ctx, "verification failed", "error", err)
		s.metrics.Verification(metrics.OutcomeFailure)
		return common.ErrorInternal
	}
}

// Resend starts a new verification for an unverified account. Unknown and
// already verified emails are silently ignored so the response does not
// reveal which addresses are registered.
func (s *VerificationService) Resend(ctx context.Context, email, baseURL string) error {
	account, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		logging.From(ctx, s.logger).Error(ctx, "resend lookup failed", "error", err)
		return common.ErrorInternal
	}
	if account.Verified {
		return nil
	}
	return s.Start(ctx, account.Email, baseURL)
}
