package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/logging"
	sc "github.com/dmitrijs2005/contactsapi/internal/server/config"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// AvatarService hands out presigned S3 URLs for profile pictures. Uploads go
// straight from the client to the bucket; the service only records the key.
type AvatarService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger

	once      sync.Once
	presigner *s3.PresignClient
	initErr   error
}

func NewAvatarService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger) *AvatarService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AvatarService{db: db, repomanager: m, config: cfg, logger: logger}
}

// Enabled reports whether a bucket is configured.
func (s *AvatarService) Enabled() bool {
	return s != nil && s.config.S3Bucket != ""
}

func avatarPrefix(accountID string) string {
	return fmt.Sprintf("avatars/%s/", accountID)
}

func (s *AvatarService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	s.once.Do(func() {
		cfg, err := loadDefaultAWSConfig(ctx,
			config.WithRegion(s.config.S3Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				s.config.S3RootUser,
				s.config.S3RootPassword,
				"",
			)))
		if err != nil {
			s.initErr = err
			return
		}

		client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
			if s.config.S3BaseEndpoint != "" {
				o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
				o.UsePathStyle = true
			}
		})
		s.presigner = newS3PresignClient(client)
	})
	return s.presigner, s.initErr
}

func (s *AvatarService) ttl() time.Duration {
	if s.config.AvatarLinkValidityDuration > 0 {
		return s.config.AvatarLinkValidityDuration
	}
	return 15 * time.Minute
}

// PresignUpload returns a fresh object key under the account's prefix and a
// URL the client can PUT the image to.
func (s *AvatarService) PresignUpload(ctx context.Context, account *models.Account) (string, string, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := avatarPrefix(account.ID) + uuid.NewString()

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.ttl()))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// Confirm records key as the account's avatar. Keys outside the account's
// prefix are rejected with common.ErrInvalidAvatarKey.
func (s *AvatarService) Confirm(ctx context.Context, account *models.Account, key string) error {
	prefix := avatarPrefix(account.ID)
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) || strings.Contains(key, "..") {
		return common.ErrInvalidAvatarKey
	}

	_, err := updateAccount(ctx, s.repomanager.Accounts(s.db), account.Email, func(a *models.Account) error {
		a.AvatarKey = &key
		return nil
	})
	if err != nil {
		logging.From(ctx, s.logger).Error(ctx, "avatar update failed", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// AvatarURL returns a presigned GET URL for the account's avatar, or "" when
// none is set.
func (s *AvatarService) AvatarURL(ctx context.Context, account *models.Account) (string, error) {
	if account.AvatarKey == nil || *account.AvatarKey == "" {
		return "", nil
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    account.AvatarKey,
	}, s3.WithPresignExpires(s.ttl()))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
