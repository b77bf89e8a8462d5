// Package config handles configuration for the server, layering defaults,
// an optional JSON file, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds runtime settings for the auth service.
//
// An empty DatabaseDSN selects the in-memory credential store. An empty
// Mail.Host logs outgoing mail instead of sending it. An empty S3Bucket
// disables avatar uploads.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR"`
	PublicURL       string        `env:"PUBLIC_URL"`
	DatabaseDSN     string        `env:"DATABASE_DSN"`
	LogLevel        string        `env:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	SecretKey                         string        `env:"SECRET_KEY"`
	Issuer                            string        `env:"TOKEN_ISSUER"`
	AccessTokenValidityDuration       time.Duration `env:"ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration      time.Duration `env:"REFRESH_TOKEN_TTL"`
	VerificationTokenValidityDuration time.Duration `env:"VERIFICATION_TOKEN_TTL"`
	BcryptCost                        int           `env:"BCRYPT_COST"`

	Mail MailConfig

	S3RootUser                 string        `env:"S3_ROOT_USER"`
	S3RootPassword             string        `env:"S3_ROOT_PASSWORD"`
	S3Bucket                   string        `env:"S3_BUCKET"`
	S3Region                   string        `env:"S3_REGION"`
	S3BaseEndpoint             string        `env:"S3_BASE_ENDPOINT"`
	AvatarLinkValidityDuration time.Duration `env:"AVATAR_LINK_TTL"`
}

// MailConfig describes the SMTP relay and the background delivery pool.
type MailConfig struct {
	Host        string        `env:"MAIL_HOST"`
	Port        int           `env:"MAIL_PORT"`
	Username    string        `env:"MAIL_USERNAME"`
	Password    string        `env:"MAIL_PASSWORD"`
	From        string        `env:"MAIL_FROM"`
	FromName    string        `env:"MAIL_FROM_NAME"`
	Workers     int           `env:"MAIL_WORKERS"`
	QueueSize   int           `env:"MAIL_QUEUE_SIZE"`
	SendTimeout time.Duration `env:"MAIL_SEND_TIMEOUT"`
}

// MinSecretKeyLength is the shortest accepted HMAC secret.
const MinSecretKeyLength = 16

// LoadDefaults populates Config with development defaults. No secret key is
// provided; one must be configured explicitly.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8000"
	c.LogLevel = "info"
	c.ShutdownTimeout = 10 * time.Second
	c.Issuer = "contactsapi"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.VerificationTokenValidityDuration = 24 * time.Hour
	c.BcryptCost = bcrypt.DefaultCost
	c.Mail = MailConfig{
		Port:        587,
		FromName:    "Contacts API",
		Workers:     2,
		QueueSize:   64,
		SendTimeout: 30 * time.Second,
	}
	c.S3Region = "us-east-1"
	c.AvatarLinkValidityDuration = 15 * time.Minute
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SecretKey) < MinSecretKeyLength {
		errs = append(errs, fmt.Errorf("secret key must be at least %d characters", MinSecretKeyLength))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("access token validity must be positive"))
	}
	if c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("refresh token validity must be positive"))
	}
	if c.VerificationTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("verification token validity must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Mail.Host != "" && c.Mail.From == "" {
		errs = append(errs, errors.New("mail from address is required when a mail host is set"))
	}

	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then the environment, then short flags, and validates it.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
