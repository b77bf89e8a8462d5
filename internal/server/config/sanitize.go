package config

import (
	"log/slog"
	"net/url"
	"strings"
)

const masked = "****"

// LogValue renders the config for logs with every secret masked.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTPAddr),
		slog.String("public_url", c.PublicURL),
		slog.String("database_dsn", maskDSN(c.DatabaseDSN)),
		slog.String("log_level", c.LogLevel),
		slog.String("secret_key", maskSecret(c.SecretKey)),
		slog.String("issuer", c.Issuer),
		slog.Duration("access_ttl", c.AccessTokenValidityDuration),
		slog.Duration("refresh_ttl", c.RefreshTokenValidityDuration),
		slog.Duration("verification_ttl", c.VerificationTokenValidityDuration),
		slog.Int("bcrypt_cost", c.BcryptCost),
		slog.Group("mail",
			slog.String("host", c.Mail.Host),
			slog.Int("port", c.Mail.Port),
			slog.String("username", c.Mail.Username),
			slog.String("password", maskSecret(c.Mail.Password)),
			slog.String("from", c.Mail.From),
			slog.Int("workers", c.Mail.Workers),
			slog.Int("queue_size", c.Mail.QueueSize),
		),
		slog.Group("s3",
			slog.String("root_user", c.S3RootUser),
			slog.String("root_password", maskSecret(c.S3RootPassword)),
			slog.String("bucket", c.S3Bucket),
			slog.String("region", c.S3Region),
			slog.String("base_endpoint", c.S3BaseEndpoint),
		),
	)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return masked
}

// maskDSN hides the password of URL-style DSNs. Keyword/value DSNs that
// mention a password are masked entirely.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	if strings.Contains(strings.ToLower(dsn), "password") {
		return masked
	}
	return dsn
}
