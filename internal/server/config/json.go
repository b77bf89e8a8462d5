package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/contactsapi/internal/flagx"
	"github.com/dmitrijs2005/contactsapi/internal/timex"
)

// JsonConfig mirrors Config for JSON files, with timex.Duration so intervals
// may be written as "15m" or as integer nanoseconds. Keys absent from the
// file keep their current value.
type JsonConfig struct {
	HTTPAddr        string         `json:"http_addr"`
	PublicURL       string         `json:"public_url"`
	DatabaseDSN     string         `json:"database_dsn"`
	LogLevel        string         `json:"log_level"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`

	SecretKey                         string         `json:"secret_key"`
	Issuer                            string         `json:"issuer"`
	AccessTokenValidityDuration       timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration      timex.Duration `json:"refresh_token_validity_duration"`
	VerificationTokenValidityDuration timex.Duration `json:"verification_token_validity_duration"`
	BcryptCost                        int            `json:"bcrypt_cost"`

	Mail JsonMailConfig `json:"mail"`

	S3RootUser                 string         `json:"s3_root_user"`
	S3RootPassword             string         `json:"s3_root_password"`
	S3Bucket                   string         `json:"s3_bucket"`
	S3Region                   string         `json:"s3_region"`
	S3BaseEndpoint             string         `json:"s3_base_endpoint"`
	AvatarLinkValidityDuration timex.Duration `json:"avatar_link_validity_duration"`
}

type JsonMailConfig struct {
	Host        string         `json:"host"`
	Port        int            `json:"port"`
	Username    string         `json:"username"`
	Password    string         `json:"password"`
	From        string         `json:"from"`
	FromName    string         `json:"from_name"`
	Workers     int            `json:"workers"`
	QueueSize   int            `json:"queue_size"`
	SendTimeout timex.Duration `json:"send_timeout"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Without
// the flag it does nothing.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fromJson(config, c)
	return nil
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:                          c.HTTPAddr,
		PublicURL:                         c.PublicURL,
		DatabaseDSN:                       c.DatabaseDSN,
		LogLevel:                          c.LogLevel,
		ShutdownTimeout:                   timex.Duration{Duration: c.ShutdownTimeout},
		SecretKey:                         c.SecretKey,
		Issuer:                            c.Issuer,
		AccessTokenValidityDuration:       timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration:      timex.Duration{Duration: c.RefreshTokenValidityDuration},
		VerificationTokenValidityDuration: timex.Duration{Duration: c.VerificationTokenValidityDuration},
		BcryptCost:                        c.BcryptCost,
		Mail: JsonMailConfig{
			Host:        c.Mail.Host,
			Port:        c.Mail.Port,
			Username:    c.Mail.Username,
			Password:    c.Mail.Password,
			From:        c.Mail.From,
			FromName:    c.Mail.FromName,
			Workers:     c.Mail.Workers,
			QueueSize:   c.Mail.QueueSize,
			SendTimeout: timex.Duration{Duration: c.Mail.SendTimeout},
		},
		S3RootUser:                 c.S3RootUser,
		S3RootPassword:             c.S3RootPassword,
		S3Bucket:                   c.S3Bucket,
		S3Region:                   c.S3Region,
		S3BaseEndpoint:             c.S3BaseEndpoint,
		AvatarLinkValidityDuration: timex.Duration{Duration: c.AvatarLinkValidityDuration},
	}
}

func fromJson(config *Config, c *JsonConfig) {
	config.HTTPAddr = c.HTTPAddr
	config.PublicURL = c.PublicURL
	config.DatabaseDSN = c.DatabaseDSN
	config.LogLevel = c.LogLevel
	config.ShutdownTimeout = c.ShutdownTimeout.Duration
	config.SecretKey = c.SecretKey
	config.Issuer = c.Issuer
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.VerificationTokenValidityDuration = c.VerificationTokenValidityDuration.Duration
	config.BcryptCost = c.BcryptCost
	config.Mail = MailConfig{
		Host:        c.Mail.Host,
		Port:        c.Mail.Port,
		Username:    c.Mail.Username,
		Password:    c.Mail.Password,
		From:        c.Mail.From,
		FromName:    c.Mail.FromName,
		Workers:     c.Mail.Workers,
		QueueSize:   c.Mail.QueueSize,
		SendTimeout: c.Mail.SendTimeout.Duration,
	}
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.AvatarLinkValidityDuration = c.AvatarLinkValidityDuration.Duration
}
