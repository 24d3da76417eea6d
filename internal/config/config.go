package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tokyodaito/SMS2Telegram/internal/constants"
	"github.com/tokyodaito/SMS2Telegram/internal/models"

	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
)

// EnvOverrides are settings taken from the environment rather than the
// config file. Processed with the SMS2TG prefix.
type EnvOverrides struct {
	BotToken         string `envconfig:"BOT_TOKEN"`
	EncryptionSecret string `envconfig:"ENCRYPTION_SECRET"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
}

// LoadConfig reads and validates the JSON config file at path.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadEnvOverrides reads SMS2TG_* environment settings.
func LoadEnvOverrides() (*EnvOverrides, error) {
	var overrides EnvOverrides
	if err := envconfig.Process("sms2tg", &overrides); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}
	return &overrides, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = constants.DefaultAPIBaseURL
	}
	if c.Telegram.TimeoutSec <= 0 {
		c.Telegram.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Telegram.SendRatePerSec <= 0 {
		c.Telegram.SendRatePerSec = constants.DefaultSendRatePerSec
	}
	if c.Telegram.SendBurst <= 0 {
		c.Telegram.SendBurst = constants.DefaultSendBurst
	}

	if c.Delivery.InitialBackoffSec <= 0 {
		c.Delivery.InitialBackoffSec = constants.DefaultSendBackoffSec
	}
	if c.Delivery.MaxBackoffSec <= 0 {
		c.Delivery.MaxBackoffSec = constants.DefaultMaxSendBackoffSec
	}
	if c.Delivery.MaxAttempts <= 0 {
		c.Delivery.MaxAttempts = constants.DefaultSendAttempts
	}

	if c.Poll.WaitSec <= 0 {
		c.Poll.WaitSec = constants.DefaultPollWaitSec
	}
	if c.Poll.RetryIntervalSec <= 0 {
		c.Poll.RetryIntervalSec = constants.DefaultPollRetrySec
	}

	if c.Pairing.CodeTTLMin <= 0 {
		c.Pairing.CodeTTLMin = constants.PairingCodeTTLMin
	}
	if c.Pairing.AvatarDir == "" {
		c.Pairing.AvatarDir = "avatars"
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	return nil
}
