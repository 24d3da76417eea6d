package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tokyodaito/SMS2Telegram/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeConfig(t, "{not valid json")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `{"telegram": {}}`)
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "/tmp/settings.db"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultAPIBaseURL, cfg.Telegram.APIBaseURL)
	assert.Equal(t, constants.DefaultHTTPTimeoutSec, cfg.Telegram.TimeoutSec)
	assert.Equal(t, float64(constants.DefaultSendRatePerSec), cfg.Telegram.SendRatePerSec)
	assert.Equal(t, constants.DefaultSendBurst, cfg.Telegram.SendBurst)
	assert.Equal(t, constants.DefaultSendBackoffSec, cfg.Delivery.InitialBackoffSec)
	assert.Equal(t, constants.DefaultMaxSendBackoffSec, cfg.Delivery.MaxBackoffSec)
	assert.Equal(t, constants.DefaultSendAttempts, cfg.Delivery.MaxAttempts)
	assert.Equal(t, constants.DefaultPollWaitSec, cfg.Poll.WaitSec)
	assert.Equal(t, constants.DefaultPollRetrySec, cfg.Poll.RetryIntervalSec)
	assert.Equal(t, constants.PairingCodeTTLMin, cfg.Pairing.CodeTTLMin)
	assert.Equal(t, "avatars", cfg.Pairing.AvatarDir)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"path": "/tmp/settings.db"},
		"telegram": {"api_base_url": "http://localhost:9000", "timeout_sec": 5},
		"delivery": {"initialBackoffSec": 10, "maxAttempts": 4},
		"poll": {"waitSec": 30},
		"server": {"port": 9999}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.Telegram.APIBaseURL)
	assert.Equal(t, 5, cfg.Telegram.TimeoutSec)
	assert.Equal(t, 10, cfg.Delivery.InitialBackoffSec)
	assert.Equal(t, 4, cfg.Delivery.MaxAttempts)
	assert.Equal(t, 30, cfg.Poll.WaitSec)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SMS2TG_BOT_TOKEN", "123456:abcdef")
	t.Setenv("SMS2TG_LOG_LEVEL", "debug")
	t.Setenv("SMS2TG_ENCRYPTION_SECRET", "")

	overrides, err := LoadEnvOverrides()
	require.NoError(t, err)

	assert.Equal(t, "123456:abcdef", overrides.BotToken)
	assert.Equal(t, "debug", overrides.LogLevel)
	assert.Empty(t, overrides.EncryptionSecret)
}
