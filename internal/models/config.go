package models

// Config holds the application configuration
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Database DatabaseConfig `json:"database"`
	Delivery DeliveryConfig `json:"delivery"`
	Poll     PollConfig     `json:"poll"`
	Pairing  PairingConfig  `json:"pairing"`
	Server   ServerConfig   `json:"server"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// TelegramConfig holds Bot API related configuration. The bot token itself
// lives in the settings store or the SMS2TG_BOT_TOKEN environment variable,
// never in the config file.
type TelegramConfig struct {
	APIBaseURL     string  `json:"api_base_url"`
	TimeoutSec     int     `json:"timeout_sec"`
	SendRatePerSec float64 `json:"send_rate_per_sec"`
	SendBurst      int     `json:"send_burst"`
}

// DatabaseConfig holds settings store configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// DeliveryConfig holds outbound retry policy configuration
type DeliveryConfig struct {
	InitialBackoffSec int `json:"initialBackoffSec"`
	MaxBackoffSec     int `json:"maxBackoffSec"`
	MaxAttempts       int `json:"maxAttempts"`
}

// PollConfig holds inbound long-poll configuration
type PollConfig struct {
	WaitSec          int `json:"waitSec"`
	RetryIntervalSec int `json:"retryIntervalSec"`
}

// PairingConfig holds pairing session configuration
type PairingConfig struct {
	AvatarDir  string `json:"avatar_dir"`
	CodeTTLMin int    `json:"codeTtlMin"`
}

// ServerConfig holds the local status server configuration
type ServerConfig struct {
	Port int `json:"port"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
