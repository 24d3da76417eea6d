package constants

// Default Telegram API configuration values
const (
	DefaultAPIBaseURL     = "https://api.telegram.org"
	DefaultHTTPTimeoutSec = 15
	DefaultPollWaitSec    = 25
	// Client-side slack added on top of the server wait window so a long
	// poll can never hang past the server timeout.
	PollClientSlackSec       = 15
	DefaultPollRetrySec      = 5
	DefaultSendRatePerSec    = 25
	DefaultSendBurst         = 5
	DefaultProfilePhotoQty   = 1
	DefaultBreakerFailures   = 5
	DefaultBreakerTimeoutSec = 60
)

// Default outbound delivery retry values, matching the original 30s
// exponential backoff policy.
const (
	DefaultSendBackoffSec    = 30
	DefaultMaxSendBackoffSec = 900
	DefaultSendAttempts      = 10
)

// Event forwarding values
const (
	DebounceWindowSec = 7
)

// Pairing values
const (
	PairingCodeLength = 6
	PairingCodeTTLMin = 5
)

// Storage values
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
)

// Local status server values
const (
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)
