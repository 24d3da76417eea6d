package types

import "context"

// Client is the Bot API surface consumed by the relay core.
type Client interface {
	// SendMessage delivers text to the given chat. A nil error means the
	// API acknowledged the message.
	SendMessage(ctx context.Context, chatID, text string) error
	// GetUpdates long-polls for updates at or after offset, waiting up to
	// waitSeconds server-side. A transport failure or a non-success
	// envelope is returned as an error.
	GetUpdates(ctx context.Context, offset int64, waitSeconds int) ([]Update, error)
	// GetMe validates the bot credential and returns the bot identity.
	GetMe(ctx context.Context) (*BotInfo, error)
	// GetUserProfilePhotos fetches up to limit profile photos for a user.
	GetUserProfilePhotos(ctx context.Context, userID int64, limit int) (*UserProfilePhotos, error)
	// GetFile resolves a file id into a downloadable path.
	GetFile(ctx context.Context, fileID string) (*File, error)
	// DownloadFile fetches the raw bytes behind a getFile path.
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
}
