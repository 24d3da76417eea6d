package types

// Chat types as reported by the Bot API.
const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"
)

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// IsPrivate reports whether the chat is a direct one-to-one conversation.
func (c Chat) IsPrivate() bool {
	return c.Type == ChatTypePrivate
}

// Message is an inbound Bot API message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// Update is one getUpdates item. Non-message updates carry a nil Message.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// BotInfo is the getMe result.
type BotInfo struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// PhotoSize is one rendition of a profile photo.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// UserProfilePhotos is the getUserProfilePhotos result. Each inner slice
// holds the available sizes of a single photo.
type UserProfilePhotos struct {
	TotalCount int           `json:"total_count"`
	Photos     [][]PhotoSize `json:"photos"`
}

// File is the getFile result; FilePath feeds the file download endpoint.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// Envelope is the generic Bot API response wrapper.
type Envelope struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

// UpdatesResponse wraps a getUpdates batch.
type UpdatesResponse struct {
	Envelope
	Result []Update `json:"result"`
}

// BotInfoResponse wraps a getMe result.
type BotInfoResponse struct {
	Envelope
	Result *BotInfo `json:"result"`
}

// ProfilePhotosResponse wraps a getUserProfilePhotos result.
type ProfilePhotosResponse struct {
	Envelope
	Result *UserProfilePhotos `json:"result"`
}

// FileResponse wraps a getFile result.
type FileResponse struct {
	Envelope
	Result *File `json:"result"`
}
