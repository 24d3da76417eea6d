package models

import (
	"encoding/json"
	"strings"
	"time"
)

// LinkedRecipient is a Telegram chat that has been paired with this device.
// It receives forwarded events and may issue control commands.
type LinkedRecipient struct {
	ChatID      string `json:"chatId"`
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username,omitempty"`
	AvatarPath  string `json:"avatarLocalPath,omitempty"`
	LinkedAt    int64  `json:"linkedAt"`
}

// Valid reports whether the entry carries the required identity fields.
func (r LinkedRecipient) Valid() bool {
	return strings.TrimSpace(r.ChatID) != "" && r.UserID > 0 && strings.TrimSpace(r.DisplayName) != ""
}

// RecipientsFromJSON decodes a stored recipient list. Blank input yields an
// empty list, and entries missing required fields are dropped rather than
// failing the whole decode.
func RecipientsFromJSON(raw string) []LinkedRecipient {
	if strings.TrimSpace(raw) == "" || strings.TrimSpace(raw) == "null" {
		return nil
	}
	var decoded []LinkedRecipient
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}
	out := make([]LinkedRecipient, 0, len(decoded))
	for _, r := range decoded {
		if !r.Valid() {
			continue
		}
		if r.LinkedAt == 0 {
			r.LinkedAt = time.Now().UnixMilli()
		}
		out = append(out, r)
	}
	return out
}

// RecipientsToJSON encodes a recipient list for storage.
func RecipientsToJSON(recipients []LinkedRecipient) (string, error) {
	if recipients == nil {
		recipients = []LinkedRecipient{}
	}
	data, err := json.Marshal(recipients)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ConnectionStatus is the outcome of the most recent bot credential check.
// It is replaced wholesale on every check.
type ConnectionStatus struct {
	Valid       bool   `json:"isValid"`
	BotID       int64  `json:"botId,omitempty"`
	BotUsername string `json:"botUsername,omitempty"`
	CheckedAt   int64  `json:"checkedAt"`
	LastError   string `json:"lastError,omitempty"`
}

// ConnectionStatusFromJSON decodes a stored status record, returning nil for
// blank or malformed input.
func ConnectionStatusFromJSON(raw string) *ConnectionStatus {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var status ConnectionStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil
	}
	if status.CheckedAt == 0 {
		status.CheckedAt = time.Now().UnixMilli()
	}
	return &status
}

// ToJSON encodes the status for storage.
func (s ConnectionStatus) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
