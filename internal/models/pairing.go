package models

import (
	"encoding/json"
	"strings"
	"time"
)

// PairingSession is the single short-lived code used to link a new recipient.
// At most one session is active system-wide.
type PairingSession struct {
	Active    bool   `json:"active"`
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expired reports whether the session's code window has passed.
func (s PairingSession) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.ExpiresAt
}

// PairingSessionFromJSON decodes a stored session, returning an inactive
// session for blank or malformed input.
func PairingSessionFromJSON(raw string) PairingSession {
	if strings.TrimSpace(raw) == "" {
		return PairingSession{}
	}
	var session PairingSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return PairingSession{}
	}
	return session
}

// ToJSON encodes the session for storage.
func (s PairingSession) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
