package models

import (
	"encoding/json"
	"strings"
)

// CallState is a raw telephony signal state.
type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallOffhook
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallRinging:
		return "ringing"
	case CallOffhook:
		return "offhook"
	default:
		return "unknown"
	}
}

// ParseCallState resolves a raw state name from the telephony layer.
// Unrecognised states are reported as not ok and must be ignored.
func ParseCallState(raw string) (CallState, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "idle":
		return CallIdle, true
	case "ringing":
		return CallRinging, true
	case "offhook":
		return CallOffhook, true
	default:
		return CallIdle, false
	}
}

// CallTrackState is the persisted per-device call tracking record.
// RingingNumber is set only while the last observed state is ringing.
type CallTrackState struct {
	LastState     CallState `json:"lastCallState"`
	RingingNumber string    `json:"ringingNumber,omitempty"`
	Answered      bool      `json:"answered"`
}

// CallTrackStateFromJSON decodes a stored record, falling back to the idle
// zero state for blank or malformed input.
func CallTrackStateFromJSON(raw string) CallTrackState {
	if strings.TrimSpace(raw) == "" {
		return CallTrackState{}
	}
	var state CallTrackState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return CallTrackState{}
	}
	return state
}

// ToJSON encodes the record for storage.
func (s CallTrackState) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
