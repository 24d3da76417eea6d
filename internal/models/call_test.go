package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallState(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected CallState
		ok       bool
	}{
		{name: "idle", input: "idle", expected: CallIdle, ok: true},
		{name: "ringing", input: "ringing", expected: CallRinging, ok: true},
		{name: "offhook", input: "offhook", expected: CallOffhook, ok: true},
		{name: "uppercase", input: "RINGING", expected: CallRinging, ok: true},
		{name: "whitespace", input: " idle ", expected: CallIdle, ok: true},
		{name: "unknown", input: "dialing", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, ok := ParseCallState(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, state)
			}
		})
	}
}

func TestCallTrackStateFromJSON(t *testing.T) {
	assert.Equal(t, CallTrackState{}, CallTrackStateFromJSON(""))
	assert.Equal(t, CallTrackState{}, CallTrackStateFromJSON("{broken"))

	state := CallTrackStateFromJSON(`{"lastCallState":1,"ringingNumber":"+15551234","answered":false}`)
	assert.Equal(t, CallRinging, state.LastState)
	assert.Equal(t, "+15551234", state.RingingNumber)
	assert.False(t, state.Answered)
}

func TestCallTrackStateRoundTrip(t *testing.T) {
	original := CallTrackState{LastState: CallOffhook, Answered: true}

	raw, err := original.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, original, CallTrackStateFromJSON(raw))
}

func TestPairingSessionExpired(t *testing.T) {
	now := time.Now()
	session := PairingSession{Active: true, Code: "042917", ExpiresAt: now.Add(5 * time.Minute).UnixMilli()}

	assert.False(t, session.Expired(now))
	assert.True(t, session.Expired(now.Add(5*time.Minute)))
	assert.True(t, session.Expired(now.Add(6*time.Minute)))
}

func TestPairingSessionFromJSON(t *testing.T) {
	assert.Equal(t, PairingSession{}, PairingSessionFromJSON(""))
	assert.Equal(t, PairingSession{}, PairingSessionFromJSON("not json"))

	session := PairingSessionFromJSON(`{"active":true,"code":"042917","expiresAt":1700000000000}`)
	assert.True(t, session.Active)
	assert.Equal(t, "042917", session.Code)
	assert.Equal(t, int64(1700000000000), session.ExpiresAt)
}
