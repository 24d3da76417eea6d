package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected EventKind
		ok       bool
	}{
		{
			name:     "exact match",
			input:    "sms",
			expected: EventSMS,
			ok:       true,
		},
		{
			name:     "uppercase input",
			input:    "MISSED_CALL",
			expected: EventMissedCall,
			ok:       true,
		},
		{
			name:     "surrounding whitespace",
			input:    "  battery_low \n",
			expected: EventBatteryLow,
			ok:       true,
		},
		{
			name:  "unknown kind",
			input: "carrier_pigeon",
			ok:    false,
		},
		{
			name:  "empty input",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ParseEventKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, kind)
			}
		})
	}
}

func TestEventKindDefaults(t *testing.T) {
	for _, kind := range AllEventKinds() {
		if kind == EventSMS {
			assert.True(t, kind.DefaultEnabled(), "sms should be on by default")
		} else {
			assert.False(t, kind.DefaultEnabled(), "%s should be off by default", kind)
		}
	}
}

func TestEventKindDebounced(t *testing.T) {
	assert.True(t, EventAirplaneMode.Debounced())
	assert.True(t, EventSimState.Debounced())

	assert.False(t, EventSMS.Debounced())
	assert.False(t, EventMissedCall.Debounced())
	assert.False(t, EventBatteryLow.Debounced())
	assert.False(t, EventShutdown.Debounced())
}

func TestAllEventKindsComplete(t *testing.T) {
	kinds := AllEventKinds()
	assert.Len(t, kinds, 9)
	assert.Equal(t, EventSMS, kinds[0])

	seen := make(map[EventKind]bool)
	for _, kind := range kinds {
		assert.False(t, seen[kind], "duplicate kind %s", kind)
		seen[kind] = true
	}
}
