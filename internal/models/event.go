package models

import "strings"

// EventKind identifies a class of device event that can be forwarded.
type EventKind string

const (
	EventSMS               EventKind = "sms"
	EventMissedCall        EventKind = "missed_call"
	EventBatteryLow        EventKind = "battery_low"
	EventPowerConnected    EventKind = "power_connected"
	EventPowerDisconnected EventKind = "power_disconnected"
	EventAirplaneMode      EventKind = "airplane_mode"
	EventBootCompleted     EventKind = "boot_completed"
	EventShutdown          EventKind = "shutdown"
	EventSimState          EventKind = "sim_state"
)

// debouncedKinds are noisy kinds collapsed to at most one forward per window.
var debouncedKinds = map[EventKind]bool{
	EventAirplaneMode: true,
	EventSimState:     true,
}

// AllEventKinds returns every known kind in declaration order.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventSMS,
		EventMissedCall,
		EventBatteryLow,
		EventPowerConnected,
		EventPowerDisconnected,
		EventAirplaneMode,
		EventBootCompleted,
		EventShutdown,
		EventSimState,
	}
}

// ParseEventKind resolves a user-supplied kind name. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseEventKind(raw string) (EventKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, kind := range AllEventKinds() {
		if string(kind) == normalized {
			return kind, true
		}
	}
	return "", false
}

// DefaultEnabled reports whether the kind is forwarded before any explicit
// configuration. Only SMS forwarding is on out of the box.
func (k EventKind) DefaultEnabled() bool {
	return k == EventSMS
}

// Debounced reports whether the kind belongs to the debounced set.
func (k EventKind) Debounced() bool {
	return debouncedKinds[k]
}

func (k EventKind) String() string {
	return string(k)
}

// Event is a single device event at the moment its trigger fired.
type Event struct {
	Kind     EventKind         `json:"kind"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
