package service

import (
	"context"
	"sync"

	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/store"

	"github.com/sirupsen/logrus"
)

// CallStateTracker folds raw telephony state transitions into missed-call
// events. The tracking record is persisted on every transition because the
// process is not guaranteed to stay resident between them.
type CallStateTracker struct {
	store     *store.Store
	forwarder *EventForwarder
	logger    *logrus.Logger
	mu        sync.Mutex
}

// NewCallStateTracker creates a call state tracker.
func NewCallStateTracker(st *store.Store, forwarder *EventForwarder, logger *logrus.Logger) *CallStateTracker {
	return &CallStateTracker{
		store:     st,
		forwarder: forwarder,
		logger:    logger,
	}
}

// HandleTransition applies one raw state transition. A call that rang and
// reached idle without ever being picked up emits a missed-call event; an
// answered call emits nothing.
func (t *CallStateTracker) HandleTransition(ctx context.Context, state models.CallState, incomingNumber string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, err := t.store.CallTrackState(ctx)
	if err != nil {
		return err
	}

	switch state {
	case models.CallRinging:
		if incomingNumber == "" {
			incomingNumber = "unknown"
		}
		tracked.RingingNumber = incomingNumber
		tracked.Answered = false

	case models.CallOffhook:
		if tracked.LastState == models.CallRinging {
			tracked.Answered = true
		}
		// The remembered number only matters while ringing.
		tracked.RingingNumber = ""

	case models.CallIdle:
		if tracked.LastState == models.CallRinging && !tracked.Answered {
			caller := tracked.RingingNumber
			if caller == "" {
				caller = "unknown"
			}
			t.forwarder.Forward(ctx, models.Event{
				Kind:  models.EventMissedCall,
				Title: "Missed call",
				Body:  "from " + caller,
			})
			t.logger.Debug("Forwarded missed call event")
		}
		// Entering idle always clears the ringing bookkeeping.
		tracked.RingingNumber = ""
		tracked.Answered = false
	}

	tracked.LastState = state
	return t.store.SetCallTrackState(ctx, tracked)
}
