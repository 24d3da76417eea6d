package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/constants"
	"github.com/tokyodaito/SMS2Telegram/internal/metrics"
	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/store"

	"github.com/sirupsen/logrus"
)

// DeliveryQueue accepts an outbound message for at-least-once delivery to
// every linked recipient.
type DeliveryQueue interface {
	Enqueue(ctx context.Context, text string)
}

// Debouncer suppresses repeated events of the same kind inside a fixed
// window. It tracks the last accepted time per kind, so a long burst is
// collapsed to one event per window rather than silenced entirely.
// One instance is shared by all forwarding callers in the process.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   map[models.EventKind]time.Time
	now    func() time.Time
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		last:   make(map[models.EventKind]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether an event of the given kind may pass, recording the
// acceptance time when it does.
func (d *Debouncer) Allow(kind models.EventKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if prev, ok := d.last[kind]; ok && now.Sub(prev) < d.window {
		return false
	}
	d.last[kind] = now
	return true
}

// EventForwarder filters, debounces and formats device events, handing the
// result to the delivery queue.
type EventForwarder struct {
	store     *store.Store
	queue     DeliveryQueue
	debouncer *Debouncer
	logger    *logrus.Logger
	now       func() time.Time
}

// NewEventForwarder creates an event forwarder.
func NewEventForwarder(st *store.Store, queue DeliveryQueue, debouncer *Debouncer, logger *logrus.Logger) *EventForwarder {
	if debouncer == nil {
		debouncer = NewDebouncer(constants.DebounceWindowSec * time.Second)
	}
	return &EventForwarder{
		store:     st,
		queue:     queue,
		debouncer: debouncer,
		logger:    logger,
		now:       time.Now,
	}
}

// Forward enqueues the event for delivery, or drops it silently when global
// sync is off, the kind is disabled, or the kind is inside its debounce
// window. Drops are not errors.
func (f *EventForwarder) Forward(ctx context.Context, event models.Event) {
	syncEnabled, err := f.store.SyncEnabled(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to read sync flag, dropping event")
		return
	}
	if !syncEnabled {
		return
	}

	enabled, err := f.store.EventEnabled(ctx, event.Kind)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to read event flag, dropping event")
		return
	}
	if !enabled {
		return
	}

	if event.Kind.Debounced() && !f.debouncer.Allow(event.Kind) {
		f.logger.WithField("kind", event.Kind).Debug("Event debounced")
		metrics.IncrementCounter("events_debounced_total",
			map[string]string{"kind": string(event.Kind)}, "Events dropped by the debouncer")
		return
	}

	metrics.IncrementCounter("events_forwarded_total",
		map[string]string{"kind": string(event.Kind)}, "Events handed to the delivery queue")
	f.queue.Enqueue(ctx, f.formatMessage(event))
}

// formatMessage renders the single outbound message body for an event.
func (f *EventForwarder) formatMessage(event models.Event) string {
	timestamp := f.now().Format("2006-01-02 15:04:05")
	return fmt.Sprintf("[SMS2Telegram] [%s]\n%s\n%s\ntime: %s",
		strings.ToUpper(string(event.Kind)), event.Title, event.Body, timestamp)
}
