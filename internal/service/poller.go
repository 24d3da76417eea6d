package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/metrics"
	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/store"
	"github.com/tokyodaito/SMS2Telegram/internal/tracing"
	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ControlPoller is the single sequential consumer of inbound updates. It
// long-polls the Bot API with the persisted offset cursor and dispatches
// each update to the pairing coordinator first, then to the command
// interpreter. Concurrent polls against the same cursor would race on
// offset advancement, so PollOnce is serialized by a mutex and the
// background loop runs one poll at a time.
type ControlPoller struct {
	client   tgtypes.Client
	store    *store.Store
	pairing  *PairingCoordinator
	commands *CommandInterpreter
	config   models.PollConfig
	logger   *logrus.Logger

	pollMu  sync.Mutex
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewControlPoller creates a control poller.
func NewControlPoller(client tgtypes.Client, st *store.Store, pairing *PairingCoordinator, commands *CommandInterpreter, config models.PollConfig, logger *logrus.Logger) *ControlPoller {
	return &ControlPoller{
		client:   client,
		store:    st,
		pairing:  pairing,
		commands: commands,
		config:   config,
		logger:   logger,
	}
}

// Start begins the background polling loop.
func (p *ControlPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("control poller is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go p.pollLoop(loopCtx)

	p.logger.WithField("waitSec", p.config.WaitSec).Info("Control poller started")
	return nil
}

// Stop gracefully stops the polling loop.
func (p *ControlPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.running = false
	p.logger.Info("Control poller stopped")
}

// IsRunning reports whether the background loop is active.
func (p *ControlPoller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *ControlPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	retryInterval := time.Duration(p.config.RetryIntervalSec) * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		polled, err := p.pollOnce(ctx)
		if err != nil {
			p.logger.WithError(err).Warn("Poll failed, waiting before retry")
		}
		if err == nil && polled {
			// A completed long poll already spent the wait window
			// server-side; go straight into the next one.
			continue
		}

		// Skipped polls (sync off, no token) idle here too, otherwise a
		// disabled relay would spin on the settings store.
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryInterval):
		}
	}
}

// PollOnce executes a single long poll. On transport failure or a
// non-success envelope the cursor stays untouched and the error is
// returned; the caller waits and retries. On success the cursor advances to
// max(cursor, max(update_id)+1) over the whole batch and is persisted even
// when every update was ignored, so noise is never re-fetched.
func (p *ControlPoller) PollOnce(ctx context.Context) error {
	_, err := p.pollOnce(ctx)
	return err
}

// pollOnce additionally reports whether a poll was actually issued, so the
// loop can distinguish a completed long poll from a skipped one.
func (p *ControlPoller) pollOnce(ctx context.Context) (bool, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	syncEnabled, err := p.store.SyncEnabled(ctx)
	if err != nil {
		return false, err
	}
	if !syncEnabled {
		metrics.IncrementCounter("poll_skipped_total",
			map[string]string{"reason": "sync_disabled"}, "Poll cycles skipped before reaching the API")
		return false, nil
	}

	token, err := p.store.BotToken(ctx)
	if err != nil {
		return false, err
	}
	if token == "" {
		metrics.IncrementCounter("poll_skipped_total",
			map[string]string{"reason": "no_token"}, "Poll cycles skipped before reaching the API")
		return false, nil
	}

	cursor, err := p.store.Cursor(ctx)
	if err != nil {
		return false, err
	}

	ctx, span := tracing.StartSpan(ctx, "poller.poll",
		attribute.Int64("poller.cursor", cursor))
	defer span.End()

	updates, err := p.client.GetUpdates(ctx, cursor, p.config.WaitSec)
	if err != nil {
		tracing.RecordError(ctx, err)
		metrics.IncrementCounter("poll_failures_total", nil, "Failed long-poll cycles")
		return true, err
	}

	newCursor := cursor
	for i := range updates {
		update := updates[i]
		if update.UpdateID >= 0 && update.UpdateID+1 > newCursor {
			newCursor = update.UpdateID + 1
		}
		if update.Message == nil {
			continue
		}
		if p.pairing.Observe(ctx, update.Message) {
			continue
		}
		p.commands.Handle(ctx, update.Message)
	}

	if err := p.store.SetCursor(ctx, newCursor); err != nil {
		return true, fmt.Errorf("failed to persist cursor: %w", err)
	}

	metrics.IncrementCounter("poll_cycles_total", nil, "Completed long-poll cycles")
	metrics.SetGauge("poll_cursor", float64(newCursor), nil, "Current inbound update offset")
	return true, nil
}
