package service

import (
	"context"
	"sync"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/constants"
	"github.com/tokyodaito/SMS2Telegram/internal/metrics"
	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/retry"
	"github.com/tokyodaito/SMS2Telegram/internal/store"
	"github.com/tokyodaito/SMS2Telegram/internal/tracing"
	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// workItem is one independent, retryable delivery to a single recipient.
type workItem struct {
	ID     string
	ChatID string
	Text   string
}

// TelegramDeliveryQueue fans outbound messages out to every linked
// recipient and retries each delivery independently with exponential
// backoff. One recipient's failure never blocks another's delivery.
type TelegramDeliveryQueue struct {
	client  tgtypes.Client
	store   *store.Store
	backoff retry.BackoffConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeliveryQueue creates a delivery queue. Work items live on the queue's
// own context so request-scoped enqueue contexts cannot cancel retries.
func NewDeliveryQueue(client tgtypes.Client, st *store.Store, delivery models.DeliveryConfig, telegram models.TelegramConfig, logger *logrus.Logger) *TelegramDeliveryQueue {
	ctx, cancel := context.WithCancel(context.Background())

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "telegram-send",
		Timeout: constants.DefaultBreakerTimeoutSec * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.DefaultBreakerFailures
		},
	})

	return &TelegramDeliveryQueue{
		client: client,
		store:  st,
		backoff: retry.BackoffConfig{
			InitialDelay: time.Duration(delivery.InitialBackoffSec) * time.Second,
			MaxDelay:     time.Duration(delivery.MaxBackoffSec) * time.Second,
			Multiplier:   2.0,
			MaxAttempts:  delivery.MaxAttempts,
			Jitter:       true,
		},
		limiter: rate.NewLimiter(rate.Limit(telegram.SendRatePerSec), telegram.SendBurst),
		breaker: breaker,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue fans the text out to every resolved recipient. Missing
// credentials or an empty recipient set drop the message with a warning and
// are never retried.
func (q *TelegramDeliveryQueue) Enqueue(ctx context.Context, text string) {
	token, err := q.store.BotToken(ctx)
	if err != nil {
		q.logger.WithError(err).Warn("Failed to read bot token, message dropped")
		return
	}
	if token == "" {
		q.logger.Warn("Telegram bot key is not configured, message dropped")
		metrics.IncrementCounter("deliveries_dropped_total",
			map[string]string{"reason": "no_token"}, "Messages dropped before delivery")
		return
	}

	targets, err := q.resolveRecipients(ctx)
	if err != nil {
		q.logger.WithError(err).Warn("Failed to resolve recipients, message dropped")
		return
	}
	if len(targets) == 0 {
		q.logger.Warn("Telegram chat id is not configured, message dropped")
		metrics.IncrementCounter("deliveries_dropped_total",
			map[string]string{"reason": "no_recipients"}, "Messages dropped before delivery")
		return
	}

	for _, chatID := range targets {
		item := workItem{ID: uuid.NewString(), ChatID: chatID, Text: text}
		q.wg.Add(1)
		go q.deliver(item)
	}
}

// resolveRecipients returns the chat ids to address: the linked recipient
// list when non-empty, otherwise the single legacy chat id. Call sites never
// branch on which scheme is active.
func (q *TelegramDeliveryQueue) resolveRecipients(ctx context.Context) ([]string, error) {
	recipients, err := q.store.LinkedRecipients(ctx)
	if err != nil {
		return nil, err
	}
	if len(recipients) > 0 {
		chatIDs := make([]string, 0, len(recipients))
		for _, r := range recipients {
			chatIDs = append(chatIDs, r.ChatID)
		}
		return chatIDs, nil
	}

	legacy, err := q.store.LegacyChatID(ctx)
	if err != nil {
		return nil, err
	}
	if legacy == "" {
		return nil, nil
	}
	return []string{legacy}, nil
}

func (q *TelegramDeliveryQueue) deliver(item workItem) {
	defer q.wg.Done()

	backoff := retry.NewBackoff(q.backoff)
	err := backoff.Retry(q.ctx, func() error {
		return q.attempt(q.ctx, item)
	})
	if err != nil {
		q.logger.WithFields(logrus.Fields{
			"item": item.ID,
		}).WithError(err).Error("Delivery failed after all retry attempts")
		metrics.IncrementCounter("deliveries_failed_total", nil, "Deliveries that exhausted their retry budget")
		return
	}

	metrics.IncrementCounter("deliveries_succeeded_total", nil, "Deliveries acknowledged by the API")
}

func (q *TelegramDeliveryQueue) attempt(ctx context.Context, item workItem) error {
	ctx, span := tracing.StartSpan(ctx, "delivery.send",
		attribute.String("delivery.item", item.ID))
	defer span.End()

	if err := q.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := q.breaker.Execute(func() (interface{}, error) {
		return nil, q.client.SendMessage(ctx, item.ChatID, item.Text)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		q.logger.WithFields(logrus.Fields{
			"item": item.ID,
		}).WithError(err).Warn("Delivery attempt failed")
	}
	return err
}

// Stop cancels in-flight retries and waits for delivery goroutines to exit.
func (q *TelegramDeliveryQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}
