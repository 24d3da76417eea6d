package service

import (
	"context"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/store"
	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// ConnectionChecker validates the bot credential against the API and
// records the outcome. The status record is replaced wholesale on every
// check, never partially updated.
type ConnectionChecker struct {
	store  *store.Store
	client tgtypes.Client
	logger *logrus.Logger
	now    func() time.Time
}

// NewConnectionChecker creates a connection checker.
func NewConnectionChecker(st *store.Store, client tgtypes.Client, logger *logrus.Logger) *ConnectionChecker {
	return &ConnectionChecker{
		store:  st,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Check runs one credential check and persists the resulting status.
func (c *ConnectionChecker) Check(ctx context.Context) (models.ConnectionStatus, error) {
	status := models.ConnectionStatus{CheckedAt: c.now().UnixMilli()}

	info, err := c.client.GetMe(ctx)
	if err != nil {
		status.Valid = false
		status.LastError = err.Error()
		c.logger.WithError(err).Warn("Bot credential check failed")
	} else {
		status.Valid = true
		status.BotID = info.ID
		status.BotUsername = info.Username
		c.logger.WithFields(logrus.Fields{
			"botUsername": info.Username,
		}).Info("Bot credential check succeeded")
	}

	if err := c.store.SetConnectionStatus(ctx, status); err != nil {
		return status, err
	}
	return status, nil
}
