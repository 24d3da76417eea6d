package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/constants"
	"github.com/tokyodaito/SMS2Telegram/internal/metrics"
	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/store"
	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// PairingCoordinator runs the time-boxed pairing protocol that links a new
// recipient. All state changes happen under one mutex, which makes the
// cancel-versus-match race deterministic: whichever side takes the lock
// first wins, and the loser observes the already-updated session.
type PairingCoordinator struct {
	store     *store.Store
	client    tgtypes.Client
	avatarDir string
	codeTTL   time.Duration
	logger    *logrus.Logger
	now       func() time.Time
	mu        sync.Mutex
}

// NewPairingCoordinator creates a pairing coordinator.
func NewPairingCoordinator(st *store.Store, client tgtypes.Client, cfg models.PairingConfig, logger *logrus.Logger) *PairingCoordinator {
	return &PairingCoordinator{
		store:     st,
		client:    client,
		avatarDir: cfg.AvatarDir,
		codeTTL:   time.Duration(cfg.CodeTTLMin) * time.Minute,
		logger:    logger,
		now:       time.Now,
	}
}

// Start opens a new pairing session, replacing any previous one, and
// returns the code for out-of-band sharing.
func (c *PairingCoordinator) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	code, err := generatePairingCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate pairing code: %w", err)
	}

	session := models.PairingSession{
		Active:    true,
		Code:      code,
		ExpiresAt: c.now().Add(c.codeTTL).UnixMilli(),
	}
	if err := c.store.SetPairingSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to persist pairing session: %w", err)
	}

	c.logger.WithField("expiresAt", session.ExpiresAt).Info("Pairing session started")
	metrics.IncrementCounter("pairing_sessions_started_total", nil, "Pairing sessions opened")
	return code, nil
}

// Cancel deactivates the active session without linking. Cancelling an
// inactive session is a no-op.
func (c *PairingCoordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.store.PairingSession(ctx)
	if err != nil {
		return err
	}
	if !session.Active {
		return nil
	}
	session.Active = false
	if err := c.store.SetPairingSession(ctx, session); err != nil {
		return err
	}
	c.logger.Info("Pairing session cancelled")
	return nil
}

// Session returns the current session record.
func (c *PairingCoordinator) Session(ctx context.Context) (models.PairingSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.PairingSession(ctx)
}

// Active reports whether a live, unexpired session exists.
func (c *PairingCoordinator) Active(ctx context.Context) bool {
	session, err := c.Session(ctx)
	if err != nil {
		return false
	}
	return session.Active && !session.Expired(c.now())
}

// Observe offers one inbound message to the coordinator. It returns true
// when the message was consumed by the pairing protocol, in which case it
// must not reach the command interpreter. The first matching message wins;
// the session closes before Observe returns, so a second valid code in the
// same batch cannot link again.
func (c *PairingCoordinator) Observe(ctx context.Context, msg *tgtypes.Message) bool {
	if msg == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.store.PairingSession(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read pairing session")
		return false
	}
	if !session.Active {
		return false
	}
	if session.Expired(c.now()) {
		session.Active = false
		if err := c.store.SetPairingSession(ctx, session); err != nil {
			c.logger.WithError(err).Warn("Failed to expire pairing session")
		}
		c.logger.Info("Pairing session expired")
		return false
	}

	if strings.TrimSpace(msg.Text) != session.Code {
		return false
	}
	// A code posted in a group is a protocol violation, not a match.
	if !msg.Chat.IsPrivate() {
		return false
	}
	if msg.From == nil || msg.From.ID <= 0 {
		return false
	}

	recipient := models.LinkedRecipient{
		ChatID:      strconv.FormatInt(msg.Chat.ID, 10),
		UserID:      msg.From.ID,
		DisplayName: displayName(msg.From),
		Username:    msg.From.Username,
		AvatarPath:  c.fetchAvatar(ctx, msg.From.ID),
		LinkedAt:    c.now().UnixMilli(),
	}

	// The recipient upsert must be durable before the session closes, so
	// a crash between the two cannot leave a linked-but-active limbo.
	if err := c.store.UpsertRecipient(ctx, recipient); err != nil {
		c.logger.WithError(err).Error("Failed to persist linked recipient")
		return false
	}

	session.Active = false
	if err := c.store.SetPairingSession(ctx, session); err != nil {
		c.logger.WithError(err).Error("Failed to close pairing session")
	}

	c.logger.WithFields(logrus.Fields{
		"userId": recipient.UserID,
	}).Info("Recipient linked")
	metrics.IncrementCounter("pairing_sessions_linked_total", nil, "Pairing sessions that linked a recipient")

	if err := c.client.SendMessage(ctx, recipient.ChatID, "Paired successfully. This chat will now receive forwarded events."); err != nil {
		c.logger.WithError(err).Warn("Failed to send pairing confirmation")
	}

	return true
}

// displayName picks the best available name: first+last, then username,
// then a generic placeholder.
func displayName(user *tgtypes.User) string {
	full := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if full != "" {
		return full
	}
	if user.Username != "" {
		return user.Username
	}
	return fmt.Sprintf("User %d", user.ID)
}

// fetchAvatar runs the best-effort avatar chain: newest profile photo,
// largest size, file handle, bytes, local file. Every failure is swallowed
// and yields an empty path.
func (c *PairingCoordinator) fetchAvatar(ctx context.Context, userID int64) string {
	photos, err := c.client.GetUserProfilePhotos(ctx, userID, constants.DefaultProfilePhotoQty)
	if err != nil || photos == nil || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return ""
	}

	largest := photos.Photos[0][0]
	for _, size := range photos.Photos[0][1:] {
		if size.Width*size.Height > largest.Width*largest.Height {
			largest = size
		}
	}

	file, err := c.client.GetFile(ctx, largest.FileID)
	if err != nil || file == nil || file.FilePath == "" {
		return ""
	}

	data, err := c.client.DownloadFile(ctx, file.FilePath)
	if err != nil || len(data) == 0 {
		return ""
	}

	if err := os.MkdirAll(c.avatarDir, 0700); err != nil {
		return ""
	}
	ext := filepath.Ext(file.FilePath)
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(c.avatarDir, fmt.Sprintf("avatar_%d%s", userID, ext))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return ""
	}
	return path
}

// generatePairingCode draws a uniformly random zero-padded numeric code.
func generatePairingCode() (string, error) {
	limit := big.NewInt(10)
	limit.Exp(limit, big.NewInt(constants.PairingCodeLength), nil)

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", constants.PairingCodeLength, n.Int64()), nil
}
