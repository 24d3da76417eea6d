package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// TokenProvider supplies the current bot credential. The token lives in the
// settings store and may change at runtime, so it is read per call.
type TokenProvider func(ctx context.Context) (string, error)

// ClientConfig holds Bot API client configuration.
type ClientConfig struct {
	BaseURL      string
	Token        TokenProvider
	TimeoutSec   int
	PollSlackSec int
}

type botClient struct {
	baseURL   string
	token     TokenProvider
	timeout   time.Duration
	pollSlack time.Duration
	client    *http.Client
	logger    *logrus.Logger
}

// NewClient creates a Bot API client. The underlying http.Client carries no
// global timeout; every call is bounded by a per-request context deadline so
// long polls can exceed the normal operation timeout.
func NewClient(cfg ClientConfig, logger *logrus.Logger) types.Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if cfg.TimeoutSec <= 0 {
		timeout = 15 * time.Second
	}
	pollSlack := time.Duration(cfg.PollSlackSec) * time.Second
	if cfg.PollSlackSec <= 0 {
		pollSlack = 15 * time.Second
	}

	return &botClient{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		token:     cfg.Token,
		timeout:   timeout,
		pollSlack: pollSlack,
		client:    &http.Client{},
		logger:    logger,
	}
}

func (c *botClient) methodURL(token, method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)
}

func (c *botClient) fileURL(token, filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, token, filePath)
}

func (c *botClient) currentToken(ctx context.Context) (string, error) {
	if c.token == nil {
		return "", fmt.Errorf("no token provider configured")
	}
	token, err := c.token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read bot token: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("bot token is not configured")
	}
	return token, nil
}

func (c *botClient) SendMessage(ctx context.Context, chatID, text string) error {
	token, err := c.currentToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(token, "sendMessage"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var envelope types.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !envelope.OK {
		return fmt.Errorf("telegram API error: status %d, code %d, description %q",
			resp.StatusCode, envelope.ErrorCode, envelope.Description)
	}
	return nil
}

func (c *botClient) GetUpdates(ctx context.Context, offset int64, waitSeconds int) ([]types.Update, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	if waitSeconds < 0 {
		waitSeconds = 0
	}

	// The client deadline must sit strictly past the server wait window
	// so a silent endpoint cannot hang the poll loop indefinitely.
	ctx, cancel := context.WithTimeout(ctx, time.Duration(waitSeconds)*time.Second+c.pollSlack)
	defer cancel()

	endpoint := fmt.Sprintf("%s?offset=%d&timeout=%d", c.methodURL(token, "getUpdates"), offset, waitSeconds)
	var result types.UpdatesResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API error: code %d, description %q", result.ErrorCode, result.Description)
	}
	return result.Result, nil
}

func (c *botClient) GetMe(ctx context.Context) (*types.BotInfo, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result types.BotInfoResponse
	if err := c.getJSON(ctx, c.methodURL(token, "getMe"), &result); err != nil {
		return nil, err
	}
	if !result.OK || result.Result == nil {
		return nil, fmt.Errorf("telegram API error: code %d, description %q", result.ErrorCode, result.Description)
	}
	return result.Result, nil
}

func (c *botClient) GetUserProfilePhotos(ctx context.Context, userID int64, limit int) (*types.UserProfilePhotos, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?user_id=%d&limit=%d", c.methodURL(token, "getUserProfilePhotos"), userID, limit)
	var result types.ProfilePhotosResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if !result.OK || result.Result == nil {
		return nil, fmt.Errorf("telegram API error: code %d, description %q", result.ErrorCode, result.Description)
	}
	return result.Result, nil
}

func (c *botClient) GetFile(ctx context.Context, fileID string) (*types.File, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s?file_id=%s", c.methodURL(token, "getFile"), url.QueryEscape(fileID))
	var result types.FileResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if !result.OK || result.Result == nil {
		return nil, fmt.Errorf("telegram API error: code %d, description %q", result.ErrorCode, result.Description)
	}
	return result.Result, nil
}

func (c *botClient) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(token, filePath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("telegram file download error: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *botClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Error envelopes still carry JSON bodies, so decode regardless of
	// the status code and let the caller inspect the ok flag.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
