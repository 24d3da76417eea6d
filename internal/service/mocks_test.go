package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tokyodaito/SMS2Telegram/internal/store"
	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockTelegramClient records outbound API calls for assertion.
type mockTelegramClient struct {
	mock.Mock
}

func (m *mockTelegramClient) SendMessage(ctx context.Context, chatID, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

func (m *mockTelegramClient) GetUpdates(ctx context.Context, offset int64, waitSeconds int) ([]tgtypes.Update, error) {
	args := m.Called(ctx, offset, waitSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tgtypes.Update), args.Error(1)
}

func (m *mockTelegramClient) GetMe(ctx context.Context) (*tgtypes.BotInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgtypes.BotInfo), args.Error(1)
}

func (m *mockTelegramClient) GetUserProfilePhotos(ctx context.Context, userID int64, limit int) (*tgtypes.UserProfilePhotos, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgtypes.UserProfilePhotos), args.Error(1)
}

func (m *mockTelegramClient) GetFile(ctx context.Context, fileID string) (*tgtypes.File, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgtypes.File), args.Error(1)
}

func (m *mockTelegramClient) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	args := m.Called(ctx, filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// captureQueue is a DeliveryQueue that remembers enqueued texts.
type captureQueue struct {
	mu    sync.Mutex
	texts []string
}

func (q *captureQueue) Enqueue(ctx context.Context, text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.texts = append(q.texts, text)
}

func (q *captureQueue) Texts() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.texts))
	copy(out, q.texts)
	return out
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "settings.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
