package service

import (
	"context"
	"errors"
	"testing"

	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCheckRecordsValidCredential(t *testing.T) {
	st := setupTestStore(t)
	client := &mockTelegramClient{}
	checker := NewConnectionChecker(st, client, testLogger())

	client.On("GetMe", mock.Anything).Return(&tgtypes.BotInfo{ID: 42, Username: "relay_bot"}, nil).Once()

	status, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Valid)
	assert.Equal(t, int64(42), status.BotID)
	assert.Equal(t, "relay_bot", status.BotUsername)
	assert.NotZero(t, status.CheckedAt)

	stored, err := st.ConnectionStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, status, *stored)
}

func TestCheckRecordsFailure(t *testing.T) {
	st := setupTestStore(t)
	client := &mockTelegramClient{}
	checker := NewConnectionChecker(st, client, testLogger())

	client.On("GetMe", mock.Anything).Return(nil, errors.New("telegram API error: status 401")).Once()

	status, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.Contains(t, status.LastError, "401")

	stored, err := st.ConnectionStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Valid)
}

func TestCheckReplacesPreviousStatus(t *testing.T) {
	st := setupTestStore(t)
	client := &mockTelegramClient{}
	checker := NewConnectionChecker(st, client, testLogger())

	client.On("GetMe", mock.Anything).Return(&tgtypes.BotInfo{ID: 42, Username: "relay_bot"}, nil).Once()
	_, err := checker.Check(context.Background())
	require.NoError(t, err)

	client.On("GetMe", mock.Anything).Return(nil, errors.New("revoked")).Once()
	_, err = checker.Check(context.Background())
	require.NoError(t, err)

	stored, err := st.ConnectionStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Valid)
	// The record is replaced wholesale, so no stale bot identity survives.
	assert.Zero(t, stored.BotID)
	assert.Empty(t, stored.BotUsername)
}
