package service

import (
	"context"
	"testing"

	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/store"
	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupCommands(t *testing.T) (*CommandInterpreter, *mockTelegramClient, *store.Store) {
	t.Helper()

	st := setupTestStore(t)
	client := &mockTelegramClient{}
	return NewCommandInterpreter(st, client, testLogger()), client, st
}

func linkChat(t *testing.T, st *store.Store, chatID string, userID int64) {
	t.Helper()
	require.NoError(t, st.UpsertRecipient(context.Background(), models.LinkedRecipient{
		ChatID:      chatID,
		UserID:      userID,
		DisplayName: "Tester",
		LinkedAt:    1,
	}))
}

func commandMessage(chatID int64, text string) *tgtypes.Message {
	return &tgtypes.Message{
		MessageID: 1,
		From:      &tgtypes.User{ID: chatID, FirstName: "Tester"},
		Chat:      tgtypes.Chat{ID: chatID, Type: tgtypes.ChatTypePrivate},
		Text:      text,
	}
}

func TestHandleIgnoresUnauthorizedChat(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	interpreter.Handle(context.Background(), commandMessage(999, "/status"))

	// Silent drop: not even an error reply.
	client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleIgnoresNonCommandText(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	interpreter.Handle(context.Background(), commandMessage(555, "just chatting"))

	client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleAdminFallbackWhenNoRecipients(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	ctx := context.Background()
	require.NoError(t, st.SetAdminChatIDsRaw(ctx, "777"))

	client.On("SendMessage", mock.Anything, "777", helpText).Return(nil).Once()

	interpreter.Handle(ctx, commandMessage(777, "/help"))

	client.AssertExpectations(t)
}

func TestHandleAdminFallbackDisabledOnceLinked(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	ctx := context.Background()
	require.NoError(t, st.SetAdminChatIDsRaw(ctx, "777"))
	linkChat(t, st, "555", 555)

	interpreter.Handle(ctx, commandMessage(777, "/help"))

	client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHelpCommand(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	client.On("SendMessage", mock.Anything, "555", helpText).Return(nil).Once()

	interpreter.Handle(context.Background(), commandMessage(555, "/help"))

	client.AssertExpectations(t)
}

func TestUnknownCommand(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	client.On("SendMessage", mock.Anything, "555", "Unknown command. Use /help").Return(nil).Once()

	interpreter.Handle(context.Background(), commandMessage(555, "/reboot"))

	client.AssertExpectations(t)
}

func TestEnableCommand(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	ctx := context.Background()
	linkChat(t, st, "555", 555)

	client.On("SendMessage", mock.Anything, "555", "battery_low enabled").Return(nil).Once()

	interpreter.Handle(ctx, commandMessage(555, "/enable battery_low"))

	enabled, err := st.EventEnabled(ctx, models.EventBatteryLow)
	require.NoError(t, err)
	assert.True(t, enabled)
	client.AssertExpectations(t)
}

func TestDisableAllCommand(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	ctx := context.Background()
	linkChat(t, st, "555", 555)

	client.On("SendMessage", mock.Anything, "555", "All events disabled").Return(nil).Once()

	interpreter.Handle(ctx, commandMessage(555, "/disable all"))

	status, err := st.EventStatus(ctx)
	require.NoError(t, err)
	for kind, enabled := range status {
		assert.False(t, enabled, "%s should be off", kind)
	}
	client.AssertExpectations(t)
}

func TestEnableUnknownEvent(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	client.On("SendMessage", mock.Anything, "555", "Unknown event 'carrier_pigeon'. Use /list_events").Return(nil).Once()

	interpreter.Handle(context.Background(), commandMessage(555, "/enable carrier_pigeon"))

	client.AssertExpectations(t)
}

func TestEnableWithoutArgument(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	client.On("SendMessage", mock.Anything, "555", "Usage: /enable <event|all>").Return(nil).Once()

	interpreter.Handle(context.Background(), commandMessage(555, "/enable"))

	client.AssertExpectations(t)
}

func TestStatusCommand(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	ctx := context.Background()
	linkChat(t, st, "555", 555)
	require.NoError(t, st.SetSyncEnabled(ctx, true))

	var reply string
	client.On("SendMessage", mock.Anything, "555", mock.Anything).
		Run(func(args mock.Arguments) {
			reply = args.String(2)
		}).
		Return(nil).Once()

	interpreter.Handle(ctx, commandMessage(555, "/status"))

	assert.Contains(t, reply, "sync: on")
	assert.Contains(t, reply, "sms: on")
	assert.Contains(t, reply, "battery_low: off")
	client.AssertExpectations(t)
}

func TestListEventsCommand(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	var reply string
	client.On("SendMessage", mock.Anything, "555", mock.Anything).
		Run(func(args mock.Arguments) {
			reply = args.String(2)
		}).
		Return(nil).Once()

	interpreter.Handle(context.Background(), commandMessage(555, "/list_events"))

	assert.Contains(t, reply, "Supported events:")
	for _, kind := range models.AllEventKinds() {
		assert.Contains(t, reply, string(kind))
	}
	client.AssertExpectations(t)
}

func TestCommandWithBotNameSuffix(t *testing.T) {
	interpreter, client, st := setupCommands(t)
	linkChat(t, st, "555", 555)

	client.On("SendMessage", mock.Anything, "555", helpText).Return(nil).Once()

	interpreter.Handle(context.Background(), commandMessage(555, "/help@relay_bot"))

	client.AssertExpectations(t)
}
