package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tokyodaito/SMS2Telegram/internal/metrics"
	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/store"
	tgtypes "github.com/tokyodaito/SMS2Telegram/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

const helpText = "Commands:\n/status\n/list_events\n/enable <event|all>\n/disable <event|all>\n/help"

// CommandInterpreter parses and executes control commands from authorized
// chats, mutating the forwarding configuration and replying in the same
// chat. Unauthorized senders get no reply at all, so the command surface is
// not revealed.
type CommandInterpreter struct {
	store  *store.Store
	client tgtypes.Client
	logger *logrus.Logger
}

// NewCommandInterpreter creates a command interpreter.
func NewCommandInterpreter(st *store.Store, client tgtypes.Client, logger *logrus.Logger) *CommandInterpreter {
	return &CommandInterpreter{
		store:  st,
		client: client,
		logger: logger,
	}
}

// Handle processes one inbound message. Non-command text and messages from
// unauthorized chats are dropped silently.
func (ci *CommandInterpreter) Handle(ctx context.Context, msg *tgtypes.Message) {
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	authorized, err := ci.authorized(ctx, chatID)
	if err != nil {
		ci.logger.WithError(err).Warn("Failed to check command authorization")
		return
	}
	if !authorized {
		ci.logger.WithField("chat", chatID).Debug("Ignoring command from unauthorized chat")
		return
	}

	response := ci.respond(ctx, msg.Text)
	metrics.IncrementCounter("commands_handled_total", nil, "Control commands executed")
	if err := ci.client.SendMessage(ctx, chatID, response); err != nil {
		ci.logger.WithError(err).Error("Failed to send control response")
	}
}

// authorized checks the chat against the linked recipient list first. The
// legacy admin allow-list only applies while no recipients are linked.
func (ci *CommandInterpreter) authorized(ctx context.Context, chatID string) (bool, error) {
	recipients, err := ci.store.LinkedRecipients(ctx)
	if err != nil {
		return false, err
	}
	if len(recipients) > 0 {
		for _, r := range recipients {
			if r.ChatID == chatID {
				return true, nil
			}
		}
		return false, nil
	}
	return ci.store.AdminChatAllowed(ctx, chatID)
}

// respond executes a single command line and produces the reply text.
func (ci *CommandInterpreter) respond(ctx context.Context, text string) string {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) == 0 {
		return helpText
	}
	// The command token may carry a bot-name suffix like /status@mybot.
	command := strings.ToLower(strings.SplitN(parts[0], "@", 2)[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.ToLower(parts[1])
	}

	switch command {
	case "/help":
		return helpText
	case "/list_events":
		return listEventsText()
	case "/status":
		return ci.statusText(ctx)
	case "/enable":
		return ci.toggleEvents(ctx, arg, true)
	case "/disable":
		return ci.toggleEvents(ctx, arg, false)
	default:
		return "Unknown command. Use /help"
	}
}

func (ci *CommandInterpreter) toggleEvents(ctx context.Context, arg string, enabled bool) string {
	if arg == "" {
		if enabled {
			return "Usage: /enable <event|all>"
		}
		return "Usage: /disable <event|all>"
	}

	if arg == "all" {
		if err := ci.store.SetAllEventsEnabled(ctx, enabled); err != nil {
			ci.logger.WithError(err).Error("Failed to toggle all events")
			return "Failed to update settings"
		}
		if enabled {
			return "All events enabled"
		}
		return "All events disabled"
	}

	kind, ok := models.ParseEventKind(arg)
	if !ok {
		return fmt.Sprintf("Unknown event '%s'. Use /list_events", arg)
	}
	if err := ci.store.SetEventEnabled(ctx, kind, enabled); err != nil {
		ci.logger.WithError(err).Error("Failed to toggle event")
		return "Failed to update settings"
	}
	if enabled {
		return fmt.Sprintf("%s enabled", kind)
	}
	return fmt.Sprintf("%s disabled", kind)
}

func (ci *CommandInterpreter) statusText(ctx context.Context) string {
	syncEnabled, err := ci.store.SyncEnabled(ctx)
	if err != nil {
		ci.logger.WithError(err).Error("Failed to read sync flag")
		return "Failed to read settings"
	}
	status, err := ci.store.EventStatus(ctx)
	if err != nil {
		ci.logger.WithError(err).Error("Failed to read event status")
		return "Failed to read settings"
	}

	kinds := make([]string, 0, len(status))
	for kind := range status {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var b strings.Builder
	b.WriteString("sync: ")
	b.WriteString(onOff(syncEnabled))
	for _, kind := range kinds {
		b.WriteString("\n")
		b.WriteString(kind)
		b.WriteString(": ")
		b.WriteString(onOff(status[models.EventKind(kind)]))
	}
	return b.String()
}

func listEventsText() string {
	names := make([]string, 0, len(models.AllEventKinds()))
	for _, kind := range models.AllEventKinds() {
		names = append(names, string(kind))
	}
	return "Supported events:\n" + strings.Join(names, "\n")
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
