package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Settings keys. The string values are kept compatible with the original
// preference names so an imported settings dump keeps working.
const (
	keySyncEnabled        = "sms2telegram.settings.tg.enabled"
	keyEventEnabledPrefix = "sms2telegram.settings.events."
	keyMigrated           = "sms2telegram.settings.migrated.v1"
	keyBotToken           = "telegram_bot_key"
	keyLegacyChatID       = "telegram_chat_id"
	keyAdminChatIDs       = "telegram_admin_chat_ids"
	keyUpdatesOffset      = "telegram_updates_offset"
	keyLinkedRecipients   = "telegram_linked_users"
	keyConnectionStatus   = "telegram_bot_status"
	keyPairingSession     = "telegram_pairing_session"
	keyCallTrackState     = "telephony_runtime_state"
	keySim0Number         = "sim0_number"
	keySim1Number         = "sim1_number"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the SQLite-backed settings and runtime-state store. Values are
// plain key/value rows; composite records are JSON blobs. Read-modify-write
// records (cursor, recipient list, pairing session) are guarded by a single
// mutex so concurrent writers cannot interleave partial updates.
type Store struct {
	db        *sql.DB
	encryptor *encryptor
	mu        sync.Mutex
}

// New opens (creating if necessary) the settings store at dbPath. A
// non-empty encryptionSecret enables at-rest encryption of credentials and
// chat identifiers; an empty one stores them as-is.
func New(dbPath, encryptionSecret string) (*Store, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := newEncryptor(encryptionSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := retryableOperation(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
		return row.Scan(&value)
	}, "settings read")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) setValue(ctx context.Context, key, value string) error {
	return retryableOperation(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value, time.Now().UTC())
		return err
	}, "settings write")
}

// GetBool returns the stored boolean for key, or def when absent.
func (s *Store) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	value, ok, err := s.getValue(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return value == "true", nil
}

func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	if value {
		return s.setValue(ctx, key, "true")
	}
	return s.setValue(ctx, key, "false")
}

// GetString returns the stored string for key, or def when absent.
func (s *Store) GetString(ctx context.Context, key, def string) (string, error) {
	value, ok, err := s.getValue(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return value, nil
}

func (s *Store) SetString(ctx context.Context, key, value string) error {
	return s.setValue(ctx, key, value)
}

// GetInt64 returns the stored integer for key, or def when absent or malformed.
func (s *Store) GetInt64(ctx context.Context, key string, def int64) (int64, error) {
	value, ok, err := s.getValue(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	var parsed int64
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return def, nil
	}
	return parsed, nil
}

func (s *Store) SetInt64(ctx context.Context, key string, value int64) error {
	return s.setValue(ctx, key, fmt.Sprintf("%d", value))
}

// SyncEnabled reports whether global event forwarding is on. Off by default.
func (s *Store) SyncEnabled(ctx context.Context) (bool, error) {
	return s.GetBool(ctx, keySyncEnabled, false)
}

func (s *Store) SetSyncEnabled(ctx context.Context, enabled bool) error {
	return s.SetBool(ctx, keySyncEnabled, enabled)
}

func eventEnabledKey(kind models.EventKind) string {
	return keyEventEnabledPrefix + string(kind)
}

// EventEnabled reports whether forwarding of the given kind is on, falling
// back to the kind's built-in default.
func (s *Store) EventEnabled(ctx context.Context, kind models.EventKind) (bool, error) {
	return s.GetBool(ctx, eventEnabledKey(kind), kind.DefaultEnabled())
}

func (s *Store) SetEventEnabled(ctx context.Context, kind models.EventKind, enabled bool) error {
	return s.SetBool(ctx, eventEnabledKey(kind), enabled)
}

// SetAllEventsEnabled toggles every known kind at once.
func (s *Store) SetAllEventsEnabled(ctx context.Context, enabled bool) error {
	for _, kind := range models.AllEventKinds() {
		if err := s.SetEventEnabled(ctx, kind, enabled); err != nil {
			return err
		}
	}
	return nil
}

// EventStatus returns the enabled flag for every known kind.
func (s *Store) EventStatus(ctx context.Context) (map[models.EventKind]bool, error) {
	status := make(map[models.EventKind]bool, len(models.AllEventKinds()))
	for _, kind := range models.AllEventKinds() {
		enabled, err := s.EventEnabled(ctx, kind)
		if err != nil {
			return nil, err
		}
		status[kind] = enabled
	}
	return status, nil
}

// BotToken returns the stored bot credential, decrypted when at-rest
// encryption is enabled. Empty means not configured.
func (s *Store) BotToken(ctx context.Context) (string, error) {
	stored, err := s.GetString(ctx, keyBotToken, "")
	if err != nil || stored == "" {
		return "", err
	}
	return s.encryptor.Decrypt(stored)
}

func (s *Store) SetBotToken(ctx context.Context, token string) error {
	encrypted, err := s.encryptor.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt bot token: %w", err)
	}
	return s.SetString(ctx, keyBotToken, encrypted)
}

// LegacyChatID returns the single pre-pairing chat target, used only when no
// recipients are linked.
func (s *Store) LegacyChatID(ctx context.Context) (string, error) {
	stored, err := s.GetString(ctx, keyLegacyChatID, "")
	if err != nil || stored == "" {
		return "", err
	}
	return s.encryptor.Decrypt(stored)
}

func (s *Store) SetLegacyChatID(ctx context.Context, chatID string) error {
	encrypted, err := s.encryptor.Encrypt(chatID)
	if err != nil {
		return fmt.Errorf("failed to encrypt chat id: %w", err)
	}
	return s.SetString(ctx, keyLegacyChatID, encrypted)
}

// AdminChatIDs parses the raw allow-list setting. Separators are commas,
// newlines and spaces.
func (s *Store) AdminChatIDs(ctx context.Context) ([]string, error) {
	raw, err := s.GetString(ctx, keyAdminChatIDs, "")
	if err != nil {
		return nil, err
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

func (s *Store) SetAdminChatIDsRaw(ctx context.Context, raw string) error {
	return s.SetString(ctx, keyAdminChatIDs, raw)
}

// AdminChatAllowed reports whether chatID is present in the legacy admin
// allow-list. An empty list allows nobody.
func (s *Store) AdminChatAllowed(ctx context.Context, chatID string) (bool, error) {
	allowed, err := s.AdminChatIDs(ctx)
	if err != nil {
		return false, err
	}
	chatID = strings.TrimSpace(chatID)
	for _, id := range allowed {
		if id == chatID {
			return true, nil
		}
	}
	return false, nil
}

// Cursor returns the inbound update offset.
func (s *Store) Cursor(ctx context.Context) (int64, error) {
	return s.GetInt64(ctx, keyUpdatesOffset, 0)
}

// SetCursor persists the offset. The cursor never moves backwards: a value
// smaller than the stored one is ignored.
func (s *Store) SetCursor(ctx context.Context, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetInt64(ctx, keyUpdatesOffset, 0)
	if err != nil {
		return err
	}
	if offset <= current {
		return nil
	}
	return s.SetInt64(ctx, keyUpdatesOffset, offset)
}

// LinkedRecipients returns the current recipient list.
func (s *Store) LinkedRecipients(ctx context.Context) ([]models.LinkedRecipient, error) {
	stored, err := s.GetString(ctx, keyLinkedRecipients, "")
	if err != nil || stored == "" {
		return nil, err
	}
	raw, err := s.encryptor.Decrypt(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt recipient list: %w", err)
	}
	return models.RecipientsFromJSON(raw), nil
}

// SetLinkedRecipients replaces the recipient list wholesale.
func (s *Store) SetLinkedRecipients(ctx context.Context, recipients []models.LinkedRecipient) error {
	raw, err := models.RecipientsToJSON(recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipient list: %w", err)
	}
	encrypted, err := s.encryptor.Encrypt(raw)
	if err != nil {
		return fmt.Errorf("failed to encrypt recipient list: %w", err)
	}
	return s.SetString(ctx, keyLinkedRecipients, encrypted)
}

// UpsertRecipient adds the recipient, replacing any existing entry with the
// same chat id. The whole read-modify-write runs under the store lock.
func (s *Store) UpsertRecipient(ctx context.Context, recipient models.LinkedRecipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipients, err := s.LinkedRecipients(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range recipients {
		if existing.ChatID == recipient.ChatID {
			recipients[i] = recipient
			replaced = true
			break
		}
	}
	if !replaced {
		recipients = append(recipients, recipient)
	}
	return s.SetLinkedRecipients(ctx, recipients)
}

// RemoveRecipient deletes the recipient with the given chat id, if present.
func (s *Store) RemoveRecipient(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipients, err := s.LinkedRecipients(ctx)
	if err != nil {
		return err
	}
	out := recipients[:0]
	for _, r := range recipients {
		if r.ChatID != chatID {
			out = append(out, r)
		}
	}
	return s.SetLinkedRecipients(ctx, out)
}

// ConnectionStatus returns the last recorded credential check, or nil when
// no check has run yet.
func (s *Store) ConnectionStatus(ctx context.Context) (*models.ConnectionStatus, error) {
	raw, err := s.GetString(ctx, keyConnectionStatus, "")
	if err != nil {
		return nil, err
	}
	return models.ConnectionStatusFromJSON(raw), nil
}

// SetConnectionStatus replaces the status record wholesale.
func (s *Store) SetConnectionStatus(ctx context.Context, status models.ConnectionStatus) error {
	raw, err := status.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode connection status: %w", err)
	}
	return s.SetString(ctx, keyConnectionStatus, raw)
}

// PairingSession returns the stored pairing session record.
func (s *Store) PairingSession(ctx context.Context) (models.PairingSession, error) {
	raw, err := s.GetString(ctx, keyPairingSession, "")
	if err != nil {
		return models.PairingSession{}, err
	}
	return models.PairingSessionFromJSON(raw), nil
}

func (s *Store) SetPairingSession(ctx context.Context, session models.PairingSession) error {
	raw, err := session.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode pairing session: %w", err)
	}
	return s.SetString(ctx, keyPairingSession, raw)
}

// CallTrackState returns the persisted telephony tracking record.
func (s *Store) CallTrackState(ctx context.Context) (models.CallTrackState, error) {
	raw, err := s.GetString(ctx, keyCallTrackState, "")
	if err != nil {
		return models.CallTrackState{}, err
	}
	return models.CallTrackStateFromJSON(raw), nil
}

func (s *Store) SetCallTrackState(ctx context.Context, state models.CallTrackState) error {
	raw, err := state.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode call track state: %w", err)
	}
	return s.SetString(ctx, keyCallTrackState, raw)
}

// SimNumber returns the configured number for the given SIM slot.
func (s *Store) SimNumber(ctx context.Context, slot int) (string, error) {
	switch slot {
	case 0:
		return s.GetString(ctx, keySim0Number, "Please configure phone number in settings")
	case 1:
		return s.GetString(ctx, keySim1Number, "Please configure phone number in settings")
	default:
		return "Unsupported feature (please contact the developer)", nil
	}
}

func (s *Store) SetSimNumber(ctx context.Context, slot int, number string) error {
	switch slot {
	case 0:
		return s.SetString(ctx, keySim0Number, number)
	case 1:
		return s.SetString(ctx, keySim1Number, number)
	default:
		return fmt.Errorf("unsupported sim slot %d", slot)
	}
}

// MigrateLegacy copies legacy settings values into the store, once. Keys
// already present win over the legacy values. The bot token and chat id are
// re-written through the encryptor on the way in.
func (s *Store) MigrateLegacy(ctx context.Context, legacy map[string]string) error {
	migrated, err := s.GetBool(ctx, keyMigrated, false)
	if err != nil {
		return err
	}
	if migrated {
		return nil
	}

	for _, key := range []string{keyBotToken, keyLegacyChatID, keySim0Number, keySim1Number, keyAdminChatIDs} {
		value, ok := legacy[key]
		if !ok || value == "" {
			continue
		}
		if _, exists, err := s.getValue(ctx, key); err != nil {
			return err
		} else if exists {
			continue
		}
		switch key {
		case keyBotToken:
			err = s.SetBotToken(ctx, value)
		case keyLegacyChatID:
			err = s.SetLegacyChatID(ctx, value)
		default:
			err = s.SetString(ctx, key, value)
		}
		if err != nil {
			return err
		}
	}

	return s.SetBool(ctx, keyMigrated, true)
}
