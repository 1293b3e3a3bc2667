// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/message/config/user persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			is_connected INTEGER NOT NULL DEFAULT 0,
			pairing_code TEXT NOT NULL DEFAULT '',
			last_activity DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			peer_id TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			direction TEXT NOT NULL,
			is_ai_response INTEGER NOT NULL DEFAULT 0,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_user_timestamp
			ON messages(user_id, timestamp);

		CREATE INDEX IF NOT EXISTS idx_messages_user_peer_timestamp
			ON messages(user_id, peer_id, timestamp);

		CREATE TABLE IF NOT EXISTS ai_configs (
			user_id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			api_key TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			auto_reply INTEGER NOT NULL DEFAULT 0,
			temperature REAL NOT NULL DEFAULT 0.7,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertSession writes the session status mirror for a user.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *Session) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, status, is_connected, pairing_code, last_activity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			is_connected = excluded.is_connected,
			pairing_code = excluded.pairing_code,
			last_activity = excluded.last_activity,
			updated_at = excluded.updated_at
	`, session.UserID, string(session.Status), session.IsConnected, session.PairingCode, now, now)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// GetSession retrieves the session mirror for a user.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, status, is_connected, pairing_code, last_activity, updated_at
		FROM sessions WHERE user_id = ?
	`, userID)

	session := &Session{}
	var status string
	err := row.Scan(&session.UserID, &status, &session.IsConnected,
		&session.PairingCode, &session.LastActivity, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	session.Status = SessionStatus(status)
	return session, nil
}

// ListActiveSessions returns every session not in the terminated state.
func (s *SQLiteStore) ListActiveSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, status, is_connected, pairing_code, last_activity, updated_at
		FROM sessions WHERE status != ? ORDER BY updated_at
	`, string(StatusTerminated))
	if err != nil {
		return nil, fmt.Errorf("listing active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session := &Session{}
		var status string
		if err := rows.Scan(&session.UserID, &status, &session.IsConnected,
			&session.PairingCode, &session.LastActivity, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		session.Status = SessionStatus(status)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SaveMessage appends one message to the log.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, peer_id, external_id, content, direction, is_ai_response, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.UserID, msg.PeerID, msg.ExternalID, msg.Content,
		msg.Direction, msg.IsAIResponse, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// RecentPeerMessages returns up to limit messages exchanged with peerID,
// oldest first. The query walks the index newest-first and the result is
// reversed before returning.
func (s *SQLiteStore) RecentPeerMessages(ctx context.Context, userID, peerID string, limit int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, peer_id, external_id, content, direction, is_ai_response, timestamp
		FROM messages
		WHERE user_id = ? AND peer_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, userID, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying peer messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListMessages returns a newest-first page of messages and the total count.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID string, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting messages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, peer_id, external_id, content, direction, is_ai_response, timestamp
		FROM messages
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.PeerID, &msg.ExternalID,
			&msg.Content, &msg.Direction, &msg.IsAIResponse, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetAIConfig retrieves a user's AI configuration.
func (s *SQLiteStore) GetAIConfig(ctx context.Context, userID string) (*AIConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, provider, model, api_key, system_prompt, auto_reply, temperature, updated_at
		FROM ai_configs WHERE user_id = ?
	`, userID)

	cfg := &AIConfig{}
	err := row.Scan(&cfg.UserID, &cfg.Provider, &cfg.Model, &cfg.APIKey,
		&cfg.SystemPrompt, &cfg.AutoReply, &cfg.Temperature, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting ai config: %w", err)
	}
	return cfg, nil
}

// UpsertAIConfig writes a user's AI configuration.
func (s *SQLiteStore) UpsertAIConfig(ctx context.Context, cfg *AIConfig) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_configs (user_id, provider, model, api_key, system_prompt, auto_reply, temperature, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			provider = excluded.provider,
			model = excluded.model,
			api_key = excluded.api_key,
			system_prompt = excluded.system_prompt,
			auto_reply = excluded.auto_reply,
			temperature = excluded.temperature,
			updated_at = excluded.updated_at
	`, cfg.UserID, cfg.Provider, cfg.Model, cfg.APIKey, cfg.SystemPrompt,
		cfg.AutoReply, cfg.Temperature, now)
	if err != nil {
		return fmt.Errorf("upserting ai config: %w", err)
	}
	return nil
}

// CreateUser inserts a new user account.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateUser
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE id = ?
	`, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = ?
	`, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
