// ABOUTME: Store interfaces and data types for wagate persistence
// ABOUTME: Defines Session, Message, AIConfig, User and the per-concern store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when registering an email that is already taken
var ErrDuplicateUser = errors.New("user already exists")

// SessionStatus is the connectivity state of a chat session.
type SessionStatus string

const (
	StatusInitializing SessionStatus = "initializing"
	StatusQRPending    SessionStatus = "qr_pending"
	StatusConnected    SessionStatus = "connected"
	StatusDisconnected SessionStatus = "disconnected"
	StatusTerminated   SessionStatus = "terminated"
)

// Session is the durable mirror of one user's chat session. There is at most
// one row per user; a session is never deleted, only moved to terminated.
type Session struct {
	UserID       string
	Status       SessionStatus
	IsConnected  bool
	PairingCode  string // present only while status is qr_pending
	LastActivity time.Time
	UpdatedAt    time.Time
}

// Message direction constants
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is one inbound or outbound chat message. Rows are append-only.
type Message struct {
	ID           string
	UserID       string
	PeerID       string
	ExternalID   string // transport-assigned id; synthesized for AI replies
	Content      string
	Direction    string // "inbound" or "outbound"
	IsAIResponse bool
	Timestamp    time.Time
}

// AIConfig holds one user's auto-reply settings. The model is always
// consistent with the provider's catalog; updates that name an unknown
// model are resolved to the provider default before storage.
type AIConfig struct {
	UserID       string
	Provider     string
	Model        string
	APIKey       string
	SystemPrompt string
	AutoReply    bool
	Temperature  float64
	UpdatedAt    time.Time
}

// User is an account that may own one chat session.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// SessionStore persists session status mirrors.
type SessionStore interface {
	UpsertSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, userID string) (*Session, error)
	// ListActiveSessions returns every session not in the terminated state,
	// used to resume connections after a process restart.
	ListActiveSessions(ctx context.Context) ([]*Session, error)
}

// MessageStore persists the append-only message log.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *Message) error
	// RecentPeerMessages returns up to limit messages exchanged with the
	// given peer, oldest first.
	RecentPeerMessages(ctx context.Context, userID, peerID string, limit int) ([]*Message, error)
	// ListMessages returns a newest-first page of the user's messages plus
	// the total row count for pagination.
	ListMessages(ctx context.Context, userID string, limit, offset int) ([]*Message, int, error)
}

// ConfigStore persists per-user AI auto-reply configuration.
type ConfigStore interface {
	GetAIConfig(ctx context.Context, userID string) (*AIConfig, error)
	UpsertAIConfig(ctx context.Context, cfg *AIConfig) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Store is the full persistence surface, implemented by SQLiteStore and
// MockStore.
type Store interface {
	SessionStore
	MessageStore
	ConfigStore
	UserStore

	// Close releases any resources held by the store
	Close() error
}
