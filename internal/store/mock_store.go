// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session   // keyed by user ID
	messages map[string][]*Message // keyed by user ID, append order
	configs  map[string]*AIConfig  // keyed by user ID
	users    map[string]*User      // keyed by user ID
	byEmail  map[string]string     // email -> user ID

	// FailSaveMessage makes SaveMessage return the given error when set.
	FailSaveMessage error
	// FailUpsertSession makes UpsertSession return the given error when set.
	FailUpsertSession error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]*Message),
		configs:  make(map[string]*AIConfig),
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
	}
}

// UpsertSession stores a copy of the session mirror.
func (m *MockStore) UpsertSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpsertSession != nil {
		return m.FailUpsertSession
	}
	s := *session
	s.UpdatedAt = time.Now()
	m.sessions[s.UserID] = &s
	return nil
}

// GetSession retrieves the session mirror for a user.
func (m *MockStore) GetSession(ctx context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// ListActiveSessions returns every non-terminated session.
func (m *MockStore) ListActiveSessions(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*Session
	for _, s := range m.sessions {
		if s.Status == StatusTerminated {
			continue
		}
		out := *s
		sessions = append(sessions, &out)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UserID < sessions[j].UserID })
	return sessions, nil
}

// SaveMessage appends a copy of the message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaveMessage != nil {
		return m.FailSaveMessage
	}
	c := *msg
	m.messages[c.UserID] = append(m.messages[c.UserID], &c)
	return nil
}

// RecentPeerMessages returns up to limit messages for the peer, oldest first.
func (m *MockStore) RecentPeerMessages(ctx context.Context, userID, peerID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Message
	for _, msg := range m.messages[userID] {
		if msg.PeerID == peerID {
			matched = append(matched, msg)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	out := make([]*Message, len(matched))
	for i, msg := range matched {
		c := *msg
		out[i] = &c
	}
	return out, nil
}

// ListMessages returns a newest-first page and the total count.
func (m *MockStore) ListMessages(ctx context.Context, userID string, limit, offset int) ([]*Message, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Message, len(m.messages[userID]))
	copy(all, m.messages[userID])
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]*Message, len(all))
	for i, msg := range all {
		c := *msg
		out[i] = &c
	}
	return out, total, nil
}

// GetAIConfig retrieves a user's AI configuration.
func (m *MockStore) GetAIConfig(ctx context.Context, userID string) (*AIConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *cfg
	return &out, nil
}

// UpsertAIConfig stores a copy of the configuration.
func (m *MockStore) UpsertAIConfig(ctx context.Context, cfg *AIConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cfg
	c.UpdatedAt = time.Now()
	m.configs[c.UserID] = &c
	return nil
}

// CreateUser stores a new user, rejecting duplicate emails.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[user.Email]; taken {
		return ErrDuplicateUser
	}
	c := *user
	m.users[c.ID] = &c
	m.byEmail[c.Email] = c.ID
	return nil
}

// GetUser retrieves a user by id.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m.users[id]
	return &out, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error { return nil }
