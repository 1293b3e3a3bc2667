// ABOUTME: Manages live per-user session units, one Transport per user at most
// ABOUTME: Registry insert/remove is atomic per key; race losers observe the winner's unit

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skelter/wagate/internal/ai"
	"github.com/skelter/wagate/internal/dedupe"
	"github.com/skelter/wagate/internal/pipeline"
	"github.com/skelter/wagate/internal/store"
	"github.com/skelter/wagate/internal/transport"
)

// DefaultRestartDelay is the fixed pause between a credential wipe and the
// fresh connection cycle, avoiding a tight crash loop on corrupted state.
const DefaultRestartDelay = 1500 * time.Millisecond

const (
	dedupeTTL  = 5 * time.Minute
	dedupeSize = 1024
)

// Manager owns the registry of live session units.
type Manager struct {
	dialer  transport.Dialer
	store   store.Store
	gateway ai.Gateway
	logger  *slog.Logger

	restartDelay time.Duration
	historyLimit int

	mu    sync.Mutex
	units map[string]*Unit
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithRestartDelay overrides the post-wipe restart delay.
func WithRestartDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.restartDelay = d }
}

// WithHistoryLimit overrides the pipeline history window size.
func WithHistoryLimit(n int) ManagerOption {
	return func(m *Manager) { m.historyLimit = n }
}

// NewManager creates a Manager.
func NewManager(dialer transport.Dialer, st store.Store, gateway ai.Gateway, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		dialer:       dialer,
		store:        st,
		gateway:      gateway,
		logger:       logger.With("component", "manager"),
		restartDelay: DefaultRestartDelay,
		historyLimit: pipeline.DefaultHistoryLimit,
		units:        make(map[string]*Unit),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start returns the live unit for the user, creating one if absent. The
// dial happens under the registry lock, so concurrent Start calls for the
// same user yield exactly one Transport; losers get the winner's unit.
func (m *Manager) Start(ctx context.Context, userID string) (*Unit, error) {
	m.mu.Lock()
	if u, ok := m.units[userID]; ok {
		m.mu.Unlock()
		return u, nil
	}

	tr, err := m.dialer.Dial(userID)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("dialing transport for %s: %w", userID, err)
	}

	unitCtx, cancel := context.WithCancel(context.Background())
	u := &Unit{
		UserID:  userID,
		manager: m,
		machine: NewMachine(unitCtx, userID, m.store, m.logger),
		cancel:  cancel,
		done:    make(chan struct{}),
		tr:      tr,
	}
	u.pipeline = pipeline.New(userID, m.store, m.store, m.gateway,
		dedupe.New(dedupeTTL, dedupeSize), m.historyLimit, m.logger)
	m.units[userID] = u
	total := len(m.units)
	m.mu.Unlock()

	m.logger.Info("session started", "user_id", userID, "total_sessions", total)
	go u.run(unitCtx)
	return u, nil
}

// Get returns the live unit for the user, if any. It never blocks and
// never touches durable storage.
func (m *Manager) Get(userID string) (*Unit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[userID]
	return u, ok
}

// Stop tears down the user's unit and removes the registry entry.
// Idempotent on an absent key.
func (m *Manager) Stop(userID string) {
	u := m.take(userID)
	if u == nil {
		return
	}
	u.stop()
	m.logger.Info("session stopped", "user_id", userID)
}

// Logout ends the session permanently: the unit is torn down and the
// durable session moves to terminated. The session row itself is kept.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if u := m.take(userID); u != nil {
		u.machine.Terminate(ctx)
		u.stop()
		return nil
	}
	session, err := m.store.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	session.Status = store.StatusTerminated
	session.IsConnected = false
	session.PairingCode = ""
	return m.store.UpsertSession(ctx, session)
}

// Status reports the session status for a user: the live unit's in-memory
// state when one exists, the durable mirror otherwise.
func (m *Manager) Status(ctx context.Context, userID string) (store.SessionStatus, bool, error) {
	if u, ok := m.Get(userID); ok {
		status, connected := u.machine.Status()
		return status, connected, nil
	}
	session, err := m.store.GetSession(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.StatusDisconnected, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return session.Status, session.IsConnected, nil
}

// PairingState is the three-way result of a pairing artifact query.
type PairingState int

const (
	// PairingAvailable means a code is ready to be presented.
	PairingAvailable PairingState = iota
	// PairingPending means the session is still initializing; poll again.
	PairingPending
	// PairingConnected means the session is already established.
	PairingConnected
)

// Pairing returns the current pairing artifact for a live unit.
func (m *Manager) Pairing(userID string) (string, PairingState) {
	u, ok := m.Get(userID)
	if !ok {
		return "", PairingPending
	}
	if status, connected := u.machine.Status(); connected || status == store.StatusConnected {
		return "", PairingConnected
	}
	if code := u.machine.PairingCode(); code != "" {
		return code, PairingAvailable
	}
	return "", PairingPending
}

// Resume starts units for every non-terminated durable session, used after
// a process restart.
func (m *Manager) Resume(ctx context.Context) error {
	sessions, err := m.store.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("listing active sessions: %w", err)
	}
	for _, s := range sessions {
		if _, err := m.Start(ctx, s.UserID); err != nil {
			m.logger.Error("failed to resume session", "user_id", s.UserID, "error", err)
		}
	}
	return nil
}

// Shutdown stops every live unit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	units := make([]*Unit, 0, len(m.units))
	for _, u := range m.units {
		units = append(units, u)
	}
	m.units = make(map[string]*Unit)
	m.mu.Unlock()

	for _, u := range units {
		u.stop()
	}
}

// take removes and returns the unit for a user, or nil.
func (m *Manager) take(userID string) *Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[userID]
	if !ok {
		return nil
	}
	delete(m.units, userID)
	return u
}

// removeUnit drops the registry entry only if it still maps to this exact
// unit; a completed teardown must not evict a newer session started for the
// same user.
func (m *Manager) removeUnit(u *Unit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.units[u.UserID]; ok && cur == u {
		delete(m.units, u.UserID)
	}
}
