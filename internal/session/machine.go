// ABOUTME: Per-user connection state machine driven by transport lifecycle events
// ABOUTME: In-memory state is authoritative; the session store is a best-effort mirror

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skelter/wagate/internal/store"
	"github.com/skelter/wagate/internal/transport"
)

// Action tells the owning unit what to do after a lifecycle transition.
type Action int

const (
	// ActionNone requires no follow-up.
	ActionNone Action = iota
	// ActionReconnect asks for an immediate redial.
	ActionReconnect
	// ActionResetCredentials asks for a credential wipe followed by a
	// delayed redial.
	ActionResetCredentials
	// ActionTerminate ends the session for good; no automatic restart.
	ActionTerminate
)

// Machine tracks one user's session status across transport lifecycle
// events. Transitions are applied in-memory first and mirrored to the
// session store; a failed write is logged but never blocks the transition.
type Machine struct {
	userID   string
	sessions store.SessionStore
	logger   *slog.Logger

	mu          sync.Mutex
	status      store.SessionStatus
	pairingCode string
	lastSeq     uint64
}

// NewMachine creates a machine in the initializing state and mirrors it.
func NewMachine(ctx context.Context, userID string, sessions store.SessionStore, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		userID:   userID,
		sessions: sessions,
		logger:   logger.With("component", "session", "user_id", userID),
		status:   store.StatusInitializing,
	}
	m.mu.Lock()
	m.persistLocked(ctx)
	m.mu.Unlock()
	return m
}

// Apply consumes one lifecycle event and returns the follow-up action.
// Events carrying a sequence number lower than one already applied are
// discarded; the transport may reorder on reconnect races.
func (m *Machine) Apply(ctx context.Context, ev transport.Event) Action {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Seq != 0 {
		if ev.Seq <= m.lastSeq {
			m.logger.Debug("discarding stale lifecycle event", "seq", ev.Seq, "last_seq", m.lastSeq)
			return ActionNone
		}
		m.lastSeq = ev.Seq
	}

	if m.status == store.StatusTerminated {
		return ActionNone
	}

	switch ev.Type {
	case transport.EventPairing:
		m.status = store.StatusQRPending
		m.pairingCode = ev.PairingCode
		m.logger.Info("pairing challenge issued")
		m.persistLocked(ctx)
		return ActionNone

	case transport.EventConnected:
		m.status = store.StatusConnected
		m.pairingCode = ""
		m.logger.Info("session established")
		m.persistLocked(ctx)
		return ActionNone

	case transport.EventClosed:
		m.status = store.StatusDisconnected
		m.pairingCode = ""
		m.logger.Info("link closed", "reason", ev.Reason)
		m.persistLocked(ctx)

		switch ev.Reason {
		case transport.ReasonCredentialsCorrupted:
			return ActionResetCredentials
		case transport.ReasonLoggedOut:
			m.status = store.StatusTerminated
			m.persistLocked(ctx)
			return ActionTerminate
		default:
			return ActionReconnect
		}
	}
	return ActionNone
}

// Restart resets the machine for a fresh connection cycle. The sequence
// guard is cleared because a new connection starts a new sequence space.
func (m *Machine) Restart(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == store.StatusTerminated {
		return
	}
	m.status = store.StatusInitializing
	m.pairingCode = ""
	m.lastSeq = 0
	m.persistLocked(ctx)
}

// Terminate moves the machine to the terminal state, used for explicit
// local logout.
func (m *Machine) Terminate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == store.StatusTerminated {
		return
	}
	m.status = store.StatusTerminated
	m.pairingCode = ""
	m.persistLocked(ctx)
}

// Status returns the current status and the derived connected flag.
func (m *Machine) Status() (store.SessionStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.status == store.StatusConnected
}

// PairingCode returns the pending pairing artifact, empty outside
// qr_pending.
func (m *Machine) PairingCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairingCode
}

// persistLocked mirrors the in-memory state to the store. Must be called
// with mu held. Write failures are logged; the in-memory state has already
// advanced and stays authoritative.
func (m *Machine) persistLocked(ctx context.Context) {
	session := &store.Session{
		UserID:       m.userID,
		Status:       m.status,
		IsConnected:  m.status == store.StatusConnected,
		PairingCode:  m.pairingCode,
		LastActivity: time.Now(),
	}
	if err := m.sessions.UpsertSession(ctx, session); err != nil {
		m.logger.Error("failed to mirror session status", "error", err, "status", m.status)
	}
}
