// ABOUTME: One live session unit: event loop, reconnection, and pipeline hookup
// ABOUTME: A single goroutine drains the transport, preserving per-user event order

package session

import (
	"context"
	"sync"
	"time"

	"github.com/skelter/wagate/internal/pipeline"
	"github.com/skelter/wagate/internal/transport"
)

// Unit is one user's live session: a transport, a state machine, and a
// message pipeline, driven by a single event loop goroutine.
type Unit struct {
	UserID string

	manager  *Manager
	machine  *Machine
	pipeline *pipeline.Pipeline

	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex
	tr transport.Transport
}

// loop outcomes from one connection's event stream.
type loopResult int

const (
	loopStopped loopResult = iota // cancelled or transport closed under us
	loopReconnect
	loopResetCredentials
	loopTerminated
)

// run is the unit's event loop. Each iteration connects the current
// transport, drains its events, and acts on the state machine's verdict.
func (u *Unit) run(ctx context.Context) {
	defer close(u.done)

	for {
		tr := u.transport()
		if err := tr.Connect(ctx); err != nil {
			u.manager.logger.Error("transport connect failed", "user_id", u.UserID, "error", err)
			u.manager.removeUnit(u)
			tr.Close()
			return
		}

		switch u.drain(ctx, tr) {
		case loopStopped:
			tr.Close()
			return

		case loopTerminated:
			tr.Close()
			u.manager.removeUnit(u)
			u.manager.logger.Info("session terminated by remote logout", "user_id", u.UserID)
			return

		case loopReconnect:
			tr.Close()

		case loopResetCredentials:
			// Explicit two-step: wipe first, then wait out the fixed
			// delay before the fresh cycle.
			if err := tr.ClearCredentials(); err != nil {
				u.manager.logger.Error("credential wipe failed", "user_id", u.UserID, "error", err)
			}
			tr.Close()
			if !u.sleep(ctx, u.manager.restartDelay) {
				return
			}
		}

		next, err := u.manager.dialer.Dial(u.UserID)
		if err != nil {
			u.manager.logger.Error("redial failed", "user_id", u.UserID, "error", err)
			u.manager.removeUnit(u)
			return
		}
		u.setTransport(next)
		u.machine.Restart(ctx)
	}
}

// drain consumes events from one transport until the link closes or the
// unit is stopped. Message events go to the pipeline in arrival order;
// lifecycle events go to the state machine.
func (u *Unit) drain(ctx context.Context, tr transport.Transport) loopResult {
	for {
		select {
		case <-ctx.Done():
			return loopStopped

		case ev, ok := <-tr.Events():
			if !ok {
				return loopStopped
			}
			if ev.Type == transport.EventMessage {
				u.pipeline.Handle(ctx, tr, ev.Message)
				continue
			}
			switch u.machine.Apply(ctx, ev) {
			case ActionReconnect:
				return loopReconnect
			case ActionResetCredentials:
				return loopResetCredentials
			case ActionTerminate:
				return loopTerminated
			}
		}
	}
}

// sleep waits for d or until the unit is stopped. Returns false when
// stopped.
func (u *Unit) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Status returns the unit's current status and connected flag.
func (u *Unit) Status() (status string, connected bool) {
	s, c := u.machine.Status()
	return string(s), c
}

// stop cancels the event loop, closes the transport, and waits for the
// loop to exit. Safe to call more than once.
func (u *Unit) stop() {
	u.cancel()
	u.transport().Close()
	<-u.done
}

func (u *Unit) transport() transport.Transport {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tr
}

func (u *Unit) setTransport(tr transport.Transport) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tr = tr
}
