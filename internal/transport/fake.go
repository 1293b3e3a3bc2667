// ABOUTME: Channel-backed fake Transport implementation for testing
// ABOUTME: Allows session and pipeline tests to run without a real chat protocol client

package transport

import (
	"context"
	"sync"
)

// FakeTransport is an in-memory Transport for tests. Events are pushed with
// the Emit* helpers and outbound sends are recorded for assertions.
type FakeTransport struct {
	UserID string

	mu          sync.Mutex
	events      chan Event
	seq         uint64
	sent        []SentMessage
	typing      []string
	closed      bool
	credsWiped  bool
	connectErr  error
	sendErr     error
	connectCall int
}

// SentMessage records one Send call.
type SentMessage struct {
	PeerID string
	Text   string
}

// NewFakeTransport creates a fake transport with a bounded event buffer.
func NewFakeTransport(userID string) *FakeTransport {
	return &FakeTransport{
		UserID: userID,
		events: make(chan Event, 16),
	}
}

// Connect records the call and returns the configured error, if any.
func (f *FakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCall++
	return f.connectErr
}

// Events returns the event channel.
func (f *FakeTransport) Events() <-chan Event { return f.events }

// Send records the outbound message.
func (f *FakeTransport) Send(ctx context.Context, peerID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, SentMessage{PeerID: peerID, Text: text})
	return nil
}

// SetTyping records the typing indicator call.
func (f *FakeTransport) SetTyping(ctx context.Context, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, peerID)
	return nil
}

// ClearCredentials marks the credential store as wiped.
func (f *FakeTransport) ClearCredentials() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credsWiped = true
	return nil
}

// Close closes the event channel once.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

// SetConnectErr makes subsequent Connect calls fail.
func (f *FakeTransport) SetConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// SetSendErr makes subsequent Send calls fail.
func (f *FakeTransport) SetSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// Sent returns a copy of all recorded sends.
func (f *FakeTransport) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// TypingPeers returns the peers SetTyping was called for.
func (f *FakeTransport) TypingPeers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.typing))
	copy(out, f.typing)
	return out
}

// CredentialsWiped reports whether ClearCredentials was called.
func (f *FakeTransport) CredentialsWiped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credsWiped
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// nextSeq allocates the next lifecycle sequence number.
func (f *FakeTransport) nextSeq() uint64 {
	f.seq++
	return f.seq
}

// EmitPairing pushes a pairing challenge event.
func (f *FakeTransport) EmitPairing(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- Event{Type: EventPairing, Seq: f.nextSeq(), PairingCode: code}
}

// EmitConnected pushes a session-established event.
func (f *FakeTransport) EmitConnected() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- Event{Type: EventConnected, Seq: f.nextSeq()}
}

// EmitClosed pushes a link-closed event with the given reason.
func (f *FakeTransport) EmitClosed(reason ReasonCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- Event{Type: EventClosed, Seq: f.nextSeq(), Reason: reason}
}

// EmitMessage pushes an inbound message event.
func (f *FakeTransport) EmitMessage(msg InboundMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- Event{Type: EventMessage, Message: &msg}
}

// FakeDialer hands out FakeTransports and records every dial.
type FakeDialer struct {
	mu      sync.Mutex
	dials   []*FakeTransport
	DialErr error
}

// NewFakeDialer creates an empty FakeDialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{}
}

// Dial returns a fresh FakeTransport for the user.
func (d *FakeDialer) Dial(userID string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	t := NewFakeTransport(userID)
	d.dials = append(d.dials, t)
	return t, nil
}

// DialCount returns the number of successful dials.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

// Transports returns every transport handed out, in dial order.
func (d *FakeDialer) Transports() []*FakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*FakeTransport, len(d.dials))
	copy(out, d.dials)
	return out
}
