// ABOUTME: Transport interface and event types for the underlying chat protocol link
// ABOUTME: The protocol itself (handshake, crypto, pairing) lives behind this boundary

package transport

import "context"

// ReasonCode classifies why a transport link closed.
type ReasonCode int

const (
	// ReasonTransient is an ordinary network drop; the session should
	// reconnect automatically.
	ReasonTransient ReasonCode = iota
	// ReasonCredentialsCorrupted means the local credential state is
	// unrecoverable; it must be wiped before reconnecting.
	ReasonCredentialsCorrupted
	// ReasonLoggedOut means the remote party ended the session; no
	// automatic restart.
	ReasonLoggedOut
)

// String returns a loggable name for the reason code.
func (r ReasonCode) String() string {
	switch r {
	case ReasonTransient:
		return "transient"
	case ReasonCredentialsCorrupted:
		return "credentials_corrupted"
	case ReasonLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// EventType indicates the kind of transport event.
type EventType int

const (
	// EventPairing carries a pairing challenge the user must scan.
	EventPairing EventType = iota
	// EventConnected signals the session is established.
	EventConnected
	// EventClosed signals the link dropped, with a reason code.
	EventClosed
	// EventMessage carries an inbound chat message.
	EventMessage
)

// Event is one transport notification. Seq is a monotonically increasing
// per-connection number used to discard stale reorderings of lifecycle
// events; it is zero for message events.
type Event struct {
	Type        EventType
	Seq         uint64
	PairingCode string          // for EventPairing
	Reason      ReasonCode      // for EventClosed
	Message     *InboundMessage // for EventMessage
}

// InboundMessage is the payload of an EventMessage.
type InboundMessage struct {
	SenderID   string
	Body       string
	ExternalID string
	FromSelf   bool // authored by the linked account itself
}

// Sender is the outbound half of a transport, consumed by the message
// pipeline.
type Sender interface {
	Send(ctx context.Context, peerID, text string) error
	SetTyping(ctx context.Context, peerID string) error
}

// Transport is one logical connection to the chat network for one user.
// Events are delivered on a bounded channel drained by a single per-user
// loop, which preserves per-user ordering.
type Transport interface {
	Sender

	// Connect starts the link. Events begin flowing on Events() once the
	// handshake is underway.
	Connect(ctx context.Context) error
	// Events returns the event channel. The channel is closed when the
	// transport is closed.
	Events() <-chan Event
	// ClearCredentials wipes the local credential store so the next
	// connection starts a fresh pairing cycle.
	ClearCredentials() error
	// Close tears down the link and closes the event channel.
	Close() error
}

// Dialer constructs one Transport per user. Implementations wrap the
// concrete chat protocol client.
type Dialer interface {
	Dial(userID string) (Transport, error)
}
