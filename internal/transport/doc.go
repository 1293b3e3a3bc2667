// Package transport defines the boundary to the underlying chat protocol.
//
// One Transport is one logical connection for one user. The protocol
// implementation (handshake, encryption, multi-device pairing) lives behind
// this interface; the rest of wagate only sees typed events on a bounded
// channel and a small set of send operations.
//
// Lifecycle events carry a per-connection sequence number so consumers can
// discard stale reorderings. FakeTransport and FakeDialer provide a
// channel-backed implementation for tests.
package transport
