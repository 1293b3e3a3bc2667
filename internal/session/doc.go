// Package session orchestrates per-user chat sessions.
//
// The Manager keeps a registry of live units, one per user, with atomic
// per-key insert: concurrent Start calls for the same user produce exactly
// one Transport, and race losers observe the winner's unit.
//
// Each Unit runs a single event loop that drains its transport's bounded
// event channel. Lifecycle events feed the connection state machine
// (initializing → qr_pending → connected → disconnected → terminated);
// message events feed the ingestion pipeline in arrival order.
//
// Disconnect reasons decide what happens next: transient drops reconnect
// immediately, corrupted credentials are wiped and the restart is scheduled
// after a fixed delay, and a remote logout terminates the session for good.
// Every transition is mirrored best-effort to the session store; the
// in-memory state stays authoritative when a write fails.
package session
