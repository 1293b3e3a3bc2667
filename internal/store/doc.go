// Package store provides persistent storage for wagate using SQLite.
//
// The package exposes one small interface per concern (SessionStore,
// MessageStore, ConfigStore, UserStore) plus a combined Store interface.
// SQLiteStore implements all of them in a single struct; MockStore is an
// in-memory mirror for tests.
//
// Data models:
//
//   - Session: durable mirror of one user's chat session status. One row
//     per user, never deleted, only transitioned to terminated.
//   - Message: append-only log of inbound and outbound chat messages.
//   - AIConfig: per-user auto-reply settings (provider, model, credential).
//   - User: account that owns a session.
//
// SQLite runs with WAL mode and foreign keys enabled:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite and
// NewMockStore() for unit tests.
package store
