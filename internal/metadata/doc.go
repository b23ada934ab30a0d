// Package metadata provides persistent storage for session metadata using
// SQLite.
//
// # Architecture
//
// Sessions themselves are created elsewhere: conversation transcripts live
// in an external read-only tree, and each transcript file name is the
// session id. This package stores everything a user layers on top of a
// session after the fact:
//
//   - Nickname: a memorable unique alias for one session
//   - Tags: a free-form set of labels for grouping and search
//   - ProjectPath: the project directory the session belongs to
//
// SQLiteStore implements the Store interface over two tables, sessions and
// session_tags, with the tag table cascading on session deletion so a
// delete is always atomic.
//
// # Lazy Connection
//
// NewSQLiteStore never touches the filesystem. The database file, its
// parent directory, and the schema are created on the first operation, and
// every schema statement is IF NOT EXISTS so concurrent first operations
// are safe. Connected reports whether that first connection has happened.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC 3339 UTC text.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested session or nickname does not exist
//   - ErrNicknameTaken: nickname is bound to a different session
//   - ErrAmbiguousPrefix: id prefix matches more than one session
//   - ErrClosed: operation on a closed store
//
// ErrNotFound is the normal absent-result signal, not a failure. All
// methods accept context.Context for cancellation support.
//
// # Testing
//
// Tests run against real SQLite under t.TempDir(): the store creates the
// file and schema on first use, so no fixtures or migrations are needed.
package metadata
