// ABOUTME: SQLite implementation of the metadata Store using modernc.org/sqlite
// ABOUTME: Connects lazily on first use and creates the schema idempotently

package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store backed by a single SQLite database file.
// The connection is established on first use, so constructing a store, or
// closing one that was never used, touches no files.
type SQLiteStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store for the database file at path. The file,
// its parent directory, and the schema are created on first operation.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path:   path,
		logger: slog.Default().With("component", "metadata"),
	}
}

// conn returns the live database handle, opening it on first call. SQLite
// serializes writers itself; this lock only guards handle setup and close.
func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.db != nil {
		return s.db, nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas ride on the DSN so every pooled connection gets them.
	dsn := s.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.db = db
	s.logger.Info("metadata store connected", "path", s.path)
	return db, nil
}

// createSchema creates all tables and indexes. Every statement is
// IF NOT EXISTS, so concurrent first connections converge on one schema.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id   TEXT PRIMARY KEY,
			nickname     TEXT UNIQUE,
			project_path TEXT,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_path);

		CREATE TABLE IF NOT EXISTS session_tags (
			session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			tag        TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, tag)
		);

		CREATE INDEX IF NOT EXISTS idx_session_tags_tag ON session_tags(tag);
	`
	_, err := db.Exec(schema)
	return err
}

// Connected reports whether the lazy connection has been established and
// the store has not been closed.
func (s *SQLiteStore) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// Close releases the database handle. Calling Close on a store that never
// connected is a no-op, and repeated calls return nil.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	s.logger.Info("closing metadata store")
	return db.Close()
}

// UpsertSession creates or replaces the full record for meta.SessionID.
// Nickname, project path, and tags are overwritten with the given values;
// CreatedAt survives from the first write and UpdatedAt is refreshed.
func (s *SQLiteStore) UpsertSession(ctx context.Context, meta *SessionMetadata) error {
	if meta == nil || meta.SessionID == "" {
		return errors.New("session id is required")
	}
	tags, err := normalizeTags(meta.Tags)
	if err != nil {
		return err
	}

	db, err := s.conn()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, nickname, project_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			nickname = excluded.nickname,
			project_path = excluded.project_path,
			updated_at = excluded.updated_at
	`, meta.SessionID, nullString(meta.Nickname), nullString(meta.ProjectPath), now, now)
	if err != nil {
		if isNicknameConflict(err) {
			return fmt.Errorf("nickname %q: %w", meta.Nickname, ErrNicknameTaken)
		}
		return fmt.Errorf("upserting session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_tags WHERE session_id = ?`, meta.SessionID); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	for _, tag := range tags {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_tags (session_id, tag, created_at)
			VALUES (?, ?, ?)
		`, meta.SessionID, tag, now)
		if err != nil {
			return fmt.Errorf("inserting tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	s.logger.Debug("upserted session metadata", "session_id", meta.SessionID, "tags", len(tags))
	return nil
}

// GetSession retrieves the full record for a session id, tags included.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*SessionMetadata, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.getSession(ctx, db, sessionID)
}

func (s *SQLiteStore) getSession(ctx context.Context, db *sql.DB, sessionID string) (*SessionMetadata, error) {
	query := `
		SELECT session_id, nickname, project_path, created_at, updated_at
		FROM sessions
		WHERE session_id = ?
	`
	sessions, err := s.querySessions(ctx, db, query, sessionID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	if err := s.attachTags(ctx, db, sessions); err != nil {
		return nil, err
	}
	return sessions[0], nil
}

// DeleteSession removes a session and, through the foreign key cascade, its
// tags. Deleting a session that does not exist is a no-op.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	db, err := s.conn()
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		s.logger.Debug("deleted session metadata", "session_id", sessionID)
	}
	return nil
}

// querySessions runs a SELECT over the sessions table and scans the rows.
// Tags are not loaded here; callers attach them with attachTags.
func (s *SQLiteStore) querySessions(ctx context.Context, db *sql.DB, query string, args ...any) ([]*SessionMetadata, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*SessionMetadata
	for rows.Next() {
		var meta SessionMetadata
		var nickname, projectPath sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&meta.SessionID, &nickname, &projectPath, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if nickname.Valid {
			meta.Nickname = nickname.String
		}
		if projectPath.Valid {
			meta.ProjectPath = projectPath.String
		}
		meta.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		meta.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		sessions = append(sessions, &meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

// tagQueryBatchSize caps how many session ids one tag query binds, keeping
// the IN clause under SQLite's bound-variable limit however long the list.
const tagQueryBatchSize = 500

// attachTags loads the tag sets for all given sessions, one query per batch
// of ids.
func (s *SQLiteStore) attachTags(ctx context.Context, db *sql.DB, sessions []*SessionMetadata) error {
	if len(sessions) == 0 {
		return nil
	}

	byID := make(map[string]*SessionMetadata, len(sessions))
	for _, meta := range sessions {
		byID[meta.SessionID] = meta
	}

	for start := 0; start < len(sessions); start += tagQueryBatchSize {
		end := start + tagQueryBatchSize
		if end > len(sessions) {
			end = len(sessions)
		}
		if err := s.attachTagBatch(ctx, db, sessions[start:end], byID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) attachTagBatch(ctx context.Context, db *sql.DB, batch []*SessionMetadata, byID map[string]*SessionMetadata) error {
	placeholders := make([]string, len(batch))
	args := make([]any, len(batch))
	for i, meta := range batch {
		placeholders[i] = "?"
		args[i] = meta.SessionID
	}

	query := fmt.Sprintf(`
		SELECT session_id, tag
		FROM session_tags
		WHERE session_id IN (%s)
		ORDER BY tag ASC
	`, strings.Join(placeholders, ", "))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, tag string
		if err := rows.Scan(&sessionID, &tag); err != nil {
			return fmt.Errorf("scanning tag row: %w", err)
		}
		if meta, ok := byID[sessionID]; ok {
			meta.Tags = append(meta.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating tag rows: %w", err)
	}
	return nil
}

// normalizeTags rejects empty tags and drops duplicates, returning a sorted
// copy. A nil or empty input normalizes to nil.
func normalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			return nil, errors.New("tag must not be empty")
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// nullString converts an empty string to nil for nullable columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isNicknameConflict reports whether err is the UNIQUE violation on the
// nickname column. Session-id conflicts never surface as errors because
// the write statements resolve them with ON CONFLICT clauses.
func isNicknameConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "sessions.nickname")
}
