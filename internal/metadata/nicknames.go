// ABOUTME: Nickname binding, lookup, and session reference resolution
// ABOUTME: Covers exact ids, unique nicknames, and shortened id prefixes

package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SetNickname binds a nickname to a session, creating the session record if
// it does not exist yet. Nicknames are unique across the store; binding one
// that another session holds returns ErrNicknameTaken. Rebinding the same
// session to a new nickname releases its old one.
func (s *SQLiteStore) SetNickname(ctx context.Context, sessionID, nickname string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if nickname == "" {
		return errors.New("nickname must not be empty")
	}

	db, err := s.conn()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, nickname, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			nickname = excluded.nickname,
			updated_at = excluded.updated_at
	`, sessionID, nickname, now, now)
	if err != nil {
		if isNicknameConflict(err) {
			return fmt.Errorf("nickname %q: %w", nickname, ErrNicknameTaken)
		}
		return fmt.Errorf("setting nickname: %w", err)
	}

	s.logger.Debug("set nickname", "session_id", sessionID, "nickname", nickname)
	return nil
}

// GetSessionByNickname retrieves the session bound to an exact nickname.
func (s *SQLiteStore) GetSessionByNickname(ctx context.Context, nickname string) (*SessionMetadata, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT session_id, nickname, project_path, created_at, updated_at
		FROM sessions
		WHERE nickname = ?
	`
	sessions, err := s.querySessions(ctx, db, query, nickname)
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

// ListNicknames returns every nickname binding as a nickname to session id
// map. Sessions without a nickname are not included.
func (s *SQLiteStore) ListNicknames(ctx context.Context) (map[string]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT nickname, session_id
		FROM sessions
		WHERE nickname IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("querying nicknames: %w", err)
	}
	defer rows.Close()

	nicknames := make(map[string]string)
	for rows.Next() {
		var nickname, sessionID string
		if err := rows.Scan(&nickname, &sessionID); err != nil {
			return nil, fmt.Errorf("scanning nickname row: %w", err)
		}
		nicknames[nickname] = sessionID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nickname rows: %w", err)
	}
	return nicknames, nil
}

// FindSessionByPrefix retrieves the single session whose id starts with
// prefix. No match returns ErrNotFound; more than one match returns
// ErrAmbiguousPrefix so callers never act on the wrong session.
func (s *SQLiteStore) FindSessionByPrefix(ctx context.Context, prefix string) (*SessionMetadata, error) {
	if prefix == "" {
		return nil, errors.New("prefix must not be empty")
	}

	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	// Two rows are enough to tell unique from ambiguous. The substr
	// comparison is byte-exact; LIKE would case-fold ASCII and expand
	// % and _ as wildcards.
	rows, err := db.QueryContext(ctx, `
		SELECT session_id
		FROM sessions
		WHERE substr(session_id, 1, length(?)) = ?
		ORDER BY session_id ASC
		LIMIT 2
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("querying by prefix: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning prefix match: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prefix matches: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return s.getSession(ctx, db, ids[0])
	default:
		return nil, fmt.Errorf("prefix %q matches multiple sessions: %w", prefix, ErrAmbiguousPrefix)
	}
}

// ResolveSession looks up a user-supplied reference as a nickname first,
// then an exact session id, then a unique id prefix. This is the chain the
// CLI uses for every command that names a session.
func (s *SQLiteStore) ResolveSession(ctx context.Context, ref string) (*SessionMetadata, error) {
	if ref == "" {
		return nil, errors.New("session reference is required")
	}

	meta, err := s.GetSessionByNickname(ctx, ref)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	meta, err = s.GetSession(ctx, ref)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s.FindSessionByPrefix(ctx, ref)
}
