// ABOUTME: Tag operations over session metadata
// ABOUTME: Tags form a per-session set stored in the session_tags table

package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AddTag adds a tag to a session's tag set, creating the session record if
// it does not exist yet. Adding a tag the session already carries is a
// no-op that still succeeds.
func (s *SQLiteStore) AddTag(ctx context.Context, sessionID, tag string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if tag == "" {
		return errors.New("tag must not be empty")
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

	// The session row must exist before the tag row for the foreign key.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING
	`, sessionID, now, now)
	if err != nil {
		return fmt.Errorf("ensuring session: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO session_tags (session_id, tag, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, tag) DO NOTHING
	`, sessionID, tag, now)
	if err != nil {
		return fmt.Errorf("adding tag: %w", err)
	}

	added, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking tag add: %w", err)
	}
	if added > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET updated_at = ? WHERE session_id = ?
		`, now, sessionID)
		if err != nil {
			return fmt.Errorf("touching session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tag add: %w", err)
	}

	if added > 0 {
		s.logger.Debug("added tag", "session_id", sessionID, "tag", tag)
	}
	return nil
}

// RemoveTag removes a tag from a session's tag set. Removing a tag the
// session does not carry, or naming a session that does not exist, is a
// no-op. The session record is never created by removal.
func (s *SQLiteStore) RemoveTag(ctx context.Context, sessionID, tag string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if tag == "" {
		return errors.New("tag must not be empty")
	}

	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM session_tags
		WHERE session_id = ? AND tag = ?
	`, sessionID, tag)
	if err != nil {
		return fmt.Errorf("removing tag: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking removal: %w", err)
	}
	if removed > 0 {
		now := time.Now().UTC().Format(time.RFC3339)
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET updated_at = ? WHERE session_id = ?
		`, now, sessionID)
		if err != nil {
			return fmt.Errorf("touching session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tag removal: %w", err)
	}

	if removed > 0 {
		s.logger.Debug("removed tag", "session_id", sessionID, "tag", tag)
	}
	return nil
}

// FindByTag retrieves all sessions carrying the exact tag, most recently
// updated first. A tag no session carries yields an empty result.
func (s *SQLiteStore) FindByTag(ctx context.Context, tag string) ([]*SessionMetadata, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT s.session_id, s.nickname, s.project_path, s.created_at, s.updated_at
		FROM sessions s
		JOIN session_tags t ON t.session_id = s.session_id
		WHERE t.tag = ?
		ORDER BY s.updated_at DESC, s.session_id ASC
	`
	sessions, err := s.querySessions(ctx, db, query, tag)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, db, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListAllTags returns every distinct tag in use with its session count,
// most used first, ties broken alphabetically.
func (s *SQLiteStore) ListAllTags(ctx context.Context) ([]TagCount, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT tag, COUNT(*) AS session_count
		FROM session_tags
		GROUP BY tag
		ORDER BY session_count DESC, tag ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning tag count: %w", err)
		}
		tags = append(tags, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag counts: %w", err)
	}
	return tags, nil
}
