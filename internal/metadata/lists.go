// ABOUTME: Listing and aggregate queries: sessions, projects, store stats
// ABOUTME: ListSessions builds its WHERE clause from the optional filters

package metadata

import (
	"context"
	"errors"
	"fmt"
)

// ListSessions returns sessions matching the filter, most recently updated
// first. The zero filter lists every session with no limit.
func (s *SQLiteStore) ListSessions(ctx context.Context, filter ListFilter) ([]*SessionMetadata, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT session_id, nickname, project_path, created_at, updated_at
		FROM sessions
		WHERE 1=1
	`
	args := []any{}

	if filter.Project != "" {
		query += ` AND project_path = ?`
		args = append(args, filter.Project)
	}
	if filter.TaggedOnly {
		query += ` AND EXISTS (SELECT 1 FROM session_tags t WHERE t.session_id = sessions.session_id)`
	}

	query += ` ORDER BY updated_at DESC, session_id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	sessions, err := s.querySessions(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, db, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSessionsByProject returns all sessions whose project path matches
// exactly. A path no session references yields an empty result.
func (s *SQLiteStore) ListSessionsByProject(ctx context.Context, path string) ([]*SessionMetadata, error) {
	if path == "" {
		return nil, errors.New("project path is required")
	}
	return s.ListSessions(ctx, ListFilter{Project: path})
}

// ListProjects returns every distinct project path in use with its session
// count, largest first, ties broken alphabetically. Sessions without a
// project path are not counted.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]ProjectInfo, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT project_path, COUNT(*) AS session_count
		FROM sessions
		WHERE project_path IS NOT NULL
		GROUP BY project_path
		ORDER BY session_count DESC, project_path ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectInfo
	for rows.Next() {
		var p ProjectInfo
		if err := rows.Scan(&p.Path, &p.SessionCount); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

// Stats returns store-wide counts in a single query.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM sessions) AS total_sessions,
			(SELECT COUNT(*) FROM sessions WHERE nickname IS NOT NULL) AS with_nickname,
			(SELECT COUNT(DISTINCT session_id) FROM session_tags) AS with_tags,
			(SELECT COUNT(*) FROM sessions WHERE project_path IS NOT NULL) AS with_project,
			(SELECT COUNT(DISTINCT project_path) FROM sessions WHERE project_path IS NOT NULL) AS distinct_projects,
			(SELECT COUNT(DISTINCT tag) FROM session_tags) AS distinct_tags
	`

	var st Stats
	err = db.QueryRowContext(ctx, query).Scan(
		&st.TotalSessions,
		&st.WithNickname,
		&st.WithTags,
		&st.WithProject,
		&st.DistinctProjects,
		&st.DistinctTags,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	return &st, nil
}
