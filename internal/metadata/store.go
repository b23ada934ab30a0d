// ABOUTME: Store interface and data types for session metadata persistence
// ABOUTME: Defines SessionMetadata, derived aggregates, and sentinel errors

package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested session, nickname, or prefix
// match does not exist. Callers treat it as the normal absent-result signal.
var ErrNotFound = errors.New("not found")

// ErrNicknameTaken is returned when a write would bind a nickname that is
// already assigned to a different session.
var ErrNicknameTaken = errors.New("nickname already taken")

// ErrAmbiguousPrefix is returned when a session-id prefix matches more than
// one stored session. Callers must disambiguate, never pick a match.
var ErrAmbiguousPrefix = errors.New("ambiguous session id prefix")

// ErrClosed is returned for operations invoked after Close. A closed store
// is not reused; construct a fresh instance instead.
var ErrClosed = errors.New("metadata store is closed")

// SessionMetadata is the per-session record kept separately from the
// conversation transcripts, which live in an external read-only tree.
// The store owns CreatedAt and UpdatedAt: values supplied on input are
// ignored, set on first write, and refreshed on every mutating write.
type SessionMetadata struct {
	SessionID   string    `json:"session_id"`
	Nickname    string    `json:"nickname,omitempty"`     // unique across all sessions when set
	Tags        []string  `json:"tags,omitempty"`         // set semantics, sorted on read
	ProjectPath string    `json:"project_path,omitempty"` // absolute path of the associated project
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectInfo aggregates the sessions sharing one project path.
type ProjectInfo struct {
	Path         string `json:"project_path"`
	SessionCount int    `json:"session_count"`
}

// TagCount pairs a tag with the number of sessions carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes the whole store.
type Stats struct {
	TotalSessions    int `json:"total_sessions"`
	WithNickname     int `json:"sessions_with_nickname"`
	WithTags         int `json:"sessions_with_tags"`
	WithProject      int `json:"sessions_with_project"`
	DistinctProjects int `json:"distinct_projects"`
	DistinctTags     int `json:"distinct_tags"`
}

// ListFilter narrows ListSessions results. The zero value lists everything.
type ListFilter struct {
	Project    string // exact project path match; empty means no project filter
	TaggedOnly bool   // only sessions carrying at least one tag
	Limit      int    // cap on results, applied after filtering; <= 0 means unlimited
}

// Store defines the operations for session metadata persistence.
type Store interface {
	// Sessions
	UpsertSession(ctx context.Context, meta *SessionMetadata) error
	GetSession(ctx context.Context, sessionID string) (*SessionMetadata, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Nicknames
	SetNickname(ctx context.Context, sessionID, nickname string) error
	GetSessionByNickname(ctx context.Context, nickname string) (*SessionMetadata, error)
	ListNicknames(ctx context.Context) (map[string]string, error)

	// Reference resolution
	FindSessionByPrefix(ctx context.Context, prefix string) (*SessionMetadata, error)
	ResolveSession(ctx context.Context, ref string) (*SessionMetadata, error)

	// Tags
	AddTag(ctx context.Context, sessionID, tag string) error
	RemoveTag(ctx context.Context, sessionID, tag string) error
	FindByTag(ctx context.Context, tag string) ([]*SessionMetadata, error)
	ListAllTags(ctx context.Context) ([]TagCount, error)

	// Projects and listing
	ListSessionsByProject(ctx context.Context, path string) ([]*SessionMetadata, error)
	ListProjects(ctx context.Context) ([]ProjectInfo, error)
	ListSessions(ctx context.Context, filter ListFilter) ([]*SessionMetadata, error)

	// Aggregates
	Stats(ctx context.Context) (*Stats, error)

	// Connected reports whether the lazy connection has been established.
	Connected() bool

	// Close releases the underlying database handle. Safe to call before
	// the first connection and safe to call more than once.
	Close() error
}
