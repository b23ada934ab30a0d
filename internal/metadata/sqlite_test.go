// ABOUTME: Tests for the SQLite metadata store lifecycle and session CRUD
// ABOUTME: Covers lazy connection, upsert semantics, delete, and close behavior

package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a temporary SQLite store for testing. Tests that
// exercise Close themselves construct the store directly instead.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	store := NewSQLiteStore(filepath.Join(tmpDir, "sessions.db"))

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestNewSQLiteStore_LazyConnection(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sessions.db")

	store := NewSQLiteStore(dbPath)
	defer store.Close()

	if store.Connected() {
		t.Error("store reported connected before first use")
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("database file exists before first use")
	}

	err := store.UpsertSession(context.Background(), &SessionMetadata{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	if !store.Connected() {
		t.Error("store not connected after first use")
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing after first use: %v", err)
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "sessions.db")

	store := NewSQLiteStore(dbPath)
	defer store.Close()

	err := store.UpsertSession(context.Background(), &SessionMetadata{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing in nested directory: %v", err)
	}
}

func TestUpsertAndGetSession(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	meta := &SessionMetadata{
		SessionID:   "sess-123",
		Nickname:    "fox",
		Tags:        []string{"work", "urgent"},
		ProjectPath: "/home/dev/projects/api",
	}

	if err := store.UpsertSession(ctx, meta); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-123")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	if got.SessionID != "sess-123" {
		t.Errorf("SessionID mismatch: got %q, want %q", got.SessionID, "sess-123")
	}
	if got.Nickname != "fox" {
		t.Errorf("Nickname mismatch: got %q, want %q", got.Nickname, "fox")
	}
	if got.ProjectPath != "/home/dev/projects/api" {
		t.Errorf("ProjectPath mismatch: got %q, want %q", got.ProjectPath, "/home/dev/projects/api")
	}
	// Tags come back sorted regardless of input order.
	if len(got.Tags) != 2 || got.Tags[0] != "urgent" || got.Tags[1] != "work" {
		t.Errorf("Tags mismatch: got %v, want [urgent work]", got.Tags)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestUpsertSession_OwnsTimestamps(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	meta := &SessionMetadata{
		SessionID: "sess-123",
		CreatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := store.UpsertSession(ctx, meta); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-123")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	if got.CreatedAt.Year() == 1999 {
		t.Error("caller-supplied CreatedAt was not ignored")
	}
	if got.UpdatedAt.Year() == 1999 {
		t.Error("caller-supplied UpdatedAt was not ignored")
	}
}

func TestUpsertSession_ReplacesFields(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	first := &SessionMetadata{
		SessionID:   "sess-123",
		Nickname:    "fox",
		Tags:        []string{"work", "urgent"},
		ProjectPath: "/home/dev/projects/api",
	}
	if err := store.UpsertSession(ctx, first); err != nil {
		t.Fatalf("first UpsertSession failed: %v", err)
	}
	before, err := store.GetSession(ctx, "sess-123")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	second := &SessionMetadata{
		SessionID: "sess-123",
		Tags:      []string{"archive"},
	}
	if err := store.UpsertSession(ctx, second); err != nil {
		t.Fatalf("second UpsertSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-123")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	if got.Nickname != "" {
		t.Errorf("Nickname not cleared: got %q", got.Nickname)
	}
	if got.ProjectPath != "" {
		t.Errorf("ProjectPath not cleared: got %q", got.ProjectPath)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "archive" {
		t.Errorf("Tags not replaced: got %v, want [archive]", got.Tags)
	}
	if !got.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("CreatedAt changed on upsert: got %v, want %v", got.CreatedAt, before.CreatedAt)
	}
	if got.UpdatedAt.Before(before.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: got %v, was %v", got.UpdatedAt, before.UpdatedAt)
	}

	// The cleared nickname is free for another session.
	if err := store.SetNickname(ctx, "sess-456", "fox"); err != nil {
		t.Errorf("nickname not released by upsert: %v", err)
	}
}

func TestUpsertSession_Validation(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()

	if err := store.UpsertSession(ctx, nil); err == nil {
		t.Error("expected error for nil metadata")
	}
	if err := store.UpsertSession(ctx, &SessionMetadata{}); err == nil {
		t.Error("expected error for empty session id")
	}
	err := store.UpsertSession(ctx, &SessionMetadata{SessionID: "sess-1", Tags: []string{"ok", ""}})
	if err == nil {
		t.Error("expected error for empty tag")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	meta := &SessionMetadata{
		SessionID: "sess-123",
		Nickname:  "fox",
		Tags:      []string{"work"},
	}
	if err := store.UpsertSession(ctx, meta); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "sess-123"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	if _, err := store.GetSession(ctx, "sess-123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Tags went with the session.
	tags, err := store.ListAllTags(ctx)
	if err != nil {
		t.Fatalf("ListAllTags failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags survived session delete: %v", tags)
	}

	// The nickname is free again.
	if err := store.SetNickname(ctx, "sess-456", "fox"); err != nil {
		t.Errorf("nickname not released by delete: %v", err)
	}
}

func TestDeleteSession_AbsentIsNoOp(t *testing.T) {
	store := setupTestStore(t)

	if err := store.DeleteSession(context.Background(), "never-existed"); err != nil {
		t.Errorf("DeleteSession on absent id returned error: %v", err)
	}
}

func TestClose_BeforeConnect(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "sessions.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("closing an unused store created the database file")
	}
}

func TestClose_Idempotent(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))

	err := store.UpsertSession(context.Background(), &SessionMetadata{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if store.Connected() {
		t.Error("store reported connected after Close")
	}
}

func TestOperationsAfterClose(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ctx := context.Background()
	if err := store.UpsertSession(ctx, &SessionMetadata{SessionID: "sess-1"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from UpsertSession, got %v", err)
	}
	if _, err := store.GetSession(ctx, "sess-1"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from GetSession, got %v", err)
	}
	if _, err := store.ListSessions(ctx, ListFilter{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from ListSessions, got %v", err)
	}
}

func TestConcurrentFirstUse(t *testing.T) {
	store := setupTestStore(t)

	ctx := context.Background()
	const workers = 8

	errc := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			errc <- store.UpsertSession(ctx, &SessionMetadata{
				SessionID: fmt.Sprintf("sess-%03d", n),
			})
		}(i)
	}
	for i := 0; i < workers; i++ {
		if err := <-errc; err != nil {
			t.Fatalf("concurrent upsert failed: %v", err)
		}
	}

	sessions, err := store.ListSessions(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != workers {
		t.Errorf("session count mismatch: got %d, want %d", len(sessions), workers)
	}
}
