// ABOUTME: Tests for transcript tree scanning and session discovery
// ABOUTME: Uses fixture JSONL trees built in temp dirs with controlled mtimes

package transcripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idAlpha = "0b54dd6a-7a41-4745-9aee-38c54b6c0001"
	idBeta  = "1c65ee7b-8b52-4856-8bff-49d65c7d0002"
	idGamma = "2d76ff8c-9c63-4967-9c00-5ae76d8e0003"
)

func userLine(cwd, text string) string {
	return fmt.Sprintf(`{"type":"user","cwd":%q,"message":{"role":"user","content":%q},"timestamp":"2026-01-02T15:04:05Z"}`, cwd, text)
}

func assistantLine(text string) string {
	return fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":%q}]},"timestamp":"2026-01-02T15:04:06Z"}`, text)
}

func writeTranscript(t *testing.T, dir, id string, lines ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, id+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	apiDir := filepath.Join(root, "-home-dev-api")
	webDir := filepath.Join(root, "-home-dev-web")

	alphaPath := writeTranscript(t, apiDir, idAlpha,
		userLine("/home/dev/api", "fix the login flow"),
		assistantLine("Looking at the auth handler now."),
		userLine("/home/dev/api", "also add a test"),
	)
	betaPath := writeTranscript(t, apiDir, idBeta,
		userLine("/home/dev/api", "refactor the billing client"),
	)
	gammaPath := writeTranscript(t, webDir, idGamma,
		userLine("/home/dev/web", "why is the navbar broken"),
		assistantLine("The flex container lost its width."),
	)

	// Pin mtimes so the newest-first ordering is deterministic.
	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(alphaPath, base, base.Add(3*time.Hour)))
	require.NoError(t, os.Chtimes(betaPath, base, base.Add(2*time.Hour)))
	require.NoError(t, os.Chtimes(gammaPath, base, base.Add(1*time.Hour)))

	scanner := NewScanner(root)
	sessions, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	assert.Equal(t, idAlpha, sessions[0].SessionID)
	assert.Equal(t, idBeta, sessions[1].SessionID)
	assert.Equal(t, idGamma, sessions[2].SessionID)

	alpha := sessions[0]
	assert.Equal(t, "/home/dev/api", alpha.ProjectPath)
	assert.Equal(t, "fix the login flow", alpha.FirstPrompt)
	assert.Equal(t, 3, alpha.MessageCount)
	assert.Equal(t, alphaPath, alpha.Path)
	assert.Equal(t, base.Add(3*time.Hour), alpha.ModifiedAt)
}

func TestScanner_Scan_SkipsNonSessionFiles(t *testing.T) {
	root := t.TempDir()
	projDir := filepath.Join(root, "-home-dev-api")

	writeTranscript(t, projDir, idAlpha, userLine("/home/dev/api", "hello"))
	require.NoError(t, os.WriteFile(filepath.Join(projDir, "notes.txt"), []byte("not a transcript"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(projDir, "latest.jsonl"), []byte(`{"type":"summary"}`), 0644))

	scanner := NewScanner(root)
	sessions, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, idAlpha, sessions[0].SessionID)
}

func TestScanner_Scan_MalformedLines(t *testing.T) {
	root := t.TempDir()
	projDir := filepath.Join(root, "-home-dev-api")

	writeTranscript(t, projDir, idAlpha,
		`{broken json`,
		userLine("/home/dev/api", "first question"),
		``,
		`also not json at all`,
		assistantLine("answer"),
	)

	scanner := NewScanner(root)
	sessions, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.Equal(t, "first question", sessions[0].FirstPrompt)
	assert.Equal(t, "/home/dev/api", sessions[0].ProjectPath)
}

func TestScanner_Scan_ContentBlocks(t *testing.T) {
	root := t.TempDir()
	projDir := filepath.Join(root, "-home-dev-api")

	// The first user line holds only an injected reminder; the prompt
	// should come from the next user line instead.
	reminder := `{"type":"user","cwd":"/home/dev/api","message":{"role":"user","content":[{"type":"text","text":"<system-reminder>context</system-reminder>"}]}}`
	real := `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","content":"ok"},{"type":"text","text":"actual question"}]}}`
	writeTranscript(t, projDir, idAlpha, reminder, real)

	scanner := NewScanner(root)
	sessions, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	assert.Equal(t, "actual question", sessions[0].FirstPrompt)
	assert.Equal(t, 2, sessions[0].MessageCount)
}

func TestScanner_Scan_MissingRoot(t *testing.T) {
	scanner := NewScanner(filepath.Join(t.TempDir(), "never-created"))

	sessions, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestScanner_Lookup(t *testing.T) {
	root := t.TempDir()
	projDir := filepath.Join(root, "-home-dev-api")
	writeTranscript(t, projDir, idAlpha, userLine("/home/dev/api", "hello"))

	scanner := NewScanner(root)

	sess, err := scanner.Lookup(context.Background(), idAlpha)
	require.NoError(t, err)
	assert.Equal(t, idAlpha, sess.SessionID)
	assert.Equal(t, "/home/dev/api", sess.ProjectPath)

	_, err = scanner.Lookup(context.Background(), idBeta)
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestScanner_Lookup_MissingRoot(t *testing.T) {
	scanner := NewScanner(filepath.Join(t.TempDir(), "never-created"))

	_, err := scanner.Lookup(context.Background(), idAlpha)
	assert.ErrorIs(t, err, ErrNoTranscript)
}
