// ABOUTME: Read-only scanner for the conversation transcript tree
// ABOUTME: Discovers sessions from UUID-named JSONL files and extracts summaries

package transcripts

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoTranscript is returned by Lookup when no transcript file exists for
// the session id.
var ErrNoTranscript = errors.New("no transcript for session")

// Session describes one discovered transcript. The transcript tree is the
// source of truth for which sessions exist; everything here is derived from
// the file, never written back.
type Session struct {
	SessionID    string    `json:"session_id"`
	ProjectPath  string    `json:"project_path,omitempty"` // working directory recorded in the transcript
	Path         string    `json:"path"`                   // transcript file location
	FirstPrompt  string    `json:"first_prompt,omitempty"` // first user text, for display
	MessageCount int       `json:"message_count"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// Scanner walks a transcript tree laid out as <root>/<project-dir>/<uuid>.jsonl.
type Scanner struct {
	root   string
	logger *slog.Logger
}

// NewScanner creates a scanner over the transcript tree rooted at root. The
// tree is opened read-only; a missing root is treated as an empty tree.
func NewScanner(root string) *Scanner {
	return &Scanner{
		root:   root,
		logger: slog.Default().With("component", "transcripts"),
	}
}

// Scan discovers every session transcript under the root, most recently
// modified first. Files that are not UUID-named JSONL transcripts are
// ignored, and unreadable transcripts are skipped with a warning rather
// than failing the whole scan.
func (s *Scanner) Scan(ctx context.Context) ([]*Session, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		s.logger.Debug("transcript root does not exist", "root", s.root)
		return nil, nil
	}

	var sessions []*Session
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}
		id := strings.TrimSuffix(d.Name(), ".jsonl")
		if _, err := uuid.Parse(id); err != nil {
			// Sidecar files share the extension; only UUID names are sessions.
			return nil
		}

		sess, err := s.parseTranscript(path, id)
		if err != nil {
			s.logger.Warn("skipping unreadable transcript", "path", path, "error", err)
			return nil
		}
		sessions = append(sessions, sess)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking transcript tree: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].ModifiedAt.Equal(sessions[j].ModifiedAt) {
			return sessions[i].ModifiedAt.After(sessions[j].ModifiedAt)
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})

	s.logger.Debug("scanned transcript tree", "root", s.root, "sessions", len(sessions))
	return sessions, nil
}

// Lookup finds the transcript for one session id, or ErrNoTranscript.
func (s *Scanner) Lookup(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, ErrNoTranscript
	}

	target := sessionID + ".jsonl"
	var found *Session

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || d.Name() != target {
			return nil
		}
		sess, err := s.parseTranscript(path, sessionID)
		if err != nil {
			return err
		}
		found = sess
		return filepath.SkipAll
	})
	if err != nil {
		return nil, fmt.Errorf("walking transcript tree: %w", err)
	}
	if found == nil {
		return nil, ErrNoTranscript
	}
	return found, nil
}

// transcriptLine is the subset of a transcript JSONL line this package
// reads. Unknown fields are ignored.
type transcriptLine struct {
	Type    string       `json:"type"`
	Cwd     string       `json:"cwd"`
	Message *lineMessage `json:"message"`
}

type lineMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Scanner) parseTranscript(path, sessionID string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		SessionID:  sessionID,
		Path:       path,
		ModifiedAt: info.ModTime().UTC(),
	}

	scanner := bufio.NewScanner(f)
	// Transcript lines carry whole tool results, which can be large.
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry transcriptLine
		if err := json.Unmarshal(line, &entry); err != nil {
			// Malformed lines don't fail the whole transcript.
			continue
		}

		if sess.ProjectPath == "" && entry.Cwd != "" {
			sess.ProjectPath = entry.Cwd
		}
		if entry.Type == "user" || entry.Type == "assistant" {
			sess.MessageCount++
		}
		if sess.FirstPrompt == "" && entry.Type == "user" && entry.Message != nil {
			if text := textContent(entry.Message.Content); text != "" && !strings.Contains(text, "system-reminder") {
				sess.FirstPrompt = text
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	return sess, nil
}

// textContent extracts displayable text from a message content field, which
// is either a plain string or an array of typed blocks.
func textContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	for _, block := range blocks {
		if block.Type == "text" && block.Text != "" {
			return block.Text
		}
	}
	return ""
}
