// ABOUTME: CLI for organizing coven session metadata
// ABOUTME: Nicknames, tags, and project views over the session store

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/coven-sessions/internal/config"
	"github.com/2389/coven-sessions/internal/metadata"
)

const banner = `
                                                 _
  ___ _____   _____ _ __        ___  ___  ___ ___(_) ___  _ __  ___
 / __/ _ \ \ / / _ \ '_ \ _____/ __|/ _ \/ __/ __| |/ _ \| '_ \/ __|
| (_| (_) \ V /  __/ | | |_____\__ \  __/\__ \__ \ | (_) | | | \__ \
 \___\___/ \_/ \___|_| |_|     |___/\___||___/___/_|\___/|_| |_|___/
`

// getConfigPath returns the path to the sessions config file.
// Priority: COVEN_SESSIONS_CONFIG env var > XDG_CONFIG_HOME/coven/sessions.yaml > ~/.config/coven/sessions.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_SESSIONS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "sessions.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "sessions.yaml")
}

// loadConfig reads the config file if one exists and falls back to the
// defaults otherwise, so the tool works without any setup.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(setupLogger(cfg.Logging))

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "sessions", "list", "ls":
		err = cmdSessions(ctx, cfg, args)
	case "show":
		err = cmdShow(ctx, cfg, args)
	case "nickname", "nick":
		err = cmdNickname(ctx, cfg, args)
	case "nicknames":
		err = cmdNicknames(ctx, cfg)
	case "tag":
		err = cmdTag(ctx, cfg, args)
	case "untag":
		err = cmdUntag(ctx, cfg, args)
	case "tags":
		err = cmdTags(ctx, cfg)
	case "find":
		err = cmdFind(ctx, cfg, args)
	case "projects":
		err = cmdProjects(ctx, cfg)
	case "import":
		err = cmdImport(ctx, cfg, args)
	case "export":
		err = cmdExport(ctx, cfg, args)
	case "delete", "rm", "remove":
		err = cmdDelete(ctx, cfg, args)
	case "stats":
		err = cmdStats(ctx, cfg)
	case "init":
		err = cmdInit(cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: coven-sessions <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  sessions [--project P] [--tagged] [--limit N]   List session metadata")
	fmt.Println("  show <ref>                Show one session (ref: nickname, id, or prefix)")
	fmt.Println("  nickname <ref> <name>     Bind a memorable nickname to a session")
	fmt.Println("  nicknames                 List all nickname bindings")
	fmt.Println("  tag <ref> <tag>...        Add tags to a session")
	fmt.Println("  untag <ref> <tag>...      Remove tags from a session")
	fmt.Println("  tags                      List every tag in use with counts")
	fmt.Println("  find <tag>                List sessions carrying a tag")
	fmt.Println("  projects                  List projects with session counts")
	fmt.Println("  import [--root DIR]       Seed metadata from the transcript tree")
	fmt.Println("  export [--out FILE]       Dump all metadata as JSON")
	fmt.Println("  delete <ref>              Delete a session's metadata")
	fmt.Println("  stats                     Show store totals")
	fmt.Println("  init                      Write a starter config file")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  COVEN_SESSIONS_CONFIG     Config file path (default: ~/.config/coven/sessions.yaml)")
	fmt.Println()
}

func cmdInit(cfg *config.Config) error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := fmt.Sprintf(`# coven-sessions configuration
database:
  path: %q

# Read-only transcript tree written by the agent CLI.
transcripts:
  root: %q

logging:
  level: %q   # debug, info, warn, error
  format: %q  # text, json
`, cfg.Database.Path, cfg.Transcripts.Root, cfg.Logging.Level, cfg.Logging.Format)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created config file: %s\n", path)
	return nil
}

// resolveOrNew resolves a session reference against the store, or accepts
// it verbatim when it parses as a full UUID so sessions can be organized
// before they are imported.
func resolveOrNew(ctx context.Context, store *metadata.SQLiteStore, ref string) (string, error) {
	meta, err := store.ResolveSession(ctx, ref)
	if err == nil {
		return meta.SessionID, nil
	}
	if errors.Is(err, metadata.ErrNotFound) {
		if _, perr := uuid.Parse(ref); perr == nil {
			return ref, nil
		}
	}
	return "", err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// oneLine collapses whitespace runs so transcript prompts fit a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04")
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
