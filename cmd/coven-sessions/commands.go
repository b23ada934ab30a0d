// ABOUTME: Command implementations for the coven-sessions CLI
// ABOUTME: Each command opens the metadata store, runs one operation, and renders the result

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/coven-sessions/internal/config"
	"github.com/2389/coven-sessions/internal/metadata"
	"github.com/2389/coven-sessions/internal/transcripts"
)

// cmdSessions lists session metadata records, optionally filtered
func cmdSessions(ctx context.Context, cfg *config.Config, args []string) error {
	var filter metadata.ListFilter

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--project", "-p":
			if i+1 < len(args) {
				filter.Project = args[i+1]
				i++
			}
		case "--tagged", "-t":
			filter.TaggedOnly = true
		case "--limit", "-n":
			if i+1 < len(args) {
				n, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid limit %q: %w", args[i+1], err)
				}
				filter.Limit = n
				i++
			}
		}
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	sessions, err := store.ListSessions(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	printSessions("Sessions", sessions)
	return nil
}

// cmdShow resolves a session reference and displays the full record,
// with the transcript summary when one exists on disk
func cmdShow(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show <ref>")
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	meta, err := store.ResolveSession(ctx, args[0])
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Println()
	cyan.Println("  Session")
	cyan.Println("  -------")
	fmt.Printf("  ID:        %s\n", meta.SessionID)
	fmt.Printf("  Nickname:  %s\n", orDash(meta.Nickname))
	if len(meta.Tags) > 0 {
		green.Printf("  Tags:      %s\n", strings.Join(meta.Tags, ", "))
	} else {
		fmt.Printf("  Tags:      (none)\n")
	}
	fmt.Printf("  Project:   %s\n", orDash(meta.ProjectPath))
	fmt.Printf("  Created:   %s\n", formatTime(meta.CreatedAt))
	fmt.Printf("  Updated:   %s\n", formatTime(meta.UpdatedAt))

	// Metadata can outlive or predate the transcript, so a missing
	// transcript is informational, not an error.
	scanner := transcripts.NewScanner(cfg.Transcripts.Root)
	sess, err := scanner.Lookup(ctx, meta.SessionID)
	switch {
	case errors.Is(err, transcripts.ErrNoTranscript):
		fmt.Println()
		fmt.Println("  (no transcript on disk)")
	case err != nil:
		return fmt.Errorf("reading transcript: %w", err)
	default:
		fmt.Println()
		cyan.Println("  Transcript")
		cyan.Println("  ----------")
		fmt.Printf("  Messages:  %d\n", sess.MessageCount)
		fmt.Printf("  Modified:  %s\n", formatTime(sess.ModifiedAt))
		fmt.Printf("  Path:      %s\n", sess.Path)
		if sess.FirstPrompt != "" {
			fmt.Printf("  Prompt:    %s\n", truncate(oneLine(sess.FirstPrompt), 72))
		}
	}
	fmt.Println()

	return nil
}

// cmdNickname binds a nickname to a session
func cmdNickname(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: nickname <ref> <name>")
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	sessionID, err := resolveOrNew(ctx, store, args[0])
	if err != nil {
		return err
	}

	if err := store.SetNickname(ctx, sessionID, args[1]); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Nicknamed session %s: %s\n", shortID(sessionID), args[1])
	return nil
}

// cmdNicknames lists all nickname bindings
func cmdNicknames(ctx context.Context, cfg *config.Config) error {
	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	nicknames, err := store.ListNicknames(ctx)
	if err != nil {
		return fmt.Errorf("listing nicknames: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Nicknames")
	cyan.Println("  ---------")

	if len(nicknames) == 0 {
		fmt.Println("  (no nicknames)")
		fmt.Println()
		return nil
	}

	names := make([]string, 0, len(nicknames))
	for name := range nicknames {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NICKNAME\tSESSION")
	fmt.Fprintln(w, "  --------\t-------")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%s\n", name, shortID(nicknames[name]))
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdTag adds one or more tags to a session
func cmdTag(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: tag <ref> <tag>...")
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	sessionID, err := resolveOrNew(ctx, store, args[0])
	if err != nil {
		return err
	}

	for _, tag := range args[1:] {
		if err := store.AddTag(ctx, sessionID, tag); err != nil {
			return err
		}
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Tagged session %s: %s\n", shortID(sessionID), strings.Join(args[1:], ", "))
	return nil
}

// cmdUntag removes one or more tags from a session
func cmdUntag(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: untag <ref> <tag>...")
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	meta, err := store.ResolveSession(ctx, args[0])
	if err != nil {
		return err
	}

	for _, tag := range args[1:] {
		if err := store.RemoveTag(ctx, meta.SessionID, tag); err != nil {
			return err
		}
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Untagged session %s: %s\n", shortID(meta.SessionID), strings.Join(args[1:], ", "))
	return nil
}

// cmdTags lists every tag in use with its session count
func cmdTags(ctx context.Context, cfg *config.Config) error {
	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	tags, err := store.ListAllTags(ctx)
	if err != nil {
		return fmt.Errorf("listing tags: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Tags")
	cyan.Println("  ----")

	if len(tags) == 0 {
		fmt.Println("  (no tags)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TAG\tSESSIONS")
	fmt.Fprintln(w, "  ---\t--------")
	for _, tc := range tags {
		fmt.Fprintf(w, "  %s\t%d\n", tc.Tag, tc.Count)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdFind lists all sessions carrying an exact tag
func cmdFind(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: find <tag>")
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	sessions, err := store.FindByTag(ctx, args[0])
	if err != nil {
		return fmt.Errorf("finding by tag: %w", err)
	}

	printSessions(fmt.Sprintf("Sessions tagged %q", args[0]), sessions)
	return nil
}

// cmdProjects lists projects with their session counts
func cmdProjects(ctx context.Context, cfg *config.Config) error {
	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	projects, err := store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Projects")
	cyan.Println("  --------")

	if len(projects) == 0 {
		fmt.Println("  (no projects)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  PROJECT\tSESSIONS")
	fmt.Fprintln(w, "  -------\t--------")
	for _, p := range projects {
		fmt.Fprintf(w, "  %s\t%d\n", p.Path, p.SessionCount)
	}
	w.Flush()
	fmt.Println()

	return nil
}

// cmdImport seeds metadata records from the transcript tree. Sessions the
// store already tracks keep their metadata untouched.
func cmdImport(ctx context.Context, cfg *config.Config, args []string) error {
	root := cfg.Transcripts.Root
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--root", "-r":
			if i+1 < len(args) {
				root = args[i+1]
				i++
			}
		}
	}

	scanner := transcripts.NewScanner(root)
	discovered, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scanning transcripts: %w", err)
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	var imported, known int
	for _, sess := range discovered {
		_, err := store.GetSession(ctx, sess.SessionID)
		if err == nil {
			known++
			continue
		}
		if !errors.Is(err, metadata.ErrNotFound) {
			return err
		}

		meta := &metadata.SessionMetadata{
			SessionID:   sess.SessionID,
			ProjectPath: sess.ProjectPath,
		}
		if err := store.UpsertSession(ctx, meta); err != nil {
			return fmt.Errorf("importing session %s: %w", sess.SessionID, err)
		}
		imported++
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Imported %d sessions (%d already tracked)\n", imported, known)
	return nil
}

// cmdExport writes every metadata record as JSON to a file or stdout
func cmdExport(ctx context.Context, cfg *config.Config, args []string) error {
	var outPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--out", "-o":
			if i+1 < len(args) {
				outPath = args[i+1]
				i++
			}
		}
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	sessions, err := store.ListSessions(ctx, metadata.ListFilter{})
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*metadata.SessionMetadata{}
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Exported %d sessions to %s\n", len(sessions), outPath)
	return nil
}

// cmdDelete removes a session's metadata; the transcript stays on disk
func cmdDelete(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <ref>")
	}

	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	meta, err := store.ResolveSession(ctx, args[0])
	if err != nil {
		return err
	}

	if err := store.DeleteSession(ctx, meta.SessionID); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Deleted metadata for session %s\n", shortID(meta.SessionID))
	return nil
}

// cmdStats shows store-wide aggregate counts
func cmdStats(ctx context.Context, cfg *config.Config) error {
	store := metadata.NewSQLiteStore(cfg.Database.Path)
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Store")
	cyan.Println("  -----")
	fmt.Printf("  Database:           %s\n", cfg.Database.Path)
	fmt.Printf("  Sessions:           %d\n", stats.TotalSessions)
	fmt.Printf("  With nickname:      %d\n", stats.WithNickname)
	fmt.Printf("  With tags:          %d\n", stats.WithTags)
	fmt.Printf("  With project:       %d\n", stats.WithProject)
	fmt.Printf("  Distinct projects:  %d\n", stats.DistinctProjects)
	fmt.Printf("  Distinct tags:      %d\n", stats.DistinctTags)
	fmt.Println()

	return nil
}

// printSessions renders the shared session table under a section header.
func printSessions(title string, sessions []*metadata.SessionMetadata) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  " + title)
	cyan.Println("  " + strings.Repeat("-", len(title)))

	if len(sessions) == 0 {
		fmt.Println("  (no sessions)")
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNICKNAME\tTAGS\tPROJECT\tUPDATED")
	fmt.Fprintln(w, "  --\t--------\t----\t-------\t-------")
	for _, meta := range sessions {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			shortID(meta.SessionID),
			orDash(meta.Nickname),
			orDash(strings.Join(meta.Tags, ",")),
			orDash(truncate(meta.ProjectPath, 40)),
			formatTime(meta.UpdatedAt),
		)
	}
	w.Flush()
	fmt.Println()
}
