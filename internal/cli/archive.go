package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/store"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// ArchiveOptions holds flags for the archive command.
type ArchiveOptions struct {
	*RootOptions
	Database string
	Input    string
	Label    string
	TagsFile string
	Profile  string
}

// ArchiveResult holds the outcome of one archive run.
type ArchiveResult struct {
	SessionID  string `json:"session_id"`
	EventCount int    `json:"event_count"`
	TraceHash  string `json:"trace_hash"`
	Malformed  int    `json:"malformed"`
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive a trace into the SQLite store",
		Long: `Ingest a JSONL trace and archive its events as a session.

Sessions are content-addressed: archiving the same trace twice returns the
existing session ID instead of storing a second copy. Malformed lines are
skipped during ingestion and never stored.

Exit codes:
  0 - Trace archived (or already present)
  1 - Operation failure (unreadable trace, archive not writable)
  2 - Usage error

Examples:
  planalt archive --db traces.db --input trace.jsonl
  planalt archive --db traces.db --input trace.jsonl --label "nightly run"
  planalt archive --db traces.db --input trace.jsonl --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite trace archive (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Input, "input", "", "JSONL trace file (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVar(&opts.Label, "label", "", "free-form session label")
	cmd.Flags().StringVar(&opts.TagsFile, "tags", "", "PostgreSQL nodetags.h for numeric tag resolution")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE planner profile for tag resolution")

	return cmd
}

func runArchive(opts *ArchiveOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	table, err := loadTagTable(opts.TagsFile, opts.Profile)
	if err != nil {
		return err
	}

	stream, err := trace.Open(opts.Input, trace.Options{Tags: table})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read trace", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open archive", err)
	}
	defer st.Close()

	sess := store.Session{Label: opts.Label, Source: opts.Input}
	if err := st.WriteSession(ctx, &sess, stream.Events()); err != nil {
		return WrapExitError(ExitFailure, "failed to archive trace", err)
	}

	result := ArchiveResult{
		SessionID:  sess.ID,
		EventCount: sess.EventCount,
		TraceHash:  sess.TraceHash,
		Malformed:  stream.Malformed,
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Archived session %s\n", result.SessionID)
	fmt.Fprintf(w, "Events: %d", result.EventCount)
	if result.Malformed > 0 {
		fmt.Fprintf(w, " (%d malformed line(s) skipped)", result.Malformed)
	}
	fmt.Fprintln(w)
	return nil
}
