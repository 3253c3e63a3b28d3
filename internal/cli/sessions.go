package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
}

// SessionInfo is the listing entry for one archived session.
type SessionInfo struct {
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	Source     string `json:"source,omitempty"`
	CreatedAt  string `json:"created_at"`
	EventCount int    `json:"event_count"`
	TraceHash  string `json:"trace_hash"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List archived trace sessions",
		Long: `List the sessions stored in a trace archive, oldest first.

Exit codes:
  0 - Sessions listed
  1 - Operation failure (archive not readable)
  2 - Usage error

Examples:
  planalt sessions --db traces.db
  planalt sessions --db traces.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite trace archive (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open archive", err)
	}
	defer st.Close()

	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list sessions", err)
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:         s.ID,
			Label:      s.Label,
			Source:     s.Source,
			CreatedAt:  time.Unix(0, s.CreatedAtNS).UTC().Format(time.RFC3339),
			EventCount: s.EventCount,
			TraceHash:  s.TraceHash,
		})
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No sessions archived.")
		return nil
	}

	fmt.Fprintf(w, "%d session(s)\n\n", len(infos))
	for _, info := range infos {
		fmt.Fprintf(w, "%s  %s  %d event(s)", info.ID, info.CreatedAt, info.EventCount)
		if info.Label != "" {
			fmt.Fprintf(w, "  %s", info.Label)
		}
		fmt.Fprintln(w)
		if opts.Verbose {
			fmt.Fprintf(w, "  source: %s\n", info.Source)
			fmt.Fprintf(w, "  hash: %s\n", info.TraceHash)
		}
	}
	return nil
}
