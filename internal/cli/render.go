package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/graph"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/oids"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/render/dot"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Input     string
	Database  string
	SessionID string
	Output    string
	PID       int
	PerPID    bool
	TagsFile  string
	Profile   string
	DBURL     string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render considered plan alternatives as a graph",
		Long: `Render the plan alternatives from a probe trace as a causal graph.

Reads a JSONL trace (or an archived session), deduplicates the records,
reconstructs the alternative graph, and writes it in the format implied by
the output file extension: .dot for Graphviz source, .svg/.png/.html piped
through the dot binary. Output "-" writes DOT source to stdout. With
--format json the canonical JSON document is written instead.

Exit codes:
  0 - Graph rendered
  1 - Operation failure (unreadable trace, unknown session, graphviz failure)
  2 - Usage error (conflicting or missing flags)

Examples:
  planalt render --input trace.jsonl --output plans.svg
  planalt render --input trace.jsonl --pid 4242 --output plans.dot
  planalt render --input trace.jsonl --per-pid --output plans.png
  planalt render --db traces.db --session 0190c6... --output plans.html
  planalt render --input trace.jsonl --db-url postgres://localhost/app --output plans.svg
  planalt render --input trace.jsonl --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "JSONL trace file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite trace archive")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "archived session ID (with --db)")
	cmd.Flags().StringVar(&opts.Output, "output", "-", "output file (.dot/.svg/.png/.html) or - for stdout")
	cmd.Flags().IntVar(&opts.PID, "pid", 0, "render a single process (default: all together)")
	cmd.Flags().BoolVar(&opts.PerPID, "per-pid", false, "one output file per process, suffixed _pid<N>")
	cmd.Flags().StringVar(&opts.TagsFile, "tags", "", "PostgreSQL nodetags.h for numeric tag resolution")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE planner profile for tag resolution")
	cmd.Flags().StringVar(&opts.DBURL, "db-url", "", "PostgreSQL DSN for relation name resolution")

	return cmd
}

func runRender(opts *RenderOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.PerPID && opts.PID != 0 {
		return NewExitError(ExitUsageError, "--per-pid and --pid are mutually exclusive")
	}
	if opts.PerPID && opts.Output == "-" {
		return NewExitError(ExitUsageError, "--per-pid requires a file --output")
	}
	if opts.PerPID && opts.Format == "json" {
		return NewExitError(ExitUsageError, "--per-pid is not available with --format json")
	}

	table, err := loadTagTable(opts.TagsFile, opts.Profile)
	if err != nil {
		return err
	}

	stream, err := openTraceStream(ctx, opts.Input, opts.Database, opts.SessionID, table)
	if err != nil {
		return err
	}

	dopts := dot.Options{}
	if opts.DBURL != "" {
		// A dead catalog connection degrades to numeric OID labels rather
		// than failing the render.
		resolver, err := oids.Connect(ctx, opts.DBURL)
		if err != nil {
			slog.Warn("relation name resolution unavailable", "error", err)
		} else {
			defer resolver.Close(ctx)
			if err := resolver.WarmUp(ctx); err != nil {
				slog.Warn("catalog warm-up failed", "error", err)
			}
			dopts.Namer = func(oid uint32) string { return resolver.Resolve(ctx, oid) }
		}
	}

	if opts.PerPID {
		pids := stream.PIDs()
		if len(pids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events found.")
			return nil
		}
		for _, pid := range pids {
			considered, chosen, _ := targetEvents(stream, pid)
			g := graph.Build(considered, chosen, graph.Options{PID: pid})
			if err := writeGraph(ctx, cmd, g, perPIDPath(opts.Output, pid), false, dopts); err != nil {
				return err
			}
		}
		return nil
	}

	considered, chosen, _ := targetEvents(stream, opts.PID)
	if len(considered) == 0 && len(chosen) == 0 {
		slog.Warn("no events for target", "pid", opts.PID)
	}
	g := graph.Build(considered, chosen, graph.Options{PID: opts.PID})
	return writeGraph(ctx, cmd, g, opts.Output, opts.Format == "json", dopts)
}

// writeGraph emits one graph: canonical JSON when jsonDoc is set, otherwise
// a DOT-derived artifact picked by the output extension.
func writeGraph(ctx context.Context, cmd *cobra.Command, g *graph.Graph, output string, jsonDoc bool, dopts dot.Options) error {
	if jsonDoc {
		data, err := g.CanonicalJSON()
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode graph", err)
		}
		if output == "-" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return nil
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return WrapExitError(ExitFailure, "failed to write graph", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", output)
		return nil
	}

	if output == "-" {
		_, err := cmd.OutOrStdout().Write(dot.Render(g, dopts))
		return err
	}
	if err := dot.WriteFile(ctx, output, g, dopts); err != nil {
		return WrapExitError(ExitFailure, "failed to write graph", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", output)
	return nil
}

// perPIDPath derives the per-process output name: base_pid<N> with the
// original extension.
func perPIDPath(path string, pid int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_pid%d%s", strings.TrimSuffix(path, ext), pid, ext)
}
