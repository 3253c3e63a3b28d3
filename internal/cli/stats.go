package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/graph"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Input     string
	Database  string
	SessionID string
	PID       int
	TagsFile  string
	Profile   string
}

// StatsCost names one end of the cost range.
type StatsCost struct {
	NodeID    string  `json:"node_id"`
	PathType  string  `json:"path_type"`
	TotalCost float64 `json:"total_cost"`
}

// StatsResult holds the pipeline summary for one target.
type StatsResult struct {
	Lines            int        `json:"lines"`
	Malformed        int        `json:"malformed"`
	PIDs             []int      `json:"pids"`
	Input            int        `json:"input_events"`
	Kept             int        `json:"kept_events"`
	ExactDuplicates  int        `json:"exact_duplicates"`
	JoinDuplicates   int        `json:"join_duplicates"`
	Nodes            int        `json:"nodes"`
	Edges            int        `json:"edges"`
	Chosen           int        `json:"chosen"`
	RelationClusters int        `json:"relation_clusters"`
	JoinClusters     int        `json:"join_clusters"`
	Cheapest         *StatsCost `json:"cheapest,omitempty"`
	MostExpensive    *StatsCost `json:"most_expensive,omitempty"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a trace without rendering it",
		Long: `Run the full pipeline over a trace and print summary statistics.

Reports ingestion counts (lines, malformed records), deduplication tiers,
and the reconstructed graph's node, edge, chosen and cluster counts with
the cost range of the retained alternatives.

Exit codes:
  0 - Summary printed
  1 - Operation failure (unreadable trace, unknown session)
  2 - Usage error (conflicting or missing flags)

Examples:
  planalt stats --input trace.jsonl
  planalt stats --input trace.jsonl --pid 4242
  planalt stats --db traces.db --session 0190c6... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "JSONL trace file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite trace archive")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "archived session ID (with --db)")
	cmd.Flags().IntVar(&opts.PID, "pid", 0, "summarize a single process (default: all together)")
	cmd.Flags().StringVar(&opts.TagsFile, "tags", "", "PostgreSQL nodetags.h for numeric tag resolution")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE planner profile for tag resolution")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	table, err := loadTagTable(opts.TagsFile, opts.Profile)
	if err != nil {
		return err
	}

	stream, err := openTraceStream(ctx, opts.Input, opts.Database, opts.SessionID, table)
	if err != nil {
		return err
	}

	considered, chosen, dstats := targetEvents(stream, opts.PID)
	g := graph.Build(considered, chosen, graph.Options{PID: opts.PID})

	result := StatsResult{
		Lines:            stream.Lines,
		Malformed:        stream.Malformed,
		PIDs:             stream.PIDs(),
		Input:            dstats.Input,
		Kept:             dstats.Kept,
		ExactDuplicates:  dstats.ExactDuplicates,
		JoinDuplicates:   dstats.JoinDuplicates,
		Nodes:            len(g.Nodes),
		Edges:            len(g.Edges),
		Chosen:           len(g.ChosenNodes()),
		RelationClusters: len(g.RelationClusters),
		JoinClusters:     len(g.JoinClusters),
	}
	if c := g.Summary.Cheapest; c != nil {
		result.Cheapest = &StatsCost{NodeID: c.NodeID, PathType: c.PathType, TotalCost: c.TotalCost}
	}
	if m := g.Summary.MostExpensive; m != nil {
		result.MostExpensive = &StatsCost{NodeID: m.NodeID, PathType: m.PathType, TotalCost: m.TotalCost}
	}

	if opts.Format == "json" {
		return outputStatsJSON(cmd, result)
	}
	return outputStatsText(cmd, result)
}

// outputStatsJSON outputs the summary as JSON.
func outputStatsJSON(cmd *cobra.Command, result StatsResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputStatsText outputs the summary as text.
func outputStatsText(cmd *cobra.Command, result StatsResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace: %d line(s), %d malformed\n", result.Lines, result.Malformed)
	fmt.Fprintf(w, "Processes: %v\n", result.PIDs)
	fmt.Fprintf(w, "Events: %d kept of %d (%d exact, %d join duplicates)\n",
		result.Kept, result.Input, result.ExactDuplicates, result.JoinDuplicates)
	fmt.Fprintf(w, "Graph: %d node(s), %d edge(s), %d chosen\n",
		result.Nodes, result.Edges, result.Chosen)
	fmt.Fprintf(w, "Clusters: %d relation, %d join\n",
		result.RelationClusters, result.JoinClusters)
	if result.Cheapest != nil {
		fmt.Fprintf(w, "Cheapest: %s (%.2f)\n", result.Cheapest.PathType, result.Cheapest.TotalCost)
	}
	if result.MostExpensive != nil {
		fmt.Fprintf(w, "Most expensive: %s (%.2f)\n", result.MostExpensive.PathType, result.MostExpensive.TotalCost)
	}
	return nil
}
