package cli

import (
	"context"
	"fmt"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/dedup"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/store"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/tags"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// loadTagTable resolves the tag table flags shared by several commands.
// Both flags empty returns nil; the ingestor then formats unresolved
// numeric tags as Unknown(<n>).
func loadTagTable(headerPath, profilePath string) (*tags.Table, error) {
	switch {
	case headerPath != "" && profilePath != "":
		return nil, NewExitError(ExitUsageError, "--tags and --profile are mutually exclusive")
	case headerPath != "":
		t, err := tags.LoadHeader(headerPath)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "failed to load node tags", err)
		}
		return t, nil
	case profilePath != "":
		t, err := tags.LoadProfile(profilePath)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "failed to load planner profile", err)
		}
		return t, nil
	}
	return nil, nil
}

// openTraceStream ingests from a JSONL file or from an archived session.
// Exactly one source must be given.
func openTraceStream(ctx context.Context, input, database, sessionID string, table *tags.Table) (*trace.Stream, error) {
	topts := trace.Options{Tags: table}
	switch {
	case input != "" && database != "":
		return nil, NewExitError(ExitUsageError, "--input and --db are mutually exclusive")
	case input != "":
		stream, err := trace.Open(input, topts)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "failed to read trace", err)
		}
		return stream, nil
	case database != "":
		if sessionID == "" {
			return nil, NewExitError(ExitUsageError, "--db requires --session")
		}
		st, err := store.Open(database)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "failed to open archive", err)
		}
		defer st.Close()
		events, err := st.ReadSession(ctx, sessionID)
		if err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("failed to read session %s", sessionID), err)
		}
		return trace.FromEvents(events), nil
	}
	return nil, NewExitError(ExitUsageError, "either --input or --db is required")
}

// targetEvents selects and deduplicates the events for one render target.
// PID zero means every process together, in the stream's grouped order.
func targetEvents(stream *trace.Stream, pid int) (considered, chosen []trace.Event, stats dedup.Stats) {
	rawConsidered := stream.AllConsidered()
	rawChosen := stream.AllChosen()
	if pid != 0 {
		rawConsidered = stream.Considered(pid)
		rawChosen = stream.Chosen(pid)
	}

	var cs, hs dedup.Stats
	considered, cs = dedup.Deduplicate(rawConsidered)
	chosen, hs = dedup.Deduplicate(rawChosen)
	stats = dedup.Stats{
		Input:           cs.Input + hs.Input,
		Kept:            cs.Kept + hs.Kept,
		ExactDuplicates: cs.ExactDuplicates + hs.ExactDuplicates,
		JoinDuplicates:  cs.JoinDuplicates + hs.JoinDuplicates,
	}
	return considered, chosen, stats
}
