package harness

import (
	"fmt"
	"strings"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/dedup"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/graph"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/render/dot"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// scenarioRun carries the intermediate pipeline products of one execution.
// Expectation evaluation reads the counters; invariant checks inspect the
// event slices and artifacts.
type scenarioRun struct {
	scenario   *Scenario
	stream     *trace.Stream
	stats      dedup.Stats
	considered []trace.Event
	chosen     []trace.Event
	graph      *graph.Graph
	dot        []byte
	document   []byte
}

// Run executes a scenario through the real pipeline and validates its
// expect block.
//
// Execution flow:
//  1. Ingest the trace block (malformed lines skipped and counted)
//  2. Select the target process's events
//  3. Deduplicate considered and chosen separately
//  4. Build the graph and render both artifacts
//  5. Evaluate every set expect field against the outcome
//
// An error return means the scenario could not execute at all; expectation
// mismatches are reported through Result.Errors instead.
func Run(s *Scenario) (*Result, error) {
	run, err := executeScenario(s)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.Graph = run.graph
	result.DOT = run.dot
	result.Document = run.document
	result.Counts = Counts{
		Lines:            run.stream.Lines,
		Malformed:        run.stream.Malformed,
		InputEvents:      run.stats.Input,
		KeptEvents:       run.stats.Kept,
		ExactDuplicates:  run.stats.ExactDuplicates,
		JoinDuplicates:   run.stats.JoinDuplicates,
		Nodes:            len(run.graph.Nodes),
		Edges:            len(run.graph.Edges),
		Chosen:           len(run.graph.ChosenNodes()),
		RelationClusters: len(run.graph.RelationClusters),
		JoinClusters:     len(run.graph.JoinClusters),
	}

	evaluate(s, result)
	return result, nil
}

// executeScenario runs the pipeline once and keeps the intermediates.
func executeScenario(s *Scenario) (*scenarioRun, error) {
	stream, err := trace.ReadAll(strings.NewReader(s.Trace), trace.Options{})
	if err != nil {
		return nil, fmt.Errorf("ingest scenario trace: %w", err)
	}

	considered, chosen, stats := target(stream, s.TargetPID)
	g := graph.Build(considered, chosen, graph.Options{PID: s.TargetPID})

	doc, err := g.CanonicalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode scenario graph: %w", err)
	}

	return &scenarioRun{
		scenario:   s,
		stream:     stream,
		stats:      stats,
		considered: considered,
		chosen:     chosen,
		graph:      g,
		dot:        dot.Render(g, dot.Options{}),
		document:   doc,
	}, nil
}

// target selects and deduplicates the events for one render target. The
// two event kinds deduplicate independently; their stats are summed.
func target(stream *trace.Stream, pid int) ([]trace.Event, []trace.Event, dedup.Stats) {
	var considered, chosen []trace.Event
	if pid == 0 {
		considered = stream.AllConsidered()
		chosen = stream.AllChosen()
	} else {
		considered = stream.Considered(pid)
		chosen = stream.Chosen(pid)
	}

	var cs, hs dedup.Stats
	considered, cs = dedup.Deduplicate(considered)
	chosen, hs = dedup.Deduplicate(chosen)

	return considered, chosen, dedup.Stats{
		Input:           cs.Input + hs.Input,
		Kept:            cs.Kept + hs.Kept,
		ExactDuplicates: cs.ExactDuplicates + hs.ExactDuplicates,
		JoinDuplicates:  cs.JoinDuplicates + hs.JoinDuplicates,
	}
}
