package harness

import (
	"fmt"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/graph"
)

// evaluate checks every set expect field against the run outcome and
// records mismatches on the result.
func evaluate(s *Scenario, r *Result) {
	e := s.Expect

	checkCount(r, "lines", e.Lines, r.Counts.Lines)
	checkCount(r, "malformed", e.Malformed, r.Counts.Malformed)
	checkCount(r, "input_events", e.InputEvents, r.Counts.InputEvents)
	checkCount(r, "kept_events", e.KeptEvents, r.Counts.KeptEvents)
	checkCount(r, "exact_duplicates", e.ExactDuplicates, r.Counts.ExactDuplicates)
	checkCount(r, "join_duplicates", e.JoinDuplicates, r.Counts.JoinDuplicates)
	checkCount(r, "nodes", e.Nodes, r.Counts.Nodes)
	checkCount(r, "edges", e.Edges, r.Counts.Edges)
	checkCount(r, "chosen", e.Chosen, r.Counts.Chosen)
	checkCount(r, "relation_clusters", e.RelationClusters, r.Counts.RelationClusters)
	checkCount(r, "join_clusters", e.JoinClusters, r.Counts.JoinClusters)

	if e.Cheapest != "" {
		checkCostEnd(r, "cheapest", e.Cheapest, r.Graph.Summary.Cheapest)
	}
	if e.MostExpensive != "" {
		checkCostEnd(r, "most_expensive", e.MostExpensive, r.Graph.Summary.MostExpensive)
	}

	if len(e.ChosenNodes) > 0 {
		checkChosenNodes(r, e.ChosenNodes)
	}
}

// checkCount validates one counter if the scenario set it.
func checkCount(r *Result, field string, want *int, got int) {
	if want == nil {
		return
	}
	if got != *want {
		r.AddError(fmt.Sprintf("%s: got %d, want %d", field, got, *want))
	}
}

// checkCostEnd validates one end of the cost range by path type.
func checkCostEnd(r *Result, field, want string, got *graph.CostEntry) {
	if got == nil {
		r.AddError(fmt.Sprintf("%s: graph has no cost summary, want %s", field, want))
		return
	}
	if got.PathType != want {
		r.AddError(fmt.Sprintf("%s: got %s, want %s", field, got.PathType, want))
	}
}

// checkChosenNodes validates the chosen node IDs in creation order.
func checkChosenNodes(r *Result, want []string) {
	chosen := r.Graph.ChosenNodes()
	got := make([]string, len(chosen))
	for i, n := range chosen {
		got[i] = n.ID
	}

	if len(got) != len(want) {
		r.AddError(fmt.Sprintf("chosen_nodes: got %v, want %v", got, want))
		return
	}
	for i := range want {
		if got[i] != want[i] {
			r.AddError(fmt.Sprintf("chosen_nodes[%d]: got %s, want %s", i, got[i], want[i]))
		}
	}
}
