package harness

import (
	"bytes"
	"fmt"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/dedup"
)

// InvariantReport summarizes structural invariant checks for one scenario.
type InvariantReport struct {
	Scenario string             `json:"scenario"`
	Total    int                `json:"total"`
	Passed   int                `json:"passed"`
	Failed   int                `json:"failed"`
	Failures []InvariantFailure `json:"failures,omitempty"`
}

// InvariantFailure describes one violated invariant.
type InvariantFailure struct {
	Invariant string `json:"invariant"`
	Detail    string `json:"detail"`
}

// invariant is one named structural check over a completed run.
type invariant struct {
	name  string
	check func(r *scenarioRun) string
}

// CheckInvariants verifies the structural properties every reconstruction
// must satisfy, independent of what the scenario's expect block asserts:
// rerunning yields identical artifacts, deduplication is idempotent, node
// order is monotonic per process, and cluster membership is consistent.
//
// An error return means the scenario could not execute; violations are
// reported through the returned report.
func CheckInvariants(s *Scenario) (*InvariantReport, error) {
	run, err := executeScenario(s)
	if err != nil {
		return nil, err
	}

	checks := []invariant{
		{"deterministic artifacts", checkDeterministicArtifacts},
		{"dedup idempotent", checkDedupIdempotent},
		{"monotonic node order", checkMonotonicNodeOrder},
		{"cluster membership", checkClusterMembership},
	}

	report := &InvariantReport{Scenario: s.Name}
	for _, inv := range checks {
		report.Total++
		if detail := inv.check(run); detail != "" {
			report.Failed++
			report.Failures = append(report.Failures, InvariantFailure{
				Invariant: inv.name,
				Detail:    detail,
			})
			continue
		}
		report.Passed++
	}

	return report, nil
}

// checkDeterministicArtifacts reruns the whole pipeline and compares both
// artifacts byte for byte.
func checkDeterministicArtifacts(r *scenarioRun) string {
	rerun, err := executeScenario(r.scenario)
	if err != nil {
		return fmt.Sprintf("rerun failed: %v", err)
	}
	if !bytes.Equal(r.dot, rerun.dot) {
		return "DOT output differs between two runs of the same trace"
	}
	if !bytes.Equal(r.document, rerun.document) {
		return "canonical JSON differs between two runs of the same trace"
	}
	return ""
}

// checkDedupIdempotent runs the deduplication pass over its own output and
// requires it to remove nothing further.
func checkDedupIdempotent(r *scenarioRun) string {
	if _, stats := dedup.Deduplicate(r.considered); stats.Kept != stats.Input {
		return fmt.Sprintf("second pass over considered removed %d event(s)", stats.Input-stats.Kept)
	}
	if _, stats := dedup.Deduplicate(r.chosen); stats.Kept != stats.Input {
		return fmt.Sprintf("second pass over chosen removed %d event(s)", stats.Input-stats.Kept)
	}
	return ""
}

// checkMonotonicNodeOrder requires node timestamps to be non-decreasing
// within each process.
func checkMonotonicNodeOrder(r *scenarioRun) string {
	last := make(map[int]int64)
	for _, n := range r.graph.Nodes {
		if prev, ok := last[n.Event.PID]; ok && n.Event.Timestamp < prev {
			return fmt.Sprintf("node %s at %d precedes an earlier node at %d in pid %d",
				n.ID, n.Event.Timestamp, prev, n.Event.PID)
		}
		last[n.Event.PID] = n.Event.Timestamp
	}
	return ""
}

// checkClusterMembership cross-checks cluster listings against node
// attributes: every member exists, slot-anchored base accesses sit in
// exactly one relation cluster, free join alternatives in exactly one join
// cluster, and nothing is clustered twice.
func checkClusterMembership(r *scenarioRun) string {
	g := r.graph

	relSeen := make(map[string]int)
	for _, c := range g.RelationClusters {
		for _, id := range c.NodeIDs {
			if g.NodeByID(id) == nil {
				return fmt.Sprintf("relation cluster references unknown node %s", id)
			}
			relSeen[id]++
		}
	}
	joinSeen := make(map[string]int)
	for _, c := range g.JoinClusters {
		for _, id := range c.NodeIDs {
			if g.NodeByID(id) == nil {
				return fmt.Sprintf("join cluster references unknown node %s", id)
			}
			joinSeen[id]++
		}
	}

	for _, n := range g.Nodes {
		ev := n.Event
		wantRel := 0
		if ev.ParentSlot != 0 && n.IsBaseAccess() {
			wantRel = 1
		}
		wantJoin := 0
		if ev.ParentSlot == 0 && (ev.InnerSlot != 0 || ev.OuterSlot != 0) {
			wantJoin = 1
		}
		if relSeen[n.ID] != wantRel {
			return fmt.Sprintf("node %s appears in %d relation cluster(s), want %d", n.ID, relSeen[n.ID], wantRel)
		}
		if joinSeen[n.ID] != wantJoin {
			return fmt.Sprintf("node %s appears in %d join cluster(s), want %d", n.ID, joinSeen[n.ID], wantJoin)
		}
	}
	return ""
}
