package graph

import (
	"strconv"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/canon"
)

// Document flattens the graph into a tree the canonical encoder accepts,
// for diffable JSON export and golden comparisons. Costs become fixed
// six-decimal strings because canonical JSON carries no floats.
func (g *Graph) Document() map[string]any {
	nodes := make([]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ev := n.Event
		doc := map[string]any{
			"id":            n.ID,
			"pid":           ev.PID,
			"kind":          string(ev.Kind),
			"timestamp":     ev.Timestamp,
			"path_type":     ev.PathType,
			"startup_cost":  formatCost(ev.StartupCost),
			"total_cost":    formatCost(ev.TotalCost),
			"rows":          ev.Rows,
			"parent_slot":   ev.ParentSlot,
			"parent_rel_id": ev.ParentRelID,
			"chosen":        n.Chosen,
			"base_access":   n.IsBaseAccess(),
		}
		if ev.IsJoin() {
			doc["join"] = map[string]any{
				"kind_name":    ev.JoinName(),
				"outer_slot":   ev.OuterSlot,
				"inner_slot":   ev.InnerSlot,
				"outer_rel_id": ev.OuterRelID,
				"inner_rel_id": ev.InnerRelID,
			}
		}
		nodes = append(nodes, doc)
	}

	edges := make([]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		edge := map[string]any{
			"from":  e.From,
			"to":    e.To,
			"label": string(e.Label),
		}
		if e.Label == EdgeProgression {
			edge["alt"] = e.Alt
		}
		edges = append(edges, edge)
	}

	relClusters := make([]any, 0, len(g.RelationClusters))
	for _, c := range g.RelationClusters {
		relClusters = append(relClusters, map[string]any{
			"pid":    c.PID,
			"slot":   c.Slot,
			"rel_id": c.RelID,
			"nodes":  stringsAny(c.NodeIDs),
		})
	}

	joinClusters := make([]any, 0, len(g.JoinClusters))
	for _, c := range g.JoinClusters {
		joinClusters = append(joinClusters, map[string]any{
			"pid":          c.PID,
			"join_name":    c.JoinName,
			"outer_slot":   c.OuterSlot,
			"inner_slot":   c.InnerSlot,
			"outer_rel_id": c.OuterRelID,
			"inner_rel_id": c.InnerRelID,
			"nodes":        stringsAny(c.NodeIDs),
		})
	}

	summary := map[string]any{"paths": g.Summary.Paths}
	if g.Summary.Cheapest != nil {
		summary["cheapest"] = costEntryDoc(g.Summary.Cheapest)
	}
	if g.Summary.MostExpensive != nil {
		summary["most_expensive"] = costEntryDoc(g.Summary.MostExpensive)
	}

	return map[string]any{
		"target_pid":        g.PID,
		"nodes":             nodes,
		"edges":             edges,
		"relation_clusters": relClusters,
		"join_clusters":     joinClusters,
		"summary":           summary,
	}
}

// CanonicalJSON renders the graph document as canonical JSON. Two builds
// over the same input produce identical bytes.
func (g *Graph) CanonicalJSON() ([]byte, error) {
	return canon.MarshalCanonical(g.Document())
}

func costEntryDoc(e *CostEntry) map[string]any {
	return map[string]any{
		"node":       e.NodeID,
		"path_type":  e.PathType,
		"total_cost": formatCost(e.TotalCost),
	}
}

func formatCost(c float64) string {
	return strconv.FormatFloat(c, 'f', 6, 64)
}

func stringsAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
