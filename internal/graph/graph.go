package graph

import (
	"fmt"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// EdgeLabel classifies an edge's meaning.
type EdgeLabel string

const (
	// EdgeOuter links a join's outer input path to the join node.
	EdgeOuter EdgeLabel = "outer"
	// EdgeInner links a join's inner input path to the join node.
	EdgeInner EdgeLabel = "inner"
	// EdgeProgression orders consecutive alternatives for one relation slot.
	EdgeProgression EdgeLabel = "progression"
	// EdgeOrdering is an invisible layout hint ranking same-type
	// alternatives by cost. It never implies causality.
	EdgeOrdering EdgeLabel = "ordering"
)

// Node is one retained plan alternative.
type Node struct {
	ID     string
	Event  trace.Event
	Chosen bool
}

// IsBaseAccess reports whether the node reads a base relation directly.
func (n *Node) IsBaseAccess() bool {
	return n.Event.IsBaseAccess()
}

// Edge is a directed labeled edge between two nodes.
type Edge struct {
	From  string
	To    string
	Label EdgeLabel
	// Alt marks a progression edge whose endpoints are both base accesses;
	// renderers draw those dashed and non-constraining.
	Alt bool
}

// RelationCluster groups the base-access alternatives for one relation slot.
type RelationCluster struct {
	PID     int
	Slot    int
	RelID   uint32
	NodeIDs []string
}

// JoinCluster groups the join alternatives over one input pair.
type JoinCluster struct {
	PID        int
	JoinName   string
	OuterSlot  int
	InnerSlot  int
	OuterRelID uint32
	InnerRelID uint32
	NodeIDs    []string
}

// CostEntry names one node in summary reporting.
type CostEntry struct {
	NodeID    string
	PathType  string
	TotalCost float64
}

// Summary holds the caller-visible counts for one build.
type Summary struct {
	// Paths is the number of retained nodes.
	Paths         int
	Cheapest      *CostEntry
	MostExpensive *CostEntry
}

// Graph is the reconstructed DAG for one render target.
//
// Nodes appear in creation (timestamp) order, edges in emission order, and
// both cluster slices in ascending key order. Two builds over the same
// input produce identical Graphs.
type Graph struct {
	// PID is the render target process; zero means all processes together.
	PID int

	Nodes            []*Node
	Edges            []Edge
	RelationClusters []RelationCluster
	JoinClusters     []JoinCluster
	Summary          Summary

	byID map[string]*Node
}

// NodeByID returns the node with the given ID, or nil.
func (g *Graph) NodeByID(id string) *Node {
	return g.byID[id]
}

// EdgesWithLabel returns the edges carrying one label, in emission order.
func (g *Graph) EdgesWithLabel(label EdgeLabel) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Label == label {
			out = append(out, e)
		}
	}
	return out
}

// ChosenNodes returns the chosen-marked nodes in creation order.
func (g *Graph) ChosenNodes() []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Chosen {
			out = append(out, n)
		}
	}
	return out
}

// Title names the render target the way reports label it.
func (g *Graph) Title() string {
	if g.PID == 0 {
		return "Query Plans (All PIDs)"
	}
	return fmt.Sprintf("Query Plans (PID %d)", g.PID)
}
