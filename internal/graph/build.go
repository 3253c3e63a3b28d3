package graph

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/identity"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// Options configures a build.
type Options struct {
	// PID labels the render target; zero means the union of all processes.
	// The builder takes whatever events the caller sliced out, so this is
	// presentation context, not a filter.
	PID int
}

type pointerRef struct {
	pid int
	ptr uint64
}

// Build reconstructs the graph from deduplicated considered and chosen
// events. The input slices are not modified. Build never fails: records
// that cannot anchor anywhere are dropped, pointers that resolve nowhere
// simply produce no edge.
func Build(considered, chosen []trace.Event, opts Options) *Graph {
	events := make([]trace.Event, len(considered))
	copy(events, considered)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	g := &Graph{PID: opts.PID, byID: make(map[string]*Node)}

	// Step 1: collect every pointer some event claims as an input. A
	// relation-anonymous record is only worth a node if something points
	// at it.
	referenced := make(map[pointerRef]struct{})
	for _, ev := range events {
		if ev.OuterPathPtr != 0 {
			referenced[pointerRef{ev.PID, ev.OuterPathPtr}] = struct{}{}
		}
		if ev.InnerPathPtr != 0 {
			referenced[pointerRef{ev.PID, ev.InnerPathPtr}] = struct{}{}
		}
	}

	// Step 2: create nodes in timestamp order and register pointer
	// occupancy. Node IDs carry the event's position in the deduplicated
	// list, so dropped noise leaves gaps rather than shifting later IDs.
	reg := identity.NewRegistry()
	dropped := 0
	for i, ev := range events {
		if ev.ParentSlot == 0 && ev.InnerSlot == 0 && ev.OuterSlot == 0 {
			if _, ok := referenced[pointerRef{ev.PID, ev.PathPtr}]; !ok {
				dropped++
				continue
			}
		}
		n := &Node{ID: fmt.Sprintf("plan_%d_%d", ev.PID, i), Event: ev}
		g.Nodes = append(g.Nodes, n)
		g.byID[n.ID] = n
		if ev.PathPtr != 0 {
			reg.Record(ev.PID, ev.PathPtr, ev.Timestamp, n.ID, ev.PathType)
		}
	}

	// Step 3: lineage edges from resolved input pointers. A pointer that
	// resolves to the node itself is planner state noise, not lineage.
	for _, n := range g.Nodes {
		ev := n.Event
		if ev.OuterPathPtr != 0 {
			if id, ok := reg.Resolve(ev.PID, ev.OuterPathPtr, ev.Timestamp, ev.OuterPathType); ok && id != n.ID {
				g.Edges = append(g.Edges, Edge{From: id, To: n.ID, Label: EdgeOuter})
			}
		}
		if ev.InnerPathPtr != 0 {
			if id, ok := reg.Resolve(ev.PID, ev.InnerPathPtr, ev.Timestamp, ev.InnerPathType); ok && id != n.ID {
				g.Edges = append(g.Edges, Edge{From: id, To: n.ID, Label: EdgeInner})
			}
		}
	}

	// Step 4: chosen marking. No type hint: the chosen kind does not name
	// its ADD_PATH counterpart's path type reliably.
	chosenSorted := make([]trace.Event, len(chosen))
	copy(chosenSorted, chosen)
	sort.SliceStable(chosenSorted, func(i, j int) bool {
		return chosenSorted[i].Timestamp < chosenSorted[j].Timestamp
	})
	for _, ev := range chosenSorted {
		if ev.PathPtr == 0 {
			continue
		}
		if id, ok := reg.Resolve(ev.PID, ev.PathPtr, ev.Timestamp, ""); ok {
			g.byID[id].Chosen = true
		}
	}

	// Step 5: progression edges per (pid, parent slot), in the order the
	// planner tried the alternatives.
	type slotKey struct {
		pid  int
		slot int
	}
	slotGroups := make(map[slotKey][]*Node)
	var slotOrder []slotKey
	for _, n := range g.Nodes {
		if n.Event.ParentSlot == 0 {
			continue
		}
		k := slotKey{n.Event.PID, n.Event.ParentSlot}
		if _, seen := slotGroups[k]; !seen {
			slotOrder = append(slotOrder, k)
		}
		slotGroups[k] = append(slotGroups[k], n)
	}
	for _, k := range slotOrder {
		nodes := slotGroups[k]
		for i := 0; i+1 < len(nodes); i++ {
			g.Edges = append(g.Edges, Edge{
				From:  nodes[i].ID,
				To:    nodes[i+1].ID,
				Label: EdgeProgression,
				Alt:   nodes[i].IsBaseAccess() && nodes[i+1].IsBaseAccess(),
			})
		}
	}

	// Step 6: clusters, key-sorted so layout never depends on map order.
	g.RelationClusters = relationClusters(g.Nodes)
	g.JoinClusters = joinClusters(g.Nodes)

	// Step 7: invisible ordering edges ranking same-type alternatives by
	// total cost.
	byType := make(map[string][]*Node)
	var typeOrder []string
	for _, n := range g.Nodes {
		if _, seen := byType[n.Event.PathType]; !seen {
			typeOrder = append(typeOrder, n.Event.PathType)
		}
		byType[n.Event.PathType] = append(byType[n.Event.PathType], n)
	}
	for _, pt := range typeOrder {
		nodes := byType[pt]
		if len(nodes) < 2 {
			continue
		}
		ranked := make([]*Node, len(nodes))
		copy(ranked, nodes)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Event.TotalCost < ranked[j].Event.TotalCost
		})
		for i := 0; i+1 < len(ranked); i++ {
			g.Edges = append(g.Edges, Edge{From: ranked[i].ID, To: ranked[i+1].ID, Label: EdgeOrdering})
		}
	}

	// Step 8: summary over retained nodes; ties keep the earliest.
	g.Summary = summarize(g.Nodes)

	slog.Debug("graph built",
		"target", g.Title(),
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"dropped_noise", dropped)
	return g
}

func relationClusters(nodes []*Node) []RelationCluster {
	type relKey struct {
		pid   int
		slot  int
		relID uint32
	}
	groups := make(map[relKey][]string)
	for _, n := range nodes {
		ev := n.Event
		if ev.ParentSlot == 0 || !n.IsBaseAccess() {
			continue
		}
		k := relKey{ev.PID, ev.ParentSlot, ev.ParentRelID}
		groups[k] = append(groups[k], n.ID)
	}

	keys := make([]relKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.pid != b.pid {
			return a.pid < b.pid
		}
		if a.slot != b.slot {
			return a.slot < b.slot
		}
		return a.relID < b.relID
	})

	out := make([]RelationCluster, 0, len(keys))
	for _, k := range keys {
		out = append(out, RelationCluster{
			PID:     k.pid,
			Slot:    k.slot,
			RelID:   k.relID,
			NodeIDs: groups[k],
		})
	}
	return out
}

func joinClusters(nodes []*Node) []JoinCluster {
	type joinKey struct {
		pid        int
		joinName   string
		outerSlot  int
		innerSlot  int
		outerRelID uint32
		innerRelID uint32
	}
	groups := make(map[joinKey][]string)
	for _, n := range nodes {
		ev := n.Event
		// Disjoint from relation clusters: slot-anchored nodes progress
		// under their relation, only free join alternatives cluster here.
		if ev.ParentSlot != 0 || (ev.InnerSlot == 0 && ev.OuterSlot == 0) {
			continue
		}
		k := joinKey{ev.PID, ev.JoinName(), ev.OuterSlot, ev.InnerSlot, ev.OuterRelID, ev.InnerRelID}
		groups[k] = append(groups[k], n.ID)
	}

	keys := make([]joinKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.pid != b.pid {
			return a.pid < b.pid
		}
		if a.joinName != b.joinName {
			return a.joinName < b.joinName
		}
		if a.outerSlot != b.outerSlot {
			return a.outerSlot < b.outerSlot
		}
		if a.innerSlot != b.innerSlot {
			return a.innerSlot < b.innerSlot
		}
		if a.outerRelID != b.outerRelID {
			return a.outerRelID < b.outerRelID
		}
		return a.innerRelID < b.innerRelID
	})

	out := make([]JoinCluster, 0, len(keys))
	for _, k := range keys {
		out = append(out, JoinCluster{
			PID:        k.pid,
			JoinName:   k.joinName,
			OuterSlot:  k.outerSlot,
			InnerSlot:  k.innerSlot,
			OuterRelID: k.outerRelID,
			InnerRelID: k.innerRelID,
			NodeIDs:    groups[k],
		})
	}
	return out
}

func summarize(nodes []*Node) Summary {
	s := Summary{Paths: len(nodes)}
	for _, n := range nodes {
		if s.Cheapest == nil || n.Event.TotalCost < s.Cheapest.TotalCost {
			s.Cheapest = &CostEntry{NodeID: n.ID, PathType: n.Event.PathType, TotalCost: n.Event.TotalCost}
		}
		if s.MostExpensive == nil || n.Event.TotalCost > s.MostExpensive.TotalCost {
			s.MostExpensive = &CostEntry{NodeID: n.ID, PathType: n.Event.PathType, TotalCost: n.Event.TotalCost}
		}
	}
	return s
}
