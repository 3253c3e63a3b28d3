package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/testutil"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// endToEndEvents is the canonical small scenario: two base-access
// alternatives for relation slot 3, a join over slots 3 and 5 whose outer
// input references the cheaper base alternative, and a chosen event
// matching the join.
func endToEndEvents() (considered, chosen []trace.Event) {
	seq := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	idx := testutil.Scan(2000, 1, 3, 16384, 0xB2, "T_IndexScan", 8.0, 15.0)

	join := trace.Event{
		Timestamp:    3000,
		PID:          1,
		Kind:         trace.KindAddPath,
		PathType:     "T_HashJoin",
		StartupCost:  5.0,
		TotalCost:    9.0,
		Rows:         1,
		JoinKindName: "JOIN_INNER",
		OuterSlot:    3,
		InnerSlot:    5,
		PathPtr:      0xC3,
		OuterPathPtr: 0xB2,
	}

	return []trace.Event{seq, idx, join}, []trace.Event{testutil.Chosen(4000, 1, 0xC3, "")}
}

func TestBuild_EndToEnd(t *testing.T) {
	considered, chosen := endToEndEvents()
	g := Build(considered, chosen, Options{PID: 1})

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "plan_1_0", g.Nodes[0].ID)
	assert.Equal(t, "plan_1_1", g.Nodes[1].ID)
	assert.Equal(t, "plan_1_2", g.Nodes[2].ID)

	outer := g.EdgesWithLabel(EdgeOuter)
	require.Len(t, outer, 1)
	assert.Equal(t, "plan_1_1", outer[0].From, "outer edge starts at the cheaper base alternative")
	assert.Equal(t, "plan_1_2", outer[0].To)
	assert.Empty(t, g.EdgesWithLabel(EdgeInner))

	prog := g.EdgesWithLabel(EdgeProgression)
	require.Len(t, prog, 1)
	assert.Equal(t, "plan_1_0", prog[0].From)
	assert.Equal(t, "plan_1_1", prog[0].To)
	assert.True(t, prog[0].Alt, "both endpoints are base accesses")

	chosenNodes := g.ChosenNodes()
	require.Len(t, chosenNodes, 1)
	assert.Equal(t, "plan_1_2", chosenNodes[0].ID)

	require.Len(t, g.RelationClusters, 1)
	assert.Equal(t, 3, g.RelationClusters[0].Slot)
	assert.Equal(t, []string{"plan_1_0", "plan_1_1"}, g.RelationClusters[0].NodeIDs)

	require.Len(t, g.JoinClusters, 1)
	jc := g.JoinClusters[0]
	assert.Equal(t, "JOIN_INNER", jc.JoinName)
	assert.Equal(t, 3, jc.OuterSlot)
	assert.Equal(t, 5, jc.InnerSlot)
	assert.Equal(t, []string{"plan_1_2"}, jc.NodeIDs)

	assert.Equal(t, 3, g.Summary.Paths)
	require.NotNil(t, g.Summary.Cheapest)
	assert.Equal(t, "T_HashJoin", g.Summary.Cheapest.PathType)
	require.NotNil(t, g.Summary.MostExpensive)
	assert.Equal(t, "T_SeqScan", g.Summary.MostExpensive.PathType)
}

func TestBuild_Deterministic(t *testing.T) {
	considered, chosen := endToEndEvents()

	a := Build(considered, chosen, Options{PID: 1})
	b := Build(considered, chosen, Options{PID: 1})

	aj, err := a.CanonicalJSON()
	require.NoError(t, err)
	bj, err := b.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, aj, bj)
}

func TestBuild_NoiseFilter(t *testing.T) {
	// Relation-anonymous and unreferenced: capture noise, no node.
	noise := trace.Event{
		Timestamp: 500,
		PID:       1,
		Kind:      trace.KindAddPath,
		PathType:  "T_MaterialPath",
		TotalCost: 1.0,
		PathPtr:   0xAA,
	}
	scan := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)

	g := Build([]trace.Event{noise, scan}, nil, Options{PID: 1})
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "plan_1_1", g.Nodes[0].ID, "dropped noise leaves an ID gap")
	assert.Equal(t, 1, g.Summary.Paths)

	// The identical record becomes a node once something references it.
	join := trace.Event{
		Timestamp:    2000,
		PID:          1,
		Kind:         trace.KindAddPath,
		PathType:     "T_NestLoop",
		TotalCost:    5.0,
		OuterSlot:    3,
		InnerSlot:    5,
		PathPtr:      0xC3,
		OuterPathPtr: 0xAA,
	}
	g = Build([]trace.Event{noise, scan, join}, nil, Options{PID: 1})
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "plan_1_0", g.Nodes[0].ID)
	assert.Equal(t, "T_MaterialPath", g.Nodes[0].Event.PathType)

	outer := g.EdgesWithLabel(EdgeOuter)
	require.Len(t, outer, 1)
	assert.Equal(t, "plan_1_0", outer[0].From)
	assert.Equal(t, "plan_1_2", outer[0].To)
}

func TestBuild_UnresolvablePointerOmitsEdge(t *testing.T) {
	join := trace.Event{
		Timestamp:    3000,
		PID:          1,
		Kind:         trace.KindAddPath,
		PathType:     "T_HashJoin",
		TotalCost:    9.0,
		OuterSlot:    3,
		InnerSlot:    5,
		PathPtr:      0xC3,
		OuterPathPtr: 0xDEAD,
		InnerPathPtr: 0xBEEF,
	}

	g := Build([]trace.Event{join}, nil, Options{PID: 1})
	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.EdgesWithLabel(EdgeOuter))
	assert.Empty(t, g.EdgesWithLabel(EdgeInner))
}

func TestBuild_SelfReferenceProducesNoEdge(t *testing.T) {
	join := trace.Event{
		Timestamp:    3000,
		PID:          1,
		Kind:         trace.KindAddPath,
		PathType:     "T_HashJoin",
		TotalCost:    9.0,
		OuterSlot:    3,
		InnerSlot:    5,
		PathPtr:      0xC3,
		OuterPathPtr: 0xC3,
	}

	g := Build([]trace.Event{join}, nil, Options{PID: 1})
	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.EdgesWithLabel(EdgeOuter))
}

func TestBuild_ChosenUnresolvedMarksNothing(t *testing.T) {
	scan := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	ghost := testutil.Chosen(2000, 1, 0xDEAD, "")

	g := Build([]trace.Event{scan}, []trace.Event{ghost}, Options{PID: 1})
	assert.Empty(t, g.ChosenNodes())
}

func TestBuild_ChosenPointerReuse(t *testing.T) {
	// The address of the early scan is reused much later by another
	// alternative. A chosen event near the second registration marks the
	// second node, not the first.
	early := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	late := testutil.Scan(60_000_000, 1, 4, 16385, 0xA1, "T_IndexScan", 2.0, 4.0)
	pick := testutil.Chosen(60_000_500, 1, 0xA1, "")

	g := Build([]trace.Event{early, late}, []trace.Event{pick}, Options{PID: 1})
	chosen := g.ChosenNodes()
	require.Len(t, chosen, 1)
	assert.Equal(t, "T_IndexScan", chosen[0].Event.PathType)
}

func TestBuild_ProgressionMixedTypes(t *testing.T) {
	scan := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	mat := trace.Event{
		Timestamp:  2000,
		PID:        1,
		Kind:       trace.KindAddPath,
		PathType:   "T_Material",
		TotalCost:  25.0,
		ParentSlot: 3,
		PathPtr:    0xB2,
	}

	g := Build([]trace.Event{scan, mat}, nil, Options{PID: 1})
	prog := g.EdgesWithLabel(EdgeProgression)
	require.Len(t, prog, 1)
	assert.False(t, prog[0].Alt, "one endpoint is not a base access")
}

func TestBuild_OrderingEdgesRankByCost(t *testing.T) {
	a := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	b := testutil.Scan(2000, 1, 4, 16385, 0xB2, "T_SeqScan", 7.0, 15.0)
	c := testutil.Scan(3000, 1, 5, 16386, 0xC3, "T_SeqScan", 9.0, 18.0)

	g := Build([]trace.Event{a, b, c}, nil, Options{PID: 1})
	ordering := g.EdgesWithLabel(EdgeOrdering)
	require.Len(t, ordering, 2)
	assert.Equal(t, "plan_1_1", ordering[0].From, "cheapest first")
	assert.Equal(t, "plan_1_2", ordering[0].To)
	assert.Equal(t, "plan_1_2", ordering[1].From)
	assert.Equal(t, "plan_1_0", ordering[1].To)
}

func TestBuild_ClusterOrderStableUnderPermutation(t *testing.T) {
	events := []trace.Event{
		testutil.Scan(4000, 9, 2, 200, 0x1, "T_SeqScan", 1, 2),
		testutil.Scan(1000, 7, 5, 500, 0x2, "T_SeqScan", 1, 2),
		testutil.Scan(3000, 7, 2, 201, 0x3, "T_SeqScan", 1, 2),
		testutil.Scan(2000, 9, 1, 100, 0x4, "T_SeqScan", 1, 2),
	}
	permuted := []trace.Event{events[2], events[0], events[3], events[1]}

	a := Build(events, nil, Options{})
	b := Build(permuted, nil, Options{})

	wantKeys := [][3]int{{7, 2, 201}, {7, 5, 500}, {9, 1, 100}, {9, 2, 200}}
	for _, g := range []*Graph{a, b} {
		require.Len(t, g.RelationClusters, 4)
		for i, c := range g.RelationClusters {
			assert.Equal(t, wantKeys[i][0], c.PID)
			assert.Equal(t, wantKeys[i][1], c.Slot)
			assert.Equal(t, uint32(wantKeys[i][2]), c.RelID)
		}
	}
}

func TestBuild_ClusterMembersInTimestampOrder(t *testing.T) {
	later := testutil.Scan(5000, 1, 3, 16384, 0xB2, "T_IndexScan", 8.0, 15.0)
	earlier := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)

	g := Build([]trace.Event{later, earlier}, nil, Options{PID: 1})
	require.Len(t, g.RelationClusters, 1)
	assert.Equal(t, []string{"plan_1_0", "plan_1_1"}, g.RelationClusters[0].NodeIDs)
	assert.Equal(t, "T_SeqScan", g.NodeByID("plan_1_0").Event.PathType)
}

func TestBuild_SummaryTiesKeepEarliest(t *testing.T) {
	a := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	b := testutil.Scan(2000, 1, 4, 16385, 0xB2, "T_IndexScan", 10.0, 20.0)

	g := Build([]trace.Event{a, b}, nil, Options{PID: 1})
	require.NotNil(t, g.Summary.Cheapest)
	assert.Equal(t, "plan_1_0", g.Summary.Cheapest.NodeID)
	require.NotNil(t, g.Summary.MostExpensive)
	assert.Equal(t, "plan_1_0", g.Summary.MostExpensive.NodeID)
}

func TestBuild_EmptyInput(t *testing.T) {
	g := Build(nil, nil, Options{})
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.Zero(t, g.Summary.Paths)
	assert.Nil(t, g.Summary.Cheapest)
}

func TestBuild_MultiProcessIsolation(t *testing.T) {
	// Same pointer values in two processes stay separate: the reference in
	// pid 2 must not resolve into pid 1's registry.
	scan1 := testutil.Scan(1000, 1, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	scan2 := testutil.Scan(1500, 2, 3, 16384, 0xA1, "T_SeqScan", 10.0, 20.0)
	join2 := trace.Event{
		Timestamp:    2000,
		PID:          2,
		Kind:         trace.KindAddPath,
		PathType:     "T_HashJoin",
		TotalCost:    9.0,
		OuterSlot:    3,
		InnerSlot:    5,
		PathPtr:      0xC3,
		OuterPathPtr: 0xA1,
	}

	g := Build([]trace.Event{scan1, scan2, join2}, nil, Options{})
	outer := g.EdgesWithLabel(EdgeOuter)
	require.Len(t, outer, 1)
	from := g.NodeByID(outer[0].From)
	require.NotNil(t, from)
	assert.Equal(t, 2, from.Event.PID)
}
