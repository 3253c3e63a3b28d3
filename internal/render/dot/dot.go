// Package dot renders plan graphs as Graphviz DOT.
//
// Output is deterministic: node statements follow node order, clusters their
// key-sorted order, and every label is fully specified, so identical graphs
// produce identical bytes. Raster output delegates to the dot binary.
package dot

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/graph"
)

// Options configures rendering.
type Options struct {
	// Namer resolves a relation OID to a display name. Nil renders bare
	// numeric OIDs; a non-nil Namer must return a name for every OID it is
	// given (resolvers fall back to "Oid <n>" themselves).
	Namer func(oid uint32) string

	// Title overrides the graph comment line. Empty uses the graph's own
	// title.
	Title string
}

// Render produces the DOT document for a graph.
func Render(g *graph.Graph, opts Options) []byte {
	title := opts.Title
	if title == "" {
		title = g.Title()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "// %s\n", title)
	b.WriteString("digraph {\n")
	b.WriteString("\tgraph [rankdir=LR splines=spline overlap=false nodesep=0.6 ranksep=0.9 compound=true newrank=true]\n")
	b.WriteString("\tnode [shape=box style=\"rounded,filled\" fontname=Arial fontsize=9]\n")
	b.WriteString("\tedge [fontname=Arial fontsize=9 arrowsize=0.7]\n")

	for _, n := range g.Nodes {
		fill, penwidth := "lightblue", "1"
		if n.Chosen {
			fill, penwidth = "lightgreen", "3"
		}
		fmt.Fprintf(&b, "\t%s [label=\"%s\" fillcolor=%s penwidth=%s]\n",
			n.ID, nodeLabel(n, opts.Namer), fill, penwidth)
	}

	writeRelationClusters(&b, g, opts.Namer)
	writeJoinClusters(&b, g, opts.Namer)
	writeEdges(&b, g)

	if g.Summary.Paths > 0 {
		writeStats(&b, g)
		writeLegend(&b)
	}

	b.WriteString("}\n")
	return b.Bytes()
}

// nodeLabel builds the multi-line node label: path type, a [CHOSEN] marker
// for selected plans, costs, rows, and one line per nonzero relation OID.
func nodeLabel(n *graph.Node, namer func(uint32) string) string {
	ev := n.Event
	lines := []string{ev.PathType}
	if n.Chosen {
		lines = append(lines, "[CHOSEN]")
	}
	lines = append(lines,
		"Startup: "+formatCost(ev.StartupCost),
		"Total: "+formatCost(ev.TotalCost),
		"Rows: "+strconv.FormatInt(ev.Rows, 10),
	)
	if ev.ParentRelID != 0 {
		lines = append(lines, oidLine("Parent", ev.ParentRelID, namer))
	}
	if ev.OuterRelID != 0 {
		lines = append(lines, oidLine("Outer", ev.OuterRelID, namer))
	}
	if ev.InnerRelID != 0 {
		lines = append(lines, oidLine("Inner", ev.InnerRelID, namer))
	}

	escaped := make([]string, len(lines))
	for i, line := range lines {
		escaped[i] = escapeLabel(line)
	}
	return strings.Join(escaped, `\n`)
}

// writeRelationClusters nests the relation clusters inside
// cluster_left/cluster_relations. rank=source pins the whole group to the
// leftmost rank under rankdir=LR, keeping base accesses on the left edge.
func writeRelationClusters(b *bytes.Buffer, g *graph.Graph, namer func(uint32) string) {
	b.WriteString("\tsubgraph cluster_left {\n")
	b.WriteString("\t\trank=source\n")
	b.WriteString("\t\tsubgraph cluster_relations {\n")
	b.WriteString("\t\t\trank=source\n")
	for i, c := range g.RelationClusters {
		label := fmt.Sprintf("Relation RTI %d (%s)", c.Slot, oidLabel(c.RelID, namer))
		if g.PID == 0 {
			label = fmt.Sprintf("PID %d • %s", c.PID, label)
		}
		fmt.Fprintf(b, "\t\t\tsubgraph cluster_rel_%d {\n", i)
		fmt.Fprintf(b, "\t\t\t\tlabel=\"%s\"\n", escapeLabel(label))
		b.WriteString("\t\t\t\tcolor=gray65\n")
		b.WriteString("\t\t\t\tstyle=\"rounded,dashed\"\n")
		b.WriteString("\t\t\t\tpenwidth=1.2\n")
		b.WriteString("\t\t\t\tfontname=Arial\n")
		b.WriteString("\t\t\t\tfontsize=10\n")
		b.WriteString("\t\t\t\trank=same\n")
		for _, id := range c.NodeIDs {
			fmt.Fprintf(b, "\t\t\t\t%s\n", id)
		}
		b.WriteString("\t\t\t}\n")
	}
	b.WriteString("\t\t}\n")
	b.WriteString("\t}\n")
}

func writeJoinClusters(b *bytes.Buffer, g *graph.Graph, namer func(uint32) string) {
	for i, c := range g.JoinClusters {
		outer := fmt.Sprintf("RTI %d", c.OuterSlot)
		if c.OuterSlot == 0 {
			outer = oidLabel(c.OuterRelID, namer)
		}
		inner := fmt.Sprintf("RTI %d", c.InnerSlot)
		if c.InnerSlot == 0 {
			inner = oidLabel(c.InnerRelID, namer)
		}
		label := fmt.Sprintf("%s (outer: %s, inner: %s)", c.JoinName, outer, inner)
		if g.PID == 0 {
			label = fmt.Sprintf("PID %d • %s", c.PID, label)
		}
		fmt.Fprintf(b, "\tsubgraph cluster_join_%d {\n", i)
		fmt.Fprintf(b, "\t\tlabel=\"%s\"\n", escapeLabel(label))
		b.WriteString("\t\tcolor=lightsteelblue4\n")
		b.WriteString("\t\tstyle=\"rounded,dashed\"\n")
		b.WriteString("\t\tpenwidth=1.2\n")
		b.WriteString("\t\tfontname=Arial\n")
		b.WriteString("\t\tfontsize=10\n")
		for _, id := range c.NodeIDs {
			fmt.Fprintf(b, "\t\t%s\n", id)
		}
		b.WriteString("\t}\n")
	}
}

// writeEdges emits progression edges first, then lineage, then the invisible
// same-type ordering chain.
func writeEdges(b *bytes.Buffer, g *graph.Graph) {
	for _, e := range g.EdgesWithLabel(graph.EdgeProgression) {
		if e.Alt {
			fmt.Fprintf(b, "\t%s -> %s [style=dashed color=gray50 xlabel=alt constraint=false arrowhead=none]\n", e.From, e.To)
		} else {
			fmt.Fprintf(b, "\t%s -> %s [color=black constraint=false]\n", e.From, e.To)
		}
	}

	// Lineage edges keep their build order: per node, outer before inner.
	for _, e := range g.Edges {
		switch e.Label {
		case graph.EdgeOuter:
			fmt.Fprintf(b, "\t%s -> %s [color=steelblue3 xlabel=outer minlen=2]\n", e.From, e.To)
		case graph.EdgeInner:
			fmt.Fprintf(b, "\t%s -> %s [color=darkorange3 xlabel=inner minlen=2]\n", e.From, e.To)
		}
	}

	for _, e := range g.EdgesWithLabel(graph.EdgeOrdering) {
		fmt.Fprintf(b, "\t%s -> %s [style=invis]\n", e.From, e.To)
	}
}

func writeStats(b *bytes.Buffer, g *graph.Graph) {
	lines := []string{
		"Statistics",
		fmt.Sprintf("Total paths considered: %d", g.Summary.Paths),
	}
	if c := g.Summary.Cheapest; c != nil {
		lines = append(lines, fmt.Sprintf("Cheapest: %s (%.2f)", c.PathType, c.TotalCost))
	}
	if m := g.Summary.MostExpensive; m != nil {
		lines = append(lines, fmt.Sprintf("Most expensive: %s (%.2f)", m.PathType, m.TotalCost))
	}
	fmt.Fprintf(b, "\tstats [label=\"%s\" shape=note fillcolor=lightyellow]\n", strings.Join(lines, `\n`))
}

func writeLegend(b *bytes.Buffer) {
	lines := []string{
		"Legend",
		"Blue edge: outer input",
		"Orange edge: inner input",
		"Dashed cluster: relation/join group",
		"Green node: selected plan",
		"Black edge: relation path progression",
	}
	fmt.Fprintf(b, "\tlegend [label=\"%s\" shape=note fillcolor=white]\n", strings.Join(lines, `\n`))
}

// formatCost renders a cost for node labels.
func formatCost(c float64) string {
	return strconv.FormatFloat(c, 'f', 3, 64)
}

// oidLabel formats an OID for cluster labels: "OID n/a" for zero,
// "name (oid)" with a namer, "OID <n>" without.
func oidLabel(oid uint32, namer func(uint32) string) string {
	if oid == 0 {
		return "OID n/a"
	}
	if namer == nil {
		return fmt.Sprintf("OID %d", oid)
	}
	return fmt.Sprintf("%s (%d)", namer(oid), oid)
}

// oidLine formats an OID for a node label line.
func oidLine(role string, oid uint32, namer func(uint32) string) string {
	if namer == nil {
		return fmt.Sprintf("%s OID: %d", role, oid)
	}
	return fmt.Sprintf("%s: %s (%d)", role, namer(oid), oid)
}

// escapeLabel escapes a single label line for inclusion in a quoted DOT
// string. Line breaks are joined by the caller with the \n escape, so only
// backslashes and quotes need care here.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
