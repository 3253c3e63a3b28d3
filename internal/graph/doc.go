// Package graph reconstructs the causal DAG of planner alternatives.
//
// The builder consumes deduplicated events and produces nodes, lineage
// edges (which input paths produced a join), progression edges (the order
// alternatives were tried per relation slot), chosen marks, two cluster
// taxonomies for presentation, and a cost summary. The build is total: bad
// records were already dropped upstream and an unresolvable pointer simply
// produces no edge. The result is byte-for-byte deterministic for a fixed
// input.
//
// Everything here is pure computation over decoded events. File formats,
// rendering, and storage live in collaborator packages.
package graph
