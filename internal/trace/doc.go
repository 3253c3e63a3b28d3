// Package trace defines the probe event model and the JSON-lines ingestor.
//
// A trace is a flat stream of records captured from a running PostgreSQL
// backend: one ADD_PATH record per path alternative the planner considered,
// and one CREATE_PLAN record per alternative that became the plan. Records
// carry raw planner pointers whose values are only meaningful within one
// process and only near the record's own timestamp; everything downstream
// (dedup, identity resolution, graph building) exists to recover stable
// structure from those transient identities.
//
// Ingestion is deliberately forgiving: a malformed line is skipped, logged,
// and counted, never fatal. The only fatal condition is an unreadable input
// stream. Field values that are absent default to zero, matching the capture
// side which omits nothing but may truncate.
//
// Events are partitioned by process ID. Timestamps are nanosecond-resolution
// and monotonic within one process's stream; they are never compared across
// processes.
package trace
