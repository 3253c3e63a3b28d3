// Package store provides SQLite-backed archival for captured planner traces.
//
// A session is one archived capture: a labeled, content-addressed set of
// decoded events stored in input order. Archiving identical trace content
// twice is a no-op, and reading a session back yields the events in the exact
// order the capture produced them, so every downstream stage (dedup, graph
// build, rendering) behaves identically on live and archived input.
//
// # Invariants
//
//   - Events are keyed (session_id, seq) where seq is the input position.
//     Ordering always uses seq, never timestamps; probe timestamps are data,
//     not storage order.
//   - Event payloads are RFC 8785 canonical JSON (internal/canon), so a
//     session's trace_hash is reproducible from its rows alone.
//   - Session listings order by created_at_ns ASC, id ASC COLLATE BINARY so
//     results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events cannot outlive their session
package store
