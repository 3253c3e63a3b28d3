package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// Session is one archived capture.
type Session struct {
	ID          string
	Label       string
	Source      string
	CreatedAtNS int64
	EventCount  int
	TraceHash   string
}

// WriteSession archives a session and its events atomically.
//
// Blank sess fields are filled in: ID gets a fresh UUIDv7, CreatedAtNS the
// current time. EventCount and TraceHash are always computed from events.
//
// Writes are idempotent on trace content: archiving a trace whose hash is
// already stored inserts nothing and rewrites sess.ID to the existing
// session's ID, so callers always end up holding the canonical session.
func (s *Store) WriteSession(ctx context.Context, sess *Session, events []trace.Event) error {
	payloads := make([]string, len(events))
	for i, ev := range events {
		p, err := marshalEvent(ev)
		if err != nil {
			return fmt.Errorf("write session: event %d: %w", i, err)
		}
		payloads[i] = p
	}

	if sess.ID == "" {
		sess.ID = uuid.Must(uuid.NewV7()).String()
	}
	if sess.CreatedAtNS == 0 {
		sess.CreatedAtNS = time.Now().UnixNano()
	}
	sess.EventCount = len(events)
	sess.TraceHash = traceHash(payloads)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, label, source, created_at_ns, event_count, trace_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sess.ID,
		sess.Label,
		sess.Source,
		sess.CreatedAtNS,
		sess.EventCount,
		sess.TraceHash,
	)
	if err != nil {
		return fmt.Errorf("write session: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write session: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Conflict - this trace content (or session ID) is already archived.
		// Point the caller at the existing session instead of duplicating it.
		var existing string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM sessions WHERE trace_hash = ?
		`, sess.TraceHash).Scan(&existing)
		if err != nil {
			return fmt.Errorf("write session: select existing: %w", err)
		}
		slog.Debug("trace already archived", "session", existing)
		sess.ID = existing
		return nil
	}

	for i, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events
			(session_id, seq, pid, kind, ts_ns, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			sess.ID,
			i,
			ev.PID,
			string(ev.Kind),
			ev.Timestamp,
			payloads[i],
		)
		if err != nil {
			return fmt.Errorf("write session: event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write session: commit: %w", err)
	}

	slog.Debug("session archived", "session", sess.ID, "events", sess.EventCount)
	return nil
}
