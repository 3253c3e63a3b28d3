package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// GetSession retrieves a single session's metadata by ID.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, source, created_at_ns, event_count, trace_hash
		FROM sessions
		WHERE id = ?
	`, id)

	var sess Session
	err := row.Scan(&sess.ID, &sess.Label, &sess.Source, &sess.CreatedAtNS, &sess.EventCount, &sess.TraceHash)
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ReadSession returns a session's events in their archived order, which is
// the capture's input order.
func (s *Store) ReadSession(ctx context.Context, id string) ([]trace.Event, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := unmarshalEvent(payload)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// ListSessions returns all archived sessions.
// Ordered by created_at_ns ASC, id ASC COLLATE BINARY so listings are
// identical across runs even when timestamps collide.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, source, created_at_ns, event_count, trace_hash
		FROM sessions
		ORDER BY created_at_ns ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		err := rows.Scan(&sess.ID, &sess.Label, &sess.Source, &sess.CreatedAtNS, &sess.EventCount, &sess.TraceHash)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session and, via foreign key cascade, its events.
// Returns sql.ErrNoRows (wrapped) if the session does not exist.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: rows affected: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("delete session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
