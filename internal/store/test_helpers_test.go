package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// createTestStore creates a fresh on-disk store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates a considered-path event with distinguishing fields.
func createTestEvent(ts int64, pid int, pathType string, total float64) trace.Event {
	return trace.Event{
		Timestamp:    ts,
		PID:          pid,
		Kind:         trace.KindAddPath,
		PathType:     pathType,
		StartupCost:  total / 2,
		TotalCost:    total,
		Rows:         100,
		ParentSlot:   3,
		ParentRelID:  16384,
		JoinKindName: "JOIN_INNER",
		PathPtr:      uint64(ts) + 0xA000,
	}
}

// createTestSession archives a small session and returns it.
func createTestSession(t *testing.T, s *Store, label string, events []trace.Event) Session {
	t.Helper()
	sess := Session{Label: label, Source: "test.jsonl"}
	if err := s.WriteSession(context.Background(), &sess, events); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}
