// Package testutil provides shared builders for probe events in tests.
package testutil

import (
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// Scan builds an ADD_PATH base-access event: one path alternative serving
// the relation in the given planner slot.
func Scan(ts int64, pid, slot int, relID uint32, ptr uint64, pathType string, startup, total float64) trace.Event {
	return trace.Event{
		Timestamp:   ts,
		PID:         pid,
		Kind:        trace.KindAddPath,
		PathType:    pathType,
		StartupCost: startup,
		TotalCost:   total,
		Rows:        1,
		ParentSlot:  slot,
		ParentRelID: relID,
		PathPtr:     ptr,
	}
}

// Join builds an ADD_PATH join event combining the paths registered under
// outerPtr and innerPtr.
func Join(ts int64, pid int, outerSlot, innerSlot int, outerPtr, innerPtr, ptr uint64, pathType string, startup, total float64) trace.Event {
	return trace.Event{
		Timestamp:    ts,
		PID:          pid,
		Kind:         trace.KindAddPath,
		PathType:     pathType,
		StartupCost:  startup,
		TotalCost:    total,
		Rows:         1,
		JoinKind:     trace.JoinInner,
		OuterSlot:    outerSlot,
		InnerSlot:    innerSlot,
		PathPtr:      ptr,
		OuterPathPtr: outerPtr,
		InnerPathPtr: innerPtr,
	}
}

// Chosen builds a CREATE_PLAN event referencing the alternative registered
// under ptr.
func Chosen(ts int64, pid int, ptr uint64, pathType string) trace.Event {
	return trace.Event{
		Timestamp: ts,
		PID:       pid,
		Kind:      trace.KindCreatePlan,
		PathType:  pathType,
		PathPtr:   ptr,
	}
}
