package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/canon"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// marshalEvent converts a decoded event to canonical JSON TEXT for storage.
// Costs render as fixed 6-decimal strings because canonical JSON forbids
// floats; every other field keeps its wire name, so stored payloads and raw
// capture records stay field-compatible.
func marshalEvent(ev trace.Event) (string, error) {
	doc := map[string]any{
		"timestamp":            ev.Timestamp,
		"pid":                  ev.PID,
		"event_type":           string(ev.Kind),
		"path_type":            ev.PathType,
		"startup_cost":         formatCost(ev.StartupCost),
		"total_cost":           formatCost(ev.TotalCost),
		"rows":                 ev.Rows,
		"parent_rti":           ev.ParentSlot,
		"parent_rel_oid":       ev.ParentRelID,
		"join_type":            int(ev.JoinKind),
		"join_type_name":       ev.JoinKindName,
		"inner_rti":            ev.InnerSlot,
		"outer_rti":            ev.OuterSlot,
		"inner_rel_oid":        ev.InnerRelID,
		"outer_rel_oid":        ev.OuterRelID,
		"path_ptr":             ev.PathPtr,
		"parent_rel_ptr":       ev.ParentRelPtr,
		"outer_path_ptr":       ev.OuterPathPtr,
		"inner_path_ptr":       ev.InnerPathPtr,
		"outer_path_type_name": ev.OuterPathType,
		"inner_path_type_name": ev.InnerPathType,
	}

	data, err := canon.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

// storedEvent mirrors the payload produced by marshalEvent. Pointer fields
// decode directly into uint64 so values above 2^53 survive without a float64
// round-trip.
type storedEvent struct {
	Timestamp     int64  `json:"timestamp"`
	PID           int    `json:"pid"`
	EventType     string `json:"event_type"`
	PathType      string `json:"path_type"`
	StartupCost   string `json:"startup_cost"`
	TotalCost     string `json:"total_cost"`
	Rows          int64  `json:"rows"`
	ParentSlot    int    `json:"parent_rti"`
	ParentRelID   uint32 `json:"parent_rel_oid"`
	JoinKind      int    `json:"join_type"`
	JoinKindName  string `json:"join_type_name"`
	InnerSlot     int    `json:"inner_rti"`
	OuterSlot     int    `json:"outer_rti"`
	InnerRelID    uint32 `json:"inner_rel_oid"`
	OuterRelID    uint32 `json:"outer_rel_oid"`
	PathPtr       uint64 `json:"path_ptr"`
	ParentRelPtr  uint64 `json:"parent_rel_ptr"`
	OuterPathPtr  uint64 `json:"outer_path_ptr"`
	InnerPathPtr  uint64 `json:"inner_path_ptr"`
	OuterPathType string `json:"outer_path_type_name"`
	InnerPathType string `json:"inner_path_type_name"`
}

// unmarshalEvent parses stored canonical JSON TEXT back into an event.
func unmarshalEvent(payload string) (trace.Event, error) {
	var se storedEvent
	if err := json.Unmarshal([]byte(payload), &se); err != nil {
		return trace.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	kind, ok := trace.ParseKind(se.EventType)
	if !ok {
		return trace.Event{}, fmt.Errorf("unmarshal event: unknown event_type %q", se.EventType)
	}

	startup, err := parseCost(se.StartupCost)
	if err != nil {
		return trace.Event{}, fmt.Errorf("unmarshal event: startup_cost: %w", err)
	}
	total, err := parseCost(se.TotalCost)
	if err != nil {
		return trace.Event{}, fmt.Errorf("unmarshal event: total_cost: %w", err)
	}

	return trace.Event{
		Timestamp:     se.Timestamp,
		PID:           se.PID,
		Kind:          kind,
		PathType:      se.PathType,
		StartupCost:   startup,
		TotalCost:     total,
		Rows:          se.Rows,
		ParentSlot:    se.ParentSlot,
		ParentRelID:   se.ParentRelID,
		JoinKind:      trace.JoinKind(se.JoinKind),
		JoinKindName:  se.JoinKindName,
		InnerSlot:     se.InnerSlot,
		OuterSlot:     se.OuterSlot,
		InnerRelID:    se.InnerRelID,
		OuterRelID:    se.OuterRelID,
		PathPtr:       se.PathPtr,
		ParentRelPtr:  se.ParentRelPtr,
		OuterPathPtr:  se.OuterPathPtr,
		InnerPathPtr:  se.InnerPathPtr,
		OuterPathType: se.OuterPathType,
		InnerPathType: se.InnerPathType,
	}, nil
}

func formatCost(c float64) string {
	return strconv.FormatFloat(c, 'f', 6, 64)
}

func parseCost(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// traceHash computes the content address of an event sequence from the
// stored payloads, newline-terminated in order.
func traceHash(payloads []string) string {
	var joined []byte
	for _, p := range payloads {
		joined = append(joined, p...)
		joined = append(joined, '\n')
	}
	return canon.HashBytes(canon.DomainTrace, joined)
}
