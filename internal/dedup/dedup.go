// Package dedup collapses redundant probe records.
//
// The probe re-emits facts: the same ADD_PATH can appear several times
// verbatim, and an equivalent join alternative can reappear with different
// transient input pointers after the planner rebuilt it. Two signature
// tiers remove both: an exact tier over every semantic field including raw
// pointers, and a semantic tier for join records that deliberately excludes
// the pointers. Signature keys are content hashes so a collapsed record can
// be named in debug output.
package dedup

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/canon"
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/trace"
)

// Stats reports what one Deduplicate pass removed.
type Stats struct {
	Input           int
	Kept            int
	ExactDuplicates int
	JoinDuplicates  int
}

// Deduplicate returns the surviving events in timestamp order. The input
// slice is not modified; ties keep their input order, so the first
// occurrence of a signature is the earliest record. Running the pass on
// its own output removes nothing further.
func Deduplicate(events []trace.Event) ([]trace.Event, Stats) {
	sorted := make([]trace.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	stats := Stats{Input: len(events)}
	seen := make(map[string]struct{}, len(sorted))
	seenJoin := make(map[string]struct{})

	out := make([]trace.Event, 0, len(sorted))
	for _, ev := range sorted {
		exact := ExactSignature(ev)
		if _, dup := seen[exact]; dup {
			stats.ExactDuplicates++
			continue
		}
		if ev.IsJoin() {
			js := JoinSignature(ev)
			if _, dup := seenJoin[js]; dup {
				stats.JoinDuplicates++
				continue
			}
			seenJoin[js] = struct{}{}
		}
		seen[exact] = struct{}{}
		out = append(out, ev)
	}
	stats.Kept = len(out)

	if stats.ExactDuplicates > 0 || stats.JoinDuplicates > 0 {
		slog.Debug("collapsed duplicate records",
			"exact", stats.ExactDuplicates,
			"semantic_join", stats.JoinDuplicates,
			"kept", stats.Kept)
	}
	return out, stats
}

// ExactSignature keys the first dedup tier: every semantic field including
// the raw pointers, costs rounded to six decimals. Timestamp is excluded so
// a mechanical re-emission at a later time still collapses.
func ExactSignature(e trace.Event) string {
	return mustHash(canon.DomainEventSignature, map[string]any{
		"pid":            e.PID,
		"kind":           string(e.Kind),
		"path_ptr":       e.PathPtr,
		"parent_rel_ptr": e.ParentRelPtr,
		"outer_path_ptr": e.OuterPathPtr,
		"inner_path_ptr": e.InnerPathPtr,
		"outer_hint":     e.OuterPathType,
		"inner_hint":     e.InnerPathType,
		"path_type":      e.PathType,
		"startup_cost":   costKey(e.StartupCost),
		"total_cost":     costKey(e.TotalCost),
		"rows":           e.Rows,
		"parent_slot":    e.ParentSlot,
		"parent_rel_id":  e.ParentRelID,
		"join_kind":      int(e.JoinKind),
		"inner_slot":     e.InnerSlot,
		"outer_slot":     e.OuterSlot,
		"inner_rel_id":   e.InnerRelID,
		"outer_rel_id":   e.OuterRelID,
	})
}

// JoinSignature keys the semantic tier: stable planner properties of a join
// alternative, with every raw pointer excluded. Two rebuilds of the same
// join that differ only in transient addresses share this key.
func JoinSignature(e trace.Event) string {
	return mustHash(canon.DomainJoinSignature, map[string]any{
		"pid":          e.PID,
		"kind":         string(e.Kind),
		"path_type":    e.PathType,
		"startup_cost": costKey(e.StartupCost),
		"total_cost":   costKey(e.TotalCost),
		"rows":         e.Rows,
		"join_kind":    int(e.JoinKind),
		"join_name":    e.JoinKindName,
		"inner_slot":   e.InnerSlot,
		"outer_slot":   e.OuterSlot,
		"inner_rel_id": e.InnerRelID,
		"outer_rel_id": e.OuterRelID,
		"outer_hint":   e.OuterPathType,
		"inner_hint":   e.InnerPathType,
	})
}

// costKey renders a cost rounded to 1e-6 as a fixed-point string, since
// canonical JSON carries no floats.
func costKey(c float64) string {
	return strconv.FormatFloat(c, 'f', 6, 64)
}

func mustHash(domain string, v map[string]any) string {
	h, err := canon.Hash(domain, v)
	if err != nil {
		// Signature records contain only strings and integers.
		panic(err)
	}
	return h
}
