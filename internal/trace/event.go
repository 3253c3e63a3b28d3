package trace

import (
	"fmt"
	"strings"
)

// Kind discriminates the two record kinds a probe emits.
type Kind string

const (
	// KindAddPath marks a path alternative the planner considered.
	KindAddPath Kind = "ADD_PATH"
	// KindCreatePlan marks the alternative the planner converted into a plan.
	KindCreatePlan Kind = "CREATE_PLAN"
)

// ParseKind maps a wire event_type to a Kind. The wire value is the kind
// name, or its numeric probe enum value on raw captures (1 = ADD_PATH,
// 2 = CREATE_PLAN).
func ParseKind(s string) (Kind, bool) {
	switch s {
	case string(KindAddPath), "1":
		return KindAddPath, true
	case string(KindCreatePlan), "2":
		return KindCreatePlan, true
	}
	return "", false
}

// JoinKind mirrors PostgreSQL's JoinType enum.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinFull
	JoinRight
	JoinSemi
	JoinAnti
	JoinRightAnti
	JoinUniqueOuter
	JoinUniqueInner
)

var joinKindNames = [...]string{
	JoinInner:       "JOIN_INNER",
	JoinLeft:        "JOIN_LEFT",
	JoinFull:        "JOIN_FULL",
	JoinRight:       "JOIN_RIGHT",
	JoinSemi:        "JOIN_SEMI",
	JoinAnti:        "JOIN_ANTI",
	JoinRightAnti:   "JOIN_RIGHT_ANTI",
	JoinUniqueOuter: "JOIN_UNIQUE_OUTER",
	JoinUniqueInner: "JOIN_UNIQUE_INNER",
}

// String returns the planner's display name for the join kind, or
// Unknown(<n>) for values outside the enum.
func (k JoinKind) String() string {
	if k >= 0 && int(k) < len(joinKindNames) {
		return joinKindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", int(k))
}

// Event is one decoded probe record.
//
// Pointer fields (PathPtr, ParentRelPtr, OuterPathPtr, InnerPathPtr) are raw
// planner addresses. They identify an object only within the same PID and
// only near this event's Timestamp; addresses are recycled for unrelated
// objects later in the same process.
type Event struct {
	// Timestamp is nanosecond-resolution and monotonic within one PID.
	Timestamp int64
	PID       int
	Kind      Kind

	// PathType names the plan node this path would produce, e.g. T_SeqScan.
	PathType    string
	StartupCost float64
	TotalCost   float64
	Rows        int64

	// ParentSlot is the planner workspace slot (range-table index) of the
	// relation this path serves; zero when the path has no single parent
	// relation. ParentRelID is that relation's catalog OID when known.
	ParentSlot  int
	ParentRelID uint32

	JoinKind     JoinKind
	JoinKindName string
	OuterSlot    int
	InnerSlot    int
	OuterRelID   uint32
	InnerRelID   uint32

	PathPtr      uint64
	ParentRelPtr uint64
	OuterPathPtr uint64
	InnerPathPtr uint64

	// OuterPathType and InnerPathType are optional hints naming the
	// expected PathType of the referenced input paths.
	OuterPathType string
	InnerPathType string
}

// IsJoin reports whether the event describes a join alternative: any of the
// two input slots or input relation OIDs is nonzero.
func (e Event) IsJoin() bool {
	return e.InnerSlot != 0 || e.OuterSlot != 0 || e.InnerRelID != 0 || e.OuterRelID != 0
}

// IsBaseAccess reports whether the path reads a base relation directly.
// Base accesses produce Scan plan nodes (T_SeqScan, T_IndexScan, ...).
func (e Event) IsBaseAccess() bool {
	return strings.HasSuffix(e.PathType, "Scan")
}

// JoinName returns the wire-supplied join kind name when present, falling
// back to the JoinKind enum name. Absent both, a zero JoinKind yields
// JOIN_INNER, which is what the capture side emits for non-join paths.
func (e Event) JoinName() string {
	if e.JoinKindName != "" {
		return e.JoinKindName
	}
	return e.JoinKind.String()
}
