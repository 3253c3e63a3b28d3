// Package tags provides planner node-tag tables.
//
// Normal captures emit tag NAMES (T_SeqScan, T_HashJoin, ...) because the
// capture side translates numeric NodeTag values before writing JSON. Raw
// captures skip that translation, so the analysis side needs its own
// value-to-name table. Tag values are generated per PostgreSQL version,
// which is why tables can be loaded from the server's own nodetags.h or
// from a named CUE profile instead of relying on the compiled-in fallback.
package tags

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
)

// Table maps numeric node tags to display names, plus join kind names.
// A Table is immutable after construction and safe for concurrent reads.
// All methods tolerate a nil receiver.
type Table struct {
	names  map[uint32]string
	values map[string]uint32
	joins  map[int]string
}

// Entry is one value/name pair, used for deterministic dumps.
type Entry struct {
	Value uint32 `json:"value"`
	Name  string `json:"name"`
}

// JoinEntry is one join kind value/name pair.
type JoinEntry struct {
	Value int    `json:"value"`
	Name  string `json:"name"`
}

func newTable(names map[uint32]string, joins map[int]string) *Table {
	t := &Table{
		names:  names,
		values: make(map[string]uint32, len(names)),
		joins:  joins,
	}
	for v, n := range names {
		t.values[n] = v
	}
	if t.joins == nil {
		t.joins = builtinJoinNames
	}
	return t
}

// Name returns the display name for a numeric tag, or Unknown(<n>) when the
// value is not in the table.
func (t *Table) Name(v uint32) string {
	if t != nil {
		if name, ok := t.names[v]; ok {
			return name
		}
	}
	return fmt.Sprintf("Unknown(%d)", v)
}

// Value returns the numeric tag for a display name.
func (t *Table) Value(name string) (uint32, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.values[name]
	return v, ok
}

// JoinName returns the display name for a join kind value, or Unknown(<n>)
// outside the enum.
func (t *Table) JoinName(k int) string {
	if t != nil {
		if name, ok := t.joins[k]; ok {
			return name
		}
	}
	return fmt.Sprintf("Unknown(%d)", k)
}

// Len returns the number of tag entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Entries returns all tag entries sorted by value.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	entries := make([]Entry, 0, len(t.names))
	for v, n := range t.names {
		entries = append(entries, Entry{Value: v, Name: n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })
	return entries
}

// JoinEntries returns all join kind entries sorted by value.
func (t *Table) JoinEntries() []JoinEntry {
	if t == nil {
		return nil
	}
	entries := make([]JoinEntry, 0, len(t.joins))
	for v, n := range t.joins {
		entries = append(entries, JoinEntry{Value: v, Name: n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })
	return entries
}

var builtinJoinNames = map[int]string{
	0: "JOIN_INNER",
	1: "JOIN_LEFT",
	2: "JOIN_FULL",
	3: "JOIN_RIGHT",
	4: "JOIN_SEMI",
	5: "JOIN_ANTI",
	6: "JOIN_RIGHT_ANTI",
	7: "JOIN_UNIQUE_OUTER",
	8: "JOIN_UNIQUE_INNER",
}

// builtinPathTags is the legacy probe variant's path tag table
// (src/include/nodes/relation.h ordering). It only covers captures made by
// that variant; current servers should supply their generated nodetags.h
// or a version profile instead.
var builtinPathTags = map[uint32]string{
	0:  "T_Invalid",
	1:  "T_Path",
	2:  "T_IndexPath",
	3:  "T_BitmapHeapPath",
	4:  "T_BitmapAndPath",
	5:  "T_BitmapOrPath",
	6:  "T_TidPath",
	7:  "T_TidRangePath",
	8:  "T_SubqueryScanPath",
	9:  "T_ForeignPath",
	10: "T_CustomPath",
	11: "T_NestPath",
	12: "T_MergePath",
	13: "T_HashPath",
	14: "T_AppendPath",
	15: "T_MergeAppendPath",
	16: "T_GroupResultPath",
	17: "T_MaterialPath",
	18: "T_MemoizePath",
	19: "T_UniquePath",
	20: "T_GatherPath",
	21: "T_GatherMergePath",
	22: "T_ProjectionPath",
	23: "T_ProjectSetPath",
	24: "T_SortPath",
	25: "T_IncrementalSortPath",
	26: "T_GroupPath",
	27: "T_UpperUniquePath",
	28: "T_AggPath",
	29: "T_GroupingSetsPath",
	30: "T_MinMaxAggPath",
	31: "T_WindowAggPath",
	32: "T_SetOpPath",
	33: "T_RecursiveUnionPath",
	34: "T_LockRowsPath",
	35: "T_ModifyTablePath",
	36: "T_LimitPath",
}

// Builtin returns the compiled-in fallback table.
func Builtin() *Table {
	names := make(map[uint32]string, len(builtinPathTags))
	for v, n := range builtinPathTags {
		names[v] = n
	}
	return newTable(names, nil)
}

// tagLine matches generated nodetags.h entries of the form "T_Name = 42,".
var tagLine = regexp.MustCompile(`^\s*(T_[A-Za-z0-9_]+)\s*=\s*([0-9]+)\s*,?`)

// ParseHeader reads a PostgreSQL nodetags.h and builds a Table from every
// "T_Name = value," line. Later entries win on duplicate values, matching
// how the header itself would compile.
func ParseHeader(r io.Reader) (*Table, error) {
	names := make(map[uint32]string)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m := tagLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			continue
		}
		names[uint32(v)] = m[1]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read node tags: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no node tag entries found")
	}
	return newTable(names, nil), nil
}

// LoadHeader parses a nodetags.h file from disk.
func LoadHeader(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open node tags: %w", err)
	}
	defer f.Close()

	t, err := ParseHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
