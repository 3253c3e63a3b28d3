package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"github.com/jnidzwetzki/pg-plan-alternatives/internal/tags"
)

// Options configures ingestion.
type Options struct {
	// Tags resolves numeric node tags on raw captures to their display
	// names. Nil formats unresolved numeric tags as Unknown(<n>).
	Tags *tags.Table
}

// Stream is a fully ingested trace, partitioned by process.
//
// Accessor slices are owned by the Stream and must not be mutated; callers
// that need to reorder events copy first (the graph builder does).
type Stream struct {
	byPID    map[int]*processEvents
	pidOrder []int
	events   []Event

	// Malformed counts skipped records; Lines counts non-blank input lines.
	Malformed int
	Lines     int
}

type processEvents struct {
	considered []Event
	chosen     []Event
}

// PIDs returns the process IDs present in the trace, ascending.
func (s *Stream) PIDs() []int {
	pids := make([]int, len(s.pidOrder))
	copy(pids, s.pidOrder)
	sort.Ints(pids)
	return pids
}

// Considered returns the ADD_PATH events for one process, in input order.
func (s *Stream) Considered(pid int) []Event {
	if p := s.byPID[pid]; p != nil {
		return p.considered
	}
	return nil
}

// Chosen returns the CREATE_PLAN events for one process, in input order.
func (s *Stream) Chosen(pid int) []Event {
	if p := s.byPID[pid]; p != nil {
		return p.chosen
	}
	return nil
}

// AllConsidered returns ADD_PATH events for every process: per-process runs
// concatenated in first-seen process order. The concatenation is not
// re-sorted; downstream stages order by timestamp themselves, and the
// grouped order fixes how equal timestamps across processes tie-break.
func (s *Stream) AllConsidered() []Event {
	var out []Event
	for _, pid := range s.pidOrder {
		out = append(out, s.byPID[pid].considered...)
	}
	return out
}

// AllChosen returns CREATE_PLAN events for every process, grouped like
// AllConsidered.
func (s *Stream) AllChosen() []Event {
	var out []Event
	for _, pid := range s.pidOrder {
		out = append(out, s.byPID[pid].chosen...)
	}
	return out
}

// Events returns every retained event in raw input order. The archive
// stores this order so a stored session replays byte-identically.
func (s *Stream) Events() []Event {
	return s.events
}

func (s *Stream) add(ev Event) {
	s.events = append(s.events, ev)
	p := s.byPID[ev.PID]
	if p == nil {
		p = &processEvents{}
		s.byPID[ev.PID] = p
		s.pidOrder = append(s.pidOrder, ev.PID)
	}
	switch ev.Kind {
	case KindAddPath:
		p.considered = append(p.considered, ev)
	case KindCreatePlan:
		p.chosen = append(p.chosen, ev)
	}
}

// ReadAll ingests a JSONL trace stream. Malformed records are skipped,
// counted, and logged at warn level; only a failing reader is fatal.
func ReadAll(r io.Reader, opts Options) (*Stream, error) {
	s := &Stream{byPID: make(map[int]*processEvents)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	for sc.Scan() {
		lineno++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		s.Lines++
		ev, err := ParseLine(line, opts)
		if err != nil {
			s.Malformed++
			slog.Warn("skipping malformed record", "line", lineno, "error", err)
			continue
		}
		s.add(ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	slog.Debug("trace ingested",
		"events", len(s.events),
		"pids", len(s.pidOrder),
		"malformed", s.Malformed)
	return s, nil
}

// FromEvents builds a Stream from already-decoded events, preserving their
// order. The archive read path uses this to re-enter the pipeline.
func FromEvents(events []Event) *Stream {
	s := &Stream{byPID: make(map[int]*processEvents)}
	for _, ev := range events {
		s.add(ev)
	}
	s.Lines = len(events)
	return s
}

// Open ingests a JSONL trace file.
func Open(path string, opts Options) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	s, err := ReadAll(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// wireEvent mirrors the capture side's JSON record. Numeric fields decode
// through json.Number so 64-bit pointers survive without a float64
// round-trip, and name fields decode through RawMessage because raw
// captures carry numeric tags where normal captures carry strings.
type wireEvent struct {
	Timestamp     json.Number     `json:"timestamp"`
	PID           json.Number     `json:"pid"`
	EventType     json.RawMessage `json:"event_type"`
	PathType      json.RawMessage `json:"path_type"`
	StartupCost   json.Number     `json:"startup_cost"`
	TotalCost     json.Number     `json:"total_cost"`
	Rows          json.Number     `json:"rows"`
	ParentSlot    json.Number     `json:"parent_rti"`
	ParentRelID   json.Number     `json:"parent_rel_oid"`
	JoinKind      json.Number     `json:"join_type"`
	JoinKindName  string          `json:"join_type_name"`
	InnerSlot     json.Number     `json:"inner_rti"`
	OuterSlot     json.Number     `json:"outer_rti"`
	InnerRelID    json.Number     `json:"inner_rel_oid"`
	OuterRelID    json.Number     `json:"outer_rel_oid"`
	PathPtr       json.Number     `json:"path_ptr"`
	ParentRelPtr  json.Number     `json:"parent_rel_ptr"`
	OuterPathPtr  json.Number     `json:"outer_path_ptr"`
	InnerPathPtr  json.Number     `json:"inner_path_ptr"`
	OuterPathType json.RawMessage `json:"outer_path_type_name"`
	InnerPathType json.RawMessage `json:"inner_path_type_name"`
}

// ParseLine decodes one JSON record. A record is malformed when it is not
// valid JSON, carries no pid, or carries no recognizable event_type.
func ParseLine(line []byte, opts Options) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, fmt.Errorf("decode record: %w", err)
	}

	pid := asInt64(w.PID)
	if pid == 0 {
		return Event{}, fmt.Errorf("record has no pid")
	}
	rawKind := scalarText(w.EventType)
	if rawKind == "" {
		return Event{}, fmt.Errorf("record has no event_type")
	}
	kind, ok := ParseKind(rawKind)
	if !ok {
		return Event{}, fmt.Errorf("unknown event_type %q", rawKind)
	}

	return Event{
		Timestamp:     asInt64(w.Timestamp),
		PID:           int(pid),
		Kind:          kind,
		PathType:      asName(w.PathType, opts.Tags),
		StartupCost:   asFloat(w.StartupCost),
		TotalCost:     asFloat(w.TotalCost),
		Rows:          asInt64(w.Rows),
		ParentSlot:    int(asInt64(w.ParentSlot)),
		ParentRelID:   uint32(asUint64(w.ParentRelID)),
		JoinKind:      JoinKind(asInt64(w.JoinKind)),
		JoinKindName:  w.JoinKindName,
		InnerSlot:     int(asInt64(w.InnerSlot)),
		OuterSlot:     int(asInt64(w.OuterSlot)),
		InnerRelID:    uint32(asUint64(w.InnerRelID)),
		OuterRelID:    uint32(asUint64(w.OuterRelID)),
		PathPtr:       asUint64(w.PathPtr),
		ParentRelPtr:  asUint64(w.ParentRelPtr),
		OuterPathPtr:  asUint64(w.OuterPathPtr),
		InnerPathPtr:  asUint64(w.InnerPathPtr),
		OuterPathType: asName(w.OuterPathType, opts.Tags),
		InnerPathType: asName(w.InnerPathType, opts.Tags),
	}, nil
}

// asInt64 reads a wire number leniently: absent yields zero, fractional
// values truncate toward zero like the capture side's integer coercion.
func asInt64(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

func asUint64(n json.Number) uint64 {
	if n == "" {
		return 0
	}
	if v, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil && f >= 0 {
		return uint64(f)
	}
	return 0
}

func asFloat(n json.Number) float64 {
	if n == "" {
		return 0
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

// scalarText returns a raw JSON scalar as text: the string's content when
// quoted, the literal otherwise. Empty for absent or null.
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

// asName reads a field carrying either a tag name or, on raw captures, the
// numeric tag value. Numeric zero means absent.
func asName(raw json.RawMessage, tbl *tags.Table) string {
	text := scalarText(raw)
	if text == "" {
		return ""
	}
	if len(raw) > 0 && raw[0] == '"' {
		return text
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return ""
	}
	if v == 0 {
		return ""
	}
	if tbl != nil {
		return tbl.Name(uint32(v))
	}
	return fmt.Sprintf("Unknown(%d)", v)
}
