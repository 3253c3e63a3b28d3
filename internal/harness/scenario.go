package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test case: a verbatim probe trace and
// the expected pipeline outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden artifacts are stored
	// under this name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TargetPID selects the process to reconstruct. Zero renders all
	// processes together.
	TargetPID int `yaml:"target_pid,omitempty"`

	// Trace is the raw JSONL input, exactly as the probe would emit it.
	// Malformed lines are allowed; they exercise ingestion tolerance.
	Trace string `yaml:"trace"`

	// Expect holds the validated outcome. Only the fields a scenario sets
	// are checked.
	Expect *Expect `yaml:"expect"`
}

// Expect is the subset-matched outcome of a scenario. Nil count fields are
// not validated, so zero can still be asserted explicitly.
type Expect struct {
	// Ingestion counters.
	Lines     *int `yaml:"lines,omitempty"`
	Malformed *int `yaml:"malformed,omitempty"`

	// Deduplication counters, summed over the considered and chosen passes.
	InputEvents     *int `yaml:"input_events,omitempty"`
	KeptEvents      *int `yaml:"kept_events,omitempty"`
	ExactDuplicates *int `yaml:"exact_duplicates,omitempty"`
	JoinDuplicates  *int `yaml:"join_duplicates,omitempty"`

	// Graph shape.
	Nodes            *int `yaml:"nodes,omitempty"`
	Edges            *int `yaml:"edges,omitempty"`
	Chosen           *int `yaml:"chosen,omitempty"`
	RelationClusters *int `yaml:"relation_clusters,omitempty"`
	JoinClusters     *int `yaml:"join_clusters,omitempty"`

	// Cheapest and MostExpensive name the path types at the ends of the
	// cost range.
	Cheapest      string `yaml:"cheapest,omitempty"`
	MostExpensive string `yaml:"most_expensive,omitempty"`

	// ChosenNodes lists the expected chosen node IDs in creation order.
	ChosenNodes []string `yaml:"chosen_nodes,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if strings.TrimSpace(s.Trace) == "" {
		return fmt.Errorf("trace is required and must contain at least one line")
	}

	if s.TargetPID < 0 {
		return fmt.Errorf("target_pid must be non-negative")
	}

	if s.Expect == nil {
		return fmt.Errorf("expect block is required")
	}

	if emptyExpect(s.Expect) {
		return fmt.Errorf("expect block must set at least one field")
	}

	for i, id := range s.Expect.ChosenNodes {
		if id == "" {
			return fmt.Errorf("expect.chosen_nodes[%d]: node ID must be non-empty", i)
		}
	}

	return nil
}

// emptyExpect reports whether no expectation field is set. An all-blank
// block would make the scenario pass vacuously.
func emptyExpect(e *Expect) bool {
	counts := []*int{
		e.Lines, e.Malformed,
		e.InputEvents, e.KeptEvents, e.ExactDuplicates, e.JoinDuplicates,
		e.Nodes, e.Edges, e.Chosen, e.RelationClusters, e.JoinClusters,
	}
	for _, c := range counts {
		if c != nil {
			return false
		}
	}
	return e.Cheapest == "" && e.MostExpensive == "" && len(e.ChosenNodes) == 0
}
