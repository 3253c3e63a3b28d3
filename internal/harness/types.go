package harness

import (
	"github.com/jnidzwetzki/pg-plan-alternatives/internal/graph"
)

// Counts aggregates the pipeline counters one scenario run produced.
type Counts struct {
	Lines            int `json:"lines"`
	Malformed        int `json:"malformed"`
	InputEvents      int `json:"input_events"`
	KeptEvents       int `json:"kept_events"`
	ExactDuplicates  int `json:"exact_duplicates"`
	JoinDuplicates   int `json:"join_duplicates"`
	Nodes            int `json:"nodes"`
	Edges            int `json:"edges"`
	Chosen           int `json:"chosen"`
	RelationClusters int `json:"relation_clusters"`
	JoinClusters     int `json:"join_clusters"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every set expect field matches.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Counts holds the observed pipeline counters.
	Counts Counts `json:"counts"`

	// Graph is the reconstructed graph, for callers that inspect beyond
	// the counters.
	Graph *graph.Graph `json:"-"`

	// DOT and Document are the rendered artifacts used for golden
	// comparison.
	DOT      []byte `json:"-"`
	Document []byte `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
