package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares both rendered artifacts
// against golden files: testdata/golden/{name}_dot.golden holds the DOT
// document, testdata/golden/{name}_doc.golden the canonical JSON export.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; artifact drift fails the
// test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name+"_dot", result.DOT)
	g.Assert(t, scenario.Name+"_doc", result.Document)

	return result, nil
}
