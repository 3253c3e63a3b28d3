// Package harness provides conformance testing for the trace pipeline.
//
// The harness feeds raw probe records through the real ingestion,
// deduplication and graph construction code, then validates the outcome
// against declarative expectations and golden artifacts.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	target_pid: 4242
//	trace: |
//	  {"timestamp":1000,"pid":4242,"event_type":"ADD_PATH",...}
//	  {"timestamp":2000,"pid":4242,"event_type":"CREATE_PLAN",...}
//	expect:
//	  nodes: 2
//	  edges: 1
//	  chosen: 1
//	  cheapest: T_IndexScan
//
// The trace block is verbatim JSONL as the probe emits it, including
// malformed lines when the scenario exercises ingestion tolerance.
//
// # Expectations
//
// The expect block is a subset match: only the fields a scenario names are
// validated. Counts cover ingestion (lines, malformed), deduplication
// (input_events, kept_events, exact_duplicates, join_duplicates) and the
// graph (nodes, edges, chosen, relation_clusters, join_clusters).
// cheapest and most_expensive name path types, chosen_nodes exact node IDs.
//
// # Deterministic Testing
//
// A scenario's input is a fixed byte string and the pipeline is
// deterministic end to end, so every run yields identical artifacts. Golden
// comparison relies on this: RunWithGolden snapshots both the DOT document
// and the canonical JSON export under testdata/golden/.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/join_causality.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
