// Package harness runs scripted event streams through the trace observer.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: echo
//	description: "An input step feeding an output step"
//	graph: ../graphs/echo.cue
//	run_id: test-run-echo
//	events:
//	  - kind: graphstart
//	  - kind: nodestart
//	    path: [0]
//	    node: ask
//	  - kind: input
//	    path: [0]
//	    node: ask
//	    inputs: { schema: { type: object } }
//	  - kind: resume
//	    inputs: { text: hello }
//	assertions:
//	  - type: status
//	    status: paused
//	  - type: log_kinds
//	    kinds: [step, edge]
//
// Node ids are resolved against the graph when one is given; otherwise
// node_type supplies the descriptor type. Timestamps default to a
// deterministic logical clock. A nodeend step without opportunities fires
// the graph's outgoing edges of that node.
//
// # Assertion Types
//
//   - status: the final run status
//   - log_kinds: the kinds of the visible log entries, in order
//   - step_titles: the titles of the visible steps, in order
//   - edge_values: the values an edge has carried
//   - current_step: the id of the current step ("" for none)
//   - error_count: the number of error entries
//   - activity: the activity kinds of one step
//   - recorded_count: the number of recorded events of a kind
//
// # Determinism
//
// Every scenario is recorded into an in-memory store and replayed. The
// replayed trace must encode to the same bytes as the live one, otherwise
// the result fails.
package harness
