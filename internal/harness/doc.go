// Package harness runs scripted scenarios against the demo features.
//
// A scenario names a feature, drives its store through a list of steps on a
// manually advanced clock, and then checks assertions against the recorded
// action trace and the final state.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files:
//
//	name: counter_basic
//	description: "increment, then a delayed increment"
//	feature: counter
//	steps:
//	  - send: increment
//	    finish: true
//	  - send: increment_later
//	    args: { delay_ms: 1000 }
//	    as: later
//	  - advance: 1s
//	    sleepers: 1
//	  - await: later
//	  - expect_state: { count: 2 }
//	assertions:
//	  - type: trace_contains
//	    action: delayed_increment
//	    origin: effect
//	  - type: no_inflight
//
// # Steps
//
// Each step does exactly one thing:
//
//   - send: decode kind and args with the feature's codec and send it.
//     finish waits for everything the action started; as names the task
//     for a later await.
//   - await: wait for a task named by an earlier send.
//   - advance: wait for sleepers effects to block on the clock (if set),
//     then move the clock forward. sleepers alone only waits.
//   - wait_seq: wait until the store has processed at least n actions.
//   - expect_state: subset match against the JSON form of the state.
//
// # Assertion Types
//
//   - trace_contains: an action kind appears, optionally with args (subset
//     match) and origin
//   - trace_order: kinds appear in the given order, not necessarily adjacent
//   - trace_count: a kind appears exactly count times
//   - final_state: the value at a dotted path of the final state matches
//   - no_inflight: no effects are left running
//   - issue_count: exactly count issues were reported
//
// # Determinism
//
// Every run gets a fresh store in test mode, a test clock frozen at Epoch
// and a collecting issue reporter. Actions are traced in processing order,
// so a scenario that awaits its effects before moving on produces the same
// trace on every run and can be compared against a golden file.
package harness
