// Package harness runs scripted scenarios against a live session.
//
// A scenario drives a real control.Session over a fake engine, records every
// run-state transition into a journal, and checks the journal afterwards.
// Timing never enters the trace: it is the ordered list of transitions, so a
// scenario whose steps synchronise on events produces the same trace on
// every run.
//
// # Scenario Format
//
//	name: pause_request_loses_to_run
//	description: "An explicit Run drained with a pending pause request wins"
//	frame_limit: 0
//	steps:
//	  - send: reset
//	  - wait_for: reset
//	  - request_pause: true
//	  - send: run
//	  - wait_for: running
//	  - expect_state: running
//	  - batch:
//	      - send: key
//	        key: start
//	        state: down
//	      - send: key
//	        key: start
//	        state: up
//	  - expect_advances_at_least: 1
//	assertions:
//	  - type: trace_order
//	    events: [started, reset, running]
//	  - type: trace_count
//	    event: paused
//	    count: 0
//	  - type: final_state
//	    state: running
//
// # Step Types
//
//   - send: run, pause, exit, reset, or key (with key and state)
//   - batch: several send steps under the producer lock
//   - request_pause: raise the asynchronous pause flag
//   - fail_resets: make the engine reject (true) or accept (false) resets
//   - wait_for: block until an event is observed
//   - expect_state: wait until the runner reports a state
//   - expect_advances_at_least: wait until the runner advanced N frames
//
// # Assertion Types
//
//   - trace_contains: an event appears in the trace
//   - trace_order: events appear in the given order
//   - trace_count: an event appears exactly N times
//   - final_state: the run state after the last step
//
// Traces are compared against golden files under testdata/golden with
// RunWithGolden.
package harness
