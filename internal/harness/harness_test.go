package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, "test-session-default", result.SessionID)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "redundant_commands.yaml"))
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Run(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, first.Trace, again.Trace, "run %d", i)
	}
}

func TestRun_StepTimeoutFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: never_runs
description: "Run before reset is ignored, so running never arrives"
steps:
  - send: run
  - wait_for: running
  - send: reset
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1]: wait_for running")
	assert.Equal(t, []string{"started"}, result.Events(), "steps after a failure are skipped")
}

func TestRun_AssertionFailures(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectations
description: "Every assertion here is false"
steps:
  - send: reset
  - wait_for: reset
assertions:
  - type: trace_contains
    event: running
  - type: trace_order
    events: [reset, started]
  - type: trace_count
    event: reset
    count: 2
  - type: final_state
    state: running
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "Assertion failed: trace_contains")
	assert.Contains(t, result.Errors[1], "matched [reset], then no started")
	assert.Contains(t, result.Errors[2], "1 times")
	assert.Contains(t, result.Errors[3], "state paused")
	assert.Contains(t, result.Errors[3], "[1] started")
}

func TestRun_WaitForKeepsLaterEvents(t *testing.T) {
	// reset, running and paused may arrive in one batch; each wait_for must
	// still find its own event.
	s, err := ParseScenario([]byte(`
name: batched_events
description: "wait_for consumes only up to its event"
frame_limit: 1
steps:
  - batch:
      - send: reset
      - send: run
  - wait_for: reset
  - wait_for: running
  - wait_for: paused
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"started", "reset", "running", "paused"}, result.Events())
	assert.Equal(t, uint64(1), result.Advances)
}

func TestRenderTrace(t *testing.T) {
	got := RenderTrace("demo", []TraceEvent{{Seq: 1, Event: "started"}, {Seq: 2, Event: "reset"}})
	assert.Equal(t, "# demo\n1 started\n2 reset\n", string(got))
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", ``, "empty document"},
		{"unknown field", "name: a\ndescription: b\nstep: []\n", "field step not found"},
		{"no name", "description: b\nsteps: [{send: run}]\n", "name is required"},
		{"no description", "name: a\nsteps: [{send: run}]\n", "description is required"},
		{"no steps", "name: a\ndescription: b\n", "steps list is required"},
		{"empty step", "name: a\ndescription: b\nsteps: [{}]\n", "steps[0]: step does nothing"},
		{"two kinds", "name: a\ndescription: b\nsteps: [{send: run, wait_for: running}]\n", "only one is allowed"},
		{"bad command", "name: a\ndescription: b\nsteps: [{send: jump}]\n", `unknown command "jump"`},
		{"bad key", "name: a\ndescription: b\nsteps: [{send: key, key: turbo, state: down}]\n", `unknown key "turbo"`},
		{"bad key state", "name: a\ndescription: b\nsteps: [{send: key, key: a, state: held}]\n", "up or down"},
		{"stray key", "name: a\ndescription: b\nsteps: [{send: run, key: a}]\n", "only apply to"},
		{"bad event", "name: a\ndescription: b\nsteps: [{wait_for: exploded}]\n", `unknown event "exploded"`},
		{"bad state", "name: a\ndescription: b\nsteps: [{expect_state: sleeping}]\n", `unknown run state "sleeping"`},
		{"batch of waits", "name: a\ndescription: b\nsteps: [{batch: [{wait_for: reset}]}]\n", "only contain send steps"},
		{"bad assertion", "name: a\ndescription: b\nsteps: [{send: run}]\nassertions: [{type: vibes}]\n", `unknown assertion type "vibes"`},
		{"order without events", "name: a\ndescription: b\nsteps: [{send: run}]\nassertions: [{type: trace_order}]\n", "events list is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to read scenario file"))
}
