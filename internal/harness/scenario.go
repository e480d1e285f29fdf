package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hades/internal/control"
)

// Scenario drives a session through a scripted sequence of commands and
// checks the run-state transitions the runner reports.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// FrameLimit pauses the runner after this many frames. Zero disables it.
	FrameLimit uint64 `yaml:"frame_limit,omitempty"`

	// SessionID is the journal session id. Defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`

	// Steps run in order. Each step does exactly one thing.
	Steps []Step `yaml:"steps"`

	// Assertions validate the recorded trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario step. Exactly one field may be set, except Key and
// State which qualify a "send: key" step.
type Step struct {
	// Send sends a command: run, pause, exit, reset or key.
	Send string `yaml:"send,omitempty"`

	// Key and State qualify "send: key" (state is up or down).
	Key   string `yaml:"key,omitempty"`
	State string `yaml:"state,omitempty"`

	// Batch sends several commands holding the producer lock, so no other
	// producer's command lands in between.
	Batch []Step `yaml:"batch,omitempty"`

	// RequestPause raises the asynchronous pause flag.
	RequestPause bool `yaml:"request_pause,omitempty"`

	// FailResets makes the engine reject (true) or accept (false) later resets.
	FailResets *bool `yaml:"fail_resets,omitempty"`

	// WaitFor blocks until the named event is observed.
	WaitFor string `yaml:"wait_for,omitempty"`

	// ExpectState waits until the runner reports the named state.
	ExpectState string `yaml:"expect_state,omitempty"`

	// ExpectAdvancesAtLeast checks the runner has advanced at least N frames.
	ExpectAdvancesAtLeast *uint64 `yaml:"expect_advances_at_least,omitempty"`
}

// Step kinds returned by Step.kind.
const (
	StepSend                  = "send"
	StepBatch                 = "batch"
	StepRequestPause          = "request_pause"
	StepFailResets            = "fail_resets"
	StepWaitFor               = "wait_for"
	StepExpectState           = "expect_state"
	StepExpectAdvancesAtLeast = "expect_advances_at_least"
)

// kind returns the step's kind, or an error if zero or several kinds are set.
func (s Step) kind() (string, error) {
	var kinds []string
	if s.Send != "" {
		kinds = append(kinds, StepSend)
	}
	if len(s.Batch) > 0 {
		kinds = append(kinds, StepBatch)
	}
	if s.RequestPause {
		kinds = append(kinds, StepRequestPause)
	}
	if s.FailResets != nil {
		kinds = append(kinds, StepFailResets)
	}
	if s.WaitFor != "" {
		kinds = append(kinds, StepWaitFor)
	}
	if s.ExpectState != "" {
		kinds = append(kinds, StepExpectState)
	}
	if s.ExpectAdvancesAtLeast != nil {
		kinds = append(kinds, StepExpectAdvancesAtLeast)
	}

	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("step does nothing")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("step sets %v, only one is allowed", kinds)
	}
}

// Assertion validates the recorded trace or the final session state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Event is the event name (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected final run state (final_state).
	State string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid scenario: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step, false); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step, inBatch bool) error {
	kind, err := step.kind()
	if err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	if (step.Key != "" || step.State != "") && step.Send != "key" {
		return fmt.Errorf("%s: key and state only apply to \"send: key\"", where)
	}

	switch kind {
	case StepSend:
		if _, err := commandFor(step, nil); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	case StepBatch:
		if inBatch {
			return fmt.Errorf("%s: batches cannot nest", where)
		}
		for i, inner := range step.Batch {
			innerWhere := fmt.Sprintf("%s.batch[%d]", where, i)
			if k, _ := inner.kind(); k != StepSend {
				return fmt.Errorf("%s: a batch may only contain send steps", innerWhere)
			}
			if err := validateStep(innerWhere, inner, true); err != nil {
				return err
			}
		}
	case StepWaitFor:
		if _, err := control.ParseEvent(step.WaitFor); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	case StepExpectState:
		if _, err := control.ParseRunState(step.ExpectState); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if _, err := control.ParseEvent(a.Event); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for _, ev := range a.Events {
			if _, err := control.ParseEvent(ev); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceCount:
		if _, err := control.ParseEvent(a.Event); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if _, err := control.ParseRunState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
