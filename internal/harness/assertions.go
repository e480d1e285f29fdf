package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/hades/internal/store"
)

// AssertionContext gives assertions access to the scenario's journal.
type AssertionContext struct {
	Store     *store.Store
	Ctx       context.Context
	SessionID string
}

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string       // assertion type for categorization
	Expected string       // human-readable expected outcome
	Actual   string       // human-readable actual outcome
	Trace    []TraceEvent // full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, ev.Event)
	}
	return buf.String()
}

// assertTraceContains checks the trace contains the event at least once.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Event == a.Event {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", a.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks the events appear in the given order. They need
// not be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Events) && ev.Event == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order %v", a.Events),
		Actual:   fmt.Sprintf("matched %v, then no %s", a.Events[:next], a.Events[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks the journal holds exactly Count transitions of the event.
func assertTraceCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	n, err := actx.Store.CountTransitions(actx.Ctx, actx.SessionID, a.Event)
	if err != nil {
		return err
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("event %s exactly %d times", a.Event, a.Count),
		Actual:   fmt.Sprintf("%d times", n),
		Trace:    trace,
	}
}

// assertFinalState checks the run state observed after the last step.
func assertFinalState(result *Result, a Assertion) error {
	if result.FinalState == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("state %s", a.State),
		Actual:   fmt.Sprintf("state %s", result.FinalState),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a, actx)
		case AssertFinalState:
			err = assertFinalState(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
