package harness

// TraceEvent is one journal transition in a scenario trace.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Event string `json:"event"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step and assertion held.
	Pass bool `json:"pass"`

	// SessionID is the journal session the trace was recorded under.
	SessionID string `json:"session_id"`

	// Trace lists the recorded transitions in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalState is the run state observed after the last step.
	FinalState string `json:"final_state"`

	// Advances is the number of frames the runner advanced.
	Advances uint64 `json:"advances"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the event names of the trace in order.
func (r *Result) Events() []string {
	events := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		events[i] = ev.Event
	}
	return events
}
