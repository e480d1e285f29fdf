package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hades/internal/control"
	"github.com/roach88/hades/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Event    string // optional - filter to one event name
}

// TraceEvent is one transition in the trace timeline.
type TraceEvent struct {
	Seq   int64     `json:"seq"`
	Event string    `json:"event"`
	Frame uint64    `json:"frame"`
	At    time.Time `json:"at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID string       `json:"session_id"`
	Title     string       `json:"title,omitempty"`
	GameCode  string       `json:"game_code,omitempty"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Transitions int            `json:"transitions"`
	ByEvent     map[string]int `json:"by_event"`
	LastFrame   uint64         `json:"last_frame"`
	Duration    string         `json:"duration,omitempty"`
	IsComplete  bool           `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <session-id>",
		Short: "Show the run-state journal of a session",
		Long: `Show the run-state transitions recorded for a session with run --journal.

The output includes:
- Timeline: transitions in seq order with the frame each was observed at
- Stats: transition counts per event and the session's duration

Examples:
  hades trace --db ./hades.db 0190f5c2-7d3e-7c8a-9b1d-2f4e6a8c0e12
  hades trace --db ./hades.db --event paused 0190f5c2-7d3e-7c8a-9b1d-2f4e6a8c0e12
  hades trace --db ./hades.db --format json 0190f5c2-7d3e-7c8a-9b1d-2f4e6a8c0e12`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to one event (started|reset|running|paused)")

	return cmd
}

func runTrace(opts *TraceOptions, sessionID string, cmd *cobra.Command) error {
	ctx := cmdContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rec, found, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if !found {
		if opts.Format == "json" {
			return outputJSON(cmd.OutOrStdout(), TraceResult{
				SessionID: sessionID,
				Timeline:  []TraceEvent{},
				Stats:     TraceStats{ByEvent: map[string]int{}},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No session found: %s\n", sessionID)
		return nil
	}

	transitions, err := st.ListTransitions(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	result := buildTrace(rec, transitions, opts.Event)

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTrace converts journal transitions to a trace result. Stats cover
// the whole session even when the timeline is filtered.
func buildTrace(rec store.SessionRecord, transitions []store.Transition, eventFilter string) TraceResult {
	result := TraceResult{
		SessionID: rec.ID,
		Title:     rec.Title,
		GameCode:  rec.GameCode,
		Timeline:  []TraceEvent{},
		Stats: TraceStats{
			Transitions: len(transitions),
			ByEvent:     make(map[string]int),
			IsComplete:  rec.EndedAt != nil,
		},
	}

	for _, tr := range transitions {
		result.Stats.ByEvent[tr.Event]++
		if tr.Frame > result.Stats.LastFrame {
			result.Stats.LastFrame = tr.Frame
		}
		if eventFilter != "" && tr.Event != eventFilter {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:   tr.Seq,
			Event: tr.Event,
			Frame: tr.Frame,
			At:    tr.At,
		})
	}

	if rec.EndedAt != nil {
		result.Stats.Duration = rec.EndedAt.Sub(rec.StartedAt).Round(time.Millisecond).String()
	}
	return result
}

// outputJSON writes data wrapped in an ok response.
func outputJSON(w io.Writer, data any) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.SessionID)
	if result.Title != "" {
		fmt.Fprintf(w, "Game: %s (%s)\n", result.Title, result.GameCode)
	}
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats.IsComplete))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no transitions)")
	} else {
		for _, ev := range result.Timeline {
			fmt.Fprintf(w, "  [%d] %-8s frame %d\n", ev.Seq, ev.Event, ev.Frame)
			if verbose {
				fmt.Fprintf(w, "       At: %s\n", ev.At.Format(time.RFC3339Nano))
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Transitions: %d\n", result.Stats.Transitions)
	for _, ev := range []control.Event{control.EventStarted, control.EventReset, control.EventRunning, control.EventPaused} {
		fmt.Fprintf(w, "  %-12s %d\n", ev.String()+":", result.Stats.ByEvent[ev.String()])
	}
	fmt.Fprintf(w, "  Last Frame:  %d\n", result.Stats.LastFrame)
	if result.Stats.Duration != "" {
		fmt.Fprintf(w, "  Duration:    %s\n", result.Stats.Duration)
	}
	return nil
}

// completeStatus returns a human-readable session status.
func completeStatus(isComplete bool) string {
	if isComplete {
		return "Ended"
	}
	return "Running (or exited without ending)"
}
