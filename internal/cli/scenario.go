package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hades/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Golden  string        // directory of {name}.golden trace files
	Update  bool          // regenerate golden files
	Timeout time.Duration // per-scenario timeout
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Trace  []string `json:"trace"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioReport holds the overall result.
type ScenarioReport struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml|dir>",
		Short: "Run scripted control scenarios",
		Long: `Run YAML scenarios against a session driven by a fake engine.

Each scenario sends commands, waits for events and checks assertions on
the recorded run-state trace. With --golden the trace is also compared
to {name}.golden in that directory.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  hades scenario ./scenarios/pause.yaml
  hades scenario ./scenarios --golden ./golden
  hades scenario ./scenarios --golden ./golden --update
  hades scenario ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "compare traces against golden files in this directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", harness.DefaultTimeout, "timeout for each wait step")

	return cmd
}

func runScenarios(opts *ScenarioOptions, path string, cmd *cobra.Command) error {
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	info, err := os.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario path not found", err)
	}

	var scenarios []*harness.Scenario
	if info.IsDir() {
		scenarios, err = harness.LoadScenarios(path)
	} else {
		var s *harness.Scenario
		s, err = harness.LoadScenario(path)
		scenarios = []*harness.Scenario{s}
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	report := ScenarioReport{
		Scenarios: make([]ScenarioResult, 0, len(scenarios)),
		Total:     len(scenarios),
	}
	ctx := cmdContext(cmd)
	for _, s := range scenarios {
		res := runOneScenario(ctx, opts, s)
		report.Scenarios = append(report.Scenarios, res)
		if res.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if opts.Format == "json" {
		if err := outputJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		outputScenarioText(cmd, report)
	}

	if report.Failed > 0 {
		return newReportedError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", report.Failed, report.Total))
	}
	return nil
}

func runOneScenario(ctx context.Context, opts *ScenarioOptions, s *harness.Scenario) ScenarioResult {
	out := ScenarioResult{Name: s.Name, Trace: []string{}}

	result, err := harness.Run(ctx, s, harness.WithTimeout(opts.Timeout))
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}
	out.Pass = result.Pass
	out.Trace = result.Events()
	out.Errors = result.Errors

	if opts.Golden == "" {
		return out
	}

	rendered := harness.RenderTrace(s.Name, result.Trace)
	goldenPath := filepath.Join(opts.Golden, s.Name+".golden")
	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			out.Pass = false
			out.Errors = append(out.Errors, fmt.Sprintf("failed to create golden dir: %v", err))
			return out
		}
		if err := os.WriteFile(goldenPath, rendered, 0o644); err != nil {
			out.Pass = false
			out.Errors = append(out.Errors, fmt.Sprintf("failed to write golden file: %v", err))
		}
		return out
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		out.Pass = false
		out.Errors = append(out.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return out
	}
	if !bytes.Equal(expected, rendered) {
		out.Pass = false
		out.Errors = append(out.Errors, fmt.Sprintf("trace differs from %s:\n--- expected\n%s--- actual\n%s",
			goldenPath, expected, rendered))
	}
	return out
}

func outputScenarioText(cmd *cobra.Command, report ScenarioReport) {
	w := cmd.OutOrStdout()
	if report.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range report.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
}
