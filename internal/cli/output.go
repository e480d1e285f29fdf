package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario failed or the emulation stopped with an error
	ExitCommandError = 2 // bad arguments, unreadable files, database errors
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error // cause, may be nil

	// reported is set when the command already wrote its own result, so
	// Main only sets the exit code.
	reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// newReportedError returns an ExitError for a command whose output already
// describes the failure.
func newReportedError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message, reported: true}
}

// GetExitCode returns the code of the ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode names an exit code in JSON error responses.
func errorCode(exitCode int) string {
	switch exitCode {
	case ExitCommandError:
		return "command_error"
	default:
		return "failure"
	}
}

// OutputFormatter writes command results as text or as a JSON CLIResponse.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the envelope of every --format json result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command.
type CLIError struct {
	Code    string `json:"code"` // see errorCode
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Success writes data.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes err. An ExitError's message and cause are reported as
// separate JSON fields.
func (f *OutputFormatter) Error(err error) error {
	if f.Format != "json" {
		fmt.Fprintf(f.Writer, "Error: %v\n", err)
		return nil
	}

	cliErr := &CLIError{Code: errorCode(GetExitCode(err)), Message: err.Error()}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		cliErr.Message = exitErr.Message
		if exitErr.Err != nil {
			cliErr.Cause = exitErr.Err.Error()
		}
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{
		Status: "error",
		Error:  cliErr,
	})
}
