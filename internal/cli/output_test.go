package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_Success(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}

		require.NoError(t, formatter.Success(map[string]string{"code": "AXVE"}))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, map[string]any{"code": "AXVE"}, resp.Data)
		assert.Nil(t, resp.Error)
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Success("Imported 3 games."))
		assert.Equal(t, "Imported 3 games.\n", buf.String())
	})
}

func TestOutputFormatter_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want CLIError
	}{
		{
			name: "wrapped exit error",
			err:  WrapExitError(ExitCommandError, "failed to load ROM", errors.New("no such file")),
			want: CLIError{Code: "command_error", Message: "failed to load ROM", Cause: "no such file"},
		},
		{
			name: "exit error without cause",
			err:  NewExitError(ExitFailure, "game QQQQ not found"),
			want: CLIError{Code: "failure", Message: "game QQQQ not found"},
		},
		{
			name: "plain error",
			err:  errors.New("unknown flag: --bogus"),
			want: CLIError{Code: "failure", Message: "unknown flag: --bogus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}
			require.NoError(t, formatter.Error(tt.err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.want, *resp.Error)
		})
	}

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Error(WrapExitError(ExitCommandError, "failed to load ROM", errors.New("no such file"))))
	assert.Equal(t, "Error: failed to load ROM: no such file\n", buf.String())
}

func TestExitError(t *testing.T) {
	base := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to write backup", base)

	assert.Equal(t, "failed to write backup: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("run: %w", err)))

	assert.Equal(t, "1 scenario failed", NewExitError(ExitFailure, "1 scenario failed").Error())
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func runMain(args ...string) (code int, stdout, stderr string) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	code = Main(args, out, errOut)
	return code, out.String(), errOut.String()
}

func TestCLIMain_Success(t *testing.T) {
	code, stdout, stderr := runMain("gamedb", "lookup", "BPRE")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Pokémon FireRed")
	assert.Empty(t, stderr)
}

func TestCLIMain_TextErrorOnStderr(t *testing.T) {
	code, stdout, stderr := runMain("gamedb", "lookup", "QQQQ")
	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, stdout)
	assert.Equal(t, "Error: game QQQQ not found\n", stderr)
}

func TestCLIMain_JSONErrorOnStdout(t *testing.T) {
	code, stdout, stderr := runMain("--format", "json", "trace", "--db", "/nonexistent/path/test.db", "s1")
	assert.Equal(t, ExitCommandError, code)
	assert.NotContains(t, stderr, "Error:")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "command_error", resp.Error.Code)
	assert.Equal(t, "failed to open database", resp.Error.Message)
	assert.NotEmpty(t, resp.Error.Cause)
}

func TestCLIMain_InvalidFormat(t *testing.T) {
	code, stdout, stderr := runMain("--format", "yaml", "gamedb", "lookup", "AXVE")
	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `Error: invalid format "yaml"`)
}
