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

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]int{"batches": 2})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"batches": float64(2)}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := []string{"stack.capacity: out of range"}
	err := formatter.Error(ErrCodeInvalidConfig, "invalid configuration", details)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidConfig, resp.Error.Code)
	assert.Equal(t, "invalid configuration", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("Configuration valid"))
	assert.Equal(t, "Configuration valid\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Error(ErrCodeDecode, "bad line", []string{"detail"}))
	assert.Contains(t, buf.String(), "Error [E_DECODE]: bad line")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	require.NoError(t, formatter.Error(ErrCodeDecode, "bad line", "expected 3 fields"))
	assert.Contains(t, buf.String(), "Details: expected 3 fields")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Reading %s", "batch 3")

			assert.Empty(t, out.String(), "verbose output must not corrupt JSON")
			if tt.wantLog {
				assert.Equal(t, "Reading batch 3\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_GetErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	formatter := &OutputFormatter{Writer: out}
	assert.Same(t, out, formatter.GetErrWriter())

	errOut := &bytes.Buffer{}
	formatter.ErrWriter = errOut
	assert.Same(t, errOut, formatter.GetErrWriter())
}

func TestExitError(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "failed to open database", cause)

	assert.Equal(t, "failed to open database: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", err)))

	plain := NewExitError(ExitFailure, "2 scenario(s) failed")
	assert.Equal(t, "2 scenario(s) failed", plain.Error())
	assert.Equal(t, ExitFailure, GetExitCode(plain))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("other")))
}
