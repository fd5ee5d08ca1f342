package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/sim"
	"github.com/tracewalk/tracewalk/internal/trace"
)

func TestExitErrorMessage(t *testing.T) {
	plain := NewExitError(ExitFailure, "invariant violated")
	assert.Equal(t, "invariant violated", plain.Error())

	wrapped := WrapExitError(ExitCommandError, "failed to load module", errors.New("no such file"))
	assert.Equal(t, "failed to load module: no such file", wrapped.Error())
	assert.Equal(t, "no such file", errors.Unwrap(wrapped).Error())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "violation"))))
}

func TestFormatterJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]string{"seed": "0x2a"}))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestFormatterJSONError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Error("E200", "invariant violated", nil))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E200", resp.Error.Code)
}

func TestFormatterTextError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error("E201", "runtime error", nil))
	assert.Contains(t, buf.String(), "Error [E201]: runtime error")
}

func TestFormatterViolationText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	result := sim.Result{
		Status: trace.StatusViolation,
		Seed:   "0x2a",
		Traces: []trace.Trace{{
			States: []*ir.Context{
				ir.NewContext(map[string]ir.Value{"x": ir.NewInt(0)}),
				ir.NewContext(map[string]ir.Value{"x": ir.NewInt(3)}),
			},
			Seed:   "0x2a",
			Status: trace.StatusViolation,
		}},
	}
	f.Violation(result)

	out := buf.String()
	assert.Contains(t, out, "[violation] invariant violated (seed 0x2a)")
	assert.Contains(t, out, "trace 0 (2 states):")
	assert.Contains(t, out, "[0] x = 0")
	assert.Contains(t, out, "[1] x = 3")
}

func TestFormatterReportText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	f.Report(TestReport{
		Seed: "0x1",
		Results: []TestCaseResult{
			{Name: "additionWorks", Outcome: string(sim.OutcomePassed), Samples: 10},
			{Name: "divisionByZero", Outcome: string(sim.OutcomeFailed), Samples: 1, Error: "division by zero"},
			{Name: "skipped", Outcome: string(sim.OutcomeIgnored)},
		},
		Passed:  1,
		Failed:  1,
		Ignored: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "ok       additionWorks (10 samples)")
	assert.Contains(t, out, "FAILED   divisionByZero (sample 1): division by zero")
	assert.Contains(t, out, "ignored  skipped")
	assert.Contains(t, out, "1 passed, 1 failed, 1 ignored (seed 0x1)")
}
