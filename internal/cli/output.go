package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/sim"
)

// Exit codes. Scripts distinguish "the module misbehaved" from "the
// invocation was wrong" by code alone.
const (
	ExitSuccess      = 0 // no violation, all tests passed
	ExitFailure      = 1 // violation, failed test, or runtime error
	ExitCommandError = 2 // bad flags, unreadable module, broken archive
)

// ExitError carries the process exit code alongside the message.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
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

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to an underlying error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error chain. Errors that
// carry no code exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or as a single JSON
// response object.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Response is the JSON envelope every command emits in json format.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed invocation inside a Response.
type ResponseError struct {
	Code    string `json:"code"` // "E001", "E200", ...
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success emits a successful result. In text format data is printed
// as-is.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error emits an error result with a stable code.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error: &ResponseError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Violation renders the retained counterexample traces. The text form
// prints every state so the walk to the bad state is readable without
// opening the interchange file; verbose runs append the explanation
// frames.
func (f *OutputFormatter) Violation(result sim.Result) {
	if f.Format == "json" {
		type traceSummary struct {
			States  int    `json:"states"`
			Attempt uint64 `json:"attempt"`
		}
		summaries := make([]traceSummary, len(result.Traces))
		for i, tr := range result.Traces {
			summaries[i] = traceSummary{States: tr.Len(), Attempt: tr.Attempt}
		}
		f.Error("E200", fmt.Sprintf("invariant violated (seed %s)", result.Seed), summaries)
		return
	}

	fmt.Fprintf(f.Writer, "[violation] invariant violated (seed %s)\n", result.Seed)
	for i, tr := range result.Traces {
		fmt.Fprintf(f.Writer, "trace %d (%d states):\n", i, tr.Len())
		for j, state := range tr.States {
			fmt.Fprintf(f.Writer, "  [%d] %s\n", j, renderState(state))
		}
		if f.Verbose {
			for _, frame := range tr.Frames {
				fmt.Fprint(f.Writer, frame.Render())
			}
		}
	}
}

// Report renders a test report in text format, one line per test and a
// closing tally with the seed that reproduces the run.
func (f *OutputFormatter) Report(report TestReport) {
	for _, res := range report.Results {
		switch res.Outcome {
		case string(sim.OutcomeIgnored):
			fmt.Fprintf(f.Writer, "  ignored  %s\n", res.Name)
		case string(sim.OutcomePassed):
			fmt.Fprintf(f.Writer, "  ok       %s (%d samples)\n", res.Name, res.Samples)
		default:
			fmt.Fprintf(f.Writer, "  FAILED   %s (sample %d): %s\n", res.Name, res.Samples, res.Error)
		}
	}
	fmt.Fprintf(f.Writer, "%d passed, %d failed, %d ignored (seed %s)\n",
		report.Passed, report.Failed, report.Ignored, report.Seed)
}

// renderState prints all bindings of one state on a single line.
func renderState(ctx *ir.Context) string {
	var b strings.Builder
	for i, name := range ctx.Names() {
		if i > 0 {
			b.WriteString(", ")
		}
		v, _ := ctx.Get(name)
		fmt.Fprintf(&b, "%s = %s", name, ir.Format(v))
	}
	return b.String()
}
