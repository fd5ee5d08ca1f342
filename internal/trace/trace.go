package trace

import "github.com/tracewalk/tracewalk/internal/ir"

// Status classifies how an attempt (or a whole run) concluded.
type Status string

const (
	// StatusOK means no violation was found within the budget. Absence
	// of evidence, not evidence of absence.
	StatusOK Status = "ok"

	// StatusViolation means an invariant, property, or test failed.
	StatusViolation Status = "violation"

	// StatusError means a runtime error aborted the attempt before a
	// verdict.
	StatusError Status = "error"
)

// Trace is the record of one completed attempt: every context the
// attempt passed through (including the initial one), the seed that
// reproduces it, optional explanation frames per step, and how it
// ended. A Trace is immutable once the attempt concludes.
type Trace struct {
	// States holds one context per step, the initial context first.
	States []*ir.Context

	// Seed reproduces the whole run this attempt belongs to.
	Seed string

	// Attempt is the index of this attempt within the run; together
	// with Seed it addresses the exact sub-stream that was drawn from.
	Attempt uint64

	// Status is the attempt's terminal status.
	Status Status

	// Frames holds one explanation tree per step, parallel to the
	// transitions between States. Nil when explanation was not
	// requested.
	Frames []*Frame

	// Err carries the runtime error for StatusError traces.
	Err error
}

// Len returns the number of states in the trace.
func (t *Trace) Len() int { return len(t.States) }

// Final returns the last context, or nil for an empty trace.
func (t *Trace) Final() *ir.Context {
	if len(t.States) == 0 {
		return nil
	}
	return t.States[len(t.States)-1]
}
