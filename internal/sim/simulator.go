package sim

import (
	"context"
	"fmt"

	"github.com/tracewalk/tracewalk/internal/eval"
	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/trace"
)

// Simulator is the random-walk driver: it applies the module's init
// action, then up to MaxSteps step applications, checking the invariant
// after each new state, and repeats the whole attempt up to MaxSamples
// times while the keeper retains the best traces.
type Simulator struct {
	mod    *ir.Module
	lookup ir.Lookup
	opts   Options
}

// Result is the terminal outcome of a whole simulation run.
type Result struct {
	// Status is ok when no violation was found within the budget,
	// violation when at least one retained trace falsifies the
	// invariant, error when a runtime error aborted sampling.
	Status trace.Status

	// Seed reproduces the run and is always surfaced, in particular on
	// failure.
	Seed string

	// Traces are the retained traces in discovery order, at most the
	// requested number.
	Traces []trace.Trace

	// Err is the runtime error behind a StatusError result.
	Err error
}

// NewSimulator validates the options and prepares a run.
// A nil init or step action is a configuration error: the engine only
// accepts complete flattened modules.
func NewSimulator(mod *ir.Module, opts Options) (*Simulator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if mod.Init == nil {
		return nil, fmt.Errorf("module %q has no init action", mod.Name)
	}
	if mod.Step == nil {
		return nil, fmt.Errorf("module %q has no step action", mod.Name)
	}
	lookup, err := mod.BuildLookup()
	if err != nil {
		return nil, err
	}
	return &Simulator{mod: mod, lookup: lookup, opts: opts}, nil
}

// Run samples attempts until the budget is exhausted, a single
// requested trace is found, or a runtime error surfaces. Cancellation
// is honored between attempts only.
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	keeper := trace.NewKeeper(s.opts.Traces)

	for i := 0; i < s.opts.MaxSamples; i++ {
		if err := ctx.Err(); err != nil {
			break
		}

		tr := s.attempt(uint64(i))
		if s.opts.OnAttempt != nil {
			s.opts.OnAttempt(tr)
		}

		if tr.Status == trace.StatusError {
			// Errors are surfaced immediately rather than ranked. The
			// reproducing seed rides along in the result.
			return Result{
				Status: trace.StatusError,
				Seed:   s.opts.Seed.String(),
				Traces: []trace.Trace{tr},
				Err:    tr.Err,
			}, nil
		}

		keeper.Consider(tr)

		// With a single requested trace the first violation is final;
		// asking for more keeps sampling for diversity.
		if tr.Status == trace.StatusViolation && s.opts.Traces == 1 {
			break
		}
	}

	status := trace.StatusOK
	if keeper.HasViolation() {
		status = trace.StatusViolation
	}
	return Result{Status: status, Seed: s.opts.Seed.String(), Traces: keeper.Best()}, nil
}

// attempt runs one complete init+steps execution from a fresh forked
// sub-stream. Exhausting MaxSteps without a verdict is ok: absence of
// evidence is not evidence of absence.
func (s *Simulator) attempt(index uint64) trace.Trace {
	src := s.opts.Seed.Fork("attempt", index)
	in := eval.New(s.mod, s.lookup, src, s.opts.Verbose)

	tr := trace.Trace{Seed: s.opts.Seed.String(), Attempt: index}

	holds, cur, frame, err := in.Apply(s.mod.Init, ir.EmptyContext())
	if err != nil {
		tr.Status = trace.StatusError
		tr.Err = err
		return tr
	}
	if !holds {
		tr.Status = trace.StatusError
		tr.Err = fmt.Errorf("init action of module %q is not enabled", s.mod.Name)
		return tr
	}
	tr.States = append(tr.States, cur)
	if s.opts.Verbose {
		tr.Frames = append(tr.Frames, frame)
	}

	if !s.opts.SkipInitialCheck {
		if done := s.checkInvariant(in, cur, &tr); done {
			return tr
		}
	}

	for step := 0; step < s.opts.MaxSteps; step++ {
		holds, next, frame, err := in.Apply(s.mod.Step, cur)
		if err != nil {
			tr.Status = trace.StatusError
			tr.Err = err
			return tr
		}
		if !holds {
			// No transition enabled from this state. The walk ends
			// without a verdict.
			break
		}
		cur = next
		tr.States = append(tr.States, cur)
		if s.opts.Verbose {
			tr.Frames = append(tr.Frames, frame)
		}
		if done := s.checkInvariant(in, cur, &tr); done {
			return tr
		}
	}

	tr.Status = trace.StatusOK
	return tr
}

// checkInvariant evaluates the invariant against the newest state and
// stamps the trace's status when the attempt is over. Returns true when
// the attempt concluded.
func (s *Simulator) checkInvariant(in *eval.Interp, cur *ir.Context, tr *trace.Trace) bool {
	if s.mod.Invariant == nil {
		return false
	}
	ok, err := in.EvalBool(s.mod.Invariant, cur)
	if err != nil {
		tr.Status = trace.StatusError
		tr.Err = err
		return true
	}
	if !ok {
		tr.Status = trace.StatusViolation
		return true
	}
	return false
}
