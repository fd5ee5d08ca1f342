package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/tracewalk/tracewalk/internal/eval"
	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/trace"
)

// Outcome classifies one named test after the runner is done with it.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeIgnored Outcome = "ignored"
)

// TestResult is the verdict for one named test.
type TestResult struct {
	Name    string
	Outcome Outcome

	// Seed reproduces the failing sample; always the root seed, since
	// the per-test sub-stream is derived from it and the test name.
	Seed string

	// Samples is how many evaluations ran before the verdict.
	Samples int

	// Err is set when the failing sample hit a runtime error rather
	// than returning false.
	Err error

	// Trace carries the failing sample's frames when verbose recording
	// is on. Nil for passed and ignored tests.
	Trace *trace.Trace
}

// TestRunner samples each named test body up to MaxSamples times. A
// test body is a nullary boolean expression applied without any
// init/step loop; the first sample returning false or erroring fails
// the test.
type TestRunner struct {
	mod    *ir.Module
	lookup ir.Lookup
	opts   Options
	match  string
}

// NewTestRunner prepares a run over the module's tests. match filters
// by substring; the empty string matches every test.
func NewTestRunner(mod *ir.Module, opts Options, match string) (*TestRunner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	lookup, err := mod.BuildLookup()
	if err != nil {
		return nil, err
	}
	return &TestRunner{mod: mod, lookup: lookup, opts: opts, match: match}, nil
}

// Run executes every declared test in module order. Each test draws
// from its own sub-stream keyed by the test name, so narrowing the
// filter never changes another test's samples. Cancellation is honored
// between samples.
func (r *TestRunner) Run(ctx context.Context) ([]TestResult, error) {
	results := make([]TestResult, 0, len(r.mod.Tests))
	for i := range r.mod.Tests {
		t := &r.mod.Tests[i]
		if r.match != "" && !strings.Contains(t.Name, r.match) {
			results = append(results, TestResult{
				Name:    t.Name,
				Outcome: OutcomeIgnored,
				Seed:    r.opts.Seed.String(),
			})
			continue
		}
		res, err := r.runTest(ctx, t)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *TestRunner) runTest(ctx context.Context, t *ir.Test) (TestResult, error) {
	res := TestResult{Name: t.Name, Seed: r.opts.Seed.String()}

	for sample := 0; sample < r.opts.MaxSamples; sample++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Samples = sample + 1

		src := r.opts.Seed.Fork("test:"+t.Name, uint64(sample))
		in := eval.New(r.mod, r.lookup, src, r.opts.Verbose)

		holds, _, frame, err := in.Apply(t.Body, ir.EmptyContext())
		if err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			res.Trace = failingTrace(res.Seed, uint64(sample), trace.StatusError, frame, err)
			return res, nil
		}
		if !holds {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("test %q returned false on sample %d", t.Name, sample)
			res.Trace = failingTrace(res.Seed, uint64(sample), trace.StatusViolation, frame, nil)
			return res, nil
		}
	}

	res.Outcome = OutcomePassed
	return res, nil
}

func failingTrace(seed string, sample uint64, status trace.Status, frame *trace.Frame, err error) *trace.Trace {
	tr := &trace.Trace{Seed: seed, Attempt: sample, Status: status, Err: err}
	if frame != nil {
		tr.Frames = []*trace.Frame{frame}
	}
	return tr
}
