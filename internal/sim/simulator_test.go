package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewalk/tracewalk/internal/eval"
	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/rng"
	"github.com/tracewalk/tracewalk/internal/trace"
)

func intLit(n int64) ir.Expr { return ir.Lit{Val: ir.NewInt(n)} }

func nm(s string) ir.Expr { return ir.Name{Ident: s} }

func op(name string, args ...ir.Expr) ir.Expr {
	return ir.App{Op: name, Args: args}
}

// counterModule is the canonical walk: x starts at zero and increments
// once per step.
func counterModule(invariant ir.Expr) *ir.Module {
	return &ir.Module{
		Name:      "counter",
		Vars:      []ir.VarDecl{{Name: "x", Type: "int"}},
		Init:      ir.Assign{Var: "x", Val: intLit(0)},
		Step:      ir.Assign{Var: "x", Val: op("add", nm("x"), intLit(1))},
		Invariant: invariant,
	}
}

func xValue(t *testing.T, ctx *ir.Context) int64 {
	t.Helper()
	v, ok := ctx.Get("x")
	require.True(t, ok)
	n, ok := v.(ir.Int)
	require.True(t, ok)
	got, ok := n.Int64()
	require.True(t, ok)
	return got
}

func TestSimulatorFindsViolation(t *testing.T) {
	mod := counterModule(op("lt", nm("x"), intLit(3)))
	s, err := NewSimulator(mod, Options{
		MaxSamples: 1,
		MaxSteps:   5,
		Seed:       rng.NewSeed(42),
		Traces:     1,
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trace.StatusViolation, res.Status)
	assert.Equal(t, "0x2a", res.Seed)

	require.Len(t, res.Traces, 1)
	tr := res.Traces[0]
	require.Equal(t, 4, tr.Len())
	for i, ctx := range tr.States {
		assert.Equal(t, int64(i), xValue(t, ctx))
	}
}

func TestSimulatorOkWithinBudget(t *testing.T) {
	mod := counterModule(op("lt", nm("x"), intLit(100)))
	s, err := NewSimulator(mod, Options{
		MaxSamples: 1,
		MaxSteps:   5,
		Seed:       rng.NewSeed(42),
		Traces:     1,
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trace.StatusOK, res.Status)

	require.Len(t, res.Traces, 1)
	tr := res.Traces[0]
	require.Equal(t, 6, tr.Len())
	assert.Equal(t, int64(5), xValue(t, tr.Final()))
}

func TestSimulatorRuntimeErrorSurfacesImmediately(t *testing.T) {
	mod := counterModule(nil)
	mod.Step = ir.Assign{Var: "x", Val: op("div", intLit(1), intLit(0))}

	attempts := 0
	s, err := NewSimulator(mod, Options{
		MaxSamples: 10,
		MaxSteps:   5,
		Seed:       rng.NewSeed(1),
		Traces:     1,
		OnAttempt:  func(trace.Trace) { attempts++ },
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trace.StatusError, res.Status)
	assert.Equal(t, 1, attempts)

	var rte *eval.RuntimeError
	require.ErrorAs(t, res.Err, &rte)
	assert.Equal(t, eval.ErrCodeDivisionByZero, rte.Code)
}

func TestSimulatorInitialInvariantCheck(t *testing.T) {
	// x starts at 0 and the invariant demands x > 0, so the violation is
	// already present after init.
	mod := counterModule(op("gt", nm("x"), intLit(0)))

	t.Run("checked by default", func(t *testing.T) {
		s, err := NewSimulator(mod, Options{
			MaxSamples: 1,
			MaxSteps:   0,
			Seed:       rng.NewSeed(7),
			Traces:     1,
		})
		require.NoError(t, err)

		res, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, trace.StatusViolation, res.Status)
		require.Len(t, res.Traces, 1)
		assert.Equal(t, 1, res.Traces[0].Len())
	})

	t.Run("skippable", func(t *testing.T) {
		s, err := NewSimulator(mod, Options{
			MaxSamples:       1,
			MaxSteps:         0,
			Seed:             rng.NewSeed(7),
			Traces:           1,
			SkipInitialCheck: true,
		})
		require.NoError(t, err)

		res, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, trace.StatusOK, res.Status)
	})
}

func TestSimulatorStepNotEnabledEndsAttemptOk(t *testing.T) {
	// Step is enabled only while x < 2, so the walk stops early without
	// a verdict.
	mod := counterModule(nil)
	mod.Step = ir.AllOf{Arms: []ir.Expr{
		op("lt", nm("x"), intLit(2)),
		ir.Assign{Var: "x", Val: op("add", nm("x"), intLit(1))},
	}}

	s, err := NewSimulator(mod, Options{
		MaxSamples: 1,
		MaxSteps:   10,
		Seed:       rng.NewSeed(3),
		Traces:     1,
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trace.StatusOK, res.Status)
	require.Len(t, res.Traces, 1)
	assert.Equal(t, 3, res.Traces[0].Len())
	assert.Equal(t, int64(2), xValue(t, res.Traces[0].Final()))
}

func TestSimulatorInitNotEnabledIsError(t *testing.T) {
	mod := counterModule(nil)
	mod.Init = ir.AllOf{Arms: []ir.Expr{
		ir.Lit{Val: ir.Bool(false)},
		ir.Assign{Var: "x", Val: intLit(0)},
	}}

	s, err := NewSimulator(mod, Options{
		MaxSamples: 5,
		MaxSteps:   5,
		Seed:       rng.NewSeed(3),
		Traces:     1,
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trace.StatusError, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "not enabled")
}

// randomStepModule assigns x a fresh draw from 1..bound every step, so
// violating attempts end in many distinct final states.
func randomStepModule(bound int64) *ir.Module {
	return &ir.Module{
		Name:      "roulette",
		Vars:      []ir.VarDecl{{Name: "x", Type: "int"}},
		Init:      ir.Assign{Var: "x", Val: intLit(0)},
		Step:      ir.Assign{Var: "x", Val: ir.Input{Domain: op("to", intLit(1), intLit(bound))}},
		Invariant: op("eq", nm("x"), intLit(0)),
	}
}

func TestSimulatorRetainsDistinctViolations(t *testing.T) {
	s, err := NewSimulator(randomStepModule(1000), Options{
		MaxSamples: 50,
		MaxSteps:   3,
		Seed:       rng.NewSeed(99),
		Traces:     3,
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trace.StatusViolation, res.Status)
	require.Len(t, res.Traces, 3)

	for i := range res.Traces {
		for j := i + 1; j < len(res.Traces); j++ {
			assert.False(t,
				ir.EqualContext(res.Traces[i].Final(), res.Traces[j].Final()),
				"retained traces %d and %d share a final state", i, j)
		}
	}
}

func TestSimulatorMultiTraceExhaustsSamples(t *testing.T) {
	attempts := 0
	s, err := NewSimulator(randomStepModule(1000), Options{
		MaxSamples: 20,
		MaxSteps:   3,
		Seed:       rng.NewSeed(5),
		Traces:     3,
		OnAttempt:  func(trace.Trace) { attempts++ },
	})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, attempts)
}

func TestSimulatorSingleTraceStopsAtFirstViolation(t *testing.T) {
	attempts := 0
	s, err := NewSimulator(randomStepModule(1000), Options{
		MaxSamples: 20,
		MaxSteps:   3,
		Seed:       rng.NewSeed(5),
		Traces:     1,
		OnAttempt:  func(trace.Trace) { attempts++ },
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trace.StatusViolation, res.Status)
	assert.Equal(t, 1, attempts)
}

func TestSimulatorDeterministicAcrossRuns(t *testing.T) {
	run := func() Result {
		s, err := NewSimulator(randomStepModule(1 << 20), Options{
			MaxSamples: 10,
			MaxSteps:   4,
			Seed:       rng.NewSeed(1234),
			Traces:     2,
		})
		require.NoError(t, err)
		res, err := s.Run(context.Background())
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	assert.Equal(t, a.Status, b.Status)
	require.Equal(t, len(a.Traces), len(b.Traces))
	for i := range a.Traces {
		require.Equal(t, a.Traces[i].Len(), b.Traces[i].Len())
		for j := range a.Traces[i].States {
			assert.True(t, ir.EqualContext(a.Traces[i].States[j], b.Traces[i].States[j]))
		}
	}
}

func TestSimulatorBoundedRetention(t *testing.T) {
	s, err := NewSimulator(randomStepModule(8), Options{
		MaxSamples: 10000,
		MaxSteps:   2,
		Seed:       rng.NewSeed(77),
		Traces:     3,
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Traces), 3)
}

func TestSimulatorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	s, err := NewSimulator(counterModule(nil), Options{
		MaxSamples: 1000,
		MaxSteps:   5,
		Seed:       rng.NewSeed(1),
		Traces:     1,
		OnAttempt: func(trace.Trace) {
			attempts++
			if attempts == 3 {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, trace.StatusOK, res.Status)
}

func TestSimulatorVerboseRecordsFrames(t *testing.T) {
	mod := counterModule(op("lt", nm("x"), intLit(3)))
	s, err := NewSimulator(mod, Options{
		MaxSamples: 1,
		MaxSteps:   5,
		Seed:       rng.NewSeed(42),
		Traces:     1,
		Verbose:    true,
	})
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Traces, 1)
	tr := res.Traces[0]
	// One frame tree per applied action: init plus each taken step.
	assert.Len(t, tr.Frames, tr.Len())
}

func TestNewSimulatorRejectsIncompleteModule(t *testing.T) {
	opts := Options{MaxSamples: 1, MaxSteps: 1, Seed: rng.NewSeed(1), Traces: 1}

	noInit := counterModule(nil)
	noInit.Init = nil
	_, err := NewSimulator(noInit, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no init action")

	noStep := counterModule(nil)
	noStep.Step = nil
	_, err = NewSimulator(noStep, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no step action")
}
