// Package harness runs conformance scenarios: YAML files that pin a
// module, a seed, budgets, and the outcome the drivers must produce.
// Scenarios exercise the whole pipeline - CUE loading, compilation,
// simulation, retention - and golden files pin the interchange output
// byte for byte.
package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/tracewalk/tracewalk/internal/cli"
	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/rng"
	"github.com/tracewalk/tracewalk/internal/sim"
	"github.com/tracewalk/tracewalk/internal/trace"
)

// Result is the outcome of one scenario run.
type Result struct {
	Scenario string
	Status   trace.Status
	Seed     string
	Traces   []trace.Trace
	Module   *ir.Module

	// Failures lists every expectation the run did not meet. Empty
	// means the scenario passed.
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// Run executes a scenario and checks its expectations.
// A failed expectation lands in Result.Failures; only infrastructure
// problems (unreadable module, bad seed) return an error.
func Run(scenario *Scenario) (*Result, error) {
	mod, err := cli.LoadModule(scenario.Module)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	seed, err := rng.ParseSeed(scenario.Seed)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	s, err := sim.NewSimulator(mod, sim.Options{
		MaxSamples:       scenario.MaxSamples,
		MaxSteps:         scenario.MaxSteps,
		Seed:             seed,
		Traces:           scenario.Traces,
		SkipInitialCheck: scenario.SkipInitCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	simResult, err := s.Run(context.Background())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := &Result{
		Scenario: scenario.Name,
		Status:   simResult.Status,
		Seed:     simResult.Seed,
		Traces:   simResult.Traces,
		Module:   mod,
	}
	checkExpectations(scenario, simResult, result)
	return result, nil
}

// checkExpectations compares the run outcome against the scenario's
// expect clause, appending one failure per unmet expectation.
func checkExpectations(scenario *Scenario, simResult sim.Result, result *Result) {
	expect := scenario.Expect

	if string(simResult.Status) != expect.Status {
		result.Failures = append(result.Failures,
			fmt.Sprintf("status: want %s, got %s", expect.Status, simResult.Status))
	}

	if expect.ErrorContains != "" {
		if simResult.Err == nil {
			result.Failures = append(result.Failures,
				fmt.Sprintf("error: want one containing %q, got none", expect.ErrorContains))
		} else if !strings.Contains(simResult.Err.Error(), expect.ErrorContains) {
			result.Failures = append(result.Failures,
				fmt.Sprintf("error: want one containing %q, got %q", expect.ErrorContains, simResult.Err))
		}
	}

	if expect.TraceLength == 0 && expect.FinalState == nil {
		return
	}
	if len(simResult.Traces) == 0 {
		result.Failures = append(result.Failures, "no retained trace to check")
		return
	}
	first := &simResult.Traces[0]

	if expect.TraceLength > 0 && first.Len() != expect.TraceLength {
		result.Failures = append(result.Failures,
			fmt.Sprintf("trace length: want %d, got %d", expect.TraceLength, first.Len()))
	}

	if expect.FinalState != nil {
		final := first.Final()
		if final == nil {
			result.Failures = append(result.Failures, "final state: trace has no states")
			return
		}
		for name, want := range expect.FinalState {
			v, ok := final.Get(name)
			if !ok {
				result.Failures = append(result.Failures,
					fmt.Sprintf("final state: variable %q is unbound", name))
				continue
			}
			if got := ir.Format(v); got != want {
				result.Failures = append(result.Failures,
					fmt.Sprintf("final state: %s = %s, want %s", name, got, want))
			}
		}
	}
}
