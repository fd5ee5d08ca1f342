package sim

import (
	"fmt"

	"github.com/tracewalk/tracewalk/internal/rng"
	"github.com/tracewalk/tracewalk/internal/trace"
)

// Options bound and parameterize a run. They are validated before the
// first attempt; a bad option is a configuration error, reported once
// for the whole invocation with no partial execution.
type Options struct {
	// MaxSamples is the number of attempts to sample. Must be positive.
	MaxSamples int

	// MaxSteps is the number of step applications per attempt. Zero is
	// legal: only the init action runs.
	MaxSteps int

	// Seed roots all randomness. The zero seed is a valid seed; callers
	// wanting a fresh one generate it first and pass it in, so the seed
	// in effect is always known to them.
	Seed rng.Seed

	// Traces is how many diverse traces to retain. Must be at least 1.
	Traces int

	// Verbose enables per-step explanation frames.
	Verbose bool

	// SkipInitialCheck disables the invariant check on the state the
	// init action produced. By default the initial state is checked.
	SkipInitialCheck bool

	// OnAttempt, when set, receives every completed attempt's trace as
	// soon as the attempt concludes, enabling streaming output. It must
	// not retain the keeper's internals; the trace itself is immutable.
	OnAttempt func(trace.Trace)
}

// Validate reports the first configuration error, if any.
func (o *Options) Validate() error {
	if o.MaxSamples <= 0 {
		return fmt.Errorf("maxSamples must be positive, got %d", o.MaxSamples)
	}
	if o.MaxSteps < 0 {
		return fmt.Errorf("maxSteps must be non-negative, got %d", o.MaxSteps)
	}
	if o.Traces < 1 {
		return fmt.Errorf("numberOfTraces must be at least 1, got %d", o.Traces)
	}
	return nil
}
