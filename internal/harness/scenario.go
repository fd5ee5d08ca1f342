package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: a module, the budgets and
// seed to run it with, and the expected outcome. Scenarios pin the
// driver semantics end to end, from CUE loading to trace retention.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the path to the CUE module document, relative to the
	// scenario file location.
	Module string `yaml:"module"`

	// Seed is the root seed (decimal or 0x-hex). Required: scenarios
	// must be reproducible.
	Seed string `yaml:"seed"`

	// MaxSamples is the attempt budget. Defaults to 1.
	MaxSamples int `yaml:"max_samples,omitempty"`

	// MaxSteps is the per-attempt step budget.
	MaxSteps int `yaml:"max_steps"`

	// Traces is the retention capacity. Defaults to 1.
	Traces int `yaml:"traces,omitempty"`

	// SkipInitCheck disables the invariant check on the initial state.
	SkipInitCheck bool `yaml:"skip_init_check,omitempty"`

	// Expect is the required outcome.
	Expect Expect `yaml:"expect"`
}

// Expect specifies the outcome a scenario must produce.
type Expect struct {
	// Status is the expected terminal status: ok, violation, or error.
	Status string `yaml:"status"`

	// TraceLength is the expected number of states in the first
	// retained trace. Zero means unchecked.
	TraceLength int `yaml:"trace_length,omitempty"`

	// FinalState maps variable names to their expected surface
	// rendering in the first retained trace's last state. Subset match.
	FinalState map[string]string `yaml:"final_state,omitempty"`

	// ErrorContains is a substring the runtime error must carry.
	// Only meaningful with status error.
	ErrorContains string `yaml:"error_contains,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The module path
// is resolved relative to the scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Module != "" && !filepath.IsAbs(scenario.Module) {
		scenario.Module = filepath.Join(filepath.Dir(path), scenario.Module)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Module == "" {
		return fmt.Errorf("module is required")
	}
	if _, err := os.Stat(s.Module); os.IsNotExist(err) {
		return fmt.Errorf("module file not found: %s", s.Module)
	}
	if s.Seed == "" {
		return fmt.Errorf("seed is required (scenarios must be reproducible)")
	}
	if s.MaxSamples == 0 {
		s.MaxSamples = 1
	}
	if s.Traces == 0 {
		s.Traces = 1
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	switch s.Expect.Status {
	case "ok", "violation", "error":
	case "":
		return fmt.Errorf("expect.status is required")
	default:
		return fmt.Errorf("unknown expect.status %q", s.Expect.Status)
	}

	return nil
}
