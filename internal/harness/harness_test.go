package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewalk/tracewalk/internal/trace"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func TestScenarioCounterViolation(t *testing.T) {
	s := loadTestScenario(t, "counter-violation.yaml")

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
	assert.Equal(t, trace.StatusViolation, result.Status)
	require.Len(t, result.Traces, 1)
	assert.Equal(t, 4, result.Traces[0].Len())
}

func TestScenarioCounterOk(t *testing.T) {
	s := loadTestScenario(t, "counter-ok.yaml")

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
	assert.Equal(t, trace.StatusOK, result.Status)
}

func TestScenarioDivisionError(t *testing.T) {
	s := loadTestScenario(t, "division-error.yaml")

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), "failures: %v", result.Failures)
	assert.Equal(t, trace.StatusError, result.Status)
}

func TestScenarioReportsUnmetExpectations(t *testing.T) {
	s := loadTestScenario(t, "counter-violation.yaml")
	// Sabotage the expectation: the run will still violate.
	s.Expect.Status = "ok"
	s.Expect.FinalState = map[string]string{"x": "99"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	assert.Len(t, result.Failures, 2)
}

func TestScenarioRunsAreDeterministic(t *testing.T) {
	s := loadTestScenario(t, "counter-violation.yaml")

	a, err := Run(s)
	require.NoError(t, err)
	b, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Seed, b.Seed)
	require.Equal(t, len(a.Traces), len(b.Traces))
}
