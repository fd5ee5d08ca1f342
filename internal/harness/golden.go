package harness

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/tracewalk/tracewalk/internal/trace"
)

// goldenTimestamp is the fixed wall-clock time stamped into golden
// interchange documents, so they compare byte for byte across runs.
var goldenTimestamp = time.UnixMilli(1700000000000).UTC()

// RunWithGolden executes a scenario and compares the interchange
// rendering of its first retained trace against a golden file in
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if len(result.Traces) == 0 {
		return result, nil
	}

	doc, err := trace.ToDocument(&result.Traces[0], result.Module, scenario.Module, goldenTimestamp)
	if err != nil {
		return nil, err
	}
	data, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
