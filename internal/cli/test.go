package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/sim"
	"github.com/tracewalk/tracewalk/internal/store"
)

// TestCmdOptions holds flags for the test command.
type TestCmdOptions struct {
	*RootOptions
	Seed       string
	MaxSamples int
	Match      string
	Database   string
}

// TestReport is the JSON payload for a whole test invocation.
type TestReport struct {
	Module  string           `json:"module"`
	Seed    string           `json:"seed"`
	Results []TestCaseResult `json:"results"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Ignored int              `json:"ignored"`
}

// TestCaseResult is one test's verdict in the report.
type TestCaseResult struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Samples int    `json:"samples,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <module>",
		Short: "Run the module's named tests",
		Long: `Run every named test of a flattened module.

Each test body is a nullary boolean expression, sampled up to
--max-samples times from a sub-stream keyed by the test name. The first
sample that returns false or raises a runtime error fails the test.

Example:
  tracewalk test ./counter.cue
  tracewalk test ./counter.cue --match overflow --seed 0x2a`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "root seed (decimal or 0x-hex); random when omitted")
	cmd.Flags().IntVar(&opts.MaxSamples, "max-samples", 10000, "samples per test")
	cmd.Flags().StringVar(&opts.Match, "match", "", "run only tests whose name contains this substring")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the test run to this SQLite database")

	return cmd
}

func runTests(opts *TestCmdOptions, modulePath string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	seed, err := resolveSeed(opts.Seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid seed", err)
	}

	mod, err := LoadModule(modulePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load module", err)
	}
	if len(mod.Tests) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("module %q declares no tests", mod.Name))
	}

	runner, err := sim.NewTestRunner(mod, sim.Options{
		MaxSamples: opts.MaxSamples,
		Seed:       seed,
		Traces:     1,
		Verbose:    opts.Verbose,
	}, opts.Match)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot run tests", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	slog.Info("running tests", "module", mod.Name, "tests", len(mod.Tests), "seed", seed.String())
	results, err := runner.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "test run aborted", err)
	}

	report := buildReport(mod.Name, seed.String(), results)

	if opts.Database != "" {
		if err := archiveTestRun(cmd.Context(), opts.Database, mod, report, opts.MaxSamples); err != nil {
			return WrapExitError(ExitCommandError, "failed to archive test run", err)
		}
	}

	if out.Format == "json" {
		if report.Failed > 0 {
			out.Error("E210", fmt.Sprintf("%d test(s) failed (seed %s)", report.Failed, report.Seed), report)
		} else {
			out.Success(report)
		}
	} else {
		out.Report(report)
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d test(s) failed (seed %s)", report.Failed, report.Seed))
	}
	return nil
}

// archiveTestRun records the test invocation. Test traces have no
// state sequence, so only the run row is written.
func archiveTestRun(ctx context.Context, dbPath string, mod *ir.Module, report TestReport, maxSamples int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := store.NewRunID()
	if err != nil {
		return err
	}

	status := "ok"
	var firstErr string
	if report.Failed > 0 {
		status = "violation"
		for _, res := range report.Results {
			if res.Outcome == string(sim.OutcomeFailed) && res.Error != "" {
				firstErr = res.Error
				break
			}
		}
	}

	run := store.RunRecord{
		ID:            id,
		Module:        mod.Name,
		Kind:          "test",
		Seed:          report.Seed,
		Status:        status,
		Error:         firstErr,
		MaxSamples:    maxSamples,
		EngineVersion: ir.EngineVersion,
		CreatedAt:     time.Now().UTC(),
	}
	if err := st.WriteRun(ctx, run, nil); err != nil {
		return err
	}
	slog.Info("test run archived", "id", id, "db", dbPath)
	return nil
}

func buildReport(module, seed string, results []sim.TestResult) TestReport {
	report := TestReport{Module: module, Seed: seed}
	for _, res := range results {
		caseResult := TestCaseResult{
			Name:    res.Name,
			Outcome: string(res.Outcome),
			Samples: res.Samples,
		}
		if res.Err != nil {
			caseResult.Error = res.Err.Error()
		}
		report.Results = append(report.Results, caseResult)

		switch res.Outcome {
		case sim.OutcomePassed:
			report.Passed++
		case sim.OutcomeFailed:
			report.Failed++
		case sim.OutcomeIgnored:
			report.Ignored++
		}
	}
	return report
}
