package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracewalk/tracewalk/internal/ir"
	"github.com/tracewalk/tracewalk/internal/rng"
	"github.com/tracewalk/tracewalk/internal/sim"
	"github.com/tracewalk/tracewalk/internal/store"
	"github.com/tracewalk/tracewalk/internal/trace"
)

// RunCmdOptions holds flags for the run command.
type RunCmdOptions struct {
	*RootOptions
	Seed          string
	MaxSamples    int
	MaxSteps      int
	Traces        int
	OutITF        string
	Database      string
	SkipInitCheck bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <module>",
		Short: "Sample random executions and check the invariant",
		Long: `Sample bounded random executions of a flattened module.

Each attempt applies init, then up to --max-steps step applications,
checking the invariant after every new state. The run stops at the
budget, at the first violation (when --traces=1), or at the first
runtime error. The seed is always printed so any result can be
reproduced with --seed.

Example:
  tracewalk run ./counter.cue --max-steps 10
  tracewalk run ./counter.cue --seed 0x2a --traces 3 --out-itf out/{test}-{seq}.itf.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "root seed (decimal or 0x-hex); random when omitted")
	cmd.Flags().IntVar(&opts.MaxSamples, "max-samples", 10000, "number of attempts to sample")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 20, "maximum steps per attempt")
	cmd.Flags().IntVar(&opts.Traces, "traces", 1, "number of traces to retain")
	cmd.Flags().StringVar(&opts.OutITF, "out-itf", "", "trace output template, e.g. out/{test}-{seq}.itf.json")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the run to this SQLite database")
	cmd.Flags().BoolVar(&opts.SkipInitCheck, "skip-init-check", false, "do not check the invariant on the initial state")

	return cmd
}

func runSimulation(opts *RunCmdOptions, modulePath string, cmd *cobra.Command) error {
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

	slog.Info("loading module", "path", modulePath)
	mod, err := LoadModule(modulePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load module", err)
	}
	slog.Info("module loaded", "module", mod.Name, "vars", len(mod.Vars), "defs", len(mod.Defs))

	s, err := sim.NewSimulator(mod, sim.Options{
		MaxSamples:       opts.MaxSamples,
		MaxSteps:         opts.MaxSteps,
		Seed:             seed,
		Traces:           opts.Traces,
		Verbose:          opts.Verbose,
		SkipInitialCheck: opts.SkipInitCheck,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot run module", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	slog.Info("sampling", "seed", seed.String(), "max_samples", opts.MaxSamples, "max_steps", opts.MaxSteps)
	result, err := s.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "simulation aborted", err)
	}

	if opts.OutITF != "" {
		if err := writeTraceDocuments(opts.OutITF, mod.Name, result.Traces, mod, modulePath); err != nil {
			return WrapExitError(ExitCommandError, "failed to write traces", err)
		}
	}

	if opts.Database != "" {
		if err := archiveRun(cmd.Context(), opts.Database, "simulate", mod, modulePath, result, opts.MaxSamples, opts.MaxSteps); err != nil {
			return WrapExitError(ExitCommandError, "failed to archive run", err)
		}
	}

	switch result.Status {
	case trace.StatusViolation:
		out.Violation(result)
		return NewExitError(ExitFailure, fmt.Sprintf("invariant violated (seed %s)", result.Seed))
	case trace.StatusError:
		out.Error("E201", fmt.Sprintf("runtime error: %v (seed %s)", result.Err, result.Seed), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("runtime error (seed %s)", result.Seed))
	default:
		return out.Success(fmt.Sprintf("[ok] no violation in %d samples (seed %s)", opts.MaxSamples, result.Seed))
	}
}

// resolveSeed parses the seed flag, or draws a fresh one when empty.
func resolveSeed(flag string) (rng.Seed, error) {
	if flag == "" {
		return rng.GenerateSeed()
	}
	return rng.ParseSeed(flag)
}

// setupLogging configures slog on stderr based on the verbose flag.
func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if !verbose {
		logLevel = slog.LevelWarn
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// signalContext derives a context cancelled by SIGINT/SIGTERM. The
// simulator only honors cancellation between attempts, so a Ctrl-C
// still produces a complete result for the attempts already sampled.
func signalContext(cmd *cobra.Command) (context.Context, func()) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after current attempt", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// writeTraceDocuments renders each retained trace to the interchange
// format and writes it to the expanded output template. {test} expands
// to the label (module or test name), {seq} to the trace index.
func writeTraceDocuments(template, label string, traces []trace.Trace, mod *ir.Module, source string) error {
	now := time.Now().UTC()
	for i := range traces {
		doc, err := trace.ToDocument(&traces[i], mod, source, now)
		if err != nil {
			return fmt.Errorf("trace %d: %w", i, err)
		}
		data, err := doc.Marshal()
		if err != nil {
			return fmt.Errorf("trace %d: %w", i, err)
		}

		path := expandTemplate(template, label, i)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		slog.Info("trace written", "path", path, "states", traces[i].Len())
	}
	return nil
}

func expandTemplate(template, label string, seq int) string {
	path := strings.ReplaceAll(template, "{test}", label)
	return strings.ReplaceAll(path, "{seq}", strconv.Itoa(seq))
}

// archiveRun records the invocation and its retained traces.
func archiveRun(ctx context.Context, dbPath, kind string, mod *ir.Module, source string, result sim.Result, maxSamples, maxSteps int) error {
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

	run := store.RunRecord{
		ID:            id,
		Module:        mod.Name,
		Kind:          kind,
		Seed:          result.Seed,
		Status:        string(result.Status),
		MaxSamples:    maxSamples,
		MaxSteps:      maxSteps,
		EngineVersion: ir.EngineVersion,
		CreatedAt:     time.Now().UTC(),
	}
	if result.Err != nil {
		run.Error = result.Err.Error()
	}

	now := time.Now().UTC()
	var records []store.TraceRecord
	for i := range result.Traces {
		tr := &result.Traces[i]
		doc, err := trace.ToDocument(tr, mod, source, now)
		if err != nil {
			// An unrepresentable value must not lose the run record.
			slog.Warn("trace not archivable", "trace", i, "error", err)
			continue
		}
		data, err := doc.Marshal()
		if err != nil {
			return err
		}
		records = append(records, store.TraceRecord{
			Seq:    i,
			Status: string(tr.Status),
			States: tr.Len(),
			ITF:    data,
		})
	}

	if err := st.WriteRun(ctx, run, records); err != nil {
		return err
	}
	slog.Info("run archived", "id", id, "db", dbPath)
	return nil
}
