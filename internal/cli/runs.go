package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracewalk/tracewalk/internal/store"
)

// RunsCmdOptions holds flags for the runs command.
type RunsCmdOptions struct {
	*RootOptions
	Database string
	Limit    int
	Show     string
}

// NewRunsCommand creates the runs command for browsing the archive.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		Long: `List runs archived with --db, newest first. Every row carries the
seed that reproduces it.

Example:
  tracewalk runs --db ./runs.db
  tracewalk runs --db ./runs.db --show 01890a5d-ac96-774b-bcce-b302099a8057`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the archive database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 = all)")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print the retained traces of one run id")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listRuns(opts *RunsCmdOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("archive database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer st.Close()

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Show != "" {
		return showRun(st, opts.Show, out, cmd)
	}

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if out.Format == "json" {
		return out.Success(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no archived runs")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-19s %-8s %-9s seed=%s  %s\n",
			run.CreatedAt.Format("2006-01-02 15:04:05"),
			run.Module, run.Kind, run.Status, run.Seed, run.ID)
	}
	return nil
}

func showRun(st *store.Store, id string, out *OutputFormatter, cmd *cobra.Command) error {
	run, traces, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if out.Format == "json" {
		type shownTrace struct {
			Seq    int             `json:"seq"`
			Status string          `json:"status"`
			States int             `json:"states"`
			ITF    json.RawMessage `json:"itf"`
		}
		payload := struct {
			Run    store.RunRecord `json:"run"`
			Traces []shownTrace    `json:"traces"`
		}{Run: run}
		for _, tr := range traces {
			payload.Traces = append(payload.Traces, shownTrace{
				Seq: tr.Seq, Status: tr.Status, States: tr.States, ITF: json.RawMessage(tr.ITF),
			})
		}
		return out.Success(payload)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: module=%s kind=%s status=%s seed=%s\n",
		run.ID, run.Module, run.Kind, run.Status, run.Seed)
	if run.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", run.Error)
	}
	for _, tr := range traces {
		fmt.Fprintf(cmd.OutOrStdout(), "trace %d (%s, %d states):\n%s\n", tr.Seq, tr.Status, tr.States, tr.ITF)
	}
	return nil
}
