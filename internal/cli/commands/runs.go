package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssogunle-tc/datahub/internal/cli/output"
	"github.com/ssogunle-tc/datahub/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted resolution runs",
		Long:  `List the runs saved with "resolve --save", newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	return cmd
}

type runJSON struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Tables      int        `json:"tables"`
	Warnings    int        `json:"warnings"`
}

func runRuns(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]runJSON, 0, len(runs))
		for _, run := range runs {
			out = append(out, runJSON{
				ID:          run.ID,
				Status:      string(run.Status),
				StartedAt:   run.StartedAt,
				CompletedAt: run.CompletedAt,
				Error:       run.Error,
				Tables:      run.TableCount,
				Warnings:    run.WarningCount,
			})
		}
		return r.JSON(out)
	}

	if len(runs) == 0 {
		r.Muted(`No runs found. Use "mlineage resolve --save" to record one.`)
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			string(run.Status),
			run.StartedAt.Format(time.RFC3339),
			strconv.Itoa(run.TableCount),
			strconv.Itoa(run.WarningCount),
		})
	}
	if r.EffectiveMode() != output.ModeCSV {
		r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	}
	r.Table([]string{"Run", "Status", "Started", "Tables", "Warnings"}, rows)
	return nil
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show the lineage recorded by a run",
		Long:  `Show the upstream tables and warnings of a persisted run (default: the latest run).`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args)
		},
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var run *state.Run
	if len(args) == 1 {
		run, err = store.GetRun(ctx, args[0])
	} else {
		run, err = store.LatestRun(ctx)
	}
	if errors.Is(err, state.ErrRunNotFound) && len(args) == 0 {
		return errors.New(`no runs found, use "mlineage resolve --save" to record one`)
	}
	if err != nil {
		return err
	}

	lineage, err := store.GetTableLineage(ctx, run.ID)
	if err != nil {
		return err
	}
	warnings, err := store.GetWarnings(ctx, run.ID)
	if err != nil {
		return err
	}
	return renderLineage(cmdCtx.Renderer, run, lineage, warnings)
}
