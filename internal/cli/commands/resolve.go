package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssogunle-tc/datahub/internal/engine"
	"github.com/ssogunle-tc/datahub/internal/loader"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	var watch, save bool

	cmd := &cobra.Command{
		Use:   "resolve [paths...]",
		Short: "Resolve the upstream tables of Power BI datasets",
		Long: `Resolve the upstream platform tables of every table in the given dataset
files or directories (default: the configured datasets directory).

Each table's M expression is parsed and traced back to its data-access
functions. Problems are reported as warnings and never stop the run.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json, csv`,
		Example: `  # Resolve every dataset under ./datasets
  mlineage resolve

  # Resolve one file as JSON
  mlineage resolve sales.yaml --output json

  # Persist the run to the state database
  mlineage resolve --save

  # Re-resolve whenever a dataset file changes
  mlineage resolve --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, watch, save)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-resolve when dataset files change")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the run to the state database")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string, watch, save bool) error {
	cmdCtx := NewCommandContext(cmd)
	cfg, r := cmdCtx.Cfg, cmdCtx.Renderer

	paths := args
	if len(paths) == 0 {
		paths = []string{cfg.DatasetsDir}
	}

	var store engine.Store
	if save {
		s, err := openStore(cfg, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}
	eng := newEngine(cfg, cmdCtx.Logger, store)

	if watch {
		r.Muted(fmt.Sprintf("Watching %v for changes (Ctrl+C to stop)", paths))
		return eng.Watch(cmd.Context(), paths, func(result *engine.Result, err error) {
			if err != nil {
				r.Error(err)
				return
			}
			if err := renderResult(r, result); err != nil {
				r.Error(err)
			}
		})
	}

	datasets, err := loader.Load(paths...)
	if err != nil {
		return fmt.Errorf("failed to load datasets: %w", err)
	}
	result, err := eng.Resolve(cmd.Context(), datasets)
	if err != nil {
		return fmt.Errorf("failed to resolve lineage: %w", err)
	}
	return renderResult(r, result)
}
