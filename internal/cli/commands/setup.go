// Package commands implements the mlineage subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssogunle-tc/datahub/internal/cli/config"
	"github.com/ssogunle-tc/datahub/internal/cli/output"
	"github.com/ssogunle-tc/datahub/internal/engine"
	"github.com/ssogunle-tc/datahub/internal/state"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
)

// CommandContext holds what a command needs to run.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// getConfig returns the current configuration, or the defaults when none
// was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		DatasetsDir:                   config.DefaultDatasetsDir,
		StatePath:                     config.DefaultStateFile,
		OutputFormat:                  config.DefaultOutput,
		LogLevel:                      config.DefaultLogLevel,
		LogFormat:                     config.DefaultLogFormat,
		Concurrency:                   config.DefaultConcurrency,
		NativeQueryParsing:            true,
		ConvertLineageURNsToLowercase: true,
	}
}

// openStore opens and migrates the state database, creating its directory.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" && cfg.StatePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}
	return store, nil
}

// newEngine builds an engine from the configuration. store may be nil.
func newEngine(cfg *config.Config, logger *slog.Logger, store engine.Store) *engine.Engine {
	var mapping map[string]engine.PlatformDetail
	if len(cfg.DatasetTypeMapping) > 0 {
		mapping = make(map[string]engine.PlatformDetail, len(cfg.DatasetTypeMapping))
		for name, d := range cfg.DatasetTypeMapping {
			mapping[name] = engine.PlatformDetail{PlatformInstance: d.PlatformInstance, Env: d.Env}
		}
	}

	ecfg := engine.Config{
		Concurrency:                   cfg.Concurrency,
		DisableNativeQueryParsing:     !cfg.NativeQueryParsing,
		ConvertLineageURNsToLowercase: cfg.ConvertLineageURNsToLowercase,
		ExtraDataAccessFunctions:      cfg.ExtraDataAccessFunctions,
		DatasetTypeMapping:            mapping,
		Store:                         store,
		Reporter:                      resolver.NewSlogReporter(logger),
		Logger:                        logger,
	}
	return engine.New(ecfg)
}
