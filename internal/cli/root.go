// Package cli provides the command-line interface for mlineage.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssogunle-tc/datahub/internal/cli/commands"
	"github.com/ssogunle-tc/datahub/internal/cli/config"
	"github.com/ssogunle-tc/datahub/internal/cli/output"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mlineage",
		Short: "mlineage - Power BI M-expression lineage resolver",
		Long: `mlineage resolves the upstream database tables of Power BI dataset tables
by parsing their Power Query M expressions.

It recognizes PostgreSQL, Oracle, Snowflake, SQL Server, BigQuery, Redshift
and Databricks connectors, as well as native SQL passed through
Value.NativeQuery.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cfg, cmd.ErrOrStderr())
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, config.LoggerKey(), logger))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Power BI M-expression lineage resolver
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./mlineage.yaml)")
	flags.String("datasets", "", "Path to datasets directory")
	flags.String("state", "", "Path to state database")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json|csv)")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")
	flags.Int("concurrency", 0, "Number of tables resolved in parallel")
	flags.Bool("native-query-parsing", true, "Extract tables from Value.NativeQuery SQL")
	flags.Bool("convert-lineage-urns-to-lowercase", true, "Lowercase upstream table names")
	flags.StringSlice("extra-data-access-functions", nil, "Additional M functions treated as data access")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("extra-data-access-functions", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return resolver.FunctionNames(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewResolveCommand())
	rootCmd.AddCommand(commands.NewExprCommand())
	rootCmd.AddCommand(commands.NewFunctionsCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(commands.NewShowCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto).Error(err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for mlineage.

To load completions:

Bash:
  $ source <(mlineage completion bash)

Zsh:
  $ mlineage completion zsh > "${fpath[1]}/_mlineage"

Fish:
  $ mlineage completion fish | source

PowerShell:
  PS> mlineage completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
	return cmd
}
