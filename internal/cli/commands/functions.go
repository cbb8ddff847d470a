package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssogunle-tc/datahub/internal/cli/output"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
)

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the recognized data-access functions",
		Long: `List the M data-access functions lineage can be resolved through, with
the platforms each one produces tables for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFunctions(cmd)
		},
	}
}

type functionJSON struct {
	Name      string   `json:"name"`
	Function  string   `json:"function"`
	Platforms []string `json:"platforms"`
}

func runFunctions(cmd *cobra.Command) error {
	r := NewCommandContext(cmd).Renderer

	var functions []functionJSON
	for _, sr := range resolver.SupportedResolvers() {
		f := functionJSON{Name: sr.Name, Function: string(sr.Function)}
		for _, p := range sr.Creator.Platforms() {
			f.Platforms = append(f.Platforms, p.DataHubDataPlatformName)
		}
		functions = append(functions, f)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(functions)
	}

	rows := make([][]string, 0, len(functions))
	for _, f := range functions {
		rows = append(rows, []string{f.Name, f.Function, strings.Join(f.Platforms, ", ")})
	}
	if r.EffectiveMode() != output.ModeCSV {
		r.Header(1, "Data-access functions")
	}
	r.Table([]string{"Resolver", "Function", "Platforms"}, rows)
	return nil
}
