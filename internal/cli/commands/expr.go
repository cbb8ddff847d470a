package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssogunle-tc/datahub/internal/engine"
	"github.com/ssogunle-tc/datahub/internal/loader"
	"github.com/ssogunle-tc/datahub/pkg/mquery"
	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// NewExprCommand creates the expr command.
func NewExprCommand() *cobra.Command {
	var (
		file      string
		table     string
		params    map[string]string
		printTree bool
	)

	cmd := &cobra.Command{
		Use:   "expr",
		Short: "Resolve a single M expression",
		Long: `Resolve the upstream tables of one Power Query M expression read from
--file or standard input. Parameters referenced by the expression are
supplied with --param.`,
		Example: `  # Resolve an expression from a file
  mlineage expr --file orders.m --param ServerName=db.example.com

  # Resolve from stdin and show the parse tree
  cat orders.m | mlineage expr --tree`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExpr(cmd, file, table, params, printTree)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the expression from a file (default: stdin)")
	cmd.Flags().StringVar(&table, "table", "expr.table", "Full name of the table the expression belongs to")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Query parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&printTree, "tree", false, "Print the parse tree before resolving")

	return cmd
}

func runExpr(cmd *cobra.Command, file, table string, params map[string]string, printTree bool) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	expression, err := readExpression(cmd.InOrStdin(), file)
	if err != nil {
		return err
	}

	if printTree {
		root, err := mquery.Parse(expression)
		if err != nil {
			return err
		}
		r.Println(tree.Pretty(root))
	}

	dataset, name, _ := strings.Cut(table, ".")
	if name == "" {
		dataset, name = "expr", table
	}
	ds := &loader.Dataset{Name: dataset, Parameters: params}
	tr := newEngine(cmdCtx.Cfg, cmdCtx.Logger, nil).ResolveTable(ds, loader.Table{
		Name:       name,
		Expression: expression,
		FullName:   table,
	})
	return renderResult(r, &engine.Result{Tables: []engine.TableResult{tr}})
}

func readExpression(stdin io.Reader, file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file) //nolint:gosec // G304: file is given on the command line
		if err != nil {
			return "", fmt.Errorf("failed to read expression: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read expression from stdin: %w", err)
	}
	return string(b), nil
}
