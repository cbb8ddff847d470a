// Package mquery resolves the upstream platform tables of Power Query M
// table expressions.
//
// It is the entry point tying the M parser to the lineage resolver:
//
//	reporter := resolver.NewCollectingReporter()
//	tables := mquery.GetUpstreamTables("sales.orders", expression, reporter,
//	    resolver.WithParameters(params))
//
// Syntax errors are not fatal; they are reported as "<table>-parse-error"
// warnings and the table resolves to no upstreams.
package mquery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ssogunle-tc/datahub/pkg/mquery/parser"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// WarnParseError is the warning category for expressions that do not parse.
const WarnParseError = "parse-error"

// ErrNoExpression is returned for a table without an M expression.
var ErrNoExpression = errors.New("table has no expression")

// Parse parses the expression of a table.
func Parse(expression string) (*tree.Branch, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, ErrNoExpression
	}
	root, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse M expression: %w", err)
	}
	return root, nil
}

// GetUpstreamTables parses expression and resolves the tables it reads.
func GetUpstreamTables(fullName, expression string, reporter resolver.Reporter, opts ...resolver.Option) []resolver.DataPlatformTable {
	if reporter == nil {
		reporter = resolver.TeeReporter()
	}
	root, err := Parse(expression)
	if err != nil {
		reporter.ReportWarning(fullName+"-"+WarnParseError, err.Error())
		return nil
	}
	return resolver.NewMQueryResolver(fullName, root, reporter, opts...).ResolveToDataPlatformTables()
}
