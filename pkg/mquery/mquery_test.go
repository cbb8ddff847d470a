package mquery

import (
	"errors"
	"testing"

	"github.com/ssogunle-tc/datahub/pkg/mquery/parser"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUpstreamTables(t *testing.T) {
	reporter := resolver.NewCollectingReporter()
	tables := GetUpstreamTables("hr.employees", `let
    Source = Oracle.Database("db.example.com:1521/hr.example.com"),
    HR = Source{[Schema="HR"]}[Data],
    EMPLOYEES = HR{[Name="EMPLOYEES"]}[Data]
in
    EMPLOYEES`, reporter)

	assert.Zero(t, reporter.Len())
	require.Len(t, tables, 1)
	assert.Equal(t, "hr.HR.EMPLOYEES", tables[0].FullName)
	assert.Equal(t, "db.example.com:1521", tables[0].DatasourceServer)
}

func TestGetUpstreamTables_ParseError(t *testing.T) {
	reporter := resolver.NewCollectingReporter()
	tables := GetUpstreamTables("hr.employees", `let Source = in Source`, reporter)

	assert.Empty(t, tables)
	warnings := reporter.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "hr.employees-parse-error", warnings[0].Key)
	assert.Contains(t, warnings[0].Message, "parse error at line 1")
}

func TestGetUpstreamTables_NilReporter(t *testing.T) {
	assert.NotPanics(t, func() {
		GetUpstreamTables("t", "", nil)
	})
}

func TestParse(t *testing.T) {
	_, err := Parse("  \n")
	assert.True(t, errors.Is(err, ErrNoExpression))

	_, err = Parse(`"unterminated`)
	var lexErr *parser.LexError
	assert.True(t, errors.As(err, &lexErr))

	root, err := Parse(`Source`)
	require.NoError(t, err)
	assert.NotNil(t, root)
}
