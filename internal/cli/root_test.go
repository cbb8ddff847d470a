package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ssogunle-tc/datahub/internal/cli/config"
	"github.com/ssogunle-tc/datahub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesDataset = `dataset: sales
parameters:
  ServerName: pg.example.com
tables:
  - name: orders
    expression: |
      let
          Source = PostgreSQL.Database(ServerName, "Sales"),
          Orders = Source{[Schema="Public",Item="Orders"]}[Data]
      in
          Orders
  - name: broken
    expression: "let Source = in Source"
`

const ordersExpr = `let
    Source = Sql.Database("sql.example.com", "Finance"),
    Ledger = Source{[Schema="dbo",Item="Ledger"]}[Data]
in
    Ledger`

type resultOutput struct {
	RunID  string `json:"run_id"`
	Tables []struct {
		Table     string `json:"table"`
		Upstreams []struct {
			FullName         string `json:"full_name"`
			DatasourceServer string `json:"datasource_server"`
			Platform         string `json:"platform"`
			Env              string `json:"env"`
		} `json:"upstreams"`
		Warnings []struct {
			Key string `json:"key"`
		} `json:"warnings"`
	} `json:"tables"`
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestResolveCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sales.yaml", salesDataset)

	out, _, err := execute(t, "", "resolve", dir, "-o", "json")
	require.NoError(t, err)

	var result resultOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Tables, 2)
	assert.Empty(t, result.RunID)

	orders := result.Tables[0]
	assert.Equal(t, "sales.orders", orders.Table)
	require.Len(t, orders.Upstreams, 1)
	assert.Equal(t, "sales.public.orders", orders.Upstreams[0].FullName)
	assert.Equal(t, "pg.example.com", orders.Upstreams[0].DatasourceServer)
	assert.Equal(t, "postgres", orders.Upstreams[0].Platform)
	assert.Equal(t, "PROD", orders.Upstreams[0].Env)

	broken := result.Tables[1]
	assert.Empty(t, broken.Upstreams)
	require.Len(t, broken.Warnings, 1)
	assert.Equal(t, "sales.broken-parse-error", broken.Warnings[0].Key)
}

func TestResolveCommand_Markdown(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sales.yaml", salesDataset)

	out, _, err := execute(t, "", "resolve", dir, "--convert-lineage-urns-to-lowercase=false")
	require.NoError(t, err)

	assert.Contains(t, out, "# Lineage (2 tables, 1 upstreams)")
	assert.Contains(t, out, "Sales.Public.Orders")
	assert.Contains(t, out, "## Warnings (1)")
	assert.Contains(t, out, "`sales.broken-parse-error`")
}

func TestResolveCommand_MissingDir(t *testing.T) {
	_, _, err := execute(t, "", "resolve", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load datasets")
}

func TestResolveCommand_SaveAndShow(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sales.yaml", salesDataset)
	statePath := filepath.Join(t.TempDir(), "state", "state.db")

	out, _, err := execute(t, "", "resolve", dir, "--save", "--state", statePath, "-o", "json")
	require.NoError(t, err)
	var saved resultOutput
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.NotEmpty(t, saved.RunID)

	out, _, err = execute(t, "", "runs", "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "# Runs (1)")
	assert.Contains(t, out, saved.RunID)

	out, _, err = execute(t, "", "show", "--state", statePath, "-o", "json")
	require.NoError(t, err)
	var shown resultOutput
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, saved.RunID, shown.RunID)
	require.Len(t, shown.Tables, 2)
	assert.Equal(t, "sales.public.orders", shown.Tables[0].Upstreams[0].FullName)
	assert.Equal(t, "sales.broken-parse-error", shown.Tables[1].Warnings[0].Key)

	out, _, err = execute(t, "", "show", saved.RunID, "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "# Run "+saved.RunID)
	assert.Contains(t, out, "- **Status**: completed")
}

func TestShowCommand_NoRuns(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")

	_, _, err := execute(t, "", "show", "--state", statePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no runs found")

	out, _, err := execute(t, "", "runs", "--state", statePath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found")
}

func TestExprCommand(t *testing.T) {
	out, _, err := execute(t, ordersExpr, "expr", "--table", "finance.ledger", "-o", "json")
	require.NoError(t, err)

	var result resultOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Tables, 1)
	assert.Equal(t, "finance.ledger", result.Tables[0].Table)
	require.Len(t, result.Tables[0].Upstreams, 1)
	assert.Equal(t, "finance.dbo.ledger", result.Tables[0].Upstreams[0].FullName)
	assert.Equal(t, "mssql", result.Tables[0].Upstreams[0].Platform)
}

func TestExprCommand_FileAndParams(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "orders.m", `let
    Source = PostgreSQL.Database(Host, "Sales"),
    Orders = Source{[Schema="public",Item="orders"]}[Data]
in
    Orders`)

	out, _, err := execute(t, "", "expr", "--file", path, "--param", "Host=pg.internal", "--tree", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "sales.public.orders")
	assert.Contains(t, out, "pg.internal")
}

func TestExprCommand_ParseErrorWithTree(t *testing.T) {
	_, _, err := execute(t, "let Source = in Source", "expr", "--tree")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse M expression")
}

func TestFunctionsCommand(t *testing.T) {
	out, _, err := execute(t, "", "functions", "-o", "json")
	require.NoError(t, err)

	var functions []struct {
		Name      string   `json:"name"`
		Function  string   `json:"function"`
		Platforms []string `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &functions))
	require.Len(t, functions, 8)
	assert.Equal(t, "DATABRICK_QUERY", functions[0].Name)
	assert.Equal(t, "Databricks.Catalogs", functions[0].Function)
	assert.Equal(t, "NATIVE_QUERY", functions[7].Name)
	assert.Contains(t, functions[7].Platforms, "snowflake")
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, _, err := execute(t, "", "functions", "--output", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "mlineage")
}
