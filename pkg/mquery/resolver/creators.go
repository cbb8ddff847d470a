package resolver

import (
	"strings"

	"github.com/ssogunle-tc/datahub/pkg/mquery/navigator"
	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// TableCreator turns one data-access invocation into platform tables.
// Implementations are stateless and report problems through the session
// instead of failing. The interface is sealed; the registry holds the only
// implementations.
type TableCreator interface {
	// Platforms lists the platforms the creator can produce tables for.
	Platforms() []DataPlatformPair
	// CreateTables returns the tables referenced by detail, or nil.
	CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable

	tableCreator()
}

// defaultMSSQLSchema is assumed for unqualified names in MS-SQL queries.
const defaultMSSQLSchema = "dbo"

// nativeQueryPlatforms maps a connector function prefix to its platform.
var nativeQueryPlatforms = map[string]DataPlatformPair{
	SnowflakePlatform.PowerBIDataPlatformName: SnowflakePlatform,
	RedshiftPlatform.PowerBIDataPlatformName:  RedshiftPlatform,
}

type sealed struct{}

func (sealed) tableCreator() {}

func fullName(parts ...string) string {
	return strings.Join(parts, ".")
}

// serverAndDatabase reads the first two literal arguments.
func serverAndDatabase(s *Session, pair DataPlatformPair, args []string) (server, database string, ok bool) {
	if len(args) < 2 {
		s.Warn(pair.DataHubDataPlatformName,
			"expected server and database arguments for %s, got %d", pair.PowerBIDataPlatformName, len(args))
		return "", "", false
	}
	return args[0], args[1], true
}

// twoStepCreator handles Source{[Schema=..., Item=...]} navigation over a
// server/database connection (PostgreSQL, MS-SQL).
type twoStepCreator struct {
	sealed
	pair DataPlatformPair
}

func (c twoStepCreator) Platforms() []DataPlatformPair {
	return []DataPlatformPair{c.pair}
}

func (c twoStepCreator) CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable {
	return twoLevelAccess(s, c.pair, detail, s.Arguments(detail.ArgList))
}

func twoLevelAccess(s *Session, pair DataPlatformPair, detail DataAccessFunctionDetail, args []string) []DataPlatformTable {
	server, database, ok := serverAndDatabase(s, pair, args)
	if !ok {
		return nil
	}
	head := detail.IdentifierAccessor
	schema, okSchema := head.Item("Schema")
	table, okTable := head.Item("Item")
	if !okSchema || !okTable {
		s.Warn(pair.DataHubDataPlatformName,
			"expected Schema and Item selectors after %s, table not resolved", detail.DataAccessFunctionName)
		return nil
	}
	return []DataPlatformTable{{
		Name:             table,
		FullName:         fullName(database, schema, table),
		DatasourceServer: server,
		DataPlatformPair: pair,
	}}
}

// msSQLCreator handles Sql.Database, either navigated like PostgreSQL or
// with an embedded [Query="..."] option.
type msSQLCreator struct {
	sealed
}

func (msSQLCreator) Platforms() []DataPlatformPair {
	return []DataPlatformPair{MSSQLPlatform}
}

func (c msSQLCreator) CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable {
	args := s.Arguments(detail.ArgList)
	switch {
	case len(args) == 2:
		return twoLevelAccess(s, MSSQLPlatform, detail, args)
	case len(args) >= 4 && args[2] == "Query":
		return c.queryTables(s, args[0], args[1], args[3])
	}
	s.Warn(MSSQLPlatform.DataHubDataPlatformName,
		"unsupported %s argument shape (%d arguments)", detail.DataAccessFunctionName, len(args))
	return nil
}

func (msSQLCreator) queryTables(s *Session, server, database, query string) []DataPlatformTable {
	names, err := s.Extractor.Tables(query)
	if err != nil {
		s.Warn(MSSQLPlatform.DataHubDataPlatformName, "failed to extract tables from query: %v", err)
		return nil
	}

	var tables []DataPlatformTable
	for _, name := range names {
		parts := strings.Split(name, ".")
		var t DataPlatformTable
		switch len(parts) {
		case 1:
			t = DataPlatformTable{Name: parts[0], FullName: fullName(database, defaultMSSQLSchema, parts[0])}
		case 2:
			t = DataPlatformTable{Name: parts[1], FullName: fullName(database, parts[0], parts[1])}
		case 3:
			t = DataPlatformTable{Name: parts[2], FullName: name}
		default:
			s.Logger.Debug("skipping table name with unexpected parts", "table", name)
			continue
		}
		t.DatasourceServer = server
		t.DataPlatformPair = MSSQLPlatform
		tables = append(tables, t)
	}
	return tables
}

// oracleCreator handles Oracle.Database("host:port/service[.domain]").
type oracleCreator struct {
	sealed
}

func (oracleCreator) Platforms() []DataPlatformPair {
	return []DataPlatformPair{OraclePlatform}
}

func (oracleCreator) CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable {
	category := OraclePlatform.DataHubDataPlatformName
	args := s.Arguments(detail.ArgList)
	if len(args) == 0 {
		s.Warn(category, "missing connection argument for %s", detail.DataAccessFunctionName)
		return nil
	}
	parts := strings.Split(args[0], "/")
	if len(parts) != 2 {
		s.Warn(category, "expected <host>:<port>/<service> in %q", args[0])
		return nil
	}
	server := parts[0]
	database, _, _ := strings.Cut(parts[1], ".")

	head := detail.IdentifierAccessor
	schema, okSchema := head.Item("Schema")
	table, okTable := head.At(1).Item("Name")
	if !okSchema || !okTable {
		s.Warn(category, "expected Schema and Name selectors after %s, table not resolved", detail.DataAccessFunctionName)
		return nil
	}
	return []DataPlatformTable{{
		Name:             table,
		FullName:         fullName(database, schema, table),
		DatasourceServer: server,
		DataPlatformPair: OraclePlatform,
	}}
}

// databricksCreator handles Databricks.Catalogs, whose navigation frames
// carry {Kind, Name} pairs.
type databricksCreator struct {
	sealed
}

func (databricksCreator) Platforms() []DataPlatformPair {
	return []DataPlatformPair{DatabricksPlatform}
}

func (databricksCreator) CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable {
	category := DatabricksPlatform.DataHubDataPlatformName
	names := make(map[string]string)
	for f := detail.IdentifierAccessor; f != nil; f = f.Next {
		kind, okKind := f.Item("Kind")
		name, okName := f.Item("Name")
		if !okKind || !okName {
			s.Warn(category, "selector on %s lacks Kind or Name, table not resolved", displayName(f.Identifier))
			return nil
		}
		names[kind] = name
	}

	database, okDatabase := names["Database"]
	schema, okSchema := names["Schema"]
	table, okTable := names["Table"]
	if !okDatabase || !okSchema || !okTable {
		s.Warn(category, "expected Database, Schema and Table selectors after %s", detail.DataAccessFunctionName)
		return nil
	}

	var server string
	if args := s.Arguments(detail.ArgList); len(args) > 0 {
		server = args[0]
	}
	return []DataPlatformTable{{
		Name:             table,
		FullName:         fullName(database, schema, table),
		DatasourceServer: server,
		DataPlatformPair: DatabricksPlatform,
	}}
}

// threeStepCreator handles database → schema → table navigation through
// [Name=...] selectors (Snowflake, BigQuery).
type threeStepCreator struct {
	sealed
	pair DataPlatformPair
	// serverFromAccessor takes the server from the database selector
	// (the BigQuery project) instead of the first argument.
	serverFromAccessor bool
}

func (c threeStepCreator) Platforms() []DataPlatformPair {
	return []DataPlatformPair{c.pair}
}

func (c threeStepCreator) CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable {
	category := c.pair.DataHubDataPlatformName
	head := detail.IdentifierAccessor
	database, okDatabase := head.Item("Name")
	schema, okSchema := head.At(1).Item("Name")
	table, okTable := head.At(2).Item("Name")
	if !okDatabase || !okSchema || !okTable {
		s.Warn(category, "expected database, schema and table Name selectors after %s, found %d",
			detail.DataAccessFunctionName, head.Len())
		return nil
	}

	server := database
	if !c.serverFromAccessor {
		args := s.Arguments(detail.ArgList)
		if len(args) == 0 {
			s.Warn(category, "missing server argument for %s", detail.DataAccessFunctionName)
			return nil
		}
		server = args[0]
	}
	return []DataPlatformTable{{
		Name:             table,
		FullName:         fullName(database, schema, table),
		DatasourceServer: server,
		DataPlatformPair: c.pair,
	}}
}

// redshiftCreator handles AmazonRedshift.Database(server, db) followed by
// schema and table [Name=...] selectors.
type redshiftCreator struct {
	sealed
}

func (redshiftCreator) Platforms() []DataPlatformPair {
	return []DataPlatformPair{RedshiftPlatform}
}

func (redshiftCreator) CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable {
	server, database, ok := serverAndDatabase(s, RedshiftPlatform, s.Arguments(detail.ArgList))
	if !ok {
		return nil
	}
	head := detail.IdentifierAccessor
	schema, okSchema := head.Item("Name")
	table, okTable := head.At(1).Item("Name")
	if !okSchema || !okTable {
		s.Warn(RedshiftPlatform.DataHubDataPlatformName,
			"expected schema and table Name selectors after %s", detail.DataAccessFunctionName)
		return nil
	}
	return []DataPlatformTable{{
		Name:             table,
		FullName:         fullName(database, schema, table),
		DatasourceServer: server,
		DataPlatformPair: RedshiftPlatform,
	}}
}

// nativeQueryCreator handles Value.NativeQuery(connector, sql, ...). The
// platform comes from the connector function, so one creator serves every
// platform in nativeQueryPlatforms.
type nativeQueryCreator struct {
	sealed
}

func (nativeQueryCreator) Platforms() []DataPlatformPair {
	return []DataPlatformPair{SnowflakePlatform, RedshiftPlatform}
}

func (c nativeQueryCreator) CreateTables(s *Session, detail DataAccessFunctionDetail) []DataPlatformTable {
	args := navigator.FlatArgumentList(detail.ArgList)
	// Arguments past the query (parameters, [EnableFolding=true]) do not
	// change the tables read, so only the first two are required.
	if len(args) < 2 {
		s.Warn(WarnNativeQuery, "expected connector and query arguments, got %d", len(args))
		return nil
	}

	connector := navigator.FirstInvokeExpression(args[0])
	if connector == nil {
		s.Warn(WarnNativeQuery, "first argument of %s is not a connector invocation", detail.DataAccessFunctionName)
		return nil
	}
	function := navigator.MakeFunctionName(navigator.Callee(connector))
	tag, _, _ := strings.Cut(function, ".")
	pair, ok := nativeQueryPlatforms[tag]
	if !ok {
		s.Warn(WarnNativeQuery, "unsupported native query platform %s", displayName(tag))
		return nil
	}

	connectorArgs := s.Arguments(navigator.ArgumentList(connector))
	if len(connectorArgs) == 0 {
		s.Warn(WarnNativeQuery, "missing server argument for %s", function)
		return nil
	}
	server := connectorArgs[0]

	query := queryText(args[1], s.Parameters)
	if query == "" {
		s.Warn(WarnNativeQuery, "empty query text for %s", detail.DataAccessFunctionName)
		return nil
	}
	names, err := s.Extractor.Tables(query)
	if err != nil {
		s.Warn(WarnNativeQuery, "failed to extract tables from query: %v", err)
		return nil
	}

	var tables []DataPlatformTable
	for _, name := range names {
		parts := strings.Split(name, ".")
		if len(parts) != 3 {
			s.Logger.Debug("skipping table name without database and schema", "table", name)
			continue
		}
		tables = append(tables, DataPlatformTable{
			Name:             parts[2],
			FullName:         name,
			DatasourceServer: server,
			DataPlatformPair: pair,
		})
	}
	return tables
}

// queryText returns the SQL of a query argument; "a" & "b" concatenations
// of literals are joined.
func queryText(arg tree.Node, parameters map[string]string) string {
	var sb strings.Builder
	for _, v := range navigator.StripChars(navigator.TokenValues(arg, parameters)) {
		if v == "&" {
			continue
		}
		sb.WriteString(v)
	}
	return strings.TrimSpace(sb.String())
}
