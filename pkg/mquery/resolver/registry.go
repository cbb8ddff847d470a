package resolver

import (
	"slices"
)

// FunctionName is the name of a recognized M data-access function.
type FunctionName string

// Recognized data-access functions.
const (
	NativeQuery          FunctionName = "Value.NativeQuery"
	PostgresDataAccess   FunctionName = "PostgreSQL.Database"
	OracleDataAccess     FunctionName = "Oracle.Database"
	SnowflakeDataAccess  FunctionName = "Snowflake.Databases"
	MSSQLDataAccess      FunctionName = "Sql.Database"
	DatabricksDataAccess FunctionName = "Databricks.Catalogs"
	BigQueryDataAccess   FunctionName = "GoogleBigQuery.Database"
	RedshiftDataAccess   FunctionName = "AmazonRedshift.Database"
)

// SupportedResolver binds a data-access function to its table creator.
type SupportedResolver struct {
	Name     string
	Function FunctionName
	Creator  TableCreator
}

// supportedResolvers is the fixed registry, in lookup order.
var supportedResolvers = []SupportedResolver{
	{Name: "DATABRICK_QUERY", Function: DatabricksDataAccess, Creator: databricksCreator{}},
	{Name: "POSTGRES_SQL", Function: PostgresDataAccess, Creator: twoStepCreator{pair: PostgresPlatform}},
	{Name: "ORACLE", Function: OracleDataAccess, Creator: oracleCreator{}},
	{Name: "SNOWFLAKE", Function: SnowflakeDataAccess, Creator: threeStepCreator{pair: SnowflakePlatform}},
	{Name: "MS_SQL", Function: MSSQLDataAccess, Creator: msSQLCreator{}},
	{Name: "GOOGLE_BIG_QUERY", Function: BigQueryDataAccess, Creator: threeStepCreator{pair: BigQueryPlatform, serverFromAccessor: true}},
	{Name: "AMAZON_REDSHIFT", Function: RedshiftDataAccess, Creator: redshiftCreator{}},
	{Name: "NATIVE_QUERY", Function: NativeQuery, Creator: nativeQueryCreator{}},
}

var resolversByFunction = func() map[FunctionName]SupportedResolver {
	m := make(map[FunctionName]SupportedResolver, len(supportedResolvers))
	for _, r := range supportedResolvers {
		m[r.Function] = r
	}
	return m
}()

// GetResolver returns the resolver registered for a function name.
func GetResolver(functionName string) (SupportedResolver, bool) {
	r, ok := resolversByFunction[FunctionName(functionName)]
	return r, ok
}

// SupportedResolvers returns every registered resolver in lookup order.
func SupportedResolvers() []SupportedResolver {
	return slices.Clone(supportedResolvers)
}

// FunctionNames returns the recognized data-access function names.
func FunctionNames() []string {
	names := make([]string, len(supportedResolvers))
	for i, r := range supportedResolvers {
		names[i] = string(r.Function)
	}
	return names
}
