package resolver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Order(t *testing.T) {
	var names []string
	for _, r := range SupportedResolvers() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"DATABRICK_QUERY",
		"POSTGRES_SQL",
		"ORACLE",
		"SNOWFLAKE",
		"MS_SQL",
		"GOOGLE_BIG_QUERY",
		"AMAZON_REDSHIFT",
		"NATIVE_QUERY",
	}, names)
}

func TestRegistry_FunctionNames(t *testing.T) {
	assert.Equal(t, []string{
		"Databricks.Catalogs",
		"PostgreSQL.Database",
		"Oracle.Database",
		"Snowflake.Databases",
		"Sql.Database",
		"GoogleBigQuery.Database",
		"AmazonRedshift.Database",
		"Value.NativeQuery",
	}, FunctionNames())
}

func TestGetResolver(t *testing.T) {
	tests := []struct {
		function string
		name     string
		platform DataPlatformPair
	}{
		{"PostgreSQL.Database", "POSTGRES_SQL", PostgresPlatform},
		{"Sql.Database", "MS_SQL", MSSQLPlatform},
		{"Oracle.Database", "ORACLE", OraclePlatform},
		{"Snowflake.Databases", "SNOWFLAKE", SnowflakePlatform},
		{"GoogleBigQuery.Database", "GOOGLE_BIG_QUERY", BigQueryPlatform},
		{"AmazonRedshift.Database", "AMAZON_REDSHIFT", RedshiftPlatform},
		{"Databricks.Catalogs", "DATABRICK_QUERY", DatabricksPlatform},
		{"Value.NativeQuery", "NATIVE_QUERY", SnowflakePlatform},
	}

	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			r, ok := GetResolver(tt.function)
			require.True(t, ok)
			assert.Equal(t, tt.name, r.Name)
			assert.Equal(t, FunctionName(tt.function), r.Function)
			require.NotNil(t, r.Creator)
			assert.Contains(t, r.Creator.Platforms(), tt.platform)
		})
	}

	_, ok := GetResolver("MySQL.Database")
	assert.False(t, ok)
	_, ok = GetResolver("")
	assert.False(t, ok)
}

func TestSupportedResolvers_ReturnsCopy(t *testing.T) {
	resolvers := SupportedResolvers()
	resolvers[0].Name = "changed"

	assert.Equal(t, "DATABRICK_QUERY", SupportedResolvers()[0].Name)
}

func TestPlatformByPowerBIName(t *testing.T) {
	p, ok := PlatformByPowerBIName("Sql")
	require.True(t, ok)
	assert.Equal(t, "mssql", p.DataHubDataPlatformName)

	_, ok = PlatformByPowerBIName("mssql")
	assert.False(t, ok)
	assert.Len(t, SupportedDataPlatforms(), 7)
}

func TestIdentifierAccessor(t *testing.T) {
	var chain *IdentifierAccessor
	assert.Equal(t, 0, chain.Len())
	assert.Nil(t, chain.Clone())
	_, ok := chain.Item("Name")
	assert.False(t, ok)

	chain = prepend(chain, "Table", map[string]string{"Name": "t"})
	chain = prepend(chain, "Source", map[string]string{"Name": "db"})
	require.Equal(t, 2, chain.Len())

	clone := chain.Clone()
	require.Equal(t, 2, clone.Len())
	clone.At(1).Items["Name"] = "other"
	assert.Equal(t, "t", chain.At(1).Items["Name"])
	assert.NotSame(t, chain.At(1), clone.At(1))

	v, ok := chain.Item("Name")
	assert.True(t, ok)
	assert.Equal(t, "db", v)
}

func TestCollectingReporter_Concurrent(t *testing.T) {
	r := NewCollectingReporter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ReportWarning("k", "m")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
	assert.Len(t, r.Warnings(), 50)
}

func TestTeeReporter(t *testing.T) {
	a := NewCollectingReporter()
	b := NewCollectingReporter()
	tee := TeeReporter(a, nil, b, NewSlogReporter(nil))

	tee.ReportWarning("t-key", "message")

	assert.Equal(t, []Warning{{Key: "t-key", Message: "message"}}, a.Warnings())
	assert.Equal(t, a.Warnings(), b.Warnings())
}
