package resolver

// DataPlatformPair links a Power BI connector family to the catalog
// platform name its tables are reported under.
type DataPlatformPair struct {
	PowerBIDataPlatformName string `json:"powerbi_data_platform_name"`
	DataHubDataPlatformName string `json:"datahub_data_platform_name"`
}

// Known platforms.
var (
	PostgresPlatform   = DataPlatformPair{PowerBIDataPlatformName: "PostgreSQL", DataHubDataPlatformName: "postgres"}
	OraclePlatform     = DataPlatformPair{PowerBIDataPlatformName: "Oracle", DataHubDataPlatformName: "oracle"}
	SnowflakePlatform  = DataPlatformPair{PowerBIDataPlatformName: "Snowflake", DataHubDataPlatformName: "snowflake"}
	MSSQLPlatform      = DataPlatformPair{PowerBIDataPlatformName: "Sql", DataHubDataPlatformName: "mssql"}
	BigQueryPlatform   = DataPlatformPair{PowerBIDataPlatformName: "GoogleBigQuery", DataHubDataPlatformName: "bigquery"}
	RedshiftPlatform   = DataPlatformPair{PowerBIDataPlatformName: "AmazonRedshift", DataHubDataPlatformName: "redshift"}
	DatabricksPlatform = DataPlatformPair{PowerBIDataPlatformName: "Databricks", DataHubDataPlatformName: "databricks"}
)

// SupportedDataPlatforms lists every known platform in a stable order.
func SupportedDataPlatforms() []DataPlatformPair {
	return []DataPlatformPair{
		PostgresPlatform,
		OraclePlatform,
		SnowflakePlatform,
		MSSQLPlatform,
		BigQueryPlatform,
		RedshiftPlatform,
		DatabricksPlatform,
	}
}

// PlatformByPowerBIName looks up a platform by its Power BI name.
func PlatformByPowerBIName(name string) (DataPlatformPair, bool) {
	for _, p := range SupportedDataPlatforms() {
		if p.PowerBIDataPlatformName == name {
			return p, true
		}
	}
	return DataPlatformPair{}, false
}

// DataPlatformTable is an upstream physical table found for a logical table.
type DataPlatformTable struct {
	DataPlatformPair `json:"data_platform_pair"`

	Name             string `json:"name"`
	FullName         string `json:"full_name"`
	DatasourceServer string `json:"datasource_server"`
}
