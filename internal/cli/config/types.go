// Package config provides configuration management for the mlineage CLI.
package config

// PlatformDetail places the upstreams of one Power BI platform in DataHub.
type PlatformDetail struct {
	PlatformInstance string `koanf:"platform_instance"`
	Env              string `koanf:"env"`
}

// Config holds all CLI configuration options.
type Config struct {
	DatasetsDir  string `koanf:"datasets_dir"`
	StatePath    string `koanf:"state_path"`
	OutputFormat string `koanf:"output"`
	Verbose      bool   `koanf:"verbose"`
	LogLevel     string `koanf:"log_level"`
	LogFormat    string `koanf:"log_format"`
	Concurrency  int    `koanf:"concurrency"`

	NativeQueryParsing            bool                      `koanf:"native_query_parsing"`
	ConvertLineageURNsToLowercase bool                      `koanf:"convert_lineage_urns_to_lowercase"`
	ExtraDataAccessFunctions      []string                  `koanf:"extra_data_access_functions"`
	DatasetTypeMapping            map[string]PlatformDetail `koanf:"dataset_type_mapping"`
}

// Default configuration values.
const (
	DefaultDatasetsDir = "datasets"
	DefaultStateFile   = ".mlineage/state.db"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	DefaultConcurrency = 4
)

// EnvPrefix prefixes environment variables read as configuration.
const EnvPrefix = "MLINEAGE_"

// Defaults returns the configuration defaults as a flat key map.
func Defaults() map[string]any {
	return map[string]any{
		"datasets_dir":                      DefaultDatasetsDir,
		"state_path":                        DefaultStateFile,
		"output":                            DefaultOutput,
		"verbose":                           false,
		"log_level":                         DefaultLogLevel,
		"log_format":                        DefaultLogFormat,
		"concurrency":                       DefaultConcurrency,
		"native_query_parsing":              true,
		"convert_lineage_urns_to_lowercase": true,
	}
}
