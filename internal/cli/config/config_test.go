package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("datasets", "", "")
	fs.String("state", "", "")
	fs.StringP("output", "o", "", "")
	fs.Int("concurrency", 0, "")
	fs.Bool("native-query-parsing", true, "")
	fs.BoolP("verbose", "v", false, "")
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mlineage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultDatasetsDir, cfg.DatasetsDir)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.True(t, cfg.NativeQueryParsing)
	assert.True(t, cfg.ConvertLineageURNsToLowercase)
	assert.Empty(t, cfg.DatasetTypeMapping)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	defer ResetConfig()
	path := writeConfig(t, `datasets_dir: pbi
concurrency: 8
native_query_parsing: false
extra_data_access_functions:
  - MySQL.Database
dataset_type_mapping:
  PostgreSQL:
    platform_instance: pg_main
    env: DEV
  Snowflake:
    env: PROD
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "pbi", cfg.DatasetsDir)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.False(t, cfg.NativeQueryParsing)
	assert.Equal(t, []string{"MySQL.Database"}, cfg.ExtraDataAccessFunctions)
	assert.Equal(t, PlatformDetail{PlatformInstance: "pg_main", Env: "DEV"}, cfg.DatasetTypeMapping["PostgreSQL"])
	assert.Contains(t, cfg.DatasetTypeMapping, "Snowflake")
}

func TestLoadConfig_Precedence(t *testing.T) {
	defer ResetConfig()
	path := writeConfig(t, "datasets_dir: from-file\nstate_path: file.db\noutput: json\n")
	t.Setenv("MLINEAGE_STATE_PATH", "env.db")
	t.Setenv("MLINEAGE_OUTPUT", "csv")
	t.Setenv("MLINEAGE_EXTRA_DATA_ACCESS_FUNCTIONS", "MySQL.Database, Odbc.Query")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--output", "markdown", "--concurrency", "2"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.DatasetsDir)
	assert.Equal(t, "env.db", cfg.StatePath)
	assert.Equal(t, "markdown", cfg.OutputFormat)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, []string{"MySQL.Database", "Odbc.Query"}, cfg.ExtraDataAccessFunctions)
}

func TestLoadConfig_MappedFlags(t *testing.T) {
	defer ResetConfig()
	t.Chdir(t.TempDir())

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--datasets", "d", "--state", "s.db", "--native-query-parsing=false"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "d", cfg.DatasetsDir)
	assert.Equal(t, "s.db", cfg.StatePath)
	assert.False(t, cfg.NativeQueryParsing)
}

func TestLoadConfig_Errors(t *testing.T) {
	defer ResetConfig()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	_, err = LoadConfig(writeConfig(t, "dataset_type_mapping:\n  MySQL:\n    env: DEV\n"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
	assert.Nil(t, GetCurrentConfig())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{OutputFormat: "auto", Concurrency: 1, LogLevel: "info", LogFormat: "text"}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad output", mutate: func(c *Config) { c.OutputFormat = "xml" }, errSubstr: "output must be one of"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, errSubstr: "concurrency must be positive"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, errSubstr: "unknown log_level"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, errSubstr: "log_format"},
		{
			name: "unknown platforms",
			mutate: func(c *Config) {
				c.DatasetTypeMapping = map[string]PlatformDetail{"MySQL": {}, "Access": {}, "Sql": {}}
			},
			errSubstr: "unsupported platform Access, MySQL",
		},
		{
			name: "known platforms",
			mutate: func(c *Config) {
				c.DatasetTypeMapping = map[string]PlatformDetail{"Sql": {}, "Databricks": {}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger = NewLogger(&Config{LogLevel: "error", Verbose: true}, &buf)
	logger.Debug("debugging")
	assert.Contains(t, buf.String(), "msg=debugging")
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := NewLogger(&Config{}, &bytes.Buffer{})
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}
