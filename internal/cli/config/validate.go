package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
)

// ErrUnsupportedPlatform is returned for a dataset_type_mapping key that is
// not a supported Power BI platform.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"auto", "text", "json", "markdown", "csv"}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.OutputFormat != "" && !slices.Contains(OutputFormats, c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q",
			strings.Join(OutputFormats, ", "), c.OutputFormat))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.LogLevel != "" {
		if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
			errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if err := validateDatasetTypeMapping(c.DatasetTypeMapping); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateDatasetTypeMapping(mapping map[string]PlatformDetail) error {
	var unknown []string
	for name := range mapping {
		if _, ok := resolver.PlatformByPowerBIName(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)

	var supported []string
	for _, p := range resolver.SupportedDataPlatforms() {
		supported = append(supported, p.PowerBIDataPlatformName)
	}
	return fmt.Errorf("dataset_type_mapping: %w %s (supported: %s)", ErrUnsupportedPlatform,
		strings.Join(unknown, ", "), strings.Join(supported, ", "))
}

// NewLogger builds the CLI logger. Verbose forces debug level.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	level, ok := logLevels[strings.ToLower(cfg.LogLevel)]
	if !ok {
		level = slog.LevelWarn
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
