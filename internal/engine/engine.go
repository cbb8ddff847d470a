// Package engine resolves the upstream lineage of whole Power BI datasets.
// It fans table resolution out over a bounded worker group, applies the
// platform mapping, and persists finished runs to the state store.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ssogunle-tc/datahub/internal/state"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
	"github.com/ssogunle-tc/datahub/pkg/nativesql"
)

// DefaultEnv is the environment assigned to upstreams whose platform has no
// explicit mapping.
const DefaultEnv = "PROD"

const (
	defaultConcurrency = 4
	defaultDebounce    = 100 * time.Millisecond
)

// PlatformDetail is the DataHub placement of an upstream platform.
type PlatformDetail struct {
	PlatformInstance string
	Env              string
}

// Store persists runs. *state.SQLiteStore implements it.
type Store interface {
	CreateRun(ctx context.Context) (*state.Run, error)
	CompleteRun(ctx context.Context, id string, status state.RunStatus, errMsg string) error
	SaveTableLineage(ctx context.Context, runID string, lineage []state.TableLineage) error
	SaveWarnings(ctx context.Context, runID string, warnings []state.Warning) error
}

// Config holds engine configuration.
type Config struct {
	// Concurrency bounds the number of tables resolved at once.
	Concurrency int
	// DisableNativeQueryParsing skips Value.NativeQuery invocations with a
	// warning. The zero value resolves them.
	DisableNativeQueryParsing bool
	// ConvertLineageURNsToLowercase lowercases upstream full names. Off in
	// the zero value.
	ConvertLineageURNsToLowercase bool
	// ExtraDataAccessFunctions are connector functions without a creator
	// that should still end traversal.
	ExtraDataAccessFunctions []string
	// DatasetTypeMapping keeps only the listed Power BI platforms, keyed by
	// their Power BI name. An empty mapping keeps every platform.
	DatasetTypeMapping map[string]PlatformDetail
	// Store persists runs (optional).
	Store Store
	// Extractor overrides the native SQL extractor (optional).
	Extractor nativesql.Extractor
	// Reporter receives every warning in addition to the per-table results
	// (optional). It must be safe for concurrent use.
	Reporter resolver.Reporter
	// WatchDebounce delays re-resolution after file changes.
	WatchDebounce time.Duration
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine resolves datasets.
type Engine struct {
	concurrency int
	nativeQuery bool
	lowercase   bool
	extra       []string
	mapping     map[string]PlatformDetail
	store       Store
	extractor   nativesql.Extractor
	reporter    resolver.Reporter
	debounce    time.Duration
	logger      *slog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	debounce := cfg.WatchDebounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = nativesql.New(nativesql.WithLogger(logger))
	}

	logger.Debug("initializing engine",
		"concurrency", concurrency,
		"native_query_parsing", !cfg.DisableNativeQueryParsing,
		"platforms", len(cfg.DatasetTypeMapping))

	return &Engine{
		concurrency: concurrency,
		nativeQuery: !cfg.DisableNativeQueryParsing,
		lowercase:   cfg.ConvertLineageURNsToLowercase,
		extra:       cfg.ExtraDataAccessFunctions,
		mapping:     cfg.DatasetTypeMapping,
		store:       cfg.Store,
		extractor:   extractor,
		reporter:    cfg.Reporter,
		debounce:    debounce,
		logger:      logger,
	}
}
