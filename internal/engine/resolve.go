package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ssogunle-tc/datahub/internal/loader"
	"github.com/ssogunle-tc/datahub/internal/state"
	"github.com/ssogunle-tc/datahub/pkg/mquery"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
)

// Upstream is a resolved upstream table with its DataHub placement.
type Upstream struct {
	resolver.DataPlatformTable
	PlatformInstance string
	Env              string
}

// TableResult is the lineage of one Power BI table.
type TableResult struct {
	Dataset   string
	Table     string
	Upstreams []Upstream
	Warnings  []resolver.Warning
}

// Result is the outcome of resolving a batch of datasets.
type Result struct {
	// RunID is set when the run was persisted.
	RunID    string
	Tables   []TableResult
	Duration time.Duration
}

// UpstreamCount returns the number of upstreams across all tables.
func (r *Result) UpstreamCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Upstreams)
	}
	return n
}

// WarningCount returns the number of warnings across all tables.
func (r *Result) WarningCount() int {
	n := 0
	for _, t := range r.Tables {
		n += len(t.Warnings)
	}
	return n
}

// Resolve resolves every table of datasets. Results keep dataset and table
// order. If ctx is cancelled the batch is abandoned: nothing is returned or
// persisted.
func (e *Engine) Resolve(ctx context.Context, datasets []*loader.Dataset) (*Result, error) {
	start := time.Now()

	type job struct {
		dataset *loader.Dataset
		table   loader.Table
	}
	var jobs []job
	for _, ds := range datasets {
		for _, t := range ds.Tables {
			jobs = append(jobs, job{dataset: ds, table: t})
		}
	}

	e.logger.Debug("resolving datasets", "datasets", len(datasets), "tables", len(jobs))

	results := make([]TableResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.ResolveTable(j.dataset, j.table)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Tables: results, Duration: time.Since(start)}
	if e.store != nil {
		runID, err := e.persist(ctx, result)
		if err != nil {
			return nil, err
		}
		result.RunID = runID
	}

	e.logger.Info("resolved lineage",
		"tables", len(result.Tables),
		"upstreams", result.UpstreamCount(),
		"warnings", result.WarningCount(),
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// ResolveTable resolves a single table of ds.
func (e *Engine) ResolveTable(ds *loader.Dataset, t loader.Table) TableResult {
	fullName := t.FullName
	if fullName == "" {
		fullName = ds.Name + "." + t.Name
	}

	collector := resolver.NewCollectingReporter()
	var reporter resolver.Reporter = collector
	if e.reporter != nil {
		reporter = resolver.TeeReporter(collector, e.reporter)
	}

	tables := mquery.GetUpstreamTables(fullName, t.Expression, reporter,
		resolver.WithParameters(ds.Parameters),
		resolver.WithLogger(e.logger.With("table", fullName)),
		resolver.WithExtractor(e.extractor),
		resolver.WithNativeQueryParsing(e.nativeQuery),
		resolver.WithDataAccessFunctions(e.extra...),
	)

	return TableResult{
		Dataset:   ds.Name,
		Table:     fullName,
		Upstreams: e.place(fullName, tables),
		Warnings:  collector.Warnings(),
	}
}

// place applies the platform mapping and name normalization.
func (e *Engine) place(table string, tables []resolver.DataPlatformTable) []Upstream {
	var upstreams []Upstream
	for _, t := range tables {
		detail := PlatformDetail{Env: DefaultEnv}
		if len(e.mapping) > 0 {
			d, ok := e.mapping[t.PowerBIDataPlatformName]
			if !ok {
				e.logger.Debug("skipping unmapped platform",
					"table", table, "platform", t.PowerBIDataPlatformName, "upstream", t.FullName)
				continue
			}
			detail = d
			if detail.Env == "" {
				detail.Env = DefaultEnv
			}
		}
		if e.lowercase {
			t.FullName = strings.ToLower(t.FullName)
		}
		upstreams = append(upstreams, Upstream{
			DataPlatformTable: t,
			PlatformInstance:  detail.PlatformInstance,
			Env:               detail.Env,
		})
	}
	return upstreams
}

func (e *Engine) persist(ctx context.Context, result *Result) (string, error) {
	run, err := e.store.CreateRun(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	var lineage []state.TableLineage
	var warnings []state.Warning
	for _, t := range result.Tables {
		l := state.TableLineage{Table: t.Table}
		for _, u := range t.Upstreams {
			l.Upstreams = append(l.Upstreams, state.Upstream{
				Name:             u.Name,
				FullName:         u.FullName,
				DatasourceServer: u.DatasourceServer,
				Platform:         u.DataHubDataPlatformName,
			})
		}
		lineage = append(lineage, l)
		for _, w := range t.Warnings {
			warnings = append(warnings, state.Warning{Table: t.Table, Key: w.Key, Message: w.Message})
		}
	}

	saveErr := e.store.SaveTableLineage(ctx, run.ID, lineage)
	if saveErr == nil {
		saveErr = e.store.SaveWarnings(ctx, run.ID, warnings)
	}
	if saveErr != nil {
		if err := e.store.CompleteRun(ctx, run.ID, state.RunStatusFailed, saveErr.Error()); err != nil {
			saveErr = errors.Join(saveErr, err)
		}
		return "", fmt.Errorf("failed to save run %s: %w", run.ID, saveErr)
	}
	if err := e.store.CompleteRun(ctx, run.ID, state.RunStatusCompleted, ""); err != nil {
		return "", fmt.Errorf("failed to complete run %s: %w", run.ID, err)
	}
	e.logger.Debug("persisted run", "run_id", run.ID)
	return run.ID, nil
}
