package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ssogunle-tc/datahub/internal/loader"
	"github.com/ssogunle-tc/datahub/internal/state"
	"github.com/ssogunle-tc/datahub/internal/testutil"
	"github.com/ssogunle-tc/datahub/pkg/mquery/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	postgresExpr = `let
    Source = PostgreSQL.Database(ServerName, "Sales"),
    Orders = Source{[Schema="Public",Item="Orders"]}[Data]
in
    Orders`

	snowflakeExpr = `let
    Source = Snowflake.Databases("acme.snowflakecomputing.com","WH"),
    DB = Source{[Name="ANALYTICS",Kind="Database"]}[Data],
    Schema = DB{[Name="CORE",Kind="Schema"]}[Data],
    Table = Schema{[Name="CUSTOMERS",Kind="Table"]}[Data]
in
    Table`

	nativeExpr = `let
    Source = Value.NativeQuery(Snowflake.Databases("acme.snowflakecomputing.com","WH"){[Name="ANALYTICS"]}[Data], "select * from ANALYTICS.CORE.EVENTS", null, [EnableFolding=true])
in
    Source`
)

func testDatasets() []*loader.Dataset {
	return []*loader.Dataset{
		{
			Name:       "sales",
			Parameters: map[string]string{"ServerName": "pg.example.com"},
			Tables: []loader.Table{
				{Name: "orders", Expression: postgresExpr, FullName: "sales.orders"},
				{Name: "broken", Expression: "let Source = in Source", FullName: "sales.broken"},
			},
		},
		{
			Name: "crm",
			Tables: []loader.Table{
				{Name: "customers", Expression: snowflakeExpr, FullName: "crm.customers"},
				{Name: "events", Expression: nativeExpr},
			},
		},
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	return New(cfg)
}

func TestEngine_Resolve(t *testing.T) {
	e := newTestEngine(t, Config{Concurrency: 2})

	result, err := e.Resolve(context.Background(), testDatasets())
	require.NoError(t, err)
	require.Len(t, result.Tables, 4)
	assert.Empty(t, result.RunID)

	orders := result.Tables[0]
	assert.Equal(t, "sales", orders.Dataset)
	assert.Equal(t, "sales.orders", orders.Table)
	require.Len(t, orders.Upstreams, 1)
	assert.Equal(t, "Sales.Public.Orders", orders.Upstreams[0].FullName)
	assert.Equal(t, "pg.example.com", orders.Upstreams[0].DatasourceServer)
	assert.Equal(t, DefaultEnv, orders.Upstreams[0].Env)
	assert.Empty(t, orders.Warnings)

	broken := result.Tables[1]
	assert.Empty(t, broken.Upstreams)
	require.Len(t, broken.Warnings, 1)
	assert.Equal(t, "sales.broken-parse-error", broken.Warnings[0].Key)

	customers := result.Tables[2]
	require.Len(t, customers.Upstreams, 1)
	assert.Equal(t, "ANALYTICS.CORE.CUSTOMERS", customers.Upstreams[0].FullName)

	events := result.Tables[3]
	assert.Equal(t, "crm.events", events.Table)
	require.Len(t, events.Upstreams, 1)
	assert.Equal(t, "ANALYTICS.CORE.EVENTS", events.Upstreams[0].FullName)

	assert.Equal(t, 3, result.UpstreamCount())
	assert.Equal(t, 1, result.WarningCount())
}

func TestEngine_Options(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		verify func(t *testing.T, result *Result)
	}{
		{
			name: "lowercase",
			cfg:  Config{ConvertLineageURNsToLowercase: true},
			verify: func(t *testing.T, result *Result) {
				assert.Equal(t, "sales.public.orders", result.Tables[0].Upstreams[0].FullName)
				assert.Equal(t, "Orders", result.Tables[0].Upstreams[0].Name)
			},
		},
		{
			name: "native query disabled",
			cfg:  Config{DisableNativeQueryParsing: true},
			verify: func(t *testing.T, result *Result) {
				events := result.Tables[3]
				assert.Empty(t, events.Upstreams)
				require.Len(t, events.Warnings, 1)
				assert.Equal(t, "crm.events-native-query", events.Warnings[0].Key)
			},
		},
		{
			name: "platform mapping filters and places",
			cfg: Config{
				DatasetTypeMapping: map[string]PlatformDetail{
					"PostgreSQL": {PlatformInstance: "pg_main"},
				},
			},
			verify: func(t *testing.T, result *Result) {
				require.Len(t, result.Tables[0].Upstreams, 1)
				assert.Equal(t, "pg_main", result.Tables[0].Upstreams[0].PlatformInstance)
				assert.Equal(t, DefaultEnv, result.Tables[0].Upstreams[0].Env)
				assert.Empty(t, result.Tables[2].Upstreams)
				assert.Empty(t, result.Tables[3].Upstreams)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newTestEngine(t, tt.cfg).Resolve(context.Background(), testDatasets())
			require.NoError(t, err)
			tt.verify(t, result)
		})
	}
}

func TestEngine_ZeroConfigResolvesNativeQuery(t *testing.T) {
	e := New(Config{Logger: testutil.NewTestLogger(t)})

	tr := e.ResolveTable(&loader.Dataset{Name: "crm"}, loader.Table{Name: "events", Expression: nativeExpr})
	assert.Empty(t, tr.Warnings)
	require.Len(t, tr.Upstreams, 1)
	assert.Equal(t, "ANALYTICS.CORE.EVENTS", tr.Upstreams[0].FullName)
	assert.Equal(t, "snowflake", tr.Upstreams[0].DataHubDataPlatformName)
}

func TestEngine_SharedReporter(t *testing.T) {
	shared := resolver.NewCollectingReporter()
	datasets := []*loader.Dataset{{Name: "bad"}}
	for range 20 {
		datasets[0].Tables = append(datasets[0].Tables, loader.Table{Name: "t", Expression: "let in"})
	}

	result, err := newTestEngine(t, Config{Concurrency: 8, Reporter: shared}).
		Resolve(context.Background(), datasets)
	require.NoError(t, err)
	assert.Equal(t, 20, shared.Len())
	assert.Equal(t, 20, result.WarningCount())
}

func TestEngine_Persist(t *testing.T) {
	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	defer store.Close()

	e := newTestEngine(t, Config{Store: store})
	result, err := e.Resolve(context.Background(), testDatasets())
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	ctx := context.Background()
	run, err := store.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.TableCount)
	assert.Equal(t, 1, run.WarningCount)

	lineage, err := store.GetTableLineage(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, "crm.customers", lineage[0].Table)
	assert.Equal(t, "snowflake", lineage[0].Upstreams[0].Platform)
}

type fakeStore struct {
	mu        sync.Mutex
	created   int
	statuses  []state.RunStatus
	saveErr   error
	createErr error
}

func (f *fakeStore) CreateRun(context.Context) (*state.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &state.Run{ID: "run-1", Status: state.RunStatusRunning}, nil
}

func (f *fakeStore) CompleteRun(_ context.Context, _ string, status state.RunStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) SaveTableLineage(context.Context, string, []state.TableLineage) error {
	return f.saveErr
}

func (f *fakeStore) SaveWarnings(context.Context, string, []state.Warning) error {
	return nil
}

func TestEngine_PersistFailures(t *testing.T) {
	errDisk := errors.New("disk full")

	t.Run("save marks run failed", func(t *testing.T) {
		store := &fakeStore{saveErr: errDisk}
		_, err := newTestEngine(t, Config{Store: store}).Resolve(context.Background(), testDatasets())
		require.ErrorIs(t, err, errDisk)
		assert.Equal(t, []state.RunStatus{state.RunStatusFailed}, store.statuses)
	})

	t.Run("create run", func(t *testing.T) {
		store := &fakeStore{createErr: errDisk}
		_, err := newTestEngine(t, Config{Store: store}).Resolve(context.Background(), testDatasets())
		require.ErrorIs(t, err, errDisk)
		assert.Contains(t, err.Error(), "failed to create run")
	})
}

func TestEngine_Cancelled(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestEngine(t, Config{Store: store}).Resolve(ctx, testDatasets())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Zero(t, store.created)
}

func TestEngine_Watch(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "sales.yaml", "dataset: sales\ntables:\n  - name: a\n")

	e := newTestEngine(t, Config{WatchDebounce: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *Result, 10)
	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, []string{dir}, func(r *Result, err error) {
			if err == nil {
				results <- r
			}
		})
	}()

	first := waitResult(t, results)
	assert.Len(t, first.Tables, 1)

	testutil.WriteFile(t, dir, filepath.Base(path), "dataset: sales\ntables:\n  - name: a\n  - name: b\n")
	second := waitResult(t, results)
	assert.Len(t, second.Tables, 2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestEngine_WatchMissingPath(t *testing.T) {
	e := newTestEngine(t, Config{})
	err := e.Watch(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, func(*Result, error) {})
	require.Error(t, err)
}

func waitResult(t *testing.T, results <-chan *Result) *Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for resolution")
		return nil
	}
}
