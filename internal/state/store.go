// Package state persists lineage runs in SQLite.
// It records each resolution run, the upstream tables found per Power BI
// table, and the warnings raised while resolving.
package state

import (
	"errors"
	"time"
)

// ErrStoreNotOpen is returned when the store is used before Open.
var ErrStoreNotOpen = errors.New("database not opened")

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one resolution run.
type Run struct {
	ID          string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	// TableCount and WarningCount are filled by ListRuns and GetRun.
	TableCount   int
	WarningCount int
}

// Upstream is a platform table read by a Power BI table.
type Upstream struct {
	Name             string
	FullName         string
	DatasourceServer string
	Platform         string
}

// TableLineage is the upstream set of one Power BI table.
type TableLineage struct {
	Table     string
	Upstreams []Upstream
}

// Warning is a persisted resolution warning.
type Warning struct {
	Table   string
	Key     string
	Message string
}
