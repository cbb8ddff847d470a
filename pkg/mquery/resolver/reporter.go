package resolver

import (
	"log/slog"
	"sync"
)

// Reporter receives non-fatal resolution warnings. Keys have the form
// "<table full name>-<category>".
type Reporter interface {
	ReportWarning(key, message string)
}

// Warning is a single reported warning.
type Warning struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// CollectingReporter keeps warnings in memory. Safe for concurrent use.
type CollectingReporter struct {
	mu       sync.Mutex
	warnings []Warning
}

// NewCollectingReporter creates an empty CollectingReporter.
func NewCollectingReporter() *CollectingReporter {
	return &CollectingReporter{}
}

// ReportWarning implements Reporter.
func (r *CollectingReporter) ReportWarning(key, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, Warning{Key: key, Message: message})
}

// Warnings returns a copy of the collected warnings in report order.
func (r *CollectingReporter) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Len returns the number of collected warnings.
func (r *CollectingReporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.warnings)
}

// SlogReporter logs warnings at WARN level.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates a reporter writing to logger.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SlogReporter{logger: logger}
}

// ReportWarning implements Reporter.
func (r *SlogReporter) ReportWarning(key, message string) {
	r.logger.Warn(message, "key", key)
}

type teeReporter []Reporter

func (t teeReporter) ReportWarning(key, message string) {
	for _, r := range t {
		r.ReportWarning(key, message)
	}
}

// TeeReporter forwards every warning to each non-nil reporter in order.
func TeeReporter(reporters ...Reporter) Reporter {
	var out teeReporter
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type discardReporter struct{}

func (discardReporter) ReportWarning(string, string) {}
