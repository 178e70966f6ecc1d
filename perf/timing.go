// Package perf provides timing utilities for store operations and bulk
// population runs.
package perf

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Timer tracks operation timing for performance analysis.
type Timer struct {
	name      string
	startTime time.Time
	logger    logrus.FieldLogger
}

// Start begins timing an operation.
func Start(name string, logger logrus.FieldLogger) *Timer {
	return &Timer{
		name:      name,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Elapsed returns the time since Start without logging.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.startTime)
}

// Stop ends timing and logs the duration.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.startTime)
	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"operation":   t.name,
			"duration_ms": duration.Milliseconds(),
		}).Info("operation completed")
	}
	return duration
}

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	duration := time.Since(t.startTime)
	fields := logrus.Fields{
		"operation":   t.name,
		"duration_ms": duration.Milliseconds(),
	}
	if t.logger != nil {
		if duration > threshold {
			t.logger.WithFields(fields).Warn("operation exceeded threshold")
		} else {
			t.logger.WithFields(fields).Debug("operation completed")
		}
	}
	return duration
}

// AssetLoad is the outcome of loading one asset during population.
type AssetLoad struct {
	Name     string
	Source   string
	Rows     int
	Duration time.Duration
	Err      error
}

// PopulationReport collects per-asset results of one population or restore.
type PopulationReport struct {
	mu sync.Mutex

	Assets        []AssetLoad
	WipeDuration  time.Duration
	TotalDuration time.Duration
	WipedRows     int64
}

// NewPopulationReport creates an empty report.
func NewPopulationReport() *PopulationReport {
	return &PopulationReport{}
}

// RecordAsset appends one asset result.
func (r *PopulationReport) RecordAsset(a AssetLoad) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Assets = append(r.Assets, a)
}

// RecordWipe records the delete phase of a restore.
func (r *PopulationReport) RecordWipe(rows int64, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.WipedRows = rows
	r.WipeDuration = d
}

// Rows returns the number of rows committed across successful assets.
func (r *PopulationReport) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.Assets {
		if a.Err == nil {
			n += a.Rows
		}
	}
	return n
}

// Failed returns the names of assets whose load was rolled back.
func (r *PopulationReport) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.Assets {
		if a.Err != nil {
			out = append(out, a.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Summary returns a formatted summary of the report.
func (r *PopulationReport) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Carrier Population ===\n")
	fmt.Fprintf(&b, "Total Duration:        %v\n", r.TotalDuration)
	if r.WipeDuration > 0 || r.WipedRows > 0 {
		fmt.Fprintf(&b, "Wipe:                  %v (%d rows)\n", r.WipeDuration, r.WipedRows)
	}
	fmt.Fprintf(&b, "\nAssets:\n")
	for _, a := range r.Assets {
		status := "ok"
		if a.Err != nil {
			status = "rolled back: " + a.Err.Error()
		}
		fmt.Fprintf(&b, "  %-8s %-40s %5d rows  %v  %s\n", a.Name, a.Source, a.Rows, a.Duration, status)
	}
	return b.String()
}

// contextKey is used to store a report in context.
type contextKey struct{}

// WithReport adds a report to context.
func WithReport(ctx context.Context, r *PopulationReport) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// ReportFromContext retrieves the report from context, or nil.
func ReportFromContext(ctx context.Context) *PopulationReport {
	r, _ := ctx.Value(contextKey{}).(*PopulationReport)
	return r
}
