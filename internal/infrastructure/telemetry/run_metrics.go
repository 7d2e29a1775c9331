// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RunMetrics provides traffic-generation metrics for the simulator.
// It tracks run and session outcomes and the run backlog per status.
type RunMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	runFinishedTotal  *Counter
	sessionTotal      *Counter
	pagesVisitedTotal *Counter

	// Histogram metrics (distributions)
	sessionDuration *Histogram

	// Gauge metrics (point-in-time values)
	runsByStatus *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	activityProvider RunActivityProvider
}

// RunActivityProvider provides run activity data for periodic metrics
// collection. This interface allows the telemetry layer to query run state
// without depending on the persistence layer directly.
type RunActivityProvider interface {
	// CountRunsByStatus returns the number of runs per lifecycle status
	CountRunsByStatus(ctx context.Context) (map[string]int64, error)
}

// RunMetricsConfig holds configuration for simulation run metrics.
type RunMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	CollectInterval  time.Duration // Default: 1 minute
	ActivityProvider RunActivityProvider
}

// NewRunMetrics creates a new RunMetrics instance.
func NewRunMetrics(cfg RunMetricsConfig) (*RunMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &RunMetrics{
		meter:            cfg.Meter,
		logger:           logger,
		stopChan:         make(chan struct{}),
		activityProvider: cfg.ActivityProvider,
	}

	// Initialize counter metrics
	var err error

	// Run metrics
	rm.runFinishedTotal, err = NewCounter(
		cfg.Meter,
		"trafficsim_run_finished_total",
		"Total number of finished simulation runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	// Session metrics
	rm.sessionTotal, err = NewCounter(
		cfg.Meter,
		"trafficsim_session_total",
		"Total number of finished browsing sessions",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	rm.pagesVisitedTotal, err = NewCounter(
		cfg.Meter,
		"trafficsim_pages_visited_total",
		"Total number of pages visited by successful sessions",
		"{pages}",
	)
	if err != nil {
		return nil, err
	}

	rm.sessionDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "trafficsim_session_duration_seconds",
		Description: "Duration of successful browsing sessions",
		Unit:        "s",
		Boundaries:  SessionDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Run backlog gauge
	rm.runsByStatus, err = NewGauge(
		cfg.Meter,
		"trafficsim_runs",
		"Number of simulation runs per lifecycle status",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// =============================================================================
// Session Metrics
// =============================================================================

// SessionOutcome represents the terminal state of a session for metrics
// labeling.
type SessionOutcome string

const (
	SessionOutcomeCompleted SessionOutcome = "completed"
	SessionOutcomeFailed    SessionOutcome = "failed"
)

// RecordSessionCompleted records a successful browsing session.
// This should be called from the application layer when a session finishes.
func (rm *RunMetrics) RecordSessionCompleted(ctx context.Context, persona string, duration time.Duration, pagesVisited int) {
	rm.sessionTotal.Inc(ctx,
		AttrPersona.String(persona),
		AttrOutcome.String(string(SessionOutcomeCompleted)),
	)
	rm.sessionDuration.RecordDuration(ctx, duration,
		AttrPersona.String(persona),
	)
	if pagesVisited > 0 {
		rm.pagesVisitedTotal.Add(ctx, int64(pagesVisited),
			AttrPersona.String(persona),
		)
	}
}

// RecordSessionFailed records a session that exhausted its attempts.
// The failure kind is the classification used in session-error events.
func (rm *RunMetrics) RecordSessionFailed(ctx context.Context, persona, failureKind string) {
	rm.sessionTotal.Inc(ctx,
		AttrPersona.String(persona),
		AttrOutcome.String(string(SessionOutcomeFailed)),
		AttrFailureKind.String(failureKind),
	)
}

// =============================================================================
// Run Metrics
// =============================================================================

// RecordRunFinished records a run reaching a terminal status
// (completed, stopped or failed).
func (rm *RunMetrics) RecordRunFinished(ctx context.Context, status string) {
	rm.runFinishedTotal.Inc(ctx,
		AttrRunStatus.String(status),
	)
}

// RecordRunsByStatus records the current number of runs in a status.
// This is a gauge metric that should be updated periodically.
func (rm *RunMetrics) RecordRunsByStatus(ctx context.Context, status string, count int64) {
	rm.runsByStatus.Record(ctx, count,
		AttrRunStatus.String(status),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It polls the run backlog every interval (default: 1 minute).
// This is non-blocking - use Stop() to stop collection.
func (rm *RunMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	rm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go rm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (rm *RunMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	rm.collectRunActivity(ctx)

	for {
		select {
		case <-rm.stopChan:
			rm.logger.Info("Stopping periodic run metrics collection")
			return
		case <-ctx.Done():
			rm.logger.Info("Context cancelled, stopping periodic run metrics collection")
			return
		case <-ticker.C:
			rm.collectRunActivity(ctx)
		}
	}
}

// collectRunActivity collects the run backlog gauge.
func (rm *RunMetrics) collectRunActivity(ctx context.Context) {
	if rm.activityProvider == nil {
		rm.logger.Debug("No activity provider configured, skipping run metrics collection")
		return
	}

	counts, err := rm.activityProvider.CountRunsByStatus(ctx)
	if err != nil {
		rm.logger.Warn("Failed to count runs for metrics collection", zap.Error(err))
		return
	}

	for status, count := range counts {
		rm.RecordRunsByStatus(ctx, status, count)
	}
}

// Stop stops the periodic collection.
func (rm *RunMetrics) Stop() {
	rm.stopOnce.Do(func() {
		close(rm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewRunMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
