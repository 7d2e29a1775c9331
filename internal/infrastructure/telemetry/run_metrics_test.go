package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trafficsim/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func TestNewRunMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, rm)
}

func TestNewRunMetrics_NilMeter(t *testing.T) {
	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, rm)
	assert.Equal(t, "NewRunMetrics: meter cannot be nil", err.Error())
}

func TestRunMetrics_RecordSessionCompleted(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	rm.RecordSessionCompleted(ctx, "Casual Browser", 42*time.Second, 5)
	rm.RecordSessionCompleted(ctx, "Power Shopper", 3*time.Minute, 12)
	rm.RecordSessionCompleted(ctx, "Bouncer", 2*time.Second, 0)
}

func TestRunMetrics_RecordSessionFailed(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	rm.RecordSessionFailed(ctx, "Casual Browser", "transient")
	rm.RecordSessionFailed(ctx, "Power Shopper", "fatal")
}

func TestRunMetrics_RecordRunFinished(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	rm.RecordRunFinished(ctx, "completed")
	rm.RecordRunFinished(ctx, "stopped")
	rm.RecordRunFinished(ctx, "failed")
}

func TestRunMetrics_RecordRunsByStatus(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	rm.RecordRunsByStatus(ctx, "running", 3)
	rm.RecordRunsByStatus(ctx, "completed", 17)
}

// Mock implementation for testing periodic collection

type mockActivityProvider struct {
	counts map[string]int64
	err    error
}

func (m *mockActivityProvider) CountRunsByStatus(ctx context.Context) (map[string]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.counts, nil
}

func TestRunMetrics_PeriodicCollection(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	provider := &mockActivityProvider{
		counts: map[string]int64{
			"running":   2,
			"completed": 9,
		},
	}

	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter:            meter,
		Logger:           zap.NewNop(),
		ActivityProvider: provider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start periodic collection with short interval for testing
	rm.StartPeriodicCollection(ctx, 100*time.Millisecond)

	// Wait for at least one collection cycle
	time.Sleep(150 * time.Millisecond)

	// Stop collection
	rm.Stop()

	// Should complete without error
}

func TestRunMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
		// No activity provider
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Should not panic with no activity provider
	rm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	rm.Stop()
}

func TestRunMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	provider := &mockActivityProvider{
		err: errors.New("database gone"),
	}

	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter:            meter,
		Logger:           zap.NewNop(),
		ActivityProvider: provider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Provider errors are logged, not fatal
	rm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	rm.Stop()
}

func TestRunMetrics_Stop_Idempotent(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	// Calling Stop multiple times should not panic
	rm.Stop()
	rm.Stop()
	rm.Stop()
}

func TestRunMetrics_StartPeriodicCollection_OnlyOnce(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	rm, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Calling StartPeriodicCollection multiple times should only start once
	rm.StartPeriodicCollection(ctx, time.Hour)
	rm.StartPeriodicCollection(ctx, time.Minute)
	rm.StartPeriodicCollection(ctx, time.Second)

	rm.Stop()
}

func TestSessionOutcome_Values(t *testing.T) {
	assert.Equal(t, telemetry.SessionOutcome("completed"), telemetry.SessionOutcomeCompleted)
	assert.Equal(t, telemetry.SessionOutcome("failed"), telemetry.SessionOutcomeFailed)
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{
		Op:  "TestOperation",
		Err: "test error message",
	}

	assert.Equal(t, "TestOperation: test error message", err.Error())
}
