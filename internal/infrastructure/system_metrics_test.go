package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemMetricsCollect(t *testing.T) {
	providers := testProviders(t)

	metrics, err := NewSystemMetrics(providers.Meter)
	require.NoError(t, err)

	stats := metrics.Collect(context.Background(), time.Now().Add(-time.Minute))
	require.NotNil(t, stats)

	assert.Greater(t, stats.GoRoutines, int64(0))
	assert.Greater(t, stats.MemoryUsage, int64(0))
	assert.Greater(t, stats.MemorySystem, stats.MemoryUsage)
	assert.Greater(t, stats.CPUCount, 0)
	assert.GreaterOrEqual(t, stats.ProcessUptime, time.Minute)
	assert.False(t, stats.Timestamp.IsZero())
}

func TestSystemMetricsCollectorStartStop(t *testing.T) {
	providers := testProviders(t)

	collector, err := NewSystemMetricsCollector(providers.Meter, 10*time.Millisecond)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		collector.Start(context.Background())
		close(done)
	}()

	// Let a few ticks pass before stopping.
	time.Sleep(35 * time.Millisecond)
	collector.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}

	stats := collector.GetCurrentStats(context.Background())
	require.NotNil(t, stats)
	assert.Greater(t, stats.GoRoutines, int64(0))
}

func TestSystemMetricsCollectorStopsOnContextCancel(t *testing.T) {
	providers := testProviders(t)

	collector, err := NewSystemMetricsCollector(providers.Meter, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector ignored context cancellation")
	}
}
