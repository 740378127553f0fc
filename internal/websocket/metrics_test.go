package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsConnections(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordConnection()
	assert.Equal(t, int64(3), m.TotalConnections)
	assert.Equal(t, int64(3), m.ActiveConnections)
	assert.Equal(t, int64(3), m.MaxConcurrent)

	m.RecordDisconnection(2 * time.Second)
	m.RecordDisconnection(4 * time.Second)
	assert.Equal(t, int64(1), m.ActiveConnections)
	assert.Equal(t, int64(3), m.MaxConcurrent)
	assert.Equal(t, 3*time.Second, m.AvgConnectionTime)

	// Max concurrent holds the high-water mark across churn
	m.RecordConnection()
	m.RecordConnection()
	m.RecordConnection()
	assert.Equal(t, int64(4), m.ActiveConnections)
	assert.Equal(t, int64(4), m.MaxConcurrent)
}

func TestMetricsMessages(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage("sent", 2048, true)
	m.RecordMessage("sent", 1024, true)
	m.RecordMessage("received", 22, true)
	m.RecordMessage("received", 18, false)

	assert.Equal(t, int64(2), m.MessagesSent)
	assert.Equal(t, int64(3072), m.BytesSent)
	assert.Equal(t, int64(2), m.MessagesReceived)
	assert.Equal(t, int64(40), m.BytesReceived)
	assert.Equal(t, int64(1), m.MessageErrors)
}

func TestMetricsErrorsByType(t *testing.T) {
	m := NewMetrics()

	m.RecordError("write_timeout")
	m.RecordError("write_timeout")
	m.RecordError("marshal")

	assert.Equal(t, int64(2), m.ErrorsByType["write_timeout"])
	assert.Equal(t, int64(1), m.ErrorsByType["marshal"])
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	assert.Equal(t, int64(10), m.AvgQueueDepth)
	assert.Equal(t, int64(10), m.MaxQueueDepth)

	m.RecordQueueDepth(30)
	assert.Equal(t, int64(30), m.MaxQueueDepth)
	// EMA moves toward the new sample without jumping to it
	assert.Greater(t, m.AvgQueueDepth, int64(10))
	assert.Less(t, m.AvgQueueDepth, int64(30))

	m.RecordQueueDepth(5)
	assert.Equal(t, int64(30), m.MaxQueueDepth)
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordConnection()
	m.RecordMessage("sent", 512, true)
	m.RecordDroppedMessage()
	m.RecordError("upgrade")

	snapshot := m.GetSnapshot()

	connections, ok := snapshot["connections"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), connections["total"])
	assert.Equal(t, int64(1), connections["active"])

	messages, ok := snapshot["messages"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), messages["sent"])
	assert.Equal(t, int64(512), messages["bytes_sent"])
	assert.Equal(t, int64(1), messages["dropped"])

	errorCounts, ok := snapshot["errors"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(1), errorCounts["upgrade"])

	assert.GreaterOrEqual(t, snapshot["uptime_seconds"].(float64), 0.0)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordConnection()
	m.RecordMessage("sent", 100, true)
	m.RecordQueueDepth(50)
	m.RecordError("probe")
	m.RecordDroppedMessage()

	m.Reset()

	assert.Equal(t, int64(0), m.TotalConnections)
	assert.Equal(t, int64(0), m.ActiveConnections)
	assert.Equal(t, int64(0), m.MessagesSent)
	assert.Equal(t, int64(0), m.MaxQueueDepth)
	assert.Equal(t, int64(0), m.DroppedMessages)
	assert.Empty(t, m.ErrorsByType)
}

func TestMetricsConcurrentAccess(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.RecordConnection()
				m.RecordMessage("sent", 64, true)
				m.RecordQueueDepth(int64(j))
				m.GetSnapshot()
				m.RecordDisconnection(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(500), m.TotalConnections)
	assert.Equal(t, int64(0), m.ActiveConnections)
	assert.Equal(t, int64(500), m.MessagesSent)
}

func TestGetMetricsReturnsSingleton(t *testing.T) {
	assert.Same(t, GetMetrics(), GetMetrics())
}
