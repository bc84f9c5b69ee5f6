package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates per-operation metrics of the concept API.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	fallbackTotal atomic.Int64

	operations map[string]*OperationMetrics

	// Recent durations, oldest first.
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics represents metrics for a single API operation.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000 // Default to keeping last 1000 durations
	}
	return &Metrics{
		operations:   make(map[string]*OperationMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records a request.
func (m *Metrics) RecordRequest(operation string) {
	m.requestTotal.Add(1)
	m.operation(operation).executionCount.Add(1)
}

// RecordFailure records a failed request.
func (m *Metrics) RecordFailure(operation string) {
	m.requestFailed.Add(1)
	m.operation(operation).errorCount.Add(1)
}

// RecordFallback records a concept that was resolved without an embedding.
func (m *Metrics) RecordFallback() {
	m.fallbackTotal.Add(1)
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(operation string, duration time.Duration) {
	om := m.operation(operation)
	om.totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// GetRequestTotal returns the total number of requests.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetRequestFailed returns the total number of failed requests.
func (m *Metrics) GetRequestFailed() int64 {
	return m.requestFailed.Load()
}

// GetAverageDuration returns the average duration in milliseconds for an operation.
func (m *Metrics) GetAverageDuration(operation string) int64 {
	om := m.operation(operation)
	count := om.executionCount.Load()
	if count == 0 {
		return 0
	}
	return om.totalDuration.Load() / count
}

// operation gets or creates the metrics of one operation.
func (m *Metrics) operation(name string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[name]
	if !ok {
		om = &OperationMetrics{}
		m.operations[name] = om
	}
	return om
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.fallbackTotal.Store(0)

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	operations := make(map[string]*OperationMetricsSnapshot, len(m.operations))
	for name, om := range m.operations {
		count := om.executionCount.Load()
		total := om.totalDuration.Load()
		snapshot := &OperationMetricsSnapshot{
			ExecutionCount: count,
			TotalDuration:  total,
			ErrorCount:     om.errorCount.Load(),
		}
		if count > 0 {
			snapshot.AverageDuration = total / count
		}
		operations[name] = snapshot
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		FallbackTotal: m.fallbackTotal.Load(),
		Operations:    operations,
		DurationCount: len(m.durations),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                                `json:"request_total"`
	RequestFailed int64                                `json:"request_failed"`
	FallbackTotal int64                                `json:"fallback_total"`
	Operations    map[string]*OperationMetricsSnapshot `json:"operations"`
	DurationCount int                                  `json:"duration_count"`
}

// OperationMetricsSnapshot represents metrics for a single operation.
type OperationMetricsSnapshot struct {
	ExecutionCount  int64 `json:"execution_count"`
	TotalDuration   int64 `json:"total_duration_ms"`
	ErrorCount      int64 `json:"error_count"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
