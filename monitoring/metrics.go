// Package monitoring tracks serving metrics and streams live prediction
// events to connected clients.
package monitoring

import (
	"sync"
	"time"
)

// Metrics aggregates serving counters. All methods are safe for concurrent
// use.
type Metrics struct {
	mu sync.RWMutex

	startTime time.Time

	requestsTotal      int64
	predictionsTotal   int64
	predictionFailures int64
	validationFailures int64
	batchRowsTotal     int64
	batchRowsFailed    int64

	latencyTotal time.Duration
	latencyCount int64

	lastPrediction time.Time
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest counts one inbound HTTP request.
func (m *Metrics) RecordRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
}

// RecordPrediction counts one successful prediction and its latency.
func (m *Metrics) RecordPrediction(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionsTotal++
	m.latencyTotal += latency
	m.latencyCount++
	m.lastPrediction = time.Now()
}

// RecordPredictionFailure counts one failed inference.
func (m *Metrics) RecordPredictionFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionFailures++
}

// RecordValidationFailure counts one rejected request.
func (m *Metrics) RecordValidationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationFailures++
}

// RecordBatch counts the rows of one batch run.
func (m *Metrics) RecordBatch(succeeded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchRowsTotal += int64(succeeded + failed)
	m.batchRowsFailed += int64(failed)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds      float64   `json:"uptime_seconds"`
	RequestsTotal      int64     `json:"requests_total"`
	PredictionsTotal   int64     `json:"predictions_total"`
	PredictionFailures int64     `json:"prediction_failures"`
	ValidationFailures int64     `json:"validation_failures"`
	BatchRowsTotal     int64     `json:"batch_rows_total"`
	BatchRowsFailed    int64     `json:"batch_rows_failed"`
	AvgLatencyMillis   float64   `json:"avg_latency_ms"`
	LastPrediction     time.Time `json:"last_prediction,omitempty"`
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		UptimeSeconds:      time.Since(m.startTime).Seconds(),
		RequestsTotal:      m.requestsTotal,
		PredictionsTotal:   m.predictionsTotal,
		PredictionFailures: m.predictionFailures,
		ValidationFailures: m.validationFailures,
		BatchRowsTotal:     m.batchRowsTotal,
		BatchRowsFailed:    m.batchRowsFailed,
		LastPrediction:     m.lastPrediction,
	}
	if m.latencyCount > 0 {
		snapshot.AvgLatencyMillis = float64(m.latencyTotal.Milliseconds()) / float64(m.latencyCount)
	}
	return snapshot
}
