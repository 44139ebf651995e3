package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Realtime metrics
	WSConnected      prometheus.Gauge
	WSFrames         *prometheus.CounterVec
	WSDropped        *prometheus.CounterVec
	WSReconnects     prometheus.Counter
	WSExhausted      prometheus.Counter
	WSHandlerLatency prometheus.Histogram

	// Transaction metrics
	TxOutcomes *prometheus.CounterVec
	TxDuration *prometheus.HistogramVec
	TxSwitches *prometheus.CounterVec

	// Chain RPC metrics
	RPCCalls    *prometheus.CounterVec
	RPCDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	Connected      bool    `json:"connected"`
	FramesIn       int64   `json:"frames_in"`
	FramesOut      int64   `json:"frames_out"`
	Reconnects     int64   `json:"reconnects"`
	TxSucceeded    int64   `json:"tx_succeeded"`
	TxFailed       int64   `json:"tx_failed"`
	TotalDuration  float64 `json:"-"` // sum of all request durations
	RequestCount   int64   `json:"-"` // count for averaging
	AvgResponseSec float64 `json:"avg_response_seconds"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector registered on reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ambience_http_requests_total",
				Help: "Total number of control API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ambience_http_request_duration_seconds",
				Help:    "Control API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ambience_http_request_size_bytes",
				Help:    "Control API request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ambience_http_response_size_bytes",
				Help:    "Control API response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Realtime metrics
		WSConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ambience_realtime_connected",
				Help: "1 while the realtime connection is open",
			},
		),
		WSFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ambience_realtime_frames_total",
				Help: "Total number of realtime frames",
			},
			[]string{"direction", "type"},
		),
		WSDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ambience_realtime_frames_dropped_total",
				Help: "Inbound frames dropped before dispatch",
			},
			[]string{"reason"},
		),
		WSReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ambience_realtime_reconnect_attempts_total",
				Help: "Scheduled reconnect attempts",
			},
		),
		WSExhausted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ambience_realtime_reconnect_exhausted_total",
				Help: "Times the reconnect budget ran out",
			},
		),
		WSHandlerLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ambience_realtime_dispatch_seconds",
				Help:    "Time spent running subscribers for one inbound frame",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
		),

		// Transaction metrics
		TxOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ambience_tx_total",
				Help: "Finished transaction flows by status and error class",
			},
			[]string{"status", "class"},
		),
		TxDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ambience_tx_duration_seconds",
				Help:    "Transaction flow duration from submit to terminal state",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		TxSwitches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ambience_network_switch_total",
				Help: "Network switch requests by outcome",
			},
			[]string{"outcome"},
		),

		// Chain RPC metrics
		RPCCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ambience_rpc_calls_total",
				Help: "Total number of chain RPC calls",
			},
			[]string{"method", "status"},
		),
		RPCDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ambience_rpc_duration_seconds",
				Help:    "Chain RPC call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ambience_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records a control API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetConnected flips the realtime connection gauge
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.WSConnected.Set(1)
	} else {
		m.WSConnected.Set(0)
	}
	m.mu.Lock()
	m.snapshot.Connected = connected
	m.mu.Unlock()
}

// RecordFrame records a realtime frame; direction is "in" or "out"
func (m *Metrics) RecordFrame(direction, frameType string) {
	if m == nil {
		return
	}
	m.WSFrames.WithLabelValues(direction, frameType).Inc()
	m.mu.Lock()
	if direction == "in" {
		m.snapshot.FramesIn++
	} else {
		m.snapshot.FramesOut++
	}
	m.mu.Unlock()
}

// RecordDroppedFrame records an inbound frame that never reached a subscriber
func (m *Metrics) RecordDroppedFrame(reason string) {
	if m == nil {
		return
	}
	m.WSDropped.WithLabelValues(reason).Inc()
}

// RecordDispatch records subscriber run time for one frame
func (m *Metrics) RecordDispatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.WSHandlerLatency.Observe(duration.Seconds())
}

// IncReconnects increments the scheduled reconnect counter
func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.WSReconnects.Inc()
	m.mu.Lock()
	m.snapshot.Reconnects++
	m.mu.Unlock()
}

// IncReconnectExhausted increments the exhausted reconnect counter
func (m *Metrics) IncReconnectExhausted() {
	if m == nil {
		return
	}
	m.WSExhausted.Inc()
}

// RecordTx records a finished transaction flow
func (m *Metrics) RecordTx(status, class string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TxOutcomes.WithLabelValues(status, class).Inc()
	m.TxDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.mu.Lock()
	if status == "success" {
		m.snapshot.TxSucceeded++
	} else {
		m.snapshot.TxFailed++
	}
	m.mu.Unlock()
}

// RecordNetworkSwitch records a network switch outcome
func (m *Metrics) RecordNetworkSwitch(outcome string) {
	if m == nil {
		return
	}
	m.TxSwitches.WithLabelValues(outcome).Inc()
}

// RecordRPC records a chain RPC call
func (m *Metrics) RecordRPC(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RPCCalls.WithLabelValues(method, status).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	if snap.RequestCount > 0 {
		snap.AvgResponseSec = snap.TotalDuration / float64(snap.RequestCount)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
