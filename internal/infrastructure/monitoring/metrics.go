package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Lifecycle controller metrics
	StartRequests     *prometheus.CounterVec
	Dispatches        *prometheus.CounterVec
	Acknowledgements  *prometheus.CounterVec
	ConsistencyFaults *prometheus.CounterVec
	RegistryRecords   prometheus.Gauge
	RegistryEvictions prometheus.Counter
	StackDepth        prometheus.Gauge

	// Worker host metrics
	WorkerTasks prometheus.Gauge
	QueueDrops  prometheus.Counter

	// Event stream metrics
	WSConnections prometheus.Gauge

	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abilityms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "abilityms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		StartRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abilityms_start_requests_total",
				Help: "Ability start requests by result code",
			},
			[]string{"result"},
		),
		Dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abilityms_lifecycle_dispatches_total",
				Help: "Lifecycle instructions dispatched by target, kind and result",
			},
			[]string{"target", "kind", "result"},
		),
		Acknowledgements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abilityms_lifecycle_acks_total",
				Help: "Lifecycle completion acknowledgements by kind",
			},
			[]string{"kind"},
		),
		ConsistencyFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abilityms_consistency_faults_total",
				Help: "Foreground consistency faults reconciled locally",
			},
			[]string{"reason"},
		),
		RegistryRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "abilityms_registry_records",
				Help: "Number of ability records in the registry",
			},
		),
		RegistryEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "abilityms_registry_evictions_total",
				Help: "Records evicted because the registry was full",
			},
		),
		StackDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "abilityms_stack_depth",
				Help: "Number of entries on the foreground stack",
			},
		),

		WorkerTasks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "abilityms_worker_tasks",
				Help: "Live worker tasks",
			},
		),
		QueueDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "abilityms_worker_queue_drops_total",
				Help: "Commands not delivered because a worker queue was full or closed",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "abilityms_ws_connections",
				Help: "Number of active event stream connections",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "abilityms_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStart records the result of a start request
func (m *Metrics) RecordStart(result string) {
	if m == nil {
		return
	}
	m.StartRequests.WithLabelValues(result).Inc()
}

// RecordDispatch records a lifecycle dispatch
func (m *Metrics) RecordDispatch(target, kind, result string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(target, kind, result).Inc()
}

// RecordAck records a completion acknowledgement
func (m *Metrics) RecordAck(kind string) {
	if m == nil {
		return
	}
	m.Acknowledgements.WithLabelValues(kind).Inc()
}

// RecordFault records a reconciled consistency fault
func (m *Metrics) RecordFault(reason string) {
	if m == nil {
		return
	}
	m.ConsistencyFaults.WithLabelValues(reason).Inc()
}

// SetRegistrySize sets the number of records in the registry
func (m *Metrics) SetRegistrySize(n int) {
	if m == nil {
		return
	}
	m.RegistryRecords.Set(float64(n))
}

// IncEvictions increments the eviction counter
func (m *Metrics) IncEvictions() {
	if m == nil {
		return
	}
	m.RegistryEvictions.Inc()
}

// SetStackDepth sets the foreground stack depth
func (m *Metrics) SetStackDepth(n int) {
	if m == nil {
		return
	}
	m.StackDepth.Set(float64(n))
}

// SetWorkerTasks sets the number of live worker tasks
func (m *Metrics) SetWorkerTasks(n int) {
	if m == nil {
		return
	}
	m.WorkerTasks.Set(float64(n))
}

// IncQueueDrops increments the dropped command counter
func (m *Metrics) IncQueueDrops() {
	if m == nil {
		return
	}
	m.QueueDrops.Inc()
}

// IncWSConnections increments event stream connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements event stream connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
