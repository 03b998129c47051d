// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/ludoclient/logger"
)

type Metrics struct {
	EventsHandled      *prometheus.CounterVec
	EventLatency       prometheus.Histogram
	QueueDepth         prometheus.Gauge
	ProtocolViolations *prometheus.CounterVec
	IgnoredInput       prometheus.Counter
	ForfeitsSent       prometheus.Counter
	TimeoutRaces       prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Inbound events handled by the turn consumer",
		}, []string{"source", "kind"}),
		EventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_latency_seconds",
			Help:      "Time between an event being queued and handled",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbound_queue_depth",
			Help:      "Events waiting for the turn consumer",
		}),
		ProtocolViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_violations_total",
			Help:      "Server messages that were logged and ignored",
		}, []string{"kind"}),
		IgnoredInput: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_input_total",
			Help:      "Clicks and roll requests rejected locally",
		}),
		ForfeitsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forfeits_sent_total",
			Help:      "Turns forfeited on timeout",
		}),
		TimeoutRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeout_races_total",
			Help:      "Forfeit signals dropped because the turn had already ended",
		}),
	}

	reg.MustRegister(
		m.EventsHandled,
		m.EventLatency,
		m.QueueDepth,
		m.ProtocolViolations,
		m.IgnoredInput,
		m.ForfeitsSent,
		m.TimeoutRaces,
	)

	return m
}

// Monitor records client metrics. A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
	server    *http.Server
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

// Metrics exposes the underlying collectors, mostly for tests.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

var publishOnce sync.Once

// StartServer serves /metrics and /debug/vars on addr in the background.
func (m *Monitor) StartServer(addr string) {
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	m.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("metrics server on %s stopped: %v", addr, err)
		}
	}()
}

// Shutdown stops the metrics server if it was started.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) ObserveEvent(source, kind string, latency time.Duration) {
	if m == nil {
		return
	}
	m.metrics.EventsHandled.WithLabelValues(source, kind).Inc()
	if latency >= 0 {
		m.metrics.EventLatency.Observe(latency.Seconds())
	}
}

func (m *Monitor) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.metrics.QueueDepth.Set(float64(n))
}

func (m *Monitor) IncProtocolViolation(kind string) {
	if m == nil {
		return
	}
	m.metrics.ProtocolViolations.WithLabelValues(kind).Inc()
}

func (m *Monitor) IncIgnoredInput() {
	if m == nil {
		return
	}
	m.metrics.IgnoredInput.Inc()
}

func (m *Monitor) IncForfeitsSent() {
	if m == nil {
		return
	}
	m.metrics.ForfeitsSent.Inc()
}

func (m *Monitor) IncTimeoutRaces() {
	if m == nil {
		return
	}
	m.metrics.TimeoutRaces.Inc()
}
