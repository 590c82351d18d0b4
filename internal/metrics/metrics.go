// Package metrics exposes console and command counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "chronos"

// Buffer directions used as the "direction" label.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
	Frame    = "frame"
)

// Metrics holds the console metrics.
type Metrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	framesDiscarded prometheus.Counter
	framesTotal     *prometheus.CounterVec
	bytesDropped    *prometheus.CounterVec
	bytesReceived   prometheus.Counter
	bytesSent       prometheus.Counter
	sessionsTotal   *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	outboundBacklog prometheus.Gauge
}

// New registers the metrics with reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands dispatched by function and outcome code",
		}, []string{"function", "code"}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time from frame completion to command outcome",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"function"}),

		framesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_discarded_total",
			Help:      "Frames matching no command grammar",
		}),

		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames assembled from the byte stream",
		}, []string{"result"}),

		bytesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_dropped_total",
			Help:      "Bytes dropped on buffer overflow",
		}, []string{"direction"}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from console connections",
		}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to console connections",
		}),

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Console connections by result",
		}, []string{"result"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Console connections currently served",
		}),

		outboundBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbound_backlog_bytes",
			Help:      "Bytes queued for the client at the last output tick",
		}),
	}
}

// CommandDispatched records a dispatch outcome.
func (m *Metrics) CommandDispatched(function, code string, latency time.Duration) {
	m.commandsTotal.WithLabelValues(function, code).Inc()
	m.commandDuration.WithLabelValues(function).Observe(latency.Seconds())
}

// FrameDiscarded counts a frame that matched no grammar.
func (m *Metrics) FrameDiscarded() {
	m.framesDiscarded.Inc()
}

// FrameAssembled counts a completed frame.
func (m *Metrics) FrameAssembled(truncated bool) {
	result := "complete"
	if truncated {
		result = "truncated"
	}
	m.framesTotal.WithLabelValues(result).Inc()
}

// BytesDropped counts bytes lost in direction.
func (m *Metrics) BytesDropped(direction string, n int) {
	if n > 0 {
		m.bytesDropped.WithLabelValues(direction).Add(float64(n))
	}
}

// BytesReceived counts bytes read from the client.
func (m *Metrics) BytesReceived(n int) {
	m.bytesReceived.Add(float64(n))
}

// BytesSent counts bytes written to the client.
func (m *Metrics) BytesSent(n int) {
	m.bytesSent.Add(float64(n))
}

// SessionOpened marks an accepted connection.
func (m *Metrics) SessionOpened() {
	m.sessionsTotal.WithLabelValues("accepted").Inc()
	m.activeSessions.Inc()
}

// SessionClosed marks the end of an accepted connection.
func (m *Metrics) SessionClosed() {
	m.activeSessions.Dec()
}

// SessionRejected marks a connection refused by the allow-list.
func (m *Metrics) SessionRejected() {
	m.sessionsTotal.WithLabelValues("rejected").Inc()
}

// OutboundBacklog records the outbound buffer length.
func (m *Metrics) OutboundBacklog(n int) {
	m.outboundBacklog.Set(float64(n))
}

// Server serves /metrics for a registry.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics endpoint on addr backed by g.
func NewServer(addr string, g prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.Named("metrics"),
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics endpoint listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the endpoint.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
