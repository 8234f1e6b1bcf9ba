package monitoring

import (
	"time"

	"camrelay/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements relay.Metrics and services.DiagnosticsObserver.
type PrometheusCollector struct {
	streamsActive     prometheus.Gauge
	viewersConnected  prometheus.Gauge
	transcoderSpawns  prometheus.Counter
	spawnFailures     prometheus.Counter
	streamEnds        *prometheus.CounterVec
	viewersDropped    prometheus.Counter
	bytesRelayed      prometheus.Counter
	diagnosticsRuns   *prometheus.CounterVec
	diagnosticsTiming prometheus.Histogram
}

// NewPrometheusCollector registers the relay metrics on reg. Tests pass a
// fresh prometheus.NewRegistry to avoid clashing with the default one.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		streamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camrelay_streams_active",
			Help: "Number of streams with a running transcoder",
		}),

		viewersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camrelay_viewers_connected",
			Help: "Number of attached viewers across all streams",
		}),

		transcoderSpawns: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_transcoder_spawns_total",
			Help: "Total number of transcoder processes started",
		}),

		spawnFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_transcoder_spawn_failures_total",
			Help: "Total number of transcoder processes that failed to start",
		}),

		streamEnds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_stream_ends_total",
			Help: "Total number of streams torn down, by reason",
		}, []string{"reason"}),

		viewersDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_viewers_dropped_total",
			Help: "Total number of viewers dropped for falling behind",
		}),

		bytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_bytes_relayed_total",
			Help: "Total bytes delivered to viewers",
		}),

		diagnosticsRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_diagnostics_runs_total",
			Help: "Total number of diagnostics runs, by resulting status",
		}, []string{"status"}),

		diagnosticsTiming: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "camrelay_diagnostics_duration_seconds",
			Help:    "Wall time of diagnostics runs",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}
}

func (p *PrometheusCollector) StreamStarted() {
	p.streamsActive.Inc()
	p.transcoderSpawns.Inc()
}

func (p *PrometheusCollector) StreamEnded(reason string) {
	p.streamsActive.Dec()
	p.streamEnds.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) SpawnFailed() {
	p.spawnFailures.Inc()
}

func (p *PrometheusCollector) ViewerAttached() {
	p.viewersConnected.Inc()
}

func (p *PrometheusCollector) ViewerDetached() {
	p.viewersConnected.Dec()
}

func (p *PrometheusCollector) ViewerDropped() {
	p.viewersDropped.Inc()
}

func (p *PrometheusCollector) BytesRelayed(n int) {
	p.bytesRelayed.Add(float64(n))
}

func (p *PrometheusCollector) ObserveDiagnostics(status domain.DiagnosticsStatus, duration time.Duration) {
	p.diagnosticsRuns.WithLabelValues(string(status)).Inc()
	p.diagnosticsTiming.Observe(duration.Seconds())
}
