package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage names shared by the histogram and the rolling window.
const (
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
	StageStore      = "store"
	StageTotal      = "total"
)

// Asset lifecycle events.
const (
	AssetStored    = "stored"
	AssetExpired   = "expired"
	AssetRetrieved = "retrieved"
	AssetMissing   = "missing"
	AssetRecovered = "recovered"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	TranslateRequests *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	LiveAssets        prometheus.Gauge
	AssetEvents       *prometheus.CounterVec
	StageLatency      *prometheus.HistogramVec

	gatherer prometheus.Gatherer
	window   *stageWindow
}

// NewMetrics registers the instruments on reg. A nil reg uses the default
// registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		TranslateRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translate_requests_total",
			Help:      "Translate requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		LiveAssets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_audio_assets",
			Help:      "Number of audio assets awaiting expiry.",
		}),
		AssetEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_asset_events_total",
			Help:      "Audio asset lifecycle events by type.",
		}, []string{"event"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Pipeline stage latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"stage"}),
		gatherer: gatherer,
		window:   newStageWindow(256),
	}
}

// ObserveStage feeds both the histogram and the rolling window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.window.Observe(stage, ms)
}

// ObserveOutcome counts one request result. The perf window keys it by
// endpoint so both translate routes stay apart.
func (m *Metrics) ObserveOutcome(endpoint, outcome string) {
	m.TranslateRequests.WithLabelValues(endpoint, outcome).Inc()
	m.window.ObserveIndicator(endpoint + ":" + outcome)
}

func (m *Metrics) AssetEvent(event string) {
	m.AssetEvents.WithLabelValues(event).Inc()
}

// StageSnapshot returns rolling percentiles for every observed stage.
func (m *Metrics) StageSnapshot() StageSnapshot {
	return m.window.Snapshot()
}

func (m *Metrics) ResetStages() {
	m.window.Reset()
}

// Handler serves the registry the metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
