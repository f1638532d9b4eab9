package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/STRATINT/insights/internal/models"
)

const defaultNamespace = "insights"

// InsightCollector exposes Prometheus metrics for the insight lifecycle.
type InsightCollector struct {
	registry  *prometheus.Registry
	generated *prometheus.CounterVec
	closed    *prometheus.CounterVec
	scores    *prometheus.HistogramVec
	open      prometheus.Gauge
}

// NewInsightCollector constructs a collector on a private registry. An empty
// namespace uses "insights".
func NewInsightCollector(namespace string) (*InsightCollector, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	registry := prometheus.NewRegistry()

	generated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generated_total",
		Help:      "Total number of insights handed to the manager.",
	}, []string{"type", "direction"})

	closed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "closed_total",
		Help:      "Total number of insights whose score was finalized.",
	}, []string{"type"})

	scores := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "score",
		Help:      "Distribution of final insight scores.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"score_type"})

	open := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open",
		Help:      "Number of insights currently being scored.",
	})

	for _, c := range []prometheus.Collector{generated, closed, scores, open} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &InsightCollector{
		registry:  registry,
		generated: generated,
		closed:    closed,
		scores:    scores,
		open:      open,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *InsightCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteToTextfile writes the current metrics in the text exposition format.
func (c *InsightCollector) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Generated records a newly generated insight.
func (c *InsightCollector) Generated(insight *models.Insight) {
	c.generated.WithLabelValues(string(insight.Type()), insight.Direction().String()).Inc()
	c.open.Inc()
}

// Closed records an insight whose score was finalized.
func (c *InsightCollector) Closed(insight *models.Insight) {
	score := insight.Score()
	c.closed.WithLabelValues(string(insight.Type())).Inc()
	c.scores.WithLabelValues(string(models.ScoreTypeDirection)).Observe(score.Direction)
	if insight.Magnitude() != nil {
		c.scores.WithLabelValues(string(models.ScoreTypeMagnitude)).Observe(score.Magnitude)
	}
	c.open.Dec()
}
