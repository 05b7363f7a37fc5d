package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonathan/article-archiver/internal/crawling"
)

// MetricsNamespace is the namespace for all archiver metrics.
const MetricsNamespace = "archiver"

// Metrics holds the Prometheus metrics of the archiver.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds prometheus.Histogram
	ArticlesTotal      *prometheus.CounterVec
	CrawlPagesTotal    *prometheus.CounterVec
	CrawlEntriesTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "runs_total",
				Help:      "Total number of crawl runs by status",
			},
			[]string{"status"},
		),
		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of crawl runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
		),
		ArticlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "articles_total",
				Help:      "Candidate articles processed by outcome",
			},
			[]string{"outcome"},
		),
		CrawlPagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "crawl_pages_total",
				Help:      "Search result pages visited by result",
			},
			[]string{"result"},
		),
		CrawlEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "crawl_entries_total",
				Help:      "Search result entries by result",
			},
			[]string{"result"},
		),
	}
}

// RunFinished records a completed run.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.Observe(d.Seconds())
}

// ArticleOutcome records the outcome of one candidate.
func (m *Metrics) ArticleOutcome(kind string) {
	m.ArticlesTotal.WithLabelValues(kind).Inc()
}

// CrawlPage records one search result page.
func (m *Metrics) CrawlPage(res crawling.PageResult) {
	if res.Err != nil {
		m.CrawlPagesTotal.WithLabelValues("failed").Inc()
		return
	}
	m.CrawlPagesTotal.WithLabelValues("read").Inc()
	m.CrawlEntriesTotal.WithLabelValues("admitted").Add(float64(res.Candidates))
	m.CrawlEntriesTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	m.CrawlEntriesTotal.WithLabelValues("out_of_window").Add(float64(res.Entries - res.Candidates - res.Skipped))
}
