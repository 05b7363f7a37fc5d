package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/article-archiver/internal/crawling"
	"github.com/jonathan/article-archiver/internal/pipeline"
)

var _ pipeline.Recorder = (*Metrics)(nil)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RunFinished("success", 2*time.Second)
	m.ArticleOutcome("saved")
	m.ArticleOutcome("saved")
	m.ArticleOutcome("failed")
	m.CrawlPage(crawling.PageResult{Page: 1, Entries: 5, Candidates: 2, Skipped: 1})
	m.CrawlPage(crawling.PageResult{Page: 2, Err: errors.New("timeout")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CrawlPagesTotal.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CrawlPagesTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CrawlEntriesTotal.WithLabelValues("admitted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CrawlEntriesTotal.WithLabelValues("out_of_window")))
}
