// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 投稿操作とディレクトリAPI呼び出しを計測する。
type Collector struct {
	postsCreated     prometheus.Counter
	postsRejected    *prometheus.CounterVec
	directoryReqs    *prometheus.CounterVec
	directoryLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mychirp_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		postsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mychirp_posts_rejected_total",
			Help: "拒否された投稿の理由別合計数",
		}, []string{"reason"}),
		directoryReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mychirp_directory_requests_total",
			Help: "ディレクトリAPI呼び出しの結果別合計数",
		}, []string{"outcome"}),
		directoryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mychirp_directory_latency_seconds",
			Help:    "ディレクトリAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.postsRejected,
		c.directoryReqs,
		c.directoryLatency,
	)

	return c
}

// RecordPostCreated は投稿の作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordPostRejected は投稿の拒否を理由付きで記録する。
// reason: invalid_content, content_not_emoji, rate_limited
func (c *Collector) RecordPostRejected(reason string) {
	c.postsRejected.WithLabelValues(reason).Inc()
}

// RecordDirectoryRequest はディレクトリAPI呼び出しの結果とレイテンシを記録する。
// outcome: success, transport_error, http_error, read_error, parse_error
func (c *Collector) RecordDirectoryRequest(outcome string, duration time.Duration) {
	c.directoryReqs.WithLabelValues(outcome).Inc()
	c.directoryLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
