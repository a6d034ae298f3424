// Package metrics 定义 FeedHub 的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Name:      "feed_fetch_total",
			Help:      "Total number of feed fetches by outcome",
		},
		[]string{"status"},
	)

	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedhub",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of single feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Name:      "refresh_total",
			Help:      "Total number of full refresh runs by outcome",
		},
		[]string{"status"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedhub",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of full refresh runs in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	HostWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedhub",
			Name:      "host_wait_duration_seconds",
			Help:      "Time a feed fetch waited for its host's request slot",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	ArchiveArticles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "feedhub",
			Name:      "archive_articles",
			Help:      "Number of articles currently kept in the archive",
		},
	)
)

// RecordFeedFetch status 取 ok / error
func RecordFeedFetch(status string, d time.Duration) {
	FeedFetchTotal.WithLabelValues(status).Inc()
	FeedFetchDuration.Observe(d.Seconds())
}

func RecordHostWait(d time.Duration) {
	HostWaitDuration.Observe(d.Seconds())
}

func RecordRefresh(status string, d time.Duration, archived int) {
	RefreshTotal.WithLabelValues(status).Inc()
	RefreshDuration.Observe(d.Seconds())
	if status == "ok" {
		ArchiveArticles.Set(float64(archived))
	}
}
