package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsefeed_feed_queries_total",
		Help: "Total feed queries served, by strategy",
	}, []string{"strategy"})
	FeedQueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulsefeed_feed_query_duration_seconds",
		Help:    "Feed query duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	EngagementEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsefeed_engagement_events_total",
		Help: "Total engagement events applied, by kind",
	}, []string{"kind"})
	ViewDedupHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulsefeed_view_dedup_hits_total",
		Help: "Views deduplicated against the daily bucket",
	})
)

func init() {
	prometheus.MustRegister(FeedQueries, FeedQueryDuration, EngagementEvents, ViewDedupHits)
}

// StartServer starts a metrics HTTP server on addr when configured.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveFeedQuery records one served feed query.
func ObserveFeedQuery(strategy string, start time.Time) {
	FeedQueries.WithLabelValues(strategy).Inc()
	FeedQueryDuration.Observe(time.Since(start).Seconds())
}
