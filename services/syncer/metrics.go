package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photosync_downloads_total",
		Help: "Assets downloaded from the remote store.",
	}, []string{"collection"})

	skipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photosync_skips_total",
		Help: "Assets already materialized locally, no download performed.",
	}, []string{"collection"})

	itemFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photosync_item_failures_total",
		Help: "Single-asset download failures after retries.",
	}, []string{"collection"})

	collectionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photosync_collection_failures_total",
		Help: "Collections whose remote listing failed.",
	}, []string{"collection"})

	lastRunUnix = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "photosync_last_run_timestamp_seconds",
		Help: "Unix time of the last completed sync run.",
	})
)
