package wizard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sportsbet",
		Subsystem: "wizard",
		Name:      "fetches_total",
		Help:      "Stage fetches by outcome.",
	}, []string{"stage", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sportsbet",
		Subsystem: "wizard",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of stage fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	staleFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sportsbet",
		Subsystem: "wizard",
		Name:      "stale_fetches_total",
		Help:      "Fetch completions discarded after invalidation.",
	})
)

func observeFetch(stage Stage, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	fetchesTotal.WithLabelValues(stage.String(), outcome).Inc()
	fetchDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
}
