package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricVisibilityFlips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evaldash_visibility_flips_total",
		Help: "Deadline visibility transitions, push and tick combined.",
	})
	metricRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evaldash_result_recomputes_total",
		Help: "Result-set reloads triggered by change notifications.",
	})
	metricDroppedTimestamps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evaldash_dropped_timestamp_records_total",
		Help: "Result records excluded because their timestamp shape was unrecognized.",
	})
	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evaldash_active_dashboard_sessions",
		Help: "Dashboard sessions currently holding open subscriptions.",
	})
)
