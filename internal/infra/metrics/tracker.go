package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(trackerOpsTotal, trackerLockContention) }

var (
	trackerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_operations_total",
			Help: "Region tracker operations by kind (add/stats/clear/list).",
		},
		[]string{"op"},
	)

	trackerLockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_lock_contention_total",
			Help: "Times the per-key tracker lock could not be acquired on first try.",
		},
	)
)

func IncTrackerOp(op string) { trackerOpsTotal.WithLabelValues(norm(op)).Inc() }

func IncTrackerLockContention() { trackerLockContention.Inc() }
