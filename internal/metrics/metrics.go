package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatflow",
			Name:      "claims_total",
			Help:      "Count of seat claim attempts by result.",
		},
		[]string{"result"},
	)

	checkIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatflow",
			Name:      "checkins_total",
			Help:      "Count of check-in attempts by result.",
		},
		[]string{"result"},
	)

	checkOuts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatflow",
			Name:      "checkouts_total",
			Help:      "Count of check-out attempts by result.",
		},
		[]string{"result"},
	)

	sweepReclaimed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatflow",
			Name:      "sweep_reclaimed_total",
			Help:      "Count of seats reclaimed by the expiry sweep, by reason.",
		},
		[]string{"reason"},
	)

	extensions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatflow",
			Name:      "extensions_total",
			Help:      "Count of extension requests by result.",
		},
		[]string{"result"},
	)

	adminActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatflow",
			Name:      "admin_actions_total",
			Help:      "Count of administrator actions by kind.",
		},
		[]string{"action"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatflow",
			Name:      "http_requests_total",
			Help:      "Count of handled HTTP requests by route.",
		},
		[]string{"route"},
	)

	seatStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "seatflow",
			Name:      "seats",
			Help:      "Current number of seats by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(claims, checkIns, checkOuts, sweepReclaimed, extensions, adminActions, httpRequests, seatStatus)
	})
}

func IncClaim(result string)        { claims.WithLabelValues(result).Inc() }
func IncCheckIn(result string)      { checkIns.WithLabelValues(result).Inc() }
func IncCheckOut(result string)     { checkOuts.WithLabelValues(result).Inc() }
func IncSweepReclaimed(reason string) { sweepReclaimed.WithLabelValues(reason).Inc() }
func IncExtension(result string)    { extensions.WithLabelValues(result).Inc() }
func IncAdminAction(action string)  { adminActions.WithLabelValues(action).Inc() }
func IncHTTP(route string)          { httpRequests.WithLabelValues(route).Inc() }

// SetSeatCounts replaces the per-status seat gauges with a fresh snapshot.
func SetSeatCounts(counts map[string]int) {
	seatStatus.Reset()
	for status, n := range counts {
		seatStatus.WithLabelValues(status).Set(float64(n))
	}
}
