// Package metrics holds the Prometheus collectors of the home server. They are
// served by the admin package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplehome_commands_total",
		Help: "Commands executed, by command and resulting message kind",
	}, []string{"command", "kind"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simplehome_command_duration_seconds",
		Help:    "Duration of command execution",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	LevelingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leveling_request_duration_seconds",
		Help:    "Duration of leveling service requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	LevelingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leveling_requests_total",
		Help: "Total number of leveling service requests",
	}, []string{"status"})

	TierFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simplehome_tier_fallbacks_total",
		Help: "Tier lookups that failed and were treated as tier 0",
	})

	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simplehome_saves_total",
		Help: "Player saves, by trigger (flush, checkpoint, full) and status",
	}, []string{"trigger", "status"})
)

// RegisterHomesGauge exposes the current number of stored homes, computed by
// count on every scrape.
//
// Precondition: count must be safe for concurrent use. Call at most once per registerer.
func RegisterHomesGauge(reg prometheus.Registerer, count func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "simplehome_homes",
		Help: "Homes currently held in the store",
	}, func() float64 { return float64(count()) }))
}
