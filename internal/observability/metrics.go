// Package observability provides Prometheus metrics for the application.
package observability

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapsulesSubmitted counts capsule and response submissions by kind.
	CapsulesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_submitted_total",
		Help: "Total number of submitted capsules and responses",
	}, []string{"kind"})

	// CapsulesWithdrawn counts successful withdrawals by kind.
	CapsulesWithdrawn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_withdrawn_total",
		Help: "Total number of withdrawn capsules and responses",
	}, []string{"kind"})

	// CapsulesPublished counts rows flipped to published by the sweeper.
	CapsulesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_published_total",
		Help: "Total number of rows published by the sweep",
	}, []string{"kind"})

	// SweepRuns counts publication sweep cycles by outcome.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_sweep_runs_total",
		Help: "Total number of publication sweep cycles",
	}, []string{"outcome"})

	// ScoreRecomputations counts depth score recomputation cycles by outcome.
	ScoreRecomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_score_recomputations_total",
		Help: "Total number of depth score recomputation cycles",
	}, []string{"outcome"})

	// ReactionsToggled counts reaction toggles by result.
	ReactionsToggled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_reactions_toggled_total",
		Help: "Total number of reaction toggles",
	}, []string{"result"})

	// ReadsRecorded counts read events by disposition.
	ReadsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_reads_recorded_total",
		Help: "Total number of read events, including discarded bounces",
	}, []string{"disposition"})

	// FeedSectionFailures counts feed sections that returned degraded results.
	FeedSectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_feed_section_failures_total",
		Help: "Total number of feed sections that failed to load",
	}, []string{"section"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capsules_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

// InitMetrics sets up the fiberprometheus middleware and the /metrics route.
func InitMetrics(serviceName string, app *fiber.App) {
	prom := fiberprometheus.New(serviceName)
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
}
