package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	GatewayCacheHitsTotal   metric.Int64Counter
	GatewayCacheMissesTotal metric.Int64Counter
	GatewayLiveSearchTotal  metric.Int64Counter
	PlanDurationSeconds     metric.Float64Histogram
	RevisionConflictsTotal  metric.Int64Counter
	DbQueryDurationSeconds  metric.Float64Histogram
	DbQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments exactly once,
// using the meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TripStudio")
		var err error
		m := &AppMetrics{}

		m.GatewayCacheHitsTotal, err = meter.Int64Counter(
			"gateway_cache_hits_total",
			metric.WithDescription("POI gateway requests satisfied from the cache"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_cache_hits_total: %v", err)
		}

		m.GatewayCacheMissesTotal, err = meter.Int64Counter(
			"gateway_cache_misses_total",
			metric.WithDescription("POI gateway requests that found the cache insufficient"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_cache_misses_total: %v", err)
		}

		m.GatewayLiveSearchTotal, err = meter.Int64Counter(
			"gateway_live_search_total",
			metric.WithDescription("Live search provider calls issued by the POI gateway"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gateway_live_search_total: %v", err)
		}

		m.PlanDurationSeconds, err = meter.Float64Histogram(
			"plan_duration_seconds",
			metric.WithDescription("Duration of full itinerary planning runs in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_duration_seconds: %v", err)
		}

		m.RevisionConflictsTotal, err = meter.Int64Counter(
			"revision_conflicts_total",
			metric.WithDescription("Day edit attempts rejected by the optimistic revision check"),
			metric.WithUnit("{conflict}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create revision_conflicts_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
