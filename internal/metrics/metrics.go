// Package metrics holds the Prometheus collectors shared by the advisory
// components. Collectors register on the default registry, which the HTTP
// layer exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WeatherCacheLookups counts weather cache reads by result (hit, miss).
	WeatherCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crop_advisory",
		Name:      "weather_cache_lookups_total",
		Help:      "Weather cache lookups partitioned by result.",
	}, []string{"result"})

	// UpstreamRequests counts weather provider calls by outcome
	// (ok, config, invalid_request, upstream).
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crop_advisory",
		Name:      "weather_upstream_requests_total",
		Help:      "Weather provider requests partitioned by outcome.",
	}, []string{"provider", "outcome"})

	// RuleLoads counts effective crop rule dataset parses.
	RuleLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crop_advisory",
		Name:      "rule_loads_total",
		Help:      "Crop rule dataset loads partitioned by outcome.",
	}, []string{"outcome"})

	// RuleRowsSkipped counts malformed rule rows dropped during a load.
	RuleRowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crop_advisory",
		Name:      "rule_rows_skipped_total",
		Help:      "Malformed crop rule rows skipped while loading.",
	})

	// Recommendations counts recommendation requests by outcome (ok, error).
	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crop_advisory",
		Name:      "recommendations_total",
		Help:      "Crop recommendations partitioned by outcome.",
	}, []string{"outcome"})
)
