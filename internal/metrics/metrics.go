// Argus RidePlan - Ride time and weather planning for GPS routes.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rideplan_pipeline_runs_total",
		Help: "Total route pipeline runs",
	})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rideplan_pipeline_duration_seconds",
		Help:    "Route pipeline execution time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	segmentsSolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rideplan_segments_solved_total",
		Help: "Total segments passed through the power-speed solver",
	})

	segmentsNonConvergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rideplan_segments_non_converged_total",
		Help: "Total segments where the solver stopped above tolerance",
	})

	weatherRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rideplan_weather_requests_total",
		Help: "Weather lookups by outcome",
	}, []string{"outcome"})

	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rideplan_cache_hits_total",
		Help: "Cache hits by cache name",
	}, []string{"cache"})

	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rideplan_cache_misses_total",
		Help: "Cache misses by cache name",
	}, []string{"cache"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rideplan_circuit_breaker_state",
		Help: "Current state of circuit breakers (0=closed, 0.5=half-open, 1=open)",
	}, []string{"breaker"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rideplan_http_requests_total",
		Help: "Total HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rideplan_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "method"})
)

// Weather lookup outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeOutOfRange = "out_of_range"
	OutcomeCached     = "cached"
	OutcomeRejected   = "breaker_open"
)

// RecordPipelineRun records one pipeline run.
func RecordPipelineRun(elapsed time.Duration, segments, nonConverged int) {
	pipelineRunsTotal.Inc()
	pipelineDuration.Observe(elapsed.Seconds())
	segmentsSolvedTotal.Add(float64(segments))
	segmentsNonConvergedTotal.Add(float64(nonConverged))
}

func RecordWeatherRequest(outcome string) {
	weatherRequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordCacheHit(cache string) {
	cacheHitsTotal.WithLabelValues(cache).Inc()
}

func RecordCacheMiss(cache string) {
	cacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordBreakerState takes the gauge value directly so this package does not
// depend on the breaker implementation.
func RecordBreakerState(name string, value float64) {
	breakerState.WithLabelValues(name).Set(value)
}

func RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
