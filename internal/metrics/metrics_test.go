package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPipelineRun(t *testing.T) {
	runs := testutil.ToFloat64(pipelineRunsTotal)
	solved := testutil.ToFloat64(segmentsSolvedTotal)
	bad := testutil.ToFloat64(segmentsNonConvergedTotal)

	RecordPipelineRun(20*time.Millisecond, 12, 1)

	assert.Equal(t, runs+1, testutil.ToFloat64(pipelineRunsTotal))
	assert.Equal(t, solved+12, testutil.ToFloat64(segmentsSolvedTotal))
	assert.Equal(t, bad+1, testutil.ToFloat64(segmentsNonConvergedTotal))
}

func TestRecordWeatherAndCache(t *testing.T) {
	before := testutil.ToFloat64(weatherRequestsTotal.WithLabelValues(OutcomeOutOfRange))
	RecordWeatherRequest(OutcomeOutOfRange)
	assert.Equal(t, before+1, testutil.ToFloat64(weatherRequestsTotal.WithLabelValues(OutcomeOutOfRange)))

	hits := testutil.ToFloat64(cacheHitsTotal.WithLabelValues("test"))
	RecordCacheHit("test")
	RecordCacheMiss("test")
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheHitsTotal.WithLabelValues("test")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(cacheMissesTotal.WithLabelValues("test")), 1.0)
}

func TestRecordBreakerState(t *testing.T) {
	RecordBreakerState("weather-test", 0.5)
	assert.Equal(t, 0.5, testutil.ToFloat64(breakerState.WithLabelValues("weather-test")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/health", "GET", "200"))
	RecordHTTPRequest("/health", "GET", 200, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/health", "GET", "200")))
}
