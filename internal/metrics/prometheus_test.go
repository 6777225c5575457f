package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"visitor-analytics/internal/metrics"
)

func TestCollectorsLint(t *testing.T) {
	tests := []struct {
		name string
		c    prometheus.Collector
	}{
		{"RequestsTotal", metrics.RequestsTotal},
		{"RequestDuration", metrics.RequestDuration},
		{"CacheLookups", metrics.CacheLookups},
		{"CacheOperations", metrics.CacheOperations},
		{"CacheBreakerState", metrics.CacheBreakerState},
		{"RepositoryQueryDuration", metrics.RepositoryQueryDuration},
		{"RepositoryErrors", metrics.RepositoryErrors},
		{"DashboardValue", metrics.DashboardValue},
		{"SkippedPeriods", metrics.SkippedPeriods},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lintErrs, err := testutil.CollectAndLint(tc.c)
			if err != nil {
				t.Errorf("CollectAndLint gather error: %v", err)
			}
			if len(lintErrs) > 0 {
				t.Errorf("prometheus lint errors: %v", lintErrs)
			}
		})
	}
}

func TestCacheLookupsByResult(t *testing.T) {
	metrics.CacheLookups.WithLabelValues("visitors_days", "hit").Inc()
	metrics.CacheLookups.WithLabelValues("visitors_days", "hit").Inc()
	metrics.CacheLookups.WithLabelValues("visitors_days", "miss").Inc()

	if got := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("visitors_days", "hit")); got < 2 {
		t.Errorf("hits: got %v, want >= 2", got)
	}

	expected := `
# HELP visitor_analytics_cache_breaker_state Cache circuit breaker state (0 closed, 1 half-open, 2 open)
# TYPE visitor_analytics_cache_breaker_state gauge
visitor_analytics_cache_breaker_state 2
`
	metrics.CacheBreakerState.Set(2)
	if err := testutil.CollectAndCompare(metrics.CacheBreakerState, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
	metrics.CacheBreakerState.Set(0)
}
