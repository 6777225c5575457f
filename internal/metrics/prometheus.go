package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "visitor_analytics"

var (
	// RequestsTotal общее количество HTTP запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// CacheLookups результаты обращений к кэшу по метрикам
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by metric and result (hit, miss, error)",
		},
		[]string{"metric", "result"},
	)

	// CacheOperations операции записи в кэш
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache write and maintenance operations",
		},
		[]string{"operation", "status"},
	)

	// CacheBreakerState состояние circuit breaker кэша (0 closed, 1 half-open, 2 open)
	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_breaker_state",
			Help:      "Cache circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// RepositoryQueryDuration задержка запросов к хранилищу
	RepositoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "repository_query_duration_seconds",
			Help:      "Repository query latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"query"},
	)

	// RepositoryErrors ошибки запросов к хранилищу
	RepositoryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_errors_total",
			Help:      "Repository queries that failed or timed out",
		},
		[]string{"query"},
	)

	// DashboardValue последние значения метрик посетителей
	DashboardValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_value",
			Help:      "Most recently computed visitor metric values",
		},
		[]string{"metric"},
	)

	// SkippedPeriods пропущенные некорректные токены периода
	SkippedPeriods = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_skipped_periods_total",
			Help:      "Report rows skipped because of a malformed period token",
		},
		[]string{"report_type"},
	)
)
