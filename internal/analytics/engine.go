package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"visitor-analytics/internal/cache"
	"visitor-analytics/internal/metrics"
	"visitor-analytics/internal/repository"
)

// TTL кэшированных метрик
const (
	visitorsTTL     = 10 * time.Minute
	currentHourTTL  = 5 * time.Minute
	returningTTL    = 15 * time.Minute
	defaultTopTTL   = 15 * time.Minute
	unknownVendor   = "Unknown"
	returningMinHit = 2
)

// ErrInvalidWindow отрицательное окно в днях
var ErrInvalidWindow = errors.New("window must not be negative")

// Config параметры движка метрик
type Config struct {
	// Sensitivity порог сигнала: учитываются обнаружения с rssi <= Sensitivity
	Sensitivity int
	// TopManufacturersTTL время жизни кэша топа производителей
	TopManufacturersTTL time.Duration
	// ManufacturerRowLimit верхняя граница числа групп в запросе производителей
	ManufacturerRowLimit int
	Location             *time.Location
}

// Option дополнительная настройка движка
type Option func(*Engine)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation задает часовой пояс границ дней и часов
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.cfg.Location = loc
		}
	}
}

// Engine считает метрики посетителей по схеме cache-aside:
// проверка кэша, при промахе запрос в хранилище и запись результата с TTL.
type Engine struct {
	sightings repository.SightingRepository
	devices   repository.DeviceRepository
	cache     cache.Store
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine создает движок метрик. Кэш обязателен; для работы без кэша
// передается cache.NopStore.
func NewEngine(sightings repository.SightingRepository, devices repository.DeviceRepository,
	store cache.Store, cfg Config, log zerolog.Logger, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TopManufacturersTTL <= 0 {
		cfg.TopManufacturersTTL = defaultTopTTL
	}
	e := &Engine{
		sightings: sightings,
		devices:   devices,
		cache:     store,
		cfg:       cfg,
		log:       log.With().Str("component", "analytics").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) localNow() time.Time {
	return e.now().In(e.cfg.Location)
}

// CurrentVisitors число обнаружений с даты (сегодня - windowDays) включительно.
// windowDays = 0 означает "с начала сегодняшнего дня".
func (e *Engine) CurrentVisitors(ctx context.Context, windowDays int) (int64, error) {
	if windowDays < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWindow, windowDays)
	}
	key := fmt.Sprintf("visitors-days-%d", windowDays)

	return e.cachedInt(ctx, "visitors_days", key, visitorsTTL, func(ctx context.Context) (int64, error) {
		cutoff := e.localNow().AddDate(0, 0, -windowDays)
		return e.sightings.CountSightings(ctx, repository.SightingFilter{
			From:    startOfDay(cutoff),
			MaxRSSI: e.cfg.Sensitivity,
		})
	})
}

// CurrentHourVisitors число обнаружений в текущем часе.
// TTL не выходит за границу часа, поэтому после смены часа значение пересчитывается.
func (e *Engine) CurrentHourVisitors(ctx context.Context) (int64, error) {
	now := e.localNow()
	from := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	to := from.Add(time.Hour)

	ttl := currentHourTTL
	if left := to.Sub(now); left < ttl {
		ttl = left
	}

	return e.cachedInt(ctx, "visitors_this_hour", "visitors-this-hour", ttl, func(ctx context.Context) (int64, error) {
		return e.sightings.CountSightings(ctx, repository.SightingFilter{
			From:    from,
			To:      to,
			MaxRSSI: e.cfg.Sensitivity,
		})
	})
}

// ReturningVisitors число устройств, впервые замеченных в окне windowDays
// (исключая последние сутки), замеченных за последние сутки и более двух раз.
func (e *Engine) ReturningVisitors(ctx context.Context, windowDays int) (int64, error) {
	if windowDays < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWindow, windowDays)
	}
	key := fmt.Sprintf("returning-visitors-%d", windowDays)

	return e.cachedInt(ctx, "returning_visitors", key, returningTTL, func(ctx context.Context) (int64, error) {
		now := e.now()
		dayAgo := now.Add(-24 * time.Hour)
		return e.devices.CountReturningDevices(ctx, repository.ReturningFilter{
			SeenLastFrom:  dayAgo,
			SeenFirstFrom: now.Add(-time.Duration(windowDays) * 24 * time.Hour),
			SeenFirstTo:   dayAgo,
			MinCounter:    returningMinHit,
		})
	})
}

// TopManufacturers до n самых частых производителей за lookbackDays.
// Если подходящих производителей меньше n, возвращается укороченный список.
func (e *Engine) TopManufacturers(ctx context.Context, n, lookbackDays int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	if lookbackDays < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, lookbackDays)
	}
	limit := n
	if e.cfg.ManufacturerRowLimit > 0 && limit > e.cfg.ManufacturerRowLimit {
		limit = e.cfg.ManufacturerRowLimit
	}
	key := fmt.Sprintf("top-manufacturers-%d-%d", n, lookbackDays)
	const metric = "top_manufacturers"

	names, err := cache.GetStrings(ctx, e.cache, key)
	if err == nil {
		metrics.CacheLookups.WithLabelValues(metric, "hit").Inc()
		return names, nil
	}
	e.recordLookupFailure(metric, key, err)

	counts, err := e.devices.ManufacturerCounts(ctx, repository.ManufacturerFilter{
		SeenLastFrom: e.now().Add(-time.Duration(lookbackDays) * 24 * time.Hour),
		Exclude:      unknownVendor,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}

	names = make([]string, 0, n)
	for i := 0; i < len(counts) && i < n; i++ {
		names = append(names, counts[i].Manufacturer)
	}
	if len(names) < n {
		e.log.Debug().Int("requested", n).Int("available", len(names)).
			Msg("insufficient manufacturer data, returning shorter list")
	}

	if err := cache.SetStrings(ctx, e.cache, key, names, e.cfg.TopManufacturersTTL); err != nil {
		e.recordWriteFailure(key, err)
	} else {
		metrics.CacheOperations.WithLabelValues("set", "success").Inc()
	}
	return names, nil
}

// cachedInt общая схема cache-aside для целочисленных метрик.
// Ошибки кэша не прерывают вычисление: значение берется из хранилища.
func (e *Engine) cachedInt(ctx context.Context, metric, key string, ttl time.Duration,
	compute func(ctx context.Context) (int64, error)) (int64, error) {
	v, err := cache.GetInt(ctx, e.cache, key)
	if err == nil {
		metrics.CacheLookups.WithLabelValues(metric, "hit").Inc()
		return v, nil
	}
	e.recordLookupFailure(metric, key, err)

	v, err = compute(ctx)
	if err != nil {
		return 0, err
	}

	if err := cache.SetInt(ctx, e.cache, key, v, ttl); err != nil {
		e.recordWriteFailure(key, err)
	} else {
		metrics.CacheOperations.WithLabelValues("set", "success").Inc()
	}
	return v, nil
}

func (e *Engine) recordLookupFailure(metric, key string, err error) {
	if errors.Is(err, cache.ErrMiss) {
		metrics.CacheLookups.WithLabelValues(metric, "miss").Inc()
		return
	}
	metrics.CacheLookups.WithLabelValues(metric, "error").Inc()
	e.log.Warn().Err(err).Str("key", key).Msg("cache read failed, computing from repository")
}

func (e *Engine) recordWriteFailure(key string, err error) {
	metrics.CacheOperations.WithLabelValues("set", "error").Inc()
	e.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
