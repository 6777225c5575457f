package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"visitor-analytics/internal/metrics"
)

// BreakerConfig параметры circuit breaker для кэша
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

// Breaker оборачивает Store в circuit breaker: при недоступном кэше
// вызовы сразу завершаются с ErrUnavailable, не дожидаясь таймаутов.
type Breaker struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker создает обертку над inner
func NewBreaker(inner Store, cfg BreakerConfig, log zerolog.Logger) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CacheBreakerState.Set(float64(to))
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("cache circuit breaker state changed")
		},
	}
	return &Breaker{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.cb.Execute(func() ([]byte, error) {
		return b.inner.Get(ctx, key)
	})
	return val, breakerErr(err)
}

func (b *Breaker) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.inner.Set(ctx, key, value, ttl)
	})
	return breakerErr(err)
}

// Ping идет мимо breaker, чтобы health check видел реальное состояние
func (b *Breaker) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

func (b *Breaker) Close() error {
	return b.inner.Close()
}

// State текущее состояние breaker
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// GetStats дополняет статистику хранилища состоянием breaker
func (b *Breaker) GetStats() map[string]interface{} {
	stats := map[string]interface{}{}
	if sp, ok := b.inner.(StatsProvider); ok {
		stats = sp.GetStats()
	}
	stats["breaker_state"] = b.State()
	return stats
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
