package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss ключ отсутствует или истек его TTL
	ErrMiss = errors.New("cache miss")

	// ErrUnavailable хранилище недоступно
	ErrUnavailable = errors.New("cache unavailable")
)

// Store key-value хранилище с TTL на каждый ключ.
// Истекший ключ неотличим от никогда не записанного.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// StatsProvider хранилище, отдающее статистику для /stats
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// NopStore хранилище для отключенного кэша: любое чтение промахивается
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NopStore) Ping(context.Context) error { return nil }

func (NopStore) Close() error { return nil }
