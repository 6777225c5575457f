package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// GetInt читает целое, сохраненное как десятичная строка.
// Нераспознанное значение считается промахом.
func GetInt(ctx context.Context, s Store, key string) (int64, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: decode int %q: %v", ErrMiss, key, err)
	}
	return v, nil
}

// SetInt сохраняет целое как десятичную строку
func SetInt(ctx context.Context, s Store, key string, v int64, ttl time.Duration) error {
	return s.Set(ctx, key, []byte(strconv.FormatInt(v, 10)), ttl)
}

// GetStrings читает список строк в msgpack
func GetStrings(ctx context.Context, s Store, key string) ([]string, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode list %q: %v", ErrMiss, key, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// SetStrings сохраняет список строк в msgpack
func SetStrings(ctx context.Context, s Store, key string, v []string, ttl time.Duration) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal list %q: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
