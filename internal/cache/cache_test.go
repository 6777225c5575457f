package cache

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestBolt(t *testing.T) *BoltCache {
	t.Helper()
	b, err := NewBoltCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltCache: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBoltRoundTripAndExpiry(t *testing.T) {
	b := newTestBolt(t)
	clock := time.Date(2023, 6, 5, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	ctx := context.Background()

	if _, err := b.Get(ctx, "visitors-days-0"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get before Set: expected ErrMiss, got %v", err)
	}

	if err := b.Set(ctx, "visitors-days-0", []byte("42"), 10*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clock = clock.Add(9 * time.Minute)
	got, err := b.Get(ctx, "visitors-days-0")
	if err != nil {
		t.Fatalf("Get within TTL: %v", err)
	}
	if string(got) != "42" {
		t.Errorf("value: got %q, want \"42\"", got)
	}

	clock = clock.Add(time.Minute)
	if _, err := b.Get(ctx, "visitors-days-0"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get after TTL: expected ErrMiss, got %v", err)
	}
}

func TestBoltOverwriteResetsTTL(t *testing.T) {
	b := newTestBolt(t)
	clock := time.Now()
	b.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = b.Set(ctx, "k", []byte("1"), time.Minute)
	clock = clock.Add(50 * time.Second)
	_ = b.Set(ctx, "k", []byte("2"), time.Minute)
	clock = clock.Add(50 * time.Second)

	got, err := b.Get(ctx, "k")
	if err != nil || string(got) != "2" {
		t.Fatalf("got %q, %v; want \"2\"", got, err)
	}
}

func TestBoltPrune(t *testing.T) {
	b := newTestBolt(t)
	clock := time.Now()
	b.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = b.Set(ctx, "short", []byte("1"), time.Minute)
	_ = b.Set(ctx, "long", []byte("2"), time.Hour)
	clock = clock.Add(2 * time.Minute)

	n, err := b.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned: got %d, want 1", n)
	}
	if _, err := b.Get(ctx, "long"); err != nil {
		t.Errorf("long-lived entry should survive prune: %v", err)
	}
	if keys := b.GetStats()["keys"]; keys != 1 {
		t.Errorf("keys after prune: got %v", keys)
	}
}

func TestCodecInt(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	if err := SetInt(ctx, b, "returning-visitors-30", 17, time.Minute); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	raw, _ := b.Get(ctx, "returning-visitors-30")
	if string(raw) != "17" {
		t.Errorf("stored form: got %q, want decimal string", raw)
	}
	v, err := GetInt(ctx, b, "returning-visitors-30")
	if err != nil || v != 17 {
		t.Errorf("GetInt: got %d, %v", v, err)
	}

	_ = b.Set(ctx, "garbage", []byte("seventeen"), time.Minute)
	if _, err := GetInt(ctx, b, "garbage"); !errors.Is(err, ErrMiss) {
		t.Errorf("undecodable value should read as miss, got %v", err)
	}
}

func TestCodecStrings(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	if err := SetStrings(ctx, b, "top", []string{"Apple", "Samsung"}, time.Minute); err != nil {
		t.Fatalf("SetStrings: %v", err)
	}
	got, err := GetStrings(ctx, b, "top")
	if err != nil {
		t.Fatalf("GetStrings: %v", err)
	}
	if len(got) != 2 || got[0] != "Apple" || got[1] != "Samsung" {
		t.Errorf("got %v", got)
	}

	if err := SetStrings(ctx, b, "empty", []string{}, time.Minute); err != nil {
		t.Fatal(err)
	}
	empty, err := GetStrings(ctx, b, "empty")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("empty list: got %#v, %v", empty, err)
	}
}

func TestNopStoreAlwaysMisses(t *testing.T) {
	var s Store = NopStore{}
	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

type flakyStore struct {
	NopStore
	calls atomic.Int32
	err   error
}

func (f *flakyStore) Get(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return nil, ErrMiss
}

func TestBreakerOpensOnFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("dial tcp: connection refused")}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 3, Timeout: time.Minute}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Get(ctx, "k"); err == nil {
			t.Fatal("expected error from failing store")
		}
	}
	if b.State() != "open" {
		t.Fatalf("state: got %s, want open", b.State())
	}

	_, err := b.Get(ctx, "k")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("open breaker should return ErrUnavailable, got %v", err)
	}
	if inner.calls.Load() != 3 {
		t.Errorf("inner calls: got %d, want 3", inner.calls.Load())
	}
	if stats := b.GetStats(); stats["breaker_state"] != "open" {
		t.Errorf("stats: %v", stats)
	}
}

func TestBreakerIgnoresMisses(t *testing.T) {
	inner := &flakyStore{}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, zerolog.Nop())

	for i := 0; i < 10; i++ {
		if _, err := b.Get(context.Background(), "k"); !errors.Is(err, ErrMiss) {
			t.Fatalf("expected ErrMiss, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("misses must not trip the breaker, state %s", b.State())
	}
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedisCache(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, 2*time.Second)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer r.Close()

	key := "visitor-analytics-test-" + time.Now().Format("150405.000000")
	if err := SetInt(ctx, r, key, 5, time.Second); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	v, err := GetInt(ctx, r, key)
	if err != nil || v != 5 {
		t.Fatalf("GetInt: got %d, %v", v, err)
	}

	time.Sleep(1200 * time.Millisecond)
	if _, err := r.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestRedisUnreachable(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "127.0.0.1:1", "", 0, 200*time.Millisecond)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
