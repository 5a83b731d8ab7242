package app

import (
	"context"
	"errors"
	"testing"
)

func TestGetOrFetch_SecondCallServedFromCache(t *testing.T) {
	m := NewCacheManager(newMemCache(), map[string]int{"xotelo": 1800}, 900)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "payload", nil
	}

	v, hit, err := GetOrFetch(ctx, m, "xotelo", "k", fetch)
	if err != nil || hit || v != "payload" {
		t.Fatalf("first call: v=%q hit=%v err=%v", v, hit, err)
	}
	v, hit, err = GetOrFetch(ctx, m, "xotelo", "k", fetch)
	if err != nil || !hit || v != "payload" {
		t.Fatalf("second call: v=%q hit=%v err=%v", v, hit, err)
	}
	if calls != 1 {
		t.Fatalf("upstream fetched %d times, want 1", calls)
	}
}

func TestGetOrFetch_FallsThroughWhenCacheFails(t *testing.T) {
	c := newMemCache()
	c.failNext = true
	m := NewCacheManager(c, nil, 900)

	calls := 0
	v, hit, err := GetOrFetch(context.Background(), m, "makcorps", "k", func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("cache outage must not fail the fetch: %v", err)
	}
	if hit || v != 42 || calls != 1 {
		t.Fatalf("expected direct fetch, got v=%d hit=%v calls=%d", v, hit, calls)
	}
}

func TestGetOrFetch_FetchErrorPropagates(t *testing.T) {
	m := NewCacheManager(newMemCache(), nil, 900)
	boom := errors.New("upstream down")

	_, _, err := GetOrFetch(context.Background(), m, "amadeus", "k", func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestCacheManager_TTLPerSource(t *testing.T) {
	m := NewCacheManager(newMemCache(), map[string]int{"xotelo": 1800, "demo": 60}, 900)

	if got := m.TTL("xotelo"); got != 1800 {
		t.Fatalf("xotelo ttl = %d", got)
	}
	if got := m.TTL("demo"); got != 60 {
		t.Fatalf("demo ttl = %d", got)
	}
	if got := m.TTL("unknown"); got != 900 {
		t.Fatalf("default ttl = %d", got)
	}
}
