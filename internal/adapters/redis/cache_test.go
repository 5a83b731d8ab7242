package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "umrah_prices/internal/adapters/redis"
)

func TestCache_SetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	type payload struct {
		Provider string  `json:"provider"`
		Price    float64 `json:"price"`
	}

	ok, err := c.Get(ctx, "offers:xotelo:MAKKAH", &payload{})
	if err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}

	in := payload{Provider: "xotelo", Price: 940}
	if err := c.Set(ctx, "offers:xotelo:MAKKAH", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out payload
	ok, err = c.Get(ctx, "offers:xotelo:MAKKAH", &out)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if err := c.Del(ctx, "offers:xotelo:MAKKAH"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, _ = c.Get(ctx, "offers:xotelo:MAKKAH", &out)
	if ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestCache_NamespacedKeysAndBadPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", 42, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("up:k") {
		t.Fatalf("expected namespaced key up:k, have %v", mr.Keys())
	}

	// an entry written under an older schema decodes as a miss, not an error
	mr.Set("up:stale", "not-json")
	var out struct{ N int }
	ok, err := c.Get(ctx, "stale", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("undecodable entry should read as miss")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 30); err != nil {
		t.Fatalf("set: %v", err)
	}

	// miniredis advances TTLs manually
	mr.FastForward(31 * time.Second)

	var out string
	ok, err := c.Get(ctx, "k", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected entry to expire")
	}
}
