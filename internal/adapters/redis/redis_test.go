package redisad_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCache_SetGetDel(t *testing.T) {
	mr, c := newRedis(t)
	cache := redisad.NewFromClient(c)
	ctx := context.Background()

	var got payload
	if ok, err := cache.Get(ctx, "k", &got); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "k", payload{Name: "a", Count: 2}, 30); err != nil {
		t.Fatal(err)
	}
	if ok, err := cache.Get(ctx, "k", &got); !ok || err != nil || got.Name != "a" || got.Count != 2 {
		t.Fatalf("hit: ok=%v err=%v got=%+v", ok, err, got)
	}
	if ttl := mr.TTL("k"); ttl != 30*time.Second {
		t.Fatalf("ttl: %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if ok, _ := cache.Get(ctx, "k", &got); ok {
		t.Fatal("expected expiry")
	}

	_ = cache.Set(ctx, "k2", payload{}, 0)
	if err := cache.Del(ctx, "k2"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("k2") {
		t.Fatal("expected delete")
	}
}

func TestApprovalMirror_RoundTrip(t *testing.T) {
	mr, c := newRedis(t)
	m := redisad.NewApprovalMirror(c, "")
	ctx := context.Background()

	ids, err := m.LoadApproved(ctx)
	if err != nil || ids != nil {
		t.Fatalf("empty mirror: ids=%v err=%v", ids, err)
	}
	if err := m.SaveApproved(ctx, []int64{7454, 7457}); err != nil {
		t.Fatal(err)
	}
	raw, err := mr.Get(redisad.DefaultMirrorKey)
	if err != nil || raw != "[7454,7457]" {
		t.Fatalf("stored %q err=%v", raw, err)
	}
	ids, err = m.LoadApproved(ctx)
	if err != nil || len(ids) != 2 || ids[0] != 7454 || ids[1] != 7457 {
		t.Fatalf("load: %v %v", ids, err)
	}

	if err := m.SaveApproved(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if raw, _ := mr.Get(redisad.DefaultMirrorKey); raw != "[]" {
		t.Fatalf("empty set stored as %q", raw)
	}
}

func TestApprovalMirror_Malformed(t *testing.T) {
	mr, c := newRedis(t)
	m := redisad.NewApprovalMirror(c, "approved")
	_ = mr.Set("approved", `{"not":"an array"}`)

	if _, err := m.LoadApproved(context.Background()); !errors.Is(err, domain.ErrMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestApprovalMirror_Unreachable(t *testing.T) {
	mr, c := newRedis(t)
	m := redisad.NewApprovalMirror(c, "approved")
	mr.Close()

	if _, err := m.LoadApproved(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if err := m.SaveApproved(context.Background(), []int64{1}); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
