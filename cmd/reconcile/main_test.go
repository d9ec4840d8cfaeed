package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"flex_reviews/internal/adapters/static"
	"flex_reviews/internal/app"
)

type memBackend struct{ ids []int64 }

func (m *memBackend) LoadApproved(context.Context) ([]int64, error) { return m.ids, nil }
func (m *memBackend) SaveApproved(_ context.Context, ids []int64) error {
	m.ids = ids
	return nil
}

func TestGather_NoReviewsAborts(t *testing.T) {
	store := app.NewStore(&memBackend{ids: []int64{7454}}, nil, time.Minute, time.Second)
	src := app.NewReviewSource(nil, []byte(`{"status":"success","result":[]}`), time.Second)

	_, origin, err := gather(context.Background(), store, src)
	if !errors.Is(err, errNoReviews) {
		t.Fatalf("expected errNoReviews, got %v", err)
	}
	if origin != app.OriginEmpty {
		t.Fatalf("origin = %q", origin)
	}
}

func TestGather_LoadsStoreAndReviews(t *testing.T) {
	store := app.NewStore(&memBackend{ids: []int64{7453, 7454}}, nil, time.Minute, time.Second)
	src := app.NewReviewSource(nil, static.Reviews(), time.Second)

	reviews, origin, err := gather(context.Background(), store, src)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if origin != app.OriginFallback || len(reviews) == 0 {
		t.Fatalf("origin=%q reviews=%d", origin, len(reviews))
	}
	if got := store.IDs(); len(got) != 2 {
		t.Fatalf("store not loaded: %v", got)
	}

	// 7453 is a host-to-guest review in the bundled data
	evicted, err := app.NewCurator(store, snapshot(reviews)).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != 7453 {
		t.Fatalf("evicted = %v", evicted)
	}
}
