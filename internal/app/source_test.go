package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flex_reviews/internal/adapters/static"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

type fakeClient struct {
	env   domain.ReviewsEnvelope
	err   error
	calls int32
	delay time.Duration
}

func (f *fakeClient) GetReviews(ctx context.Context) (domain.ReviewsEnvelope, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.ReviewsEnvelope{}, ctx.Err()
		}
	}
	return f.env, f.err
}

func liveRecord(id int64, listing string) map[string]any {
	return map[string]any{
		"id":             float64(id),
		"type":           "guest-to-host",
		"status":         "published",
		"rating":         float64(5),
		"publicReview":   "lovely",
		"reviewCategory": []any{map[string]any{"category": "cleanliness", "rating": float64(10)}},
		"submittedAt":    "2025-10-01 12:00:00",
		"guestName":      "Live Guest",
		"listingName":    listing,
	}
}

func bundledCount(t *testing.T) int {
	t.Helper()
	_, rs, err := app.DecodeEnvelope(static.Reviews())
	if err != nil {
		t.Fatalf("bundled dataset invalid: %v", err)
	}
	return len(rs)
}

func TestReviewSource_Live(t *testing.T) {
	cl := &fakeClient{env: domain.ReviewsEnvelope{
		Status: "success",
		Result: []map[string]any{liveRecord(1, "Airbnb - 2B N1 A - 29 Shoreditch Heights")},
	}}
	src := app.NewReviewSource(cl, static.Reviews(), time.Second)

	rs, origin := src.Fetch(context.Background())
	if origin != app.OriginLive {
		t.Fatalf("origin: %s", origin)
	}
	if len(rs) != 1 || rs[0].ID != 1 || rs[0].Channel != "Airbnb" {
		t.Fatalf("unexpected reviews: %+v", rs)
	}
}

func TestReviewSource_FallsBack(t *testing.T) {
	bad := liveRecord(2, "x")
	bad["type"] = "owner-to-guest"

	cases := map[string]*fakeClient{
		"transport error": {err: errors.New("dial tcp: connection refused")},
		"not success":     {env: domain.ReviewsEnvelope{Status: "fail", Result: []map[string]any{liveRecord(1, "x")}}},
		"empty result":    {env: domain.ReviewsEnvelope{Status: "success"}},
		"malformed record": {env: domain.ReviewsEnvelope{Status: "success", Result: []map[string]any{
			liveRecord(1, "x"), bad,
		}}},
	}
	want := bundledCount(t)
	for name, cl := range cases {
		t.Run(name, func(t *testing.T) {
			src := app.NewReviewSource(cl, static.Reviews(), time.Second)
			rs, origin := src.Fetch(context.Background())
			if origin != app.OriginFallback {
				t.Fatalf("origin: %s", origin)
			}
			if len(rs) != want {
				t.Fatalf("expected %d bundled reviews, got %d", want, len(rs))
			}
		})
	}
}

func TestReviewSource_NoUpstreamServesBundled(t *testing.T) {
	src := app.NewReviewSource(nil, static.Reviews(), time.Second)
	rs := src.FetchReviews(context.Background())
	if len(rs) != bundledCount(t) {
		t.Fatalf("got %d", len(rs))
	}
	for _, r := range rs {
		if r.ReviewCategories == nil {
			t.Fatalf("review %d has nil categories", r.ID)
		}
	}
}

func TestReviewSource_TimeoutFallsBack(t *testing.T) {
	cl := &fakeClient{delay: time.Second}
	src := app.NewReviewSource(cl, static.Reviews(), 20*time.Millisecond)

	start := time.Now()
	_, origin := src.Fetch(context.Background())
	if origin != app.OriginFallback {
		t.Fatalf("origin: %s", origin)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("fetch not bounded by timeout")
	}
}

func TestReviewSource_BothUnusableIsEmpty(t *testing.T) {
	cl := &fakeClient{err: errors.New("boom")}
	for name, fb := range map[string][]byte{
		"missing":   nil,
		"not json":  []byte("{"),
		"malformed": []byte(`{"status":"success","result":[{"id":"abc"}]}`),
		"empty":     []byte(`{"status":"success","result":[]}`),
	} {
		t.Run(name, func(t *testing.T) {
			src := app.NewReviewSource(cl, fb, time.Second)
			rs, origin := src.Fetch(context.Background())
			if origin != app.OriginEmpty {
				t.Fatalf("origin: %s", origin)
			}
			if rs == nil || len(rs) != 0 {
				t.Fatalf("expected empty non-nil slice, got %#v", rs)
			}
		})
	}
}

func TestReviewSource_ConcurrentCallersShareRequest(t *testing.T) {
	cl := &fakeClient{
		delay: 100 * time.Millisecond,
		env: domain.ReviewsEnvelope{Status: "success", Result: []map[string]any{
			liveRecord(1, "Airbnb - 29 Shoreditch Heights"),
		}},
	}
	src := app.NewReviewSource(cl, static.Reviews(), time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rs := src.FetchReviews(context.Background()); len(rs) != 1 {
				t.Errorf("got %d reviews", len(rs))
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&cl.calls); n >= 5 {
		t.Fatalf("expected coalesced upstream calls, got %d", n)
	}

	// nothing is kept once the request completes
	src.FetchReviews(context.Background())
	if n := atomic.LoadInt32(&cl.calls); n < 2 {
		t.Fatalf("expected a fresh upstream call, got %d total", n)
	}
}
