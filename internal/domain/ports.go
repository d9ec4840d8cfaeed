package domain

import "context"

// ReviewsEnvelope is the upstream response shape, also used by the bundled dataset.
type ReviewsEnvelope struct {
	Status string           `json:"status"`
	Result []map[string]any `json:"result"`
}

type ReviewsClient interface {
	GetReviews(ctx context.Context) (ReviewsEnvelope, error)
}

// ReviewFetcher is what query and command services need from the review source.
type ReviewFetcher interface {
	FetchReviews(ctx context.Context) []CanonicalReview
}

// ApprovalBackend persists the full approved-id set. Both the durable store
// and the local mirror implement it.
type ApprovalBackend interface {
	LoadApproved(ctx context.Context) ([]int64, error)
	SaveApproved(ctx context.Context, ids []int64) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
