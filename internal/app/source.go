package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

// Origin records which source served a fetch.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
	OriginEmpty    Origin = "empty"
)

const successStatus = "success"

var errEmptyResult = errors.New("empty result")

type fetchResult struct {
	reviews []domain.CanonicalReview
	origin  Origin
}

// ReviewSource produces the canonical review collection. The upstream is
// optional; when it is nil or unusable the bundled dataset is served instead.
type ReviewSource struct {
	upstream domain.ReviewsClient
	fallback []byte
	timeout  time.Duration
	sf       singleflight.Group
}

func NewReviewSource(upstream domain.ReviewsClient, fallback []byte, timeout time.Duration) *ReviewSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReviewSource{upstream: upstream, fallback: fallback, timeout: timeout}
}

// FetchReviews never fails; an empty slice means both sources were unusable.
func (s *ReviewSource) FetchReviews(ctx context.Context) []domain.CanonicalReview {
	rs, _ := s.Fetch(ctx)
	return rs
}

// Fetch is FetchReviews plus the origin that served the result.
// Concurrent callers share one in-flight upstream request; nothing is kept
// once it completes.
func (s *ReviewSource) Fetch(ctx context.Context) ([]domain.CanonicalReview, Origin) {
	v, _, _ := s.sf.Do("reviews", func() (any, error) {
		// bounded by s.timeout; one caller hanging up must not fail the others
		return s.fetch(context.WithoutCancel(ctx)), nil
	})
	res := v.(fetchResult)
	// callers own their slice
	out := make([]domain.CanonicalReview, len(res.reviews))
	copy(out, res.reviews)
	return out, res.origin
}

func (s *ReviewSource) fetch(ctx context.Context) fetchResult {
	live, err := s.fetchLive(ctx)
	if err == nil {
		observability.ObserveReviewSource(string(OriginLive))
		log.Debug().Int("count", len(live)).Msg("reviews served from upstream")
		return fetchResult{reviews: NormalizeAll(live), origin: OriginLive}
	}
	log.Warn().Err(err).Msg("upstream reviews unusable, serving bundled dataset")

	fb, ferr := s.fetchFallback()
	if ferr != nil {
		observability.ObserveReviewSource(string(OriginEmpty))
		log.Error().Err(ferr).Msg("bundled dataset unusable, serving no reviews")
		return fetchResult{reviews: []domain.CanonicalReview{}, origin: OriginEmpty}
	}
	observability.ObserveReviewSource(string(OriginFallback))
	return fetchResult{reviews: NormalizeAll(fb), origin: OriginFallback}
}

func (s *ReviewSource) fetchLive(ctx context.Context) ([]domain.RawReview, error) {
	if s.upstream == nil {
		return nil, errors.New("no upstream configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	env, err := s.upstream.GetReviews(ctx)
	if err != nil {
		return nil, err
	}
	if env.Status != successStatus {
		return nil, fmt.Errorf("%w: upstream status %q", domain.ErrMalformed, env.Status)
	}
	if len(env.Result) == 0 {
		return nil, errEmptyResult
	}
	return DecodeRecords(env.Result)
}

func (s *ReviewSource) fetchFallback() ([]domain.RawReview, error) {
	if len(s.fallback) == 0 {
		return nil, errors.New("no bundled dataset")
	}
	status, rs, err := DecodeEnvelope(s.fallback)
	if err != nil {
		return nil, err
	}
	if status != successStatus {
		return nil, fmt.Errorf("%w: bundled status %q", domain.ErrMalformed, status)
	}
	if len(rs) == 0 {
		return nil, errEmptyResult
	}
	return rs, nil
}
