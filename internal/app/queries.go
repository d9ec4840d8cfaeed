package app

import (
	"context"
	"encoding/json"
	"time"

	"flex_reviews/internal/domain"
	"flex_reviews/internal/property"
)

const reviewsCacheKey = "reviews:all"

// ApprovedSet is the read side of the curation store.
type ApprovedSet interface {
	IDs() []int64
	IsApproved(id int64) bool
}

type ReviewFeed struct {
	Reviews     []domain.CanonicalReview `json:"reviews"`
	Total       int                      `json:"total"`
	LastFetched time.Time                `json:"lastFetched"`
}

type ReviewList struct {
	Reviews []domain.CanonicalReview `json:"reviews"`
	Total   int                      `json:"total"`
}

type DashboardOverview struct {
	Overview
	ApprovedCount int     `json:"approvedCount"`
	ApprovedShare float64 `json:"approvedShare"` // percent of guest reviews
}

type TrendsReport struct {
	Monthly    []TrendPoint   `json:"monthly"`
	Categories []CategoryStat `json:"categories"`
	Issues     []IssueStat    `json:"issues"`
	Channels   []ChannelStat  `json:"channels"`
}

type PropertyDetail struct {
	domain.PropertyIdentity
	Stats    PropertyStats            `json:"stats"`
	Approved []domain.CanonicalReview `json:"approvedReviews"`
}

type QueryService struct {
	src      domain.ReviewFetcher
	approved ApprovedSet
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewQueryService wires the read side. A zero ttl or nil cache fetches on
// every call.
func NewQueryService(src domain.ReviewFetcher, approved ApprovedSet, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{src: src, approved: approved, cache: c, cacheTTL: ttl, now: time.Now}
}

// WithClock overrides the time source used for windowed stats.
func (s *QueryService) WithClock(now func() time.Time) *QueryService {
	s.now = now
	return s
}

// Reviews returns the full canonical collection.
func (s *QueryService) Reviews(ctx context.Context) ReviewFeed {
	caching := s.cache != nil && s.cacheTTL > 0
	var feed ReviewFeed
	if caching {
		if ok, _ := s.cache.Get(ctx, reviewsCacheKey, &feed); ok {
			return copyFeed(feed)
		}
	}

	rs := s.src.FetchReviews(ctx)
	feed = ReviewFeed{Reviews: rs, Total: len(rs), LastFetched: s.now().UTC()}

	// only a usable result is worth keeping
	if caching && len(rs) > 0 {
		if b, _ := json.Marshal(feed); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, reviewsCacheKey, copyFeed(feed), int(s.cacheTTL.Seconds()))
		}
	}
	return feed
}

func copyFeed(in ReviewFeed) ReviewFeed {
	out := in
	out.Reviews = make([]domain.CanonicalReview, len(in.Reviews))
	copy(out.Reviews, in.Reviews)
	return out
}

// InvalidateReviews drops the cached collection.
func (s *QueryService) InvalidateReviews(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, reviewsCacheKey)
}

// FetchReviews lets the query service stand in wherever a ReviewFetcher is
// needed, so command paths share the cache.
func (s *QueryService) FetchReviews(ctx context.Context) []domain.CanonicalReview {
	return s.Reviews(ctx).Reviews
}

// ListReviews is Reviews narrowed by the filter engine.
func (s *QueryService) ListReviews(ctx context.Context, c Criteria, key SortKey) ReviewFeed {
	feed := s.Reviews(ctx)
	if c.Now.IsZero() {
		c.Now = s.now()
	}
	out := FilterAndSort(feed.Reviews, c, key)
	return ReviewFeed{Reviews: out, Total: len(out), LastFetched: feed.LastFetched}
}

// ApprovedReviews narrows to one property address (when non-empty) and then
// to ids (when non-nil). A nil ids keeps every review of the property.
func (s *QueryService) ApprovedReviews(ctx context.Context, address string, ids []int64) ReviewList {
	rs := s.Reviews(ctx).Reviews
	var want map[int64]bool
	if ids != nil {
		want = make(map[int64]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
	}
	out := make([]domain.CanonicalReview, 0)
	for _, r := range rs {
		if address != "" && property.ParseAddress(r.ListingName) != address {
			continue
		}
		if want != nil && !want[r.ID] {
			continue
		}
		out = append(out, r)
	}
	return ReviewList{Reviews: out, Total: len(out)}
}

// guestReviews is the dashboard's working set.
func (s *QueryService) guestReviews(ctx context.Context) []domain.CanonicalReview {
	return FilterAndSort(s.Reviews(ctx).Reviews, Criteria{Type: domain.GuestToHost, Now: s.now()}, SortDateDesc)
}

func (s *QueryService) Overview(ctx context.Context) DashboardOverview {
	rs := s.guestReviews(ctx)
	out := DashboardOverview{Overview: OverviewStats(rs, s.now())}
	if s.approved != nil {
		out.ApprovedCount = len(s.approved.IDs())
	}
	if out.TotalReviews > 0 {
		out.ApprovedShare = float64(out.ApprovedCount) / float64(out.TotalReviews) * 100
	}
	return out
}

func (s *QueryService) Properties(ctx context.Context) []PropertyStats {
	return PropertyStatsOf(s.guestReviews(ctx), s.now())
}

func (s *QueryService) Trends(ctx context.Context) TrendsReport {
	rs := s.guestReviews(ctx)
	return TrendsReport{
		Monthly:    TrendSeries(rs),
		Categories: CategoryPerformance(rs),
		Issues:     RecurringIssues(rs, DefaultIssueLimit),
		Channels:   ChannelPerformance(rs),
	}
}

func (s *QueryService) Categories(ctx context.Context) []CategoryStat {
	return CategoryPerformance(s.guestReviews(ctx))
}

func (s *QueryService) Channels(ctx context.Context) []ChannelStat {
	return ChannelPerformance(s.guestReviews(ctx))
}

func (s *QueryService) Issues(ctx context.Context, limit int) []IssueStat {
	return RecurringIssues(s.guestReviews(ctx), limit)
}

// Property resolves a slug to its identity, stats and approved guest reviews.
func (s *QueryService) Property(ctx context.Context, slug string) (PropertyDetail, error) {
	all := s.Reviews(ctx).Reviews
	id, ok := property.FindBySlug(all, slug)
	if !ok {
		return PropertyDetail{}, domain.ErrNotFound
	}

	var mine []domain.CanonicalReview
	for _, r := range all {
		if r.Eligible() && property.Slug(r.ListingName) == slug {
			mine = append(mine, r)
		}
	}
	detail := PropertyDetail{PropertyIdentity: id, Approved: []domain.CanonicalReview{}}
	if stats := PropertyStatsOf(mine, s.now()); len(stats) > 0 {
		detail.Stats = stats[0]
	} else {
		detail.Stats = PropertyStats{Name: id.Address, Slug: id.Slug, Units: []string{}, Channels: []string{}, CommonIssues: []string{}}
	}
	for _, r := range FilterAndSort(mine, Criteria{Now: s.now()}, SortDateDesc) {
		if s.approved != nil && s.approved.IsApproved(r.ID) {
			detail.Approved = append(detail.Approved, r)
		}
	}
	return detail, nil
}
