package app

import (
	"sort"
	"strings"
	"time"

	"flex_reviews/internal/domain"
	"flex_reviews/internal/property"
)

// LowRatingThreshold: a category rating below this (0..10 scale) counts as an issue.
const LowRatingThreshold = 7

const (
	recentWindowDays  = 30
	topPropertyCount  = 3
	bottomPropertyMax = 4.0
	topIssueCount     = 3
	recentListSize    = 5
	topCategoryCount  = 8
	DefaultIssueLimit = 5
)

type PropertyRank struct {
	Name          string  `json:"name"`
	Slug          string  `json:"urlId"`
	AverageRating float64 `json:"avgRating"`
	TotalReviews  int     `json:"totalReviews"`
}

type Overview struct {
	TotalReviews       int                      `json:"totalReviews"`
	AverageRating      float64                  `json:"averageRating"`
	RatingDistribution map[int]int              `json:"ratingDistribution"`
	RecentReviews      int                      `json:"recentReviews"`
	RecentReviewsList  []domain.CanonicalReview `json:"recentReviewsList"`
	TopProperties      []PropertyRank           `json:"topProperties"`
	BottomProperties   []PropertyRank           `json:"bottomProperties"`
	RatingTrend        float64                  `json:"ratingTrend"`
	TopIssues          []string                 `json:"topIssues"`
}

type PropertyStats struct {
	Name           string   `json:"name"`
	Slug           string   `json:"urlId"`
	Units          []string `json:"units"`
	TotalReviews   int      `json:"totalReviews"`
	AverageRating  float64  `json:"averageRating"`
	FiveStarCount  int      `json:"fiveStarCount"`
	FourStarCount  int      `json:"fourStarCount"`
	ThreeStarCount int      `json:"threeStarCount"`
	LowRatingCount int      `json:"lowRatingCount"`
	RecentReviews  int      `json:"recentReviews"`
	Channels       []string `json:"channels"`
	CommonIssues   []string `json:"commonIssues"`
}

type TrendPoint struct {
	Month     string  `json:"month"` // 2006-01
	Label     string  `json:"label"` // Jan 2006
	Reviews   int     `json:"reviews"`
	AvgRating float64 `json:"avgRating"`
}

type CategoryStat struct {
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	AvgRating  float64 `json:"avgRating"`
	Count      int     `json:"count"`
	LowRatings int     `json:"lowRatings"`
}

type IssueStat struct {
	Category       string  `json:"category"`
	Label          string  `json:"label"`
	AvgRating      float64 `json:"avgRating"`
	LowRatingCount int     `json:"lowRatingCount"`
}

type ChannelStat struct {
	Channel   string  `json:"channel"`
	AvgRating float64 `json:"avgRating"`
	Reviews   int     `json:"reviews"`
}

/********** small helpers **********/

// meanRating averages present ratings only; 0 when none are present.
func meanRating(rs []domain.CanonicalReview) float64 {
	sum, n := 0.0, 0
	for _, r := range rs {
		if r.HasRating() {
			sum += *r.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func withinWindow(rs []domain.CanonicalReview, from, to time.Time) []domain.CanonicalReview {
	var out []domain.CanonicalReview
	for _, r := range rs {
		if !r.SubmittedAt.Before(from) && (to.IsZero() || r.SubmittedAt.Before(to)) {
			out = append(out, r)
		}
	}
	return out
}

// counter keeps insertion order so ties rank by first appearance.
type counter struct {
	keys []string
	n    map[string]int
}

func newCounter() *counter { return &counter{n: map[string]int{}} }

func (c *counter) add(k string) {
	if _, ok := c.n[k]; !ok {
		c.keys = append(c.keys, k)
	}
	c.n[k]++
}

func (c *counter) top(limit int) []string {
	keys := append([]string(nil), c.keys...)
	sort.SliceStable(keys, func(i, j int) bool { return c.n[keys[i]] > c.n[keys[j]] })
	if limit >= 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func issueCounts(rs []domain.CanonicalReview) *counter {
	c := newCounter()
	for _, r := range rs {
		for _, cat := range r.ReviewCategories {
			if cat.Rating < LowRatingThreshold {
				c.add(cat.Category)
			}
		}
	}
	return c
}

// issueLabel: "respect_house_rules" -> "respect house rules".
func issueLabel(category string) string { return strings.ReplaceAll(category, "_", " ") }

// categoryLabel: "respect_house_rules" -> "Respect House Rules".
func categoryLabel(category string) string {
	b := []byte(issueLabel(category))
	prevWord := false
	for i, ch := range b {
		word := ch == '_' || ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
		if word && !prevWord && ch >= 'a' && ch <= 'z' {
			b[i] = ch - 'a' + 'A'
		}
		prevWord = word
	}
	return string(b)
}

func labels(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = issueLabel(k)
	}
	return out
}

type propertyGroup struct {
	address string
	reviews []domain.CanonicalReview
}

// groupByProperty groups on the parsed address, in first-seen order.
func groupByProperty(rs []domain.CanonicalReview) []*propertyGroup {
	var out []*propertyGroup
	idx := map[string]*propertyGroup{}
	for _, r := range rs {
		addr := property.ParseAddress(r.ListingName)
		g, ok := idx[addr]
		if !ok {
			g = &propertyGroup{address: addr}
			idx[addr] = g
			out = append(out, g)
		}
		g.reviews = append(g.reviews, r)
	}
	return out
}

/********** aggregations **********/

// OverviewStats summarizes the whole collection as of now.
func OverviewStats(reviews []domain.CanonicalReview, now time.Time) Overview {
	recentFrom := now.AddDate(0, 0, -recentWindowDays)
	previousFrom := now.AddDate(0, 0, -2*recentWindowDays)

	dist := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		for star := 1; star <= 5; star++ {
			if *r.Rating == float64(star) {
				dist[star]++
			}
		}
	}

	recent := withinWindow(reviews, recentFrom, time.Time{})
	previous := withinWindow(reviews, previousFrom, recentFrom)

	latest := append([]domain.CanonicalReview(nil), recent...)
	sort.SliceStable(latest, func(i, j int) bool { return latest[i].SubmittedAt.After(latest[j].SubmittedAt) })
	if len(latest) > recentListSize {
		latest = latest[:recentListSize]
	}

	var ranks []PropertyRank
	for _, g := range groupByProperty(reviews) {
		ranks = append(ranks, PropertyRank{
			Name:          g.address,
			Slug:          property.ToSlug(g.address),
			AverageRating: meanRating(g.reviews),
			TotalReviews:  len(g.reviews),
		})
	}
	top := append([]PropertyRank(nil), ranks...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].AverageRating > top[j].AverageRating })
	if len(top) > topPropertyCount {
		top = top[:topPropertyCount]
	}
	bottom := append([]PropertyRank(nil), ranks...)
	sort.SliceStable(bottom, func(i, j int) bool { return bottom[i].AverageRating < bottom[j].AverageRating })
	if len(bottom) > topPropertyCount {
		bottom = bottom[:topPropertyCount]
	}
	lows := make([]PropertyRank, 0, len(bottom))
	for _, p := range bottom {
		if p.AverageRating < bottomPropertyMax {
			lows = append(lows, p)
		}
	}
	if top == nil {
		top = []PropertyRank{}
	}
	if latest == nil {
		latest = []domain.CanonicalReview{}
	}

	return Overview{
		TotalReviews:       len(reviews),
		AverageRating:      meanRating(reviews),
		RatingDistribution: dist,
		RecentReviews:      len(recent),
		RecentReviewsList:  latest,
		TopProperties:      top,
		BottomProperties:   lows,
		RatingTrend:        meanRating(recent) - meanRating(previous),
		TopIssues:          labels(issueCounts(reviews).top(topIssueCount)),
	}
}

// PropertyStatsOf computes per-property performance, best average first.
func PropertyStatsOf(reviews []domain.CanonicalReview, now time.Time) []PropertyStats {
	recentFrom := now.AddDate(0, 0, -recentWindowDays)
	out := make([]PropertyStats, 0)
	for _, g := range groupByProperty(reviews) {
		ps := PropertyStats{
			Name:          g.address,
			Slug:          property.ToSlug(g.address),
			Units:         []string{},
			Channels:      []string{},
			TotalReviews:  len(g.reviews),
			AverageRating: meanRating(g.reviews),
			RecentReviews: len(withinWindow(g.reviews, recentFrom, time.Time{})),
			CommonIssues:  labels(issueCounts(g.reviews).top(topIssueCount)),
		}
		seenUnit, seenChannel := map[string]bool{}, map[string]bool{}
		for _, r := range g.reviews {
			if u := property.ParseUnit(r.ListingName); u != "" && !seenUnit[u] {
				seenUnit[u] = true
				ps.Units = append(ps.Units, u)
			}
			if r.Channel != "" && !seenChannel[r.Channel] {
				seenChannel[r.Channel] = true
				ps.Channels = append(ps.Channels, r.Channel)
			}
			if !r.HasRating() {
				continue
			}
			switch v := *r.Rating; {
			case v == 5:
				ps.FiveStarCount++
			case v == 4:
				ps.FourStarCount++
			case v == 3:
				ps.ThreeStarCount++
			case v < 3:
				ps.LowRatingCount++
			}
		}
		out = append(out, ps)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageRating > out[j].AverageRating })
	return out
}

// TrendSeries buckets reviews by UTC calendar month, oldest first.
func TrendSeries(reviews []domain.CanonicalReview) []TrendPoint {
	type bucket struct {
		first   time.Time
		reviews []domain.CanonicalReview
	}
	buckets := map[string]*bucket{}
	for _, r := range reviews {
		t := r.SubmittedAt.UTC()
		key := t.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{first: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)}
			buckets[key] = b
		}
		b.reviews = append(b.reviews, r)
	}
	out := make([]TrendPoint, 0, len(buckets))
	for key, b := range buckets {
		out = append(out, TrendPoint{
			Month:     key,
			Label:     b.first.Format("Jan 2006"),
			Reviews:   len(b.reviews),
			AvgRating: meanRating(b.reviews),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

type categoryAcc struct {
	total, count, low int
}

func categoryTotals(reviews []domain.CanonicalReview) ([]string, map[string]*categoryAcc) {
	var order []string
	acc := map[string]*categoryAcc{}
	for _, r := range reviews {
		for _, c := range r.ReviewCategories {
			a, ok := acc[c.Category]
			if !ok {
				a = &categoryAcc{}
				acc[c.Category] = a
				order = append(order, c.Category)
			}
			a.total += c.Rating
			a.count++
			if c.Rating < LowRatingThreshold {
				a.low++
			}
		}
	}
	return order, acc
}

// CategoryPerformance returns the eight best categories by mean rating.
func CategoryPerformance(reviews []domain.CanonicalReview) []CategoryStat {
	order, acc := categoryTotals(reviews)
	out := make([]CategoryStat, 0, len(order))
	for _, k := range order {
		a := acc[k]
		out = append(out, CategoryStat{
			Category:   k,
			Label:      categoryLabel(k),
			AvgRating:  float64(a.total) / float64(a.count),
			Count:      a.count,
			LowRatings: a.low,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgRating > out[j].AvgRating })
	if len(out) > topCategoryCount {
		out = out[:topCategoryCount]
	}
	return out
}

// RecurringIssues ranks categories by how often they were rated below the
// threshold. limit <= 0 means DefaultIssueLimit.
func RecurringIssues(reviews []domain.CanonicalReview, limit int) []IssueStat {
	if limit <= 0 {
		limit = DefaultIssueLimit
	}
	order, acc := categoryTotals(reviews)
	out := make([]IssueStat, 0)
	for _, k := range order {
		a := acc[k]
		if a.low == 0 {
			continue
		}
		out = append(out, IssueStat{
			Category:       k,
			Label:          categoryLabel(k),
			AvgRating:      float64(a.total) / float64(a.count),
			LowRatingCount: a.low,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LowRatingCount > out[j].LowRatingCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ChannelPerformance averages ratings per booking channel, best first.
// Reviews without a channel are skipped.
func ChannelPerformance(reviews []domain.CanonicalReview) []ChannelStat {
	var order []string
	groups := map[string][]domain.CanonicalReview{}
	for _, r := range reviews {
		if r.Channel == "" {
			continue
		}
		if _, ok := groups[r.Channel]; !ok {
			order = append(order, r.Channel)
		}
		groups[r.Channel] = append(groups[r.Channel], r)
	}
	out := make([]ChannelStat, 0, len(order))
	for _, ch := range order {
		out = append(out, ChannelStat{Channel: ch, AvgRating: meanRating(groups[ch]), Reviews: len(groups[ch])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgRating > out[j].AvgRating })
	return out
}
