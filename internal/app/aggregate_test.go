package app_test

import (
	"math"
	"testing"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func withCats(r domain.CanonicalReview, cats ...domain.CategoryRating) domain.CanonicalReview {
	r.ReviewCategories = cats
	return r
}

func cat(name string, rating int) domain.CategoryRating {
	return domain.CategoryRating{Category: name, Rating: rating}
}

func TestPropertyStats_Example(t *testing.T) {
	in := []domain.CanonicalReview{
		rev(1, 5, daysAgo(1), "Airbnb - 2B N1 A - 29 Shoreditch Heights"),
		rev(2, 5, daysAgo(50), "VRBO - 1A N3 C - 29 Shoreditch Heights"),
		rev(3, 4, daysAgo(2), "29 Shoreditch Heights"),
		rev(4, 3, daysAgo(3), "Booking.com - 2B N1 A - 29 Shoreditch Heights"),
	}
	out := app.PropertyStatsOf(in, testNow)
	if len(out) != 1 {
		t.Fatalf("expected one property, got %d", len(out))
	}
	p := out[0]
	if !approx(p.AverageRating, 4.25) || p.TotalReviews != 4 || p.FiveStarCount != 2 {
		t.Fatalf("unexpected stats: %+v", p)
	}
	if p.FourStarCount != 1 || p.ThreeStarCount != 1 || p.LowRatingCount != 0 || p.RecentReviews != 3 {
		t.Fatalf("unexpected counts: %+v", p)
	}
	if p.Name != "29 Shoreditch Heights" || p.Slug != "29-shoreditch-heights" {
		t.Fatalf("identity: %+v", p)
	}
	if len(p.Channels) != 3 || p.Channels[0] != "Airbnb" || p.Channels[1] != "VRBO" || p.Channels[2] != "Booking.com" {
		t.Fatalf("channels: %v", p.Channels)
	}
	if len(p.Units) != 2 || p.Units[0] != "2B N1 A" || p.Units[1] != "1A N3 C" {
		t.Fatalf("units: %v", p.Units)
	}
}

func TestPropertyStats_SortedByAverage(t *testing.T) {
	in := []domain.CanonicalReview{
		rev(1, 3, daysAgo(1), "45 Brick Lane"),
		rev(2, 5, daysAgo(1), "12 Camden Road"),
		rev(3, 1, daysAgo(1), "45 Brick Lane"),
		withCats(rev(4, 0, daysAgo(1), "88 Regent Canal Walk"), cat("wifi", 3), cat("wifi", 4), cat("check_in", 5)),
	}
	out := app.PropertyStatsOf(in, testNow)
	if len(out) != 3 || out[0].Name != "12 Camden Road" || out[1].Name != "45 Brick Lane" || out[2].Name != "88 Regent Canal Walk" {
		t.Fatalf("order: %+v", out)
	}
	if out[1].LowRatingCount != 1 || out[1].ThreeStarCount != 1 {
		t.Fatalf("brick lane counts: %+v", out[1])
	}
	if out[2].AverageRating != 0 || len(out[2].CommonIssues) != 2 || out[2].CommonIssues[0] != "wifi" || out[2].CommonIssues[1] != "check in" {
		t.Fatalf("regent: %+v", out[2])
	}
}

func TestOverviewStats(t *testing.T) {
	in := []domain.CanonicalReview{
		withCats(rev(1, 5, daysAgo(1), "Airbnb - 29 Shoreditch Heights"), cat("cleanliness", 10)),
		withCats(rev(2, 3, daysAgo(5), "VRBO - 45 Brick Lane"), cat("wifi", 4), cat("respect_house_rules", 6)),
		withCats(rev(3, 4, daysAgo(40), "Airbnb - 29 Shoreditch Heights"), cat("wifi", 5)),
		rev(4, 0, daysAgo(2), "45 Brick Lane"), // unrated
		rev(5, 4.5, daysAgo(45), "12 Camden Road"),
		rev(6, 2, daysAgo(90), "12 Camden Road"),
	}
	o := app.OverviewStats(in, testNow)

	if o.TotalReviews != 6 {
		t.Fatalf("total: %d", o.TotalReviews)
	}
	if !approx(o.AverageRating, (5+3+4+4.5+2)/5.0) {
		t.Fatalf("avg: %v", o.AverageRating)
	}
	if o.RatingDistribution[5] != 1 || o.RatingDistribution[4] != 1 || o.RatingDistribution[3] != 1 ||
		o.RatingDistribution[2] != 1 || o.RatingDistribution[1] != 0 {
		t.Fatalf("histogram: %v", o.RatingDistribution)
	}
	if o.RecentReviews != 3 || len(o.RecentReviewsList) != 3 || o.RecentReviewsList[0].ID != 1 || o.RecentReviewsList[1].ID != 4 {
		t.Fatalf("recent: %d %v", o.RecentReviews, ids(o.RecentReviewsList))
	}
	// last 30d avg (5+3)/2=4, days 31-60 avg (4+4.5)/2=4.25
	if !approx(o.RatingTrend, -0.25) {
		t.Fatalf("trend: %v", o.RatingTrend)
	}
	if len(o.TopProperties) != 3 || o.TopProperties[0].Name != "29 Shoreditch Heights" || !approx(o.TopProperties[0].AverageRating, 4.5) {
		t.Fatalf("top: %+v", o.TopProperties)
	}
	// Brick Lane 3.0 and Camden 3.25 are below 4; Shoreditch 4.5 is not
	if len(o.BottomProperties) != 2 || o.BottomProperties[0].Name != "45 Brick Lane" || o.BottomProperties[1].Name != "12 Camden Road" {
		t.Fatalf("bottom: %+v", o.BottomProperties)
	}
	if len(o.TopIssues) != 2 || o.TopIssues[0] != "wifi" || o.TopIssues[1] != "respect house rules" {
		t.Fatalf("issues: %v", o.TopIssues)
	}
}

func TestOverviewStats_EmptyWindowsTrendZero(t *testing.T) {
	o := app.OverviewStats(nil, testNow)
	if o.TotalReviews != 0 || o.AverageRating != 0 || o.RatingTrend != 0 {
		t.Fatalf("unexpected: %+v", o)
	}
	if o.TopProperties == nil || o.BottomProperties == nil || o.RecentReviewsList == nil {
		t.Fatalf("expected empty lists, got %+v", o)
	}

	// only a current window: trend is current - 0
	o = app.OverviewStats([]domain.CanonicalReview{rev(1, 4, daysAgo(1), "A")}, testNow)
	if !approx(o.RatingTrend, 4) {
		t.Fatalf("trend: %v", o.RatingTrend)
	}
}

func TestTrendSeries(t *testing.T) {
	in := []domain.CanonicalReview{
		rev(1, 4, mustTime("2025-09-30T23:30:00Z"), "A"),
		rev(2, 0, mustTime("2025-08-02T10:00:00Z"), "A"),
		rev(3, 2, mustTime("2025-09-01T00:00:00Z"), "A"),
		rev(4, 5, mustTime("2024-12-31T12:00:00Z"), "A"),
	}
	out := app.TrendSeries(in)
	if len(out) != 3 {
		t.Fatalf("buckets: %+v", out)
	}
	if out[0].Month != "2024-12" || out[0].Label != "Dec 2024" || out[0].AvgRating != 5 {
		t.Fatalf("first: %+v", out[0])
	}
	if out[1].Month != "2025-08" || out[1].Reviews != 1 || out[1].AvgRating != 0 {
		t.Fatalf("second: %+v", out[1])
	}
	if out[2].Month != "2025-09" || out[2].Label != "Sep 2025" || out[2].Reviews != 2 || out[2].AvgRating != 3 {
		t.Fatalf("third: %+v", out[2])
	}
}

func TestCategoryPerformanceAndIssues(t *testing.T) {
	var in []domain.CanonicalReview
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	for i, n := range names {
		in = append(in, withCats(rev(int64(i+1), 5, daysAgo(1), "A"), cat(n, 10-i)))
	}
	in = append(in, withCats(rev(100, 5, daysAgo(1), "A"),
		cat("respect_house_rules", 4), cat("respect_house_rules", 6), cat("a", 2)))

	cp := app.CategoryPerformance(in)
	if len(cp) != 8 {
		t.Fatalf("expected top 8, got %d", len(cp))
	}
	if cp[0].Category != "b" || cp[0].AvgRating != 9 {
		t.Fatalf("first: %+v", cp[0])
	}
	for i := 1; i < len(cp); i++ {
		if cp[i].AvgRating > cp[i-1].AvgRating {
			t.Fatalf("not descending: %+v", cp)
		}
	}

	issues := app.RecurringIssues(in, 0)
	// sub-7 entries: respect_house_rules x2, then a, e, f, g, h, i once each
	if len(issues) != 5 {
		t.Fatalf("issues: %+v", issues)
	}
	if issues[0].Category != "respect_house_rules" || issues[0].Label != "Respect House Rules" || issues[0].LowRatingCount != 2 {
		t.Fatalf("first issue: %+v", issues[0])
	}
	if !approx(issues[0].AvgRating, 5) {
		t.Fatalf("avg: %v", issues[0].AvgRating)
	}
	if issues[1].Category != "a" || issues[4].Category != "g" {
		t.Fatalf("ties should keep first-seen order: %+v", issues)
	}
	if got := app.RecurringIssues(in, 1); len(got) != 1 {
		t.Fatalf("limit: %d", len(got))
	}
}

func TestChannelPerformance(t *testing.T) {
	in := []domain.CanonicalReview{
		rev(1, 4, daysAgo(1), "Airbnb - A"),
		rev(2, 0, daysAgo(1), "Airbnb - A"),
		rev(3, 5, daysAgo(1), "Booking.com - A"),
		rev(4, 3, daysAgo(1), "A"),
		rev(5, 2, daysAgo(1), "Airbnb - A"),
	}
	out := app.ChannelPerformance(in)
	if len(out) != 2 || out[0].Channel != "Booking.com" || out[0].AvgRating != 5 {
		t.Fatalf("channels: %+v", out)
	}
	if out[1].Channel != "Airbnb" || out[1].AvgRating != 3 || out[1].Reviews != 3 {
		t.Fatalf("airbnb: %+v", out[1])
	}
}
