package app

import (
	"sort"
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

type SortKey string

const (
	SortDateDesc     SortKey = "date-desc"
	SortDateAsc      SortKey = "date-asc"
	SortRatingDesc   SortKey = "rating-desc"
	SortRatingAsc    SortKey = "rating-asc"
	SortPropertyAsc  SortKey = "property-asc"
	SortPropertyDesc SortKey = "property-desc"
)

// ParseSortKey maps a query value to a SortKey; unknown values sort newest first.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortDateDesc, SortDateAsc, SortRatingDesc, SortRatingAsc, SortPropertyAsc, SortPropertyDesc:
		return k
	}
	return SortDateDesc
}

// Criteria constraints are ANDed; the zero value of each field disables it.
type Criteria struct {
	MinRating  *float64
	Channel    string
	WithinDays int
	Search     string
	Category   string
	Type       domain.ReviewType
	Now        time.Time
}

func (c Criteria) keep(r domain.CanonicalReview, cutoff time.Time, needle string) bool {
	if c.MinRating != nil && (!r.HasRating() || *r.Rating < *c.MinRating) {
		return false
	}
	if c.Channel != "" && r.Channel != c.Channel {
		return false
	}
	if c.WithinDays > 0 && r.SubmittedAt.Before(cutoff) {
		return false
	}
	if c.Type != "" && r.Type != c.Type {
		return false
	}
	if c.Category != "" && !hasCategory(r, c.Category) {
		return false
	}
	if needle != "" &&
		!strings.Contains(strings.ToLower(r.PublicReview), needle) &&
		!strings.Contains(strings.ToLower(r.GuestName), needle) &&
		!strings.Contains(strings.ToLower(r.ListingName), needle) {
		return false
	}
	return true
}

func hasCategory(r domain.CanonicalReview, name string) bool {
	for _, c := range r.ReviewCategories {
		if c.Category == name {
			return true
		}
	}
	return false
}

// FilterAndSort returns a new slice; the input is never reordered.
// Equal sort keys keep their input order.
func FilterAndSort(reviews []domain.CanonicalReview, c Criteria, key SortKey) []domain.CanonicalReview {
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.AddDate(0, 0, -c.WithinDays)
	needle := strings.ToLower(c.Search)

	out := make([]domain.CanonicalReview, 0, len(reviews))
	for _, r := range reviews {
		if c.keep(r, cutoff, needle) {
			out = append(out, r)
		}
	}

	var less func(a, b domain.CanonicalReview) bool
	switch ParseSortKey(string(key)) {
	case SortDateAsc:
		less = func(a, b domain.CanonicalReview) bool { return a.SubmittedAt.Before(b.SubmittedAt) }
	case SortRatingDesc:
		less = func(a, b domain.CanonicalReview) bool { return a.RatingOrZero() > b.RatingOrZero() }
	case SortRatingAsc:
		less = func(a, b domain.CanonicalReview) bool { return a.RatingOrZero() < b.RatingOrZero() }
	case SortPropertyAsc:
		less = func(a, b domain.CanonicalReview) bool { return strings.Compare(a.ListingName, b.ListingName) < 0 }
	case SortPropertyDesc:
		less = func(a, b domain.CanonicalReview) bool { return strings.Compare(a.ListingName, b.ListingName) > 0 }
	default:
		less = func(a, b domain.CanonicalReview) bool { return a.SubmittedAt.After(b.SubmittedAt) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
