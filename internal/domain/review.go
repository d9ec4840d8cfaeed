package domain

import "time"

type ReviewType string

const (
	GuestToHost ReviewType = "guest-to-host"
	HostToGuest ReviewType = "host-to-guest"
)

type ReviewStatus string

const (
	StatusPublished ReviewStatus = "published"
	StatusPending   ReviewStatus = "pending"
	StatusRejected  ReviewStatus = "rejected"
)

type CategoryRating struct {
	Category string `json:"category"`
	Rating   int    `json:"rating"` // 0..10
}

// RawReview is one upstream record after boundary validation.
type RawReview struct {
	ID           int64
	Type         ReviewType
	Status       ReviewStatus
	Rating       *float64
	PublicReview string
	Categories   []CategoryRating // nil when absent upstream
	SubmittedAt  time.Time
	GuestName    string
	ListingName  string
}

// CanonicalReview is the normalized record every downstream computation reads.
// Approval state is deliberately not carried here; see the curation store.
type CanonicalReview struct {
	ID               int64            `json:"id"`
	Type             ReviewType       `json:"type"`
	Status           ReviewStatus     `json:"status"`
	Rating           *float64         `json:"rating"`
	PublicReview     string           `json:"publicReview"`
	ReviewCategories []CategoryRating `json:"reviewCategories"`
	SubmittedAt      time.Time        `json:"submittedAt"`
	GuestName        string           `json:"guestName"`
	ListingName      string           `json:"listingName"`
	Channel          string           `json:"channel,omitempty"`
}

// HasRating reports whether the review carries a usable star rating.
// Upstream sends 0 for "not rated".
func (r CanonicalReview) HasRating() bool {
	return r.Rating != nil && *r.Rating != 0
}

// RatingOrZero is the ordering value for sorts.
func (r CanonicalReview) RatingOrZero() float64 {
	if r.Rating == nil {
		return 0
	}
	return *r.Rating
}

// Eligible reports whether the review may be approved for public display.
func (r CanonicalReview) Eligible() bool { return r.Type == GuestToHost }
