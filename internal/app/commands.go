package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/domain"
)

// Curator guards the Store: only guest-to-host reviews may be approved.
// The Store itself accepts any id, so every approval path goes through here.
type Curator struct {
	store   *Store
	reviews domain.ReviewFetcher
}

func NewCurator(store *Store, reviews domain.ReviewFetcher) *Curator {
	return &Curator{store: store, reviews: reviews}
}

func (c *Curator) Store() *Store { return c.store }

func index(rs []domain.CanonicalReview) map[int64]domain.CanonicalReview {
	m := make(map[int64]domain.CanonicalReview, len(rs))
	for _, r := range rs {
		m[r.ID] = r
	}
	return m
}

// Approve resolves id against the current collection before approving it.
func (c *Curator) Approve(ctx context.Context, id int64) error {
	r, ok := index(c.reviews.FetchReviews(ctx))[id]
	if !ok {
		return fmt.Errorf("review %d: %w", id, domain.ErrNotFound)
	}
	if !r.Eligible() {
		return fmt.Errorf("review %d is %s: %w", id, r.Type, domain.ErrIneligible)
	}
	return c.store.Approve(id)
}

// Unapprove needs no guard; removing an id can never break eligibility.
func (c *Curator) Unapprove(ctx context.Context, id int64) error {
	return c.store.Unapprove(id)
}

// Replace swaps the whole set. Ids that resolve to an ineligible review are
// rejected; ids missing from the collection are accepted, since the
// collection may be the bundled subset.
func (c *Curator) Replace(ctx context.Context, ids []int64) error {
	byID := index(c.reviews.FetchReviews(ctx))
	for _, id := range ids {
		if r, ok := byID[id]; ok && !r.Eligible() {
			return fmt.Errorf("review %d is %s: %w", id, r.Type, domain.ErrIneligible)
		}
	}
	return c.store.Replace(ids)
}

// Reconcile evicts approved ids whose review is known and not guest-to-host.
// It returns the evicted ids.
func (c *Curator) Reconcile(ctx context.Context) ([]int64, error) {
	byID := index(c.reviews.FetchReviews(ctx))
	var evicted []int64
	for _, id := range c.store.IDs() {
		r, ok := byID[id]
		if !ok || r.Eligible() {
			continue
		}
		if err := c.store.Unapprove(id); err != nil {
			return evicted, err
		}
		evicted = append(evicted, id)
	}
	if len(evicted) > 0 {
		log.Info().Ints64("ids", evicted).Msg("evicted ineligible approvals")
	}
	return evicted, nil
}
