// Command reconcile removes approvals that point at reviews which may not be
// displayed (host-to-guest), then exits.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flex_reviews/internal/adapters/hostaway"
	"flex_reviews/internal/adapters/observability"
	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/adapters/static"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/shared"
	"flex_reviews/internal/storage/sqlrepo"
)

// without reviews every approval looks unknown, so there is nothing to check against
var errNoReviews = errors.New("no reviews available from upstream or bundled data")

// snapshot serves one pre-fetched collection.
type snapshot []domain.CanonicalReview

func (s snapshot) FetchReviews(context.Context) []domain.CanonicalReview { return s }

func main() {
	dryRun := flag.Bool("dry-run", false, "report ineligible approvals without removing them")
	flag.Parse()

	cfg, err := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var durable domain.ApprovalBackend
	if cfg.DatabaseDSN != "" {
		db, err := sqlrepo.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database connect failed")
		}
		defer db.Close()
		durable = sqlrepo.New(db)
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	mirror := redisad.NewApprovalMirror(cache.Client(), cfg.FallbackKey)

	var upstream domain.ReviewsClient
	if cfg.HostawayKey != "" {
		if cl, err := hostaway.New(cfg.HostawayBase, cfg.HostawayAccount, cfg.HostawayKey, cfg.HostawayRPS); err == nil {
			upstream = cl
		} else {
			log.Warn().Err(err).Msg("hostaway client disabled")
		}
	}
	src := app.NewReviewSource(upstream, static.Reviews(), cfg.FetchTimeout)
	store := app.NewStore(durable, mirror, cfg.Debounce, cfg.WriteTimeout)

	reviews, origin, err := gather(ctx, store, src)
	if err != nil {
		log.Fatal().Err(err).Msg("reconcile aborted")
	}

	log.Info().
		Int("approved", len(store.IDs())).
		Int("reviews", len(reviews)).
		Str("origin", string(origin)).
		Msg("reconcile starting")

	if *dryRun {
		byID := map[int64]domain.CanonicalReview{}
		for _, r := range reviews {
			byID[r.ID] = r
		}
		for _, id := range store.IDs() {
			if r, ok := byID[id]; ok && !r.Eligible() {
				log.Info().Int64("id", id).Str("type", string(r.Type)).Msg("would evict")
			}
		}
		return
	}

	cur := app.NewCurator(store, snapshot(reviews))
	evicted, err := cur.Reconcile(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("reconcile failed")
	}
	if err := store.Flush(ctx); err != nil {
		log.Fatal().Err(err).Msg("saving approved set failed")
	}
	log.Info().Int("evicted", len(evicted)).Msg("reconcile completed")
}

// gather loads the approved set and fetches reviews concurrently; both reads
// finish before anything is written.
func gather(ctx context.Context, store *app.Store, src *app.ReviewSource) ([]domain.CanonicalReview, app.Origin, error) {
	var (
		reviews []domain.CanonicalReview
		origin  app.Origin
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.Load(gctx)
		return nil
	})
	g.Go(func() error {
		reviews, origin = src.Fetch(gctx)
		if origin == app.OriginEmpty {
			return errNoReviews
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, origin, err
	}
	return reviews, origin, nil
}
