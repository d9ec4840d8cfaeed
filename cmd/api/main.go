package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/hostaway"
	server "flex_reviews/internal/adapters/http_server"
	"flex_reviews/internal/adapters/observability"
	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/adapters/static"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/shared"
	"flex_reviews/internal/storage/sqlrepo"
)

func main() {
	cfg, err := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// durable approvals (optional)
	var durable domain.ApprovalBackend
	if cfg.DatabaseDSN != "" {
		db, err := sqlrepo.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database connect failed")
		}
		defer db.Close()
		repo := sqlrepo.New(db)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		durable = repo
		log.Info().Str("driver", cfg.DBDriver).Msg("database connection ok")
	} else {
		log.Warn().Msg("DATABASE_DSN is empty; approvals are kept in redis only")
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; running without cache or local mirror")
	}
	mirror := redisad.NewApprovalMirror(cache.Client(), cfg.FallbackKey)

	// reviews
	var upstream domain.ReviewsClient
	if cfg.HostawayKey != "" {
		cl, err := hostaway.New(cfg.HostawayBase, cfg.HostawayAccount, cfg.HostawayKey, cfg.HostawayRPS)
		if err != nil {
			log.Warn().Err(err).Msg("hostaway client disabled")
		} else {
			upstream = cl
		}
	}
	src := app.NewReviewSource(upstream, static.Reviews(), cfg.FetchTimeout)

	// curation: the set is read before any handler can write
	store := app.NewStore(durable, mirror, cfg.Debounce, cfg.WriteTimeout)
	ids := store.Load(ctx)
	log.Info().Int("approved", len(ids)).Msg("approved set loaded")

	q := app.NewQueryService(src, store, cache, cfg.CacheTTL)
	cur := app.NewCurator(store, q)
	if _, err := cur.Reconcile(ctx); err != nil {
		log.Warn().Err(err).Msg("startup reconcile failed")
	}

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: cur})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// last pending approval change must reach storage before exit
	if err := store.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("final approved set write failed")
	}
}
