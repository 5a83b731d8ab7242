package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"umrah_prices/internal/adapters/observability"
	"umrah_prices/internal/adapters/providers"
	redisad "umrah_prices/internal/adapters/redis"
	"umrah_prices/internal/app"
	"umrah_prices/internal/shared"
	mysqlrepo "umrah_prices/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	cm := app.NewCacheManager(cache, cfg.CacheTTLs, cfg.CacheTTL)

	registry := providers.NewRegistry(cfg.Providers)
	log.Info().
		Strs("offer_providers", registry.OfferNames()).
		Strs("transport", registry.TransportNames()).
		Msg("crawler starting")

	resolver := app.NewResolver(repo, cfg.Resolver)
	crawler := app.NewCrawlService(registry, resolver, repo, repo, cm, cfg.Crawl, log.Logger)
	sched := app.NewScheduler(repo, crawler, cfg.Scheduler, log.Logger)

	startRecurring(ctx, sched, registry, cfg)

	sched.Run(ctx)
}

// startRecurring registers the standing crawl set: every enabled price
// source per city per horizon, plus one schedule refresh per transport
// operator. Fingerprint dedupe makes re-registration on each tick safe.
func startRecurring(ctx context.Context, sched *app.Scheduler, registry *providers.Registry, cfg shared.Config) {
	for _, name := range registry.OfferNames() {
		name := name
		pcfg, _ := registry.Config(name)
		every := pcfg.RefreshEvery
		if every <= 0 {
			every = 6 * time.Hour
		}
		sched.StartRecurring(ctx, every, func(ctx context.Context) error {
			for _, city := range cfg.Cities {
				for _, ahead := range cfg.DaysAhead {
					payload := map[string]any{"city": city, "days_ahead": ahead}
					if _, _, err := sched.Enqueue(ctx, "prices_"+name, payload, time.Now()); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}

	for _, name := range registry.TransportNames() {
		name := name
		pcfg, _ := registry.Config(name)
		every := pcfg.RefreshEvery
		if every <= 0 {
			every = 24 * time.Hour
		}
		sched.StartRecurring(ctx, every, func(ctx context.Context) error {
			_, _, err := sched.Enqueue(ctx, "transport_"+name, map[string]any{}, time.Now())
			return err
		})
	}
}
