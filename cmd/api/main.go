package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "umrah_prices/internal/adapters/http_server"
	"umrah_prices/internal/adapters/observability"
	redisad "umrah_prices/internal/adapters/redis"
	"umrah_prices/internal/app"
	"umrah_prices/internal/shared"
	mysqlrepo "umrah_prices/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	cm := app.NewCacheManager(cache, cfg.CacheTTLs, cfg.CacheTTL)

	risk := app.NewRiskScorer(repo, cfg.Risk)
	q := app.NewQueryService(repo, repo, repo, risk, cm)

	// the API only enqueues; the crawler process runs the queue
	sched := app.NewScheduler(repo, nil, cfg.Scheduler, log.Logger)
	ops := app.NewOpsService(repo, repo, sched, log.Logger)

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Ops: ops})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
