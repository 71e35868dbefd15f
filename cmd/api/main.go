package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "terra_viajes/internal/adapters/http_server"
	"terra_viajes/internal/adapters/observability"
	redisad "terra_viajes/internal/adapters/redis"
	"terra_viajes/internal/app"
	"terra_viajes/internal/notify"
	"terra_viajes/internal/shared"
	mysqlrepo "terra_viajes/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "booking-store")

	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	producer := notify.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	q := app.NewStatusService(repo, cache, cfg.TripCacheTTL)
	c := app.NewBookingCommands(repo, cache, producer, cfg.NotificationsTopic, cfg.TokenTTL, cfg.LockTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: c, AdminKey: cfg.AdminKey})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("booking store listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		_ = httpSrv.Shutdown(context.Background())
	}()

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
