package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"
	"golang.org/x/sync/semaphore"

	"terra_viajes/internal/adapters/observability"
	redisad "terra_viajes/internal/adapters/redis"
	"terra_viajes/internal/app"
	"terra_viajes/internal/notify"
	"terra_viajes/internal/shared"
	mysqlrepo "terra_viajes/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "notifier")

	log.Info().
		Strs("brokers", cfg.KafkaBrokers).
		Str("topic", cfg.NotificationsTopic).
		Int("workers", cfg.NotifierWorkers).
		Msg("notifier starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	producer := notify.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()
	commands := app.NewBookingCommands(repo, cache, producer, cfg.NotificationsTopic, cfg.TokenTTL, cfg.LockTTL)

	consumer := notify.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, cfg.NotificationsTopic)
	defer consumer.Close()

	sender := notify.NewSender()
	sem := semaphore.NewWeighted(int64(cfg.NotifierWorkers))
	var wg sync.WaitGroup

	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event notify.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Warn().Err(err).Msg("decode event failed, skipping")
				return nil
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				if err := sender.Send(ctx, event); err != nil {
					log.Warn().Err(err).Str("type", event.Type).Msg("send email failed")
				}
			}()
			return nil
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("consumer stopped")
		}
	}()

	sweep := time.NewTicker(cfg.SweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-sweep.C:
			expired, err := commands.ExpireOverdue(ctx)
			if err != nil {
				log.Error().Err(err).Msg("expire sweep failed")
				continue
			}
			if len(expired) > 0 {
				log.Info().Int("count", len(expired)).Msg("expired overdue bookings")
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			wg.Wait()
			return
		}
	}
}
