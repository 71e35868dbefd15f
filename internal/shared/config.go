package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	AdminKey    string

	KafkaBrokers       []string
	NotificationsTopic string
	NotifierGroup      string
	NotifierWorkers    int

	StoreBase    string
	StoreRPS     int
	PollInterval time.Duration

	TokenTTL     time.Duration
	TripCacheTTL time.Duration
	LockTTL      time.Duration
	SweepEvery   time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/viajes?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		AdminKey:    env("ADMIN_API_KEY", ""),

		KafkaBrokers:       strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ","),
		NotificationsTopic: env("KAFKA_NOTIFICATIONS_TOPIC", "booking-notifications"),
		NotifierGroup:      env("KAFKA_NOTIFIER_GROUP", "notifier"),
		NotifierWorkers:    atoi("NOTIFIER_WORKERS", 4),

		StoreBase:    env("STORE_BASE_URL", "http://localhost:8080"),
		StoreRPS:     atoi("STORE_RPS", 5),
		PollInterval: time.Duration(atoi("POLL_INTERVAL_SECONDS", 5)) * time.Second,

		TokenTTL:     time.Duration(atoi("TOKEN_TTL_HOURS", 72)) * time.Hour,
		TripCacheTTL: time.Duration(atoi("TRIP_CACHE_TTL_SECONDS", 900)) * time.Second,
		LockTTL:      time.Duration(atoi("COMPLETE_LOCK_TTL_SECONDS", 30)) * time.Second,
		SweepEvery:   time.Duration(atoi("EXPIRY_SWEEP_MINUTES", 10)) * time.Minute,
	}
	if c.AdminKey == "" {
		log.Warn().Msg("ADMIN_API_KEY is empty; admin endpoints are open")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
