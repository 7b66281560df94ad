package config

import (
	"os"
	"strings"
	"time"

	platformstrings "enrichd/pkg/platform/strings"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr     string
	LogLevel string

	PostgresURL string
	Redis       RedisConfig

	KafkaBrokers  []string
	KafkaTopic    string
	CacheSweepInt time.Duration
}

// RedisConfig holds connection settings for the optional Redis cache tier.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("ENRICHD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logLevel := os.Getenv("ENRICHD_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	sweep := 10 * time.Minute
	if raw := os.Getenv("ENRICHD_CACHE_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			sweep = d
		}
	}

	var brokers []string
	if raw := os.Getenv("ENRICHD_KAFKA_BROKERS"); raw != "" {
		brokers = platformstrings.DedupeAndTrim(strings.Split(raw, ","))
	}

	topic := os.Getenv("ENRICHD_KAFKA_TOPIC")
	if topic == "" {
		topic = "enrichment.completed"
	}

	return Server{
		Addr:        addr,
		LogLevel:    logLevel,
		PostgresURL: os.Getenv("ENRICHD_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("ENRICHD_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		CacheSweepInt: sweep,
	}
}
