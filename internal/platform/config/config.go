// Package config builds process configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Server captures the full process configuration.
type Server struct {
	Addr string

	PostgresDSN string
	Redis       RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	SchedulingAPIURL string

	Aggregator AggregatorConfig
}

// RedisConfig configures the submission-lock Redis client. An empty URL means
// Redis is not configured and the in-process lock is used.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AggregatorConfig carries the credentials and endpoints for state aggregator
// submissions. EndpointURLs is keyed by aggregator name.
type AggregatorConfig struct {
	AgencyID      string
	SigningSecret string
	Timeout       time.Duration
	EndpointURLs  map[string]string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:             envOr("CAREBRIDGE_ADDR", ":8080"),
		PostgresDSN:      os.Getenv("CAREBRIDGE_POSTGRES_DSN"),
		SchedulingAPIURL: os.Getenv("CAREBRIDGE_SCHEDULING_API_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CAREBRIDGE_REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers: splitList(os.Getenv("CAREBRIDGE_KAFKA_BROKERS")),
		AuditTopic:   envOr("CAREBRIDGE_AUDIT_TOPIC", "carebridge.evv.audit"),
		Aggregator: AggregatorConfig{
			AgencyID:      envOr("CAREBRIDGE_AGENCY_ID", "carebridge-dev"),
			SigningSecret: envOr("CAREBRIDGE_AGGREGATOR_SECRET", "dev-secret-change-in-production"),
			Timeout:       durationOr("CAREBRIDGE_AGGREGATOR_TIMEOUT", 15*time.Second),
			EndpointURLs:  aggregatorEndpoints(),
		},
	}
}

// aggregatorEndpoints reads CAREBRIDGE_AGGREGATOR_<NAME>_URL for each known
// aggregator. Names in env vars are upper-cased aggregator names.
func aggregatorEndpoints() map[string]string {
	urls := make(map[string]string)
	for _, name := range []string{"HHAeXchange", "Sandata", "CalEVV", "Tellus", "Netsmart"} {
		key := fmt.Sprintf("CAREBRIDGE_AGGREGATOR_%s_URL", strings.ToUpper(name))
		if url := os.Getenv(key); url != "" {
			urls[name] = url
		}
	}
	return urls
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
