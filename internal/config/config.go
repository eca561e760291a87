package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults;
// a .env file, when present, fills in whatever the environment leaves unset.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// ChatKit widget / transport
	ChatKitAPIURL    string
	ChatKitDomainKey string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Panel sessions
	SessionTTL         time.Duration
	SessionBackend     string // memory | redis
	SessionTokenSecret string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Browser
	CORSAllowedOrigins []string

	// Observability
	OTLPEndpoint string
}

var defaults = map[string]any{
	"PORT":                        8080,
	"LOG_LEVEL":                   "info",
	"CHATKIT_API_URL":             "http://localhost:8000/chatkit",
	"CHATKIT_API_DOMAIN_KEY":      "domain_pk_localhost_dev",
	"HTTP_TIMEOUT":                "10s",
	"MAX_RETRIES":                 2,
	"INITIAL_BACKOFF":             "100ms",
	"MAX_CONCURRENCY":             50,
	"SESSION_TTL":                 "30m",
	"SESSION_BACKEND":             "memory",
	"SESSION_TOKEN_SECRET":        "panel-default-dev-secret-change-me",
	"REDIS_ADDR":                  "localhost:6379",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"CORS_ALLOWED_ORIGINS":        "*",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
}

// Load reads configuration from environment variables with defaults.
// dotEnvPath may be empty; a missing file is not an error.
func Load(dotEnvPath string) *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if dotEnvPath != "" {
		v.SetConfigFile(dotEnvPath)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		ChatKitAPIURL:    v.GetString("CHATKIT_API_URL"),
		ChatKitDomainKey: v.GetString("CHATKIT_API_DOMAIN_KEY"),

		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),

		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),
		MaxConcurrency: v.GetInt("MAX_CONCURRENCY"),

		SessionTTL:         v.GetDuration("SESSION_TTL"),
		SessionBackend:     strings.ToLower(v.GetString("SESSION_BACKEND")),
		SessionTokenSecret: v.GetString("SESSION_TOKEN_SECRET"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	// Non-positive durations fall back to their defaults.
	cfg.SessionTTL = positiveDuration(cfg.SessionTTL, "SESSION_TTL")
	cfg.HTTPTimeout = positiveDuration(cfg.HTTPTimeout, "HTTP_TIMEOUT")
	cfg.InitialBackoff = positiveDuration(cfg.InitialBackoff, "INITIAL_BACKOFF")

	return cfg
}

func positiveDuration(d time.Duration, key string) time.Duration {
	if d > 0 {
		return d
	}
	def, _ := time.ParseDuration(defaults[key].(string))
	return def
}

// splitList parses a comma separated list, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
