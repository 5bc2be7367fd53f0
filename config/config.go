package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Upstream UpstreamConfig
	Auth     AuthConfig
	Business BusinessConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig selects the ledger backend. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver string
	URL    string
}

// RedisConfig is optional; an empty Addr disables the dashboard cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicTransaction string
	ConsumerGroup    string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	TracingEnabled bool
	SampleRatio    float64
	LogLevel       string
}

// UpstreamConfig holds the collaborator endpoints injected into the clients.
type UpstreamConfig struct {
	AuthorityURL        string
	AuthorityTimeout    time.Duration
	AuthorityMatchBy    string
	CatalogURL          string
	CatalogTimeout      time.Duration
	CatalogServiceToken string
}

type AuthConfig struct {
	JWTSecret    string
	Required     bool
	CommitRoles  []string
	AdminRoles   []string
	AllowOrigins []string
}

type BusinessConfig struct {
	SagaCompensation   bool
	StatsWindowDays    int
	StatsCacheTTL      time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
	SagaSweepSchedule  string
	SagaStaleAfter     time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	windowDays, _ := strconv.Atoi(getEnv("STATS_WINDOW_DAYS", "7"))
	rps, _ := strconv.Atoi(getEnv("RATE_LIMIT_RPS", "20"))
	burst, _ := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "40"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8003"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("LEDGER_DRIVER", "sqlite"),
			URL:    getEnv("DATABASE_URL", "file:transaction_db.sqlite?_pragma=busy_timeout(5000)"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Enabled:          getBool("KAFKA_ENABLED", false),
			Brokers:          strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicTransaction: getEnv("KAFKA_TOPIC_TRANSACTION_EVENTS", "transaction-events"),
			ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "transaction-reconciliation-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			TracingEnabled: getBool("TRACING_ENABLED", false),
			SampleRatio:    getFloat("TRACE_SAMPLE_RATIO", 1),
			LogLevel:       getEnv("LOG_LEVEL", ""),
		},
		Upstream: UpstreamConfig{
			AuthorityURL:        getEnv("AUTHORITY_URL", "http://localhost:8004/graphql"),
			AuthorityTimeout:    getDuration("AUTHORITY_TIMEOUT", 10*time.Second),
			AuthorityMatchBy:    getEnv("AUTHORITY_MATCH_BY", "name"),
			CatalogURL:          getEnv("CATALOG_URL", "http://localhost:8002/graphql"),
			CatalogTimeout:      getDuration("CATALOG_TIMEOUT", 10*time.Second),
			CatalogServiceToken: getEnv("CATALOG_SERVICE_TOKEN", ""),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", "apotek-dev-secret"),
			Required:     getBool("AUTH_REQUIRED", true),
			CommitRoles:  splitList(getEnv("COMMIT_ROLES", "admin,apoteker")),
			AdminRoles:   splitList(getEnv("ADMIN_ROLES", "admin")),
			AllowOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Business: BusinessConfig{
			SagaCompensation:   getBool("SAGA_COMPENSATION", false),
			StatsWindowDays:    windowDays,
			StatsCacheTTL:      getDuration("STATS_CACHE_TTL", 30*time.Second),
			RateLimitPerSecond: rps,
			RateLimitBurst:     burst,
			SagaSweepSchedule:  getEnv("SAGA_SWEEP_SCHEDULE", "@every 1m"),
			SagaStaleAfter:     getDuration("SAGA_STALE_AFTER", 5*time.Minute),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, ledger=%s", cfg.Server.Env, cfg.Server.Port, cfg.Database.Driver)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultVal)))
	if err != nil {
		return defaultVal
	}
	return val
}

func getFloat(key string, defaultVal float64) float64 {
	val, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return val
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val, err := time.ParseDuration(getEnv(key, defaultVal.String()))
	if err != nil {
		return defaultVal
	}
	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
