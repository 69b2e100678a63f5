package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Monitor  MonitorConfig
	Scorer   ScorerConfig
	Kafka    KafkaConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
	StatusTTLSec  int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// DevSeedPassword is given to the demo agents seeded in memory mode.
	DevSeedPassword string
}

// MonitorConfig holds the queue monitor cadence and every threshold the engine uses.
type MonitorConfig struct {
	DefaultRefreshSeconds int
	AllowedRefreshSeconds []int
	SLAWarningMinutes     int
	HealthCriticalPct     float64
	HealthWarningPct      float64
	HealthGoodPct         float64
	TrendHysteresisPct    float64
	BreachRiskWarningPct  float64
	AlertBufferSize       int
	FetchTimeoutSeconds   int
	StrictPreconditions   bool
	WatchQueueIDs         []string
}

// ScorerConfig points at the external skill/ML scorer.
type ScorerConfig struct {
	BaseURL            string
	TimeoutSeconds     int
	RetryCount         int
	BreakerMaxFailures int
	BreakerOpenSeconds int
}

// KafkaConfig configures the alert sink. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	AlertTopic string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	allowed, err := getEnvAsIntList("MONITOR_ALLOWED_REFRESH_SECONDS", []int{10, 30, 60, 300})
	if err != nil {
		return nil, fmt.Errorf("invalid MONITOR_ALLOWED_REFRESH_SECONDS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "queue-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Enabled:       getEnvAsBool("REDIS_ENABLED", true),
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "queue-engine"),
			StatusTTLSec:  getEnvAsInt("REDIS_STATUS_TTL_SECONDS", 600),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 14),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			DevSeedPassword:       getEnv("DEV_SEED_PASSWORD", "changeme"),
		},
		Monitor: MonitorConfig{
			DefaultRefreshSeconds: getEnvAsInt("MONITOR_REFRESH_SECONDS", 30),
			AllowedRefreshSeconds: allowed,
			SLAWarningMinutes:     getEnvAsInt("SLA_WARNING_MINUTES", 120),
			HealthCriticalPct:     getEnvAsFloat("HEALTH_CRITICAL_PCT", 95),
			HealthWarningPct:      getEnvAsFloat("HEALTH_WARNING_PCT", 80),
			HealthGoodPct:         getEnvAsFloat("HEALTH_GOOD_PCT", 60),
			TrendHysteresisPct:    getEnvAsFloat("TREND_HYSTERESIS_PCT", 0.5),
			BreachRiskWarningPct:  getEnvAsFloat("BREACH_RISK_WARNING_PCT", 70),
			AlertBufferSize:       getEnvAsInt("ALERT_BUFFER_SIZE", 5),
			FetchTimeoutSeconds:   getEnvAsInt("MONITOR_FETCH_TIMEOUT_SECONDS", 10),
			StrictPreconditions:   getEnvAsBool("TRANSITION_STRICT_PRECONDITIONS", false),
			WatchQueueIDs:         getEnvAsList("MONITOR_WATCH_QUEUES"),
		},
		Scorer: ScorerConfig{
			BaseURL:            os.Getenv("SCORER_BASE_URL"),
			TimeoutSeconds:     getEnvAsInt("SCORER_TIMEOUT_SECONDS", 5),
			RetryCount:         getEnvAsInt("SCORER_RETRY_COUNT", 2),
			BreakerMaxFailures: getEnvAsInt("SCORER_BREAKER_MAX_FAILURES", 5),
			BreakerOpenSeconds: getEnvAsInt("SCORER_BREAKER_OPEN_SECONDS", 30),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvAsList("KAFKA_BROKERS"),
			AlertTopic: getEnv("KAFKA_ALERT_TOPIC", "queue_alerts"),
		},
	}

	if err := cfg.Monitor.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects monitor settings the engine cannot run with.
func (m MonitorConfig) Validate() error {
	if !m.IntervalAllowed(m.DefaultRefreshSeconds) {
		return fmt.Errorf("MONITOR_REFRESH_SECONDS=%d not in allowed set %v", m.DefaultRefreshSeconds, m.AllowedRefreshSeconds)
	}
	if !(m.HealthCriticalPct > m.HealthWarningPct && m.HealthWarningPct > m.HealthGoodPct) {
		return fmt.Errorf("health thresholds must be strictly descending: %.1f/%.1f/%.1f",
			m.HealthCriticalPct, m.HealthWarningPct, m.HealthGoodPct)
	}
	if m.AlertBufferSize <= 0 {
		return fmt.Errorf("ALERT_BUFFER_SIZE must be positive")
	}
	if m.SLAWarningMinutes <= 0 {
		return fmt.Errorf("SLA_WARNING_MINUTES must be positive")
	}
	return nil
}

// IntervalAllowed reports whether seconds is one of the configured refresh cadences.
func (m MonitorConfig) IntervalAllowed(seconds int) bool {
	for _, allowed := range m.AllowedRefreshSeconds {
		if allowed == seconds {
			return true
		}
	}
	return false
}

// DefaultRefresh returns the default refresh cadence.
func (m MonitorConfig) DefaultRefresh() time.Duration {
	return time.Duration(m.DefaultRefreshSeconds) * time.Second
}

// SLAWarningWindow returns the default SLA warning window.
func (m MonitorConfig) SLAWarningWindow() time.Duration {
	return time.Duration(m.SLAWarningMinutes) * time.Minute
}

// FetchTimeout returns the per-cycle fetch deadline.
func (m MonitorConfig) FetchTimeout() time.Duration {
	if m.FetchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(m.FetchTimeoutSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Defaults returns the configuration Load produces with an empty environment.
// Tests and tooling use it to build components without touching env vars.
func Defaults() MonitorConfig {
	return MonitorConfig{
		DefaultRefreshSeconds: 30,
		AllowedRefreshSeconds: []int{10, 30, 60, 300},
		SLAWarningMinutes:     120,
		HealthCriticalPct:     95,
		HealthWarningPct:      80,
		HealthGoodPct:         60,
		TrendHysteresisPct:    0.5,
		BreachRiskWarningPct:  70,
		AlertBufferSize:       5,
		FetchTimeoutSeconds:   10,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsIntList(key string, fallback []int) ([]int, error) {
	parts := getEnvAsList(key)
	if len(parts) == 0 {
		return fallback, nil
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
