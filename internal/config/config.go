package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthFirebase = "firebase"
	AuthStatic   = "static"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are loaded from environment variables (optionally seeded from a
// .env file) with defaults that let the binary run locally on the memory
// store and static tokens.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	PGDSN         string
	RunMigrations bool

	KafkaBrokers []string
	KafkaTopic   string

	WebhookURL   string
	WebhookToken string

	NotifyTimeout time.Duration

	AuthMode            string
	StaticTokens        string
	FirebaseProjectID   string
	FirebaseCredentials string

	CORSOrigins []string

	DefaultRadiusKm float64

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		KafkaTopic:      "service-request-events",
		NotifyTimeout:   3 * time.Second,
		AuthMode:        AuthStatic,
		CORSOrigins:     []string{"*"},
		DefaultRadiusKm: 10,
		LogLevel:        "info",
	}
}

// LoadServerConfig reads the environment. A missing .env file is not an
// error; every invalid value is reported at once.
func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load()

	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.WebhookURL = strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL"))
	cfg.WebhookToken = os.Getenv("NOTIFY_WEBHOOK_TOKEN")
	setDurationFromEnv(&cfg.NotifyTimeout, "NOTIFY_TIMEOUT", &errs)

	if v := os.Getenv("AUTH_MODE"); v != "" {
		cfg.AuthMode = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.StaticTokens = os.Getenv("AUTH_STATIC_TOKENS")
	cfg.FirebaseProjectID = strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID"))
	cfg.FirebaseCredentials = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitAndTrim(origins)
	}

	setFloatFromEnv(&cfg.DefaultRadiusKm, "DEFAULT_RADIUS_KM", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	switch cfg.AuthMode {
	case AuthStatic:
	case AuthFirebase:
		if cfg.FirebaseProjectID == "" {
			errs = append(errs, fmt.Errorf("FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthStatic, AuthFirebase, cfg.AuthMode))
	}
	if cfg.DefaultRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_RADIUS_KM must be > 0"))
	}
	if cfg.RunMigrations && cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("MIGRATE=true needs PG_DSN"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig drives the notification inbox consumer.
type ConsumerConfig struct {
	MetricsAddr  string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string
	RedisAddr    string
	InboxSize    int
	LogLevel     string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	_ = godotenv.Load()

	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "service-request-events",
		KafkaGroup:   "roadside-inbox",
		RedisAddr:    "localhost:6379",
		InboxSize:    50,
		LogLevel:     "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	setIntFromEnv(&cfg.InboxSize, "INBOX_SIZE", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must name at least one broker"))
	}
	if cfg.InboxSize <= 0 {
		errs = append(errs, fmt.Errorf("INBOX_SIZE must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

// ClientConfig drives roadsidectl, the command-line API client.
type ClientConfig struct {
	APIURL        string
	Token         string
	AccountID     string
	Role          string
	RedisAddr     string
	RedisPassword string
	SnapshotTTL   time.Duration
	MaxStale      time.Duration
	LogLevel      string
}

func LoadClientConfig() (ClientConfig, error) {
	_ = godotenv.Load()

	cfg := ClientConfig{
		APIURL:      "http://localhost:8080",
		Role:        "client",
		SnapshotTTL: 24 * time.Hour,
		LogLevel:    "warn",
	}
	var errs []error

	setStringFromEnv(&cfg.APIURL, "ROADSIDE_API_URL")
	cfg.Token = strings.TrimSpace(os.Getenv("ROADSIDE_TOKEN"))
	cfg.AccountID = strings.TrimSpace(os.Getenv("ROADSIDE_ACCOUNT_ID"))
	if v := os.Getenv("ROADSIDE_ROLE"); v != "" {
		cfg.Role = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.SnapshotTTL, "SNAPSHOT_TTL", &errs)
	setDurationFromEnv(&cfg.MaxStale, "CACHE_MAX_STALE", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.Role != "client" && cfg.Role != "provider" {
		errs = append(errs, fmt.Errorf("ROADSIDE_ROLE must be client or provider, got %q", cfg.Role))
	}
	if cfg.MaxStale < 0 {
		errs = append(errs, fmt.Errorf("CACHE_MAX_STALE must be >= 0"))
	}
	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
