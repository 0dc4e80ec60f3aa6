package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPAddr    string
	StoreDriver string
	DatabaseURL string

	JWTSecret    string
	JWTPublicKey string

	PolicyURL               string
	PolicyTimeout           time.Duration
	PolicyBreakerThreshold  int
	PolicyBreakerCooldown   time.Duration
	PolicyRestrictedPattern string

	FinanceURL        string
	FinanceTimeout    time.Duration
	OrderExpiration   time.Duration
	IdentityURL       string
	IdentityTimeout   time.Duration
	ValidationSalt    string
	BiometricCheckIn  bool
	PassHashKey       []byte // base64
	PassBlockKey      []byte // base64, optional
	SchedulerInterval time.Duration

	EventsDriver string
	KafkaBrokers []string
	TopicPrefix  string
	AMQPURL      string
	AMQPExchange string

	LogLevel  string
	LogFormat string
}

// LoadDotEnv reads .env into the environment when present.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:                envDefault("HTTP_ADDR", ":3013"),
		StoreDriver:             strings.ToLower(envDefault("STORE_DRIVER", StorePostgres)),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTPublicKey:            strings.TrimSpace(os.Getenv("JWT_PUBLIC_KEY")),
		PolicyURL:               envDefault("POLICY_SERVICE_URL", "http://compliance-service:3012"),
		PolicyRestrictedPattern: envDefault("POLICY_RESTRICTED_PATTERN", "restricted|admin"),
		FinanceURL:              envDefault("FINANCE_SERVICE_URL", "http://finance-service:3007"),
		IdentityURL:             strings.TrimSpace(os.Getenv("IDENTITY_SERVICE_URL")),
		ValidationSalt:          envDefault("VALIDATION_SALT", "default-salt"),
		EventsDriver:            strings.ToLower(envDefault("EVENTS_DRIVER", "log")),
		KafkaBrokers:            splitCSV(os.Getenv("KAFKA_BROKERS")),
		TopicPrefix:             envDefault("KAFKA_TOPIC_PREFIX", ""),
		AMQPURL:                 strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPExchange:            envDefault("AMQP_EXCHANGE", "reservations.events"),
		LogLevel:                envDefault("LOG_LEVEL", "info"),
		LogFormat:               envDefault("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.PolicyTimeout, err = envMillis("POLICY_TIMEOUT_MS", 2000); err != nil {
		return cfg, err
	}
	if cfg.PolicyBreakerThreshold, err = envInt("POLICY_BREAKER_THRESHOLD", 5); err != nil {
		return cfg, err
	}
	if cfg.PolicyBreakerCooldown, err = envMillis("POLICY_BREAKER_COOLDOWN_MS", 60000); err != nil {
		return cfg, err
	}
	if cfg.FinanceTimeout, err = envMillis("FINANCE_TIMEOUT_MS", 10000); err != nil {
		return cfg, err
	}
	if cfg.IdentityTimeout, err = envMillis("IDENTITY_TIMEOUT_MS", 5000); err != nil {
		return cfg, err
	}
	minutes, err := envInt("ORDER_EXPIRATION_MINUTES", 30)
	if err != nil {
		return cfg, err
	}
	cfg.OrderExpiration = time.Duration(minutes) * time.Minute
	secs, err := envInt("SCHED_POLL_SECONDS", 30)
	if err != nil {
		return cfg, err
	}
	cfg.SchedulerInterval = time.Duration(secs) * time.Second
	if cfg.BiometricCheckIn, err = envBool("FEATURE_BIOMETRIC_CHECK_IN", false); err != nil {
		return cfg, err
	}

	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required")
		}
	default:
		return cfg, fmt.Errorf("STORE_DRIVER must be %q or %q", StorePostgres, StoreMemory)
	}
	if cfg.JWTSecret == "" && cfg.JWTPublicKey == "" {
		return cfg, fmt.Errorf("JWT_SECRET or JWT_PUBLIC_KEY is required")
	}

	if cfg.PassHashKey, err = optionalB64("PASS_HASH_KEY"); err != nil {
		return cfg, err
	}
	if cfg.PassBlockKey, err = optionalB64("PASS_BLOCK_KEY"); err != nil {
		return cfg, err
	}
	if n := len(cfg.PassBlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return cfg, fmt.Errorf("PASS_BLOCK_KEY must decode to 16, 24 or 32 bytes (got %d)", n)
	}
	return cfg, nil
}

// PassesEnabled is true when a signing key for check-in passes is configured.
func (c Config) PassesEnabled() bool { return len(c.PassHashKey) > 0 }

func envDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func envInt(k string, d int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", k)
	}
	return n, nil
}

func envMillis(k string, d int) (time.Duration, error) {
	n, err := envInt(k, d)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func envBool(k string, d bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", k)
	}
	return b, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalB64(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, nil
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base64: %w", k, err)
	}
	return b, nil
}
