package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the operations assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	SessionHistoryLimit  int
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	LedgerMode          string
	LedgerURL           string
	MessagingMode       string
	MessagingURL        string
	CollaboratorTimeout time.Duration

	BaseCurrency      string
	OpsAccount        string
	SettlementAccount string
	CounterpartyBIC   string
	AutoReconcile     bool

	DatabaseURL string
	SeedFile    string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "opsdesk"),
		AllowAnyOrigin:       false,
		SessionHistoryLimit:  20,
		SessionIdleTTL:       time.Hour,
		SessionSweepInterval: 15 * time.Minute,
		LedgerMode:           envOrDefault("LEDGER_MODE", "auto"),
		LedgerURL:            stringsTrimSpace("LEDGER_URL"),
		MessagingMode:        envOrDefault("MESSAGING_MODE", "auto"),
		MessagingURL:         stringsTrimSpace("MESSAGING_URL"),
		CollaboratorTimeout:  10 * time.Second,
		BaseCurrency:         strings.ToUpper(envOrDefault("BASE_CURRENCY", "USD")),
		OpsAccount:           envOrDefault("OPS_ACCOUNT", "ACC-1001-USD"),
		SettlementAccount:    envOrDefault("SETTLEMENT_ACCOUNT", "ACC-1002-USD"),
		CounterpartyBIC:      envOrDefault("COUNTERPARTY_BIC", "CHASUS33"),
		AutoReconcile:        false,
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		SeedFile:             stringsTrimSpace("SEED_FILE"),
		OpenAIAPIKey:         stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:        stringsTrimSpace("OPENAI_BASE_URL"),
		OpenAIModel:          stringsTrimSpace("OPENAI_MODEL"),
		ShutdownTimeout:      15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTTL, err = durationFromEnv("SESSION_IDLE_TTL", cfg.SessionIdleTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionSweepInterval, err = durationFromEnv("SESSION_SWEEP_INTERVAL", cfg.SessionSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.CollaboratorTimeout, err = durationFromEnv("COLLABORATOR_TIMEOUT", cfg.CollaboratorTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionHistoryLimit, err = intFromEnv("SESSION_HISTORY_LIMIT", cfg.SessionHistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.AutoReconcile, err = boolFromEnv("AUTO_RECONCILE", cfg.AutoReconcile)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("SESSION_HISTORY_LIMIT must be positive")
	}
	if cfg.SessionIdleTTL < time.Minute {
		return Config{}, fmt.Errorf("SESSION_IDLE_TTL must be at least 1m")
	}
	if cfg.SessionSweepInterval <= 0 {
		return Config{}, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}
	if cfg.CollaboratorTimeout <= 0 {
		return Config{}, fmt.Errorf("COLLABORATOR_TIMEOUT must be positive")
	}
	switch cfg.BaseCurrency {
	case "USD", "EUR", "GBP", "JPY":
	default:
		return Config{}, fmt.Errorf("BASE_CURRENCY must be one of USD, EUR, GBP, JPY")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
