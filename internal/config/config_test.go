package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.LedgerMode != "auto" || cfg.MessagingMode != "auto" {
		t.Fatalf("collaborator modes = %q, %q, want auto", cfg.LedgerMode, cfg.MessagingMode)
	}
	if cfg.BaseCurrency != "USD" {
		t.Fatalf("BaseCurrency = %q, want USD", cfg.BaseCurrency)
	}
	if cfg.SessionHistoryLimit != 20 {
		t.Fatalf("SessionHistoryLimit = %d, want 20", cfg.SessionHistoryLimit)
	}
	if cfg.SessionIdleTTL != time.Hour {
		t.Fatalf("SessionIdleTTL = %s", cfg.SessionIdleTTL)
	}
	if cfg.SessionSweepInterval != 15*time.Minute {
		t.Fatalf("SessionSweepInterval = %s", cfg.SessionSweepInterval)
	}
	if cfg.AutoReconcile {
		t.Fatalf("AutoReconcile should default off")
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("OpenAIAPIKey = %q, want empty default", cfg.OpenAIAPIKey)
	}
}

func TestLoadUsesExplicitCollaboratorURLs(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LEDGER_URL", "http://localhost:7001")
	t.Setenv("MESSAGING_URL", "http://localhost:7002")
	t.Setenv("AUTO_RECONCILE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LedgerURL != "http://localhost:7001" {
		t.Fatalf("LedgerURL = %q", cfg.LedgerURL)
	}
	if cfg.MessagingURL != "http://localhost:7002" {
		t.Fatalf("MessagingURL = %q", cfg.MessagingURL)
	}
	if !cfg.AutoReconcile {
		t.Fatalf("AutoReconcile = false, want true")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"SESSION_HISTORY_LIMIT": "0",
		"SESSION_IDLE_TTL":      "5s",
		"BASE_CURRENCY":         "CHF",
		"APP_ALLOW_ANY_ORIGIN":  "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%q", key, val)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"SESSION_HISTORY_LIMIT",
		"SESSION_IDLE_TTL",
		"SESSION_SWEEP_INTERVAL",
		"LEDGER_MODE",
		"LEDGER_URL",
		"MESSAGING_MODE",
		"MESSAGING_URL",
		"COLLABORATOR_TIMEOUT",
		"BASE_CURRENCY",
		"OPS_ACCOUNT",
		"SETTLEMENT_ACCOUNT",
		"COUNTERPARTY_BIC",
		"AUTO_RECONCILE",
		"DATABASE_URL",
		"SEED_FILE",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
