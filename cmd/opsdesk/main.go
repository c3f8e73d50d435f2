package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opsdesk-ai/opsdesk/internal/archive"
	"github.com/opsdesk-ai/opsdesk/internal/config"
	"github.com/opsdesk-ai/opsdesk/internal/httpapi"
	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
	"github.com/opsdesk-ai/opsdesk/internal/observability"
	"github.com/opsdesk-ai/opsdesk/internal/orchestrator"
	"github.com/opsdesk-ai/opsdesk/internal/prettify"
	"github.com/opsdesk-ai/opsdesk/internal/seed"
	"github.com/opsdesk-ai/opsdesk/internal/session"
	"github.com/opsdesk-ai/opsdesk/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	archiveStore, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("turn archive init failed: %v", err)
	}
	defer archiveStore.Close()

	data := seed.Default()
	if cfg.SeedFile != "" {
		data, err = seed.Load(cfg.SeedFile)
		if err != nil {
			log.Fatalf("seed file load failed: %v", err)
		}
		log.Printf("seed data loaded from %s", cfg.SeedFile)
	}

	var ledgerClient ledger.Client
	if useMock(cfg.LedgerMode, cfg.LedgerURL) {
		ledgerClient = ledger.NewMockWithData(data)
		log.Printf("ledger collaborator: mock")
	} else {
		ledgerClient, err = ledger.NewClient(ledger.Config{
			Mode:    cfg.LedgerMode,
			BaseURL: cfg.LedgerURL,
			Timeout: cfg.CollaboratorTimeout,
		})
		if err != nil {
			log.Fatalf("ledger client init failed: %v", err)
		}
		log.Printf("ledger collaborator: http (%s)", cfg.LedgerURL)
	}

	var messagingClient messaging.Client
	if useMock(cfg.MessagingMode, cfg.MessagingURL) {
		messagingClient = messaging.NewMockWithData(data)
		log.Printf("messaging collaborator: mock")
	} else {
		messagingClient, err = messaging.NewClient(messaging.Config{
			Mode:    cfg.MessagingMode,
			BaseURL: cfg.MessagingURL,
			Timeout: cfg.CollaboratorTimeout,
		})
		if err != nil {
			log.Fatalf("messaging client init failed: %v", err)
		}
		log.Printf("messaging collaborator: http (%s)", cfg.MessagingURL)
	}

	polisher := prettify.New(prettify.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if polisher != nil {
		log.Printf("reply prettifier: enabled")
	} else {
		log.Printf("reply prettifier: disabled (no OPENAI_API_KEY)")
	}

	sessions := session.NewStore(cfg.SessionHistoryLimit)

	svc := orchestrator.New(orchestrator.Deps{
		Sessions:  sessions,
		Archive:   archiveStore,
		Ledger:    ledgerClient,
		Messaging: messagingClient,
		Polisher:  polisher,
		Metrics:   metrics,
		Defaults: workflow.Defaults{
			BaseCurrency:      cfg.BaseCurrency,
			OpsAccount:        cfg.OpsAccount,
			SettlementAccount: cfg.SettlementAccount,
			CounterpartyBIC:   cfg.CounterpartyBIC,
		},
		AutoReconcile: cfg.AutoReconcile,
	})

	api := httpapi.New(cfg, svc, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, cfg.SessionSweepInterval, cfg.SessionIdleTTL, func(n int) {
		metrics.ActiveSessions.Sub(float64(n))
		metrics.SessionEvents.WithLabelValues("expired").Add(float64(n))
		log.Printf("expired %d idle session(s)", n)
	})

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// useMock reports whether the collaborator should run in-process: explicit
// mock mode, or auto mode without a configured URL.
func useMock(mode, baseURL string) bool {
	mode = strings.ToLower(strings.TrimSpace(mode))
	return mode == "mock" || ((mode == "" || mode == "auto") && strings.TrimSpace(baseURL) == "")
}
