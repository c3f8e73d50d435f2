package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/opsdesk-ai/opsdesk/internal/archive"
	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
	"github.com/opsdesk-ai/opsdesk/internal/report"
	"github.com/opsdesk-ai/opsdesk/internal/session"
	"github.com/opsdesk-ai/opsdesk/internal/workflow"
)

func newService(t *testing.T) (*Service, archive.Store) {
	t.Helper()
	arch := archive.NewInMemoryStore()
	svc := New(Deps{
		Sessions:  session.NewStore(20),
		Archive:   arch,
		Ledger:    ledger.NewMock(),
		Messaging: messaging.NewMock(),
		Defaults: workflow.Defaults{
			BaseCurrency:      "USD",
			OpsAccount:        "ACC-1001-USD",
			SettlementAccount: "ACC-1002-USD",
			CounterpartyBIC:   "CHASUS33",
			Today:             func() string { return "2026-09-01" },
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return svc, arch
}

func TestHandleRoutesRecordsAndArchives(t *testing.T) {
	svc, arch := newService(t)
	ctx := context.Background()

	res, err := svc.Handle(ctx, "desk-1", "what's the balance of ACC-1001-USD?", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Workflow != workflow.NameBalance {
		t.Fatalf("Workflow = %s, want %s", res.Workflow, workflow.NameBalance)
	}
	if res.Status != workflow.StatusCompleted {
		t.Fatalf("Status = %s, want %s", res.Status, workflow.StatusCompleted)
	}
	if !strings.Contains(res.Text, "ACC-1001-USD") {
		t.Fatalf("Text missing account id:\n%s", res.Text)
	}
	if len(res.Operations) != 1 || res.Operations[0] != "ledger.get_balance" {
		t.Fatalf("Operations = %v", res.Operations)
	}

	turns := svc.History("desk-1", 0)
	if len(turns) != 2 {
		t.Fatalf("history = %d turns, want user + assistant", len(turns))
	}
	if turns[0].Role != session.RoleUser || turns[1].Role != session.RoleAssistant {
		t.Fatalf("turn roles = %s, %s", turns[0].Role, turns[1].Role)
	}
	if turns[1].Operations != "ledger.get_balance" {
		t.Fatalf("assistant turn operations = %q", turns[1].Operations)
	}

	records, err := arch.RecentTurns(ctx, "desk-1", 10)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("archived = %d records, want 2", len(records))
	}
}

func TestHandleGeneratesSessionKey(t *testing.T) {
	svc, _ := newService(t)

	res, err := svc.Handle(context.Background(), "", "list USD accounts", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.SessionKey == "" {
		t.Fatalf("no session key assigned")
	}
	if got := svc.History(res.SessionKey, 0); len(got) != 2 {
		t.Fatalf("history for generated key = %d turns, want 2", len(got))
	}
}

func TestUnroutedRequestGetsFallback(t *testing.T) {
	svc, _ := newService(t)

	res, err := svc.Handle(context.Background(), "desk-1", "tell me a joke", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Workflow != "" {
		t.Fatalf("Workflow = %s, want none", res.Workflow)
	}
	if res.Status != workflow.StatusBlocked {
		t.Fatalf("Status = %s", res.Status)
	}
	if !strings.Contains(res.Text, "balances") {
		t.Fatalf("fallback should list capabilities:\n%s", res.Text)
	}
	if len(res.Operations) != 0 {
		t.Fatalf("Operations = %v, want none", res.Operations)
	}
}

func TestEmptyRequestRejected(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.Handle(context.Background(), "desk-1", "   ", nil); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("err = %v, want ErrEmptyRequest", err)
	}
}

func TestObserverSeesEveryBlock(t *testing.T) {
	svc, _ := newService(t)

	var streamed []report.Block
	res, err := svc.Handle(context.Background(), "desk-1", "are we ready for EOD?", func(b report.Block) {
		streamed = append(streamed, b)
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(streamed) == 0 {
		t.Fatalf("observer saw no blocks")
	}
	if len(streamed) != len(res.Report.Blocks) {
		t.Fatalf("streamed %d blocks, report has %d", len(streamed), len(res.Report.Blocks))
	}
}

func TestAutoKeywordOptsIntoReconcileApply(t *testing.T) {
	msg := messaging.NewMock()
	svc := New(Deps{
		Sessions:  session.NewStore(20),
		Ledger:    ledger.NewMock(),
		Messaging: msg,
		Defaults:  workflow.Defaults{BaseCurrency: "USD"},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx := context.Background()

	res, err := svc.Handle(ctx, "desk-1", "auto-reconcile all payments", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Workflow != workflow.NameReconcile {
		t.Fatalf("Workflow = %s", res.Workflow)
	}
	m, err := msg.GetMessage(ctx, "MSG-2001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Status != messaging.StatusReconciled {
		t.Fatalf("MSG-2001 = %s, want RECONCILED after auto keyword", m.Status)
	}
}

func TestClearDropsLiveContextOnly(t *testing.T) {
	svc, arch := newService(t)
	ctx := context.Background()

	if _, err := svc.Handle(ctx, "desk-1", "list USD accounts", nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := svc.Clear("desk-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := svc.History("desk-1", 0); len(got) != 0 {
		t.Fatalf("history after clear = %d turns", len(got))
	}
	records, err := arch.RecentTurns(ctx, "desk-1", 10)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("archive after clear = %d records, want untouched 2", len(records))
	}

	if err := svc.Clear("desk-1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("second clear err = %v, want ErrNotFound", err)
	}
}
