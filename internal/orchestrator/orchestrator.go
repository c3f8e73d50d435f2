// Package orchestrator ties one free-text request to a session, a routed
// workflow execution and the archived conversation record.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-ai/opsdesk/internal/archive"
	"github.com/opsdesk-ai/opsdesk/internal/entity"
	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
	"github.com/opsdesk-ai/opsdesk/internal/observability"
	"github.com/opsdesk-ai/opsdesk/internal/prettify"
	"github.com/opsdesk-ai/opsdesk/internal/report"
	"github.com/opsdesk-ai/opsdesk/internal/router"
	"github.com/opsdesk-ai/opsdesk/internal/session"
	"github.com/opsdesk-ai/opsdesk/internal/tracker"
	"github.com/opsdesk-ai/opsdesk/internal/workflow"
)

var ErrEmptyRequest = errors.New("request text is empty")

const fallbackText = "I couldn't map that to anything I can do. I can check balances, " +
	"list accounts, scan the portfolio, book and approve transfers, send SWIFT payments, " +
	"look up payment messages, reconcile, verify EOD reports, handle rate fixings, " +
	"process redemption batches and run the EOD readiness check."

// Deps are the collaborators the service is wired with at startup.
type Deps struct {
	Sessions      *session.Store
	Archive       archive.Store
	Ledger        ledger.Client
	Messaging     messaging.Client
	Polisher      *prettify.Polisher
	Metrics       *observability.Metrics
	Defaults      workflow.Defaults
	AutoReconcile bool
	Logger        *slog.Logger
}

type Service struct {
	deps    Deps
	router  *router.Router
	catalog map[string]workflow.Definition
	log     *slog.Logger
}

func New(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		deps:    deps,
		router:  router.New(),
		catalog: workflow.Catalog(),
		log:     log,
	}
}

// Result is the reply to one request. Operations lists the collaborator
// calls made on the requester's behalf, in invocation order.
type Result struct {
	SessionKey string          `json:"session_key"`
	Workflow   string          `json:"workflow,omitempty"`
	Status     workflow.Status `json:"status"`
	Report     *report.Report  `json:"report"`
	Text       string          `json:"text"`
	Operations []string        `json:"operations,omitempty"`
}

// Handle runs one request end to end. onBlock, when non-nil, observes every
// report block as it is produced.
func (s *Service) Handle(ctx context.Context, sessionKey, text string, onBlock func(report.Block)) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptyRequest
	}

	if sessionKey == "" {
		sessionKey = uuid.NewString()
	}
	if created := s.deps.Sessions.Touch(sessionKey); created && s.deps.Metrics != nil {
		s.deps.Metrics.ActiveSessions.Inc()
		s.deps.Metrics.SessionEvents.WithLabelValues("created").Inc()
	}
	s.record(ctx, sessionKey, session.Turn{Role: session.RoleUser, Content: text})

	ents := entity.Extract(text)
	rep := &report.Report{Observer: onBlock}

	name, routed := s.router.Route(text, ents)
	if !routed {
		rep.AddText("", fallbackText)
		res := Result{
			SessionKey: sessionKey,
			Status:     workflow.StatusBlocked,
			Report:     rep,
			Text:       fallbackText,
		}
		s.record(ctx, sessionKey, session.Turn{Role: session.RoleAssistant, Content: res.Text})
		s.countRequest("none", "unrouted")
		return res, nil
	}

	// "auto" in a reconcile request opts into applying the status
	// transitions even when the service-wide flag is off.
	auto := s.deps.AutoReconcile
	if name == workflow.NameReconcile && strings.Contains(strings.ToLower(text), "auto") {
		auto = true
	}

	trk := tracker.New()
	ex := &workflow.Exec{
		Ledger:        s.deps.Ledger,
		Messaging:     s.deps.Messaging,
		Entities:      ents,
		Tracker:       trk,
		Report:        rep,
		Defaults:      s.deps.Defaults,
		AutoReconcile: auto,
		Metrics:       s.deps.Metrics,
	}
	outcome := s.catalog[name].Execute(ctx, ex)
	ops := trk.Drain()

	res := Result{
		SessionKey: sessionKey,
		Workflow:   name,
		Status:     outcome.Status,
		Report:     rep,
		Text:       s.renderText(ctx, rep),
		Operations: ops,
	}
	s.record(ctx, sessionKey, session.Turn{
		Role:       session.RoleAssistant,
		Content:    res.Text,
		Operations: tracker.Joined(ops),
	})
	s.countRequest(name, string(outcome.Status))
	return res, nil
}

// renderText prefers the polished rendering and degrades to the plain one on
// any polish failure. The structured report is authoritative either way.
func (s *Service) renderText(ctx context.Context, rep *report.Report) string {
	rendered := rep.Render()
	if s.deps.Polisher == nil {
		return rendered
	}
	polished, err := s.deps.Polisher.Polish(ctx, rendered)
	if err != nil {
		s.log.Warn("prettifier failed, using plain rendering", "error", err)
		return rendered
	}
	return polished
}

func (s *Service) record(ctx context.Context, key string, t session.Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.deps.Sessions.Append(key, t)
	if s.deps.Archive == nil {
		return
	}
	err := s.deps.Archive.SaveTurn(ctx, archive.TurnRecord{
		ID:         uuid.NewString(),
		SessionKey: key,
		Role:       string(t.Role),
		Content:    t.Content,
		Operations: t.Operations,
		CreatedAt:  t.CreatedAt,
	})
	if err != nil {
		s.log.Warn("turn archive write failed", "session", key, "error", err)
	}
}

func (s *Service) countRequest(name, outcome string) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.Requests.WithLabelValues(name, outcome).Inc()
}

// History returns the session's retained turns, oldest first.
func (s *Service) History(sessionKey string, n int) []session.Turn {
	return s.deps.Sessions.Recent(sessionKey, n)
}

// Clear drops the session's live context. The archive is untouched.
func (s *Service) Clear(sessionKey string) error {
	if err := s.deps.Sessions.Clear(sessionKey); err != nil {
		return err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ActiveSessions.Dec()
		s.deps.Metrics.SessionEvents.WithLabelValues("cleared").Inc()
	}
	return nil
}
