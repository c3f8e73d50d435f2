// Package workflow defines the named, ordered call sequences the router can
// select and the executor that runs them against the collaborators.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opsdesk-ai/opsdesk/internal/entity"
	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
	"github.com/opsdesk-ai/opsdesk/internal/observability"
	"github.com/opsdesk-ai/opsdesk/internal/recon"
	"github.com/opsdesk-ai/opsdesk/internal/report"
	"github.com/opsdesk-ai/opsdesk/internal/tracker"
)

// ErrBlocked marks a step that could not run because a precondition or a
// required entity was missing. The step has already written its guidance
// block; the executor must not add an error block on top.
var ErrBlocked = errors.New("step blocked")

type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusBlocked   Status = "blocked"
	StatusFailed    Status = "failed"
)

// Defaults are the documented fallbacks for absent entities.
type Defaults struct {
	BaseCurrency      string
	OpsAccount        string
	SettlementAccount string
	CounterpartyBIC   string
	Today             func() string
}

// Exec carries everything one request's workflow execution needs. It is
// request-scoped and never shared across requests.
type Exec struct {
	Ledger        ledger.Client
	Messaging     messaging.Client
	Entities      entity.Entities
	Tracker       *tracker.Tracker
	Report        *report.Report
	Defaults      Defaults
	AutoReconcile bool
	Metrics       *observability.Metrics

	// Scratch state shared between steps of one execution.
	booked    *ledger.Transaction
	reconMsgs []messaging.Message
	reconTxns []ledger.Transaction
	eod       *eodFacts
}

type StepFunc func(ctx context.Context, ex *Exec) error

type Step struct {
	Title string
	Run   StepFunc
}

// Definition is a fixed, named, ordered list of steps. Independent
// definitions record per-step failures and keep going; dependent ones stop
// at the first failed or blocked step.
type Definition struct {
	Name        string
	Title       string
	Independent bool
	Steps       []Step
}

type Outcome struct {
	Workflow string `json:"workflow"`
	Status   Status `json:"status"`
	StepsRun int    `json:"steps_run"`
	Failed   int    `json:"failed"`
}

// Execute runs the definition's steps in order under the dependency policy.
// Collaborator failures are recorded in the report, never raised; nothing
// here is fatal to the process.
func (d Definition) Execute(ctx context.Context, ex *Exec) Outcome {
	out := Outcome{Workflow: d.Name, Status: StatusCompleted}

	for _, step := range d.Steps {
		start := time.Now()
		err := step.Run(ctx, ex)
		if ex.Metrics != nil {
			ex.Metrics.ObserveStepDuration(time.Since(start))
		}
		out.StepsRun++

		if err == nil {
			continue
		}
		if errors.Is(err, ErrBlocked) {
			out.Status = StatusBlocked
			if !d.Independent {
				return out
			}
			continue
		}

		out.Failed++
		ex.Report.AddText(step.Title, fmt.Sprintf("Step failed: %v", err))
		ex.observeCollaboratorError(err)
		if !d.Independent {
			out.Status = StatusFailed
			return out
		}
	}

	if d.Independent && out.Status == StatusCompleted && out.Failed > 0 {
		out.Status = StatusPartial
	}
	return out
}

func (ex *Exec) observeCollaboratorError(err error) {
	if ex.Metrics == nil {
		return
	}
	var le *ledger.Error
	if errors.As(err, &le) {
		ex.Metrics.CollaboratorErrors.WithLabelValues("ledger", strconv.Itoa(le.StatusCode)).Inc()
		return
	}
	var me *messaging.Error
	if errors.As(err, &me) {
		ex.Metrics.CollaboratorErrors.WithLabelValues("messaging", strconv.Itoa(me.StatusCode)).Inc()
	}
}

// missing writes the "missing X" guidance block and blocks the step.
func (ex *Exec) missing(what, hint string) error {
	ex.Report.AddText("Missing information", fmt.Sprintf("I need %s to do that. %s", what, hint))
	return ErrBlocked
}

// currency resolves the extracted currency or falls back to the documented
// base-currency default.
func (ex *Exec) currency() string {
	if ex.Entities.Currency != "" {
		return string(ex.Entities.Currency)
	}
	return ex.Defaults.BaseCurrency
}

// date resolves the extracted date or defaults to today (UTC).
func (ex *Exec) date() string {
	if ex.Entities.Date != "" {
		return ex.Entities.Date
	}
	if ex.Defaults.Today != nil {
		return ex.Defaults.Today()
	}
	return time.Now().UTC().Format("2006-01-02")
}

func fmtAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func reconOutcomeBlocks(rep *report.Report, out recon.Outcome) {
	rep.AddPairs("Reconciliation summary",
		report.Pair{Key: "messages considered", Value: strconv.Itoa(out.Total)},
		report.Pair{Key: "matched", Value: strconv.Itoa(out.Matched)},
		report.Pair{Key: "unmatched", Value: strconv.Itoa(len(out.Unmatched))},
	)
	if len(out.Unmatched) == 0 {
		return
	}
	rows := make([][]string, 0, len(out.Unmatched))
	for _, u := range out.Unmatched {
		rows = append(rows, []string{u.MessageID, string(u.Reason), u.Detail})
	}
	rep.AddTable("Unmatched messages", []string{"message", "reason", "detail"}, rows)
}
