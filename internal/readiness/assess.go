// Package readiness combines independent end-of-day facts into one
// pass/fail assessment with per-check detail.
package readiness

import (
	"fmt"
	"time"

	"github.com/opsdesk-ai/opsdesk/internal/messaging"
)

const (
	CheckLedgerBlockers = "ledger-eod-blockers"
	CheckReconciliation = "reconciliation"
	CheckReports        = "report-verification"
)

// Check is one granular pass/fail with its human-readable detail.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Assessment is the derived readiness result. Ready is true iff every
// binding check passed. Warnings are advisory and never block.
type Assessment struct {
	Ready      bool      `json:"ready"`
	Checks     []Check   `json:"checks"`
	Blocking   []string  `json:"blocking,omitempty"`
	Passed     []string  `json:"passed,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	AssessedAt time.Time `json:"assessed_at"`
}

// Input carries the independently gathered facts.
type Input struct {
	LedgerBlockers    []string
	UnreconciledCount int
	ReportChecks      []messaging.ReportCheck
	MissingFixings    int
}

// Assess evaluates the three binding checks. Each failing check contributes
// exactly one blocking reason; missing fixings are surfaced as a warning.
func Assess(in Input) Assessment {
	a := Assessment{AssessedAt: time.Now().UTC()}

	blockers := Check{Name: CheckLedgerBlockers, Passed: len(in.LedgerBlockers) == 0}
	if blockers.Passed {
		blockers.Detail = "no ledger EOD blockers"
	} else {
		blockers.Detail = fmt.Sprintf("%d ledger EOD blocker(s): %s", len(in.LedgerBlockers), in.LedgerBlockers[0])
	}

	reconciled := Check{Name: CheckReconciliation, Passed: in.UnreconciledCount == 0}
	if reconciled.Passed {
		reconciled.Detail = "all payment messages reconciled"
	} else {
		reconciled.Detail = fmt.Sprintf("%d payment message(s) unreconciled", in.UnreconciledCount)
	}

	failedReports := 0
	for _, r := range in.ReportChecks {
		if !r.Passed {
			failedReports++
		}
	}
	reports := Check{Name: CheckReports, Passed: len(in.ReportChecks) > 0 && failedReports == 0}
	switch {
	case len(in.ReportChecks) == 0:
		reports.Detail = "no report verification results available"
	case failedReports == 0:
		reports.Detail = fmt.Sprintf("%d/%d reports verified", len(in.ReportChecks), len(in.ReportChecks))
	default:
		reports.Detail = fmt.Sprintf("%d of %d reports failed verification", failedReports, len(in.ReportChecks))
	}

	a.Checks = []Check{blockers, reconciled, reports}
	a.Ready = true
	for _, c := range a.Checks {
		if c.Passed {
			a.Passed = append(a.Passed, fmt.Sprintf("%s: %s", c.Name, c.Detail))
			continue
		}
		a.Ready = false
		a.Blocking = append(a.Blocking, fmt.Sprintf("%s: %s", c.Name, c.Detail))
	}

	if in.MissingFixings > 0 {
		a.Warnings = append(a.Warnings, fmt.Sprintf("%d rate fixing(s) missing for the current period", in.MissingFixings))
	}

	return a
}
