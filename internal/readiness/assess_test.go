package readiness

import (
	"testing"

	"github.com/opsdesk-ai/opsdesk/internal/messaging"
)

func passingReports() []messaging.ReportCheck {
	return []messaging.ReportCheck{
		{Name: "positions", Passed: true},
		{Name: "cash", Passed: true},
		{Name: "regulatory", Passed: true},
		{Name: "pnl", Passed: true},
	}
}

func TestAllChecksPass(t *testing.T) {
	a := Assess(Input{ReportChecks: passingReports()})
	if !a.Ready {
		t.Fatalf("Ready = false, want true: %+v", a)
	}
	if len(a.Blocking) != 0 {
		t.Fatalf("Blocking = %v, want empty", a.Blocking)
	}
	if len(a.Passed) != 3 {
		t.Fatalf("Passed = %d entries, want 3", len(a.Passed))
	}
}

func TestEachFailingCheckAddsOneBlockingReason(t *testing.T) {
	cases := []struct {
		name string
		in   Input
	}{
		{"ledger blockers", Input{LedgerBlockers: []string{"open positions"}, ReportChecks: passingReports()}},
		{"unreconciled", Input{UnreconciledCount: 2, ReportChecks: passingReports()}},
		{"failed report", Input{ReportChecks: []messaging.ReportCheck{{Name: "positions", Passed: false}}}},
	}
	for _, tc := range cases {
		a := Assess(tc.in)
		if a.Ready {
			t.Fatalf("%s: Ready = true, want false", tc.name)
		}
		if len(a.Blocking) != 1 {
			t.Fatalf("%s: Blocking = %v, want exactly one reason", tc.name, a.Blocking)
		}
		if len(a.Checks) != 3 {
			t.Fatalf("%s: Checks = %d, want 3", tc.name, len(a.Checks))
		}
	}
}

func TestGranularChecksExposed(t *testing.T) {
	a := Assess(Input{UnreconciledCount: 1, ReportChecks: passingReports()})
	var found bool
	for _, c := range a.Checks {
		if c.Name == CheckReconciliation {
			found = true
			if c.Passed {
				t.Fatalf("reconciliation check should fail")
			}
		} else if !c.Passed {
			t.Fatalf("check %s should pass", c.Name)
		}
	}
	if !found {
		t.Fatalf("reconciliation check missing")
	}
}

func TestNoReportResultsFailsReportCheck(t *testing.T) {
	a := Assess(Input{})
	if a.Ready {
		t.Fatalf("Ready = true without report verification results")
	}
}

func TestMissingFixingsWarnOnly(t *testing.T) {
	a := Assess(Input{ReportChecks: passingReports(), MissingFixings: 2})
	if !a.Ready {
		t.Fatalf("missing fixings must not block readiness")
	}
	if len(a.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one entry", a.Warnings)
	}
}
