package recon

import (
	"testing"

	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
)

func confirmedMsg(id, txnID string, amount float64, currency string) messaging.Message {
	return messaging.Message{
		ID:            id,
		TransactionID: txnID,
		Amount:        amount,
		Currency:      currency,
		Status:        messaging.StatusConfirmed,
	}
}

func txn(id string, amount float64, currency string) ledger.Transaction {
	return ledger.Transaction{ID: id, Amount: amount, Currency: currency, Status: ledger.StatusValidated}
}

func TestCleanDualKeyMatch(t *testing.T) {
	out := Reconcile(
		[]messaging.Message{confirmedMsg("MSG-1", "TXN-1", 50000, "USD")},
		[]ledger.Transaction{txn("TXN-1", 50000, "USD"), txn("TXN-2", 50000, "USD")},
	)
	if out.Total != 1 || out.Matched != 1 || len(out.Unmatched) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(out.MatchedIDs) != 1 || out.MatchedIDs[0] != "MSG-1" {
		t.Fatalf("MatchedIDs = %v, want [MSG-1]", out.MatchedIDs)
	}
}

func TestAmountMismatchIsNeverSilentlyMatched(t *testing.T) {
	out := Reconcile(
		[]messaging.Message{confirmedMsg("MSG-1", "TXN-1", 50001, "USD")},
		[]ledger.Transaction{txn("TXN-1", 50000, "USD")},
	)
	if out.Matched != 0 {
		t.Fatalf("mismatched amount was matched")
	}
	if len(out.Unmatched) != 1 || out.Unmatched[0].Reason != ReasonAmountMismatch {
		t.Fatalf("unexpected classification: %+v", out.Unmatched)
	}
	if len(out.ConfirmedUnmatchedIDs) != 1 {
		t.Fatalf("confirmed mismatch should be flagged for UNRECONCILED")
	}
}

func TestCurrencyMismatch(t *testing.T) {
	out := Reconcile(
		[]messaging.Message{confirmedMsg("MSG-1", "TXN-1", 50000, "EUR")},
		[]ledger.Transaction{txn("TXN-1", 50000, "USD")},
	)
	if len(out.Unmatched) != 1 || out.Unmatched[0].Reason != ReasonCurrencyMismatch {
		t.Fatalf("unexpected classification: %+v", out.Unmatched)
	}
}

func TestNoLinkedTransaction(t *testing.T) {
	out := Reconcile(
		[]messaging.Message{confirmedMsg("MSG-1", "", 100, "USD")},
		[]ledger.Transaction{txn("TXN-1", 100, "USD")},
	)
	if len(out.Unmatched) != 1 || out.Unmatched[0].Reason != ReasonNoTransactionMatch {
		t.Fatalf("unexpected classification: %+v", out.Unmatched)
	}
}

func TestLinkedTransactionMissingFromLedger(t *testing.T) {
	out := Reconcile(
		[]messaging.Message{confirmedMsg("MSG-1", "TXN-404", 100, "USD")},
		[]ledger.Transaction{txn("TXN-1", 100, "USD")},
	)
	if len(out.Unmatched) != 1 || out.Unmatched[0].Reason != ReasonNoTransactionMatch {
		t.Fatalf("unexpected classification: %+v", out.Unmatched)
	}
}

func TestSentWithoutConfirmationIsPendingRegardlessOfKeys(t *testing.T) {
	msg := messaging.Message{
		ID:            "MSG-1",
		TransactionID: "TXN-1",
		Amount:        100,
		Currency:      "USD",
		Status:        messaging.StatusSent,
	}
	out := Reconcile([]messaging.Message{msg}, []ledger.Transaction{txn("TXN-1", 100, "USD")})
	if len(out.Unmatched) != 1 || out.Unmatched[0].Reason != ReasonPendingConfirmation {
		t.Fatalf("unexpected classification: %+v", out.Unmatched)
	}
	if len(out.ConfirmedUnmatchedIDs) != 0 {
		t.Fatalf("unconfirmed message must not be moved to UNRECONCILED")
	}
}

func TestAlreadyReconciledCountsAsMatched(t *testing.T) {
	msg := confirmedMsg("MSG-1", "TXN-1", 100, "USD")
	msg.Status = messaging.StatusReconciled
	out := Reconcile([]messaging.Message{msg}, nil)
	if out.Matched != 1 || len(out.MatchedIDs) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestInputsAreNotMutated(t *testing.T) {
	msgs := []messaging.Message{confirmedMsg("MSG-1", "TXN-1", 100, "USD")}
	txns := []ledger.Transaction{txn("TXN-1", 100, "USD")}
	_ = Reconcile(msgs, txns)
	if msgs[0].Status != messaging.StatusConfirmed {
		t.Fatalf("message status was mutated")
	}
}
