// Package recon matches outbound payment messages against ledger
// transactions under the dual-key policy: a message matches iff its linked
// transaction id, amount and currency all agree with the transaction. There
// is no fuzzy or partial matching.
package recon

import (
	"fmt"

	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
)

type Reason string

const (
	ReasonNoTransactionMatch  Reason = "no-transaction-match"
	ReasonAmountMismatch      Reason = "amount-mismatch"
	ReasonCurrencyMismatch    Reason = "currency-mismatch"
	ReasonPendingConfirmation Reason = "pending-confirmation"
)

// Unmatched is one message that failed to match, with the exact reason.
type Unmatched struct {
	MessageID string `json:"message_id"`
	Reason    Reason `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// Outcome is the derived reconciliation result. MatchedIDs lists the clean
// matches still in CONFIRMED status, i.e. the messages eligible for the
// CONFIRMED -> RECONCILED transition when auto-reconcile is requested.
// ConfirmedUnmatchedIDs lists CONFIRMED messages that failed to match and
// therefore move to UNRECONCILED on an auto pass (explicit, never implied).
type Outcome struct {
	Total                 int         `json:"total"`
	Matched               int         `json:"matched"`
	Unmatched             []Unmatched `json:"unmatched"`
	MatchedIDs            []string    `json:"-"`
	ConfirmedUnmatchedIDs []string    `json:"-"`
}

// Reconcile classifies every supplied message against the supplied
// transactions. It is pure: it mutates neither input.
func Reconcile(messages []messaging.Message, transactions []ledger.Transaction) Outcome {
	byID := make(map[string]ledger.Transaction, len(transactions))
	for _, t := range transactions {
		byID[t.ID] = t
	}

	var out Outcome
	for _, msg := range messages {
		// FAILED messages never reach the network; nothing to reconcile.
		if msg.Status == messaging.StatusFailed {
			continue
		}
		out.Total++
		switch msg.Status {
		case messaging.StatusReconciled:
			// Already matched on a previous pass.
			out.Matched++
			continue
		case messaging.StatusPending, messaging.StatusSent:
			// Not yet confirmed by the network; amount and id are
			// irrelevant until confirmation lands.
			out.Unmatched = append(out.Unmatched, Unmatched{
				MessageID: msg.ID,
				Reason:    ReasonPendingConfirmation,
				Detail:    fmt.Sprintf("message is %s and has no confirmation", msg.Status),
			})
			continue
		}

		if msg.TransactionID == "" {
			out.Unmatched = append(out.Unmatched, Unmatched{
				MessageID: msg.ID,
				Reason:    ReasonNoTransactionMatch,
				Detail:    "message has no linked transaction",
			})
			out.ConfirmedUnmatchedIDs = appendConfirmed(out.ConfirmedUnmatchedIDs, msg)
			continue
		}

		txn, ok := byID[msg.TransactionID]
		if !ok {
			out.Unmatched = append(out.Unmatched, Unmatched{
				MessageID: msg.ID,
				Reason:    ReasonNoTransactionMatch,
				Detail:    fmt.Sprintf("linked transaction %s not found in ledger", msg.TransactionID),
			})
			out.ConfirmedUnmatchedIDs = appendConfirmed(out.ConfirmedUnmatchedIDs, msg)
			continue
		}

		if msg.Amount != txn.Amount {
			out.Unmatched = append(out.Unmatched, Unmatched{
				MessageID: msg.ID,
				Reason:    ReasonAmountMismatch,
				Detail:    fmt.Sprintf("message amount %.2f != transaction amount %.2f", msg.Amount, txn.Amount),
			})
			out.ConfirmedUnmatchedIDs = appendConfirmed(out.ConfirmedUnmatchedIDs, msg)
			continue
		}
		if msg.Currency != txn.Currency {
			out.Unmatched = append(out.Unmatched, Unmatched{
				MessageID: msg.ID,
				Reason:    ReasonCurrencyMismatch,
				Detail:    fmt.Sprintf("message currency %s != transaction currency %s", msg.Currency, txn.Currency),
			})
			out.ConfirmedUnmatchedIDs = appendConfirmed(out.ConfirmedUnmatchedIDs, msg)
			continue
		}

		out.Matched++
		if msg.Status == messaging.StatusConfirmed {
			out.MatchedIDs = append(out.MatchedIDs, msg.ID)
		}
	}
	return out
}

func appendConfirmed(ids []string, msg messaging.Message) []string {
	if msg.Status == messaging.StatusConfirmed {
		return append(ids, msg.ID)
	}
	return ids
}
