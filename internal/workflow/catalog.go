package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/opsdesk-ai/opsdesk/internal/entity"
	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
	"github.com/opsdesk-ai/opsdesk/internal/readiness"
	"github.com/opsdesk-ai/opsdesk/internal/recon"
	"github.com/opsdesk-ai/opsdesk/internal/report"
)

// Workflow names. The router selects by name; the orchestrator resolves the
// definition through Catalog.
const (
	NameBalance            = "balance"
	NameAccounts           = "accounts"
	NamePortfolioScan      = "portfolio-scan"
	NameTransactionStatus  = "transaction-status"
	NameBookTransfer       = "book-transfer"
	NameApproveTransaction = "approve-transaction"
	NameSendPayment        = "send-payment"
	NameTransferAndSend    = "transfer-and-send"
	NameMessageStatus      = "message-status"
	NameMessages           = "messages"
	NameReconcile          = "reconcile"
	NameEODCheck           = "eod-check"
	NameRateFixings        = "rate-fixings"
	NameProposeRateFixings = "propose-rate-fixings"
	NameVerifyReports      = "verify-reports"
	NameRedemptionBatch    = "redemption-batch"
)

// Catalog returns every workflow definition keyed by name.
func Catalog() map[string]Definition {
	defs := []Definition{
		{
			Name:  NameBalance,
			Title: "Account balance",
			Steps: []Step{{Title: "Get balance", Run: stepBalance}},
		},
		{
			Name:  NameAccounts,
			Title: "Accounts by currency",
			Steps: []Step{{Title: "List accounts", Run: stepAccounts}},
		},
		{
			Name:        NamePortfolioScan,
			Title:       "Portfolio scan",
			Independent: true,
			Steps:       portfolioSteps(),
		},
		{
			Name:  NameTransactionStatus,
			Title: "Transaction status",
			Steps: []Step{{Title: "Get transaction", Run: stepTransactionStatus}},
		},
		{
			Name:  NameBookTransfer,
			Title: "Book transfer",
			Steps: []Step{{Title: "Book transaction", Run: stepBook}},
		},
		{
			Name:  NameApproveTransaction,
			Title: "Approve transaction",
			Steps: []Step{{Title: "Approve transaction", Run: stepApprove}},
		},
		{
			Name:  NameSendPayment,
			Title: "Send payment",
			Steps: []Step{
				{Title: "Fetch transaction", Run: stepFetchLinkedTransaction},
				{Title: "Send via SWIFT", Run: stepSend},
			},
		},
		{
			Name:  NameTransferAndSend,
			Title: "Transfer and send",
			Steps: []Step{
				{Title: "Book transaction", Run: stepBook},
				{Title: "Send via SWIFT", Run: stepSend},
			},
		},
		{
			Name:  NameMessageStatus,
			Title: "Message status",
			Steps: []Step{{Title: "Get message", Run: stepMessageStatus}},
		},
		{
			Name:  NameMessages,
			Title: "Payment messages",
			Steps: []Step{{Title: "List messages", Run: stepMessages}},
		},
		{
			Name:  NameReconcile,
			Title: "Reconciliation",
			Steps: []Step{
				{Title: "Collect messages", Run: stepCollectMessages},
				{Title: "Collect transactions", Run: stepCollectTransactions},
				{Title: "Match and classify", Run: stepMatch},
			},
		},
		{
			Name:        NameEODCheck,
			Title:       "EOD readiness",
			Independent: true,
			Steps:       eodSteps(),
		},
		{
			Name:  NameRateFixings,
			Title: "Missing rate fixings",
			Steps: []Step{{Title: "List missing fixings", Run: stepMissingFixings}},
		},
		{
			Name:  NameProposeRateFixings,
			Title: "Propose rate fixings",
			Steps: []Step{
				{Title: "List missing fixings", Run: stepMissingFixings},
				{Title: "Propose fixings", Run: stepProposeFixings},
			},
		},
		{
			Name:  NameVerifyReports,
			Title: "Verify EOD reports",
			Steps: []Step{{Title: "Verify reports", Run: stepVerifyReports}},
		},
		{
			Name:  NameRedemptionBatch,
			Title: "Redemption batch",
			Steps: []Step{{Title: "Process batch", Run: stepRedemptionBatch}},
		},
	}

	out := make(map[string]Definition, len(defs))
	for _, d := range defs {
		out[d.Name] = d
	}
	return out
}

func stepBalance(ctx context.Context, ex *Exec) error {
	if ex.Entities.AccountID == "" {
		return ex.missing("an account id", "Account ids look like ACC-1001-USD.")
	}
	acc, err := ex.Ledger.GetBalance(ctx, ex.Entities.AccountID)
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.get_balance")
	ex.Report.AddPairs("Account balance",
		report.Pair{Key: "account", Value: acc.ID},
		report.Pair{Key: "name", Value: acc.Name},
		report.Pair{Key: "currency", Value: acc.Currency},
		report.Pair{Key: "balance", Value: fmtAmount(acc.Balance)},
	)
	return nil
}

func stepAccounts(ctx context.Context, ex *Exec) error {
	cur := ex.currency()
	accounts, err := ex.Ledger.ListAccounts(ctx, cur)
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.list_accounts")
	addAccountsTable(ex.Report, fmt.Sprintf("%s accounts", cur), accounts)
	return nil
}

func portfolioSteps() []Step {
	steps := make([]Step, 0, len(entity.Currencies))
	for _, cur := range entity.Currencies {
		cur := string(cur)
		steps = append(steps, Step{
			Title: fmt.Sprintf("Scan %s", cur),
			Run: func(ctx context.Context, ex *Exec) error {
				accounts, err := ex.Ledger.ListAccounts(ctx, cur)
				if err != nil {
					return err
				}
				ex.Tracker.Record("ledger.list_accounts")
				addAccountsTable(ex.Report, fmt.Sprintf("%s accounts", cur), accounts)
				return nil
			},
		})
	}
	return steps
}

func addAccountsTable(rep *report.Report, title string, accounts []ledger.Account) {
	if len(accounts) == 0 {
		rep.AddText(title, "No accounts found.")
		return
	}
	rows := make([][]string, 0, len(accounts))
	var total float64
	for _, a := range accounts {
		rows = append(rows, []string{a.ID, a.Name, fmtAmount(a.Balance)})
		total += a.Balance
	}
	rows = append(rows, []string{"total", "", fmtAmount(total)})
	rep.AddTable(title, []string{"account", "name", "balance"}, rows)
}

func stepTransactionStatus(ctx context.Context, ex *Exec) error {
	if ex.Entities.TransactionID == "" {
		return ex.missing("a transaction id", "Transaction ids look like TXN-1001.")
	}
	txn, err := ex.Ledger.GetTransaction(ctx, ex.Entities.TransactionID)
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.get_transaction")
	addTransactionBlock(ex.Report, "Transaction", txn)
	return nil
}

func addTransactionBlock(rep *report.Report, title string, txn ledger.Transaction) {
	rep.AddPairs(title,
		report.Pair{Key: "id", Value: txn.ID},
		report.Pair{Key: "from", Value: txn.FromAccount},
		report.Pair{Key: "to", Value: txn.ToAccount},
		report.Pair{Key: "amount", Value: fmtAmount(txn.Amount)},
		report.Pair{Key: "currency", Value: txn.Currency},
		report.Pair{Key: "status", Value: string(txn.Status)},
	)
}

func stepBook(ctx context.Context, ex *Exec) error {
	if ex.Entities.Amount == nil {
		return ex.missing("an amount", "Tell me how much to transfer, e.g. \"transfer 50,000 USD\".")
	}
	from := ex.Defaults.OpsAccount
	if ex.Entities.AccountID != "" {
		from = ex.Entities.AccountID
	}
	to := ex.Defaults.SettlementAccount

	txn, err := ex.Ledger.BookTransaction(ctx, from, to, *ex.Entities.Amount, ex.currency())
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.book_transaction")
	ex.booked = &txn
	addTransactionBlock(ex.Report, "Booked transaction", txn)
	ex.Report.AddText("", fmt.Sprintf("Transaction %s is PENDING and needs approval before any payment can go out.", txn.ID))
	return nil
}

func stepApprove(ctx context.Context, ex *Exec) error {
	if ex.Entities.TransactionID == "" {
		return ex.missing("a transaction id", "Tell me which transaction to approve, e.g. \"approve TXN-1002\".")
	}
	txn, err := ex.Ledger.ApproveTransaction(ctx, ex.Entities.TransactionID)
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.approve_transaction")
	addTransactionBlock(ex.Report, "Approved transaction", txn)
	return nil
}

func stepFetchLinkedTransaction(ctx context.Context, ex *Exec) error {
	if ex.Entities.TransactionID == "" {
		return ex.missing("a transaction id", "Tell me which transaction to pay out, e.g. \"send TXN-1001 via SWIFT\".")
	}
	txn, err := ex.Ledger.GetTransaction(ctx, ex.Entities.TransactionID)
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.get_transaction")
	ex.booked = &txn
	return nil
}

// stepSend is the dependent half of both send workflows: it requires the
// upstream transaction to be VALIDATED before any message goes out.
func stepSend(ctx context.Context, ex *Exec) error {
	txn := ex.booked
	if txn == nil {
		return ex.missing("a booked transaction", "Book or name a transaction first.")
	}
	if txn.Status != ledger.StatusValidated {
		ex.Report.AddText("Payment blocked",
			fmt.Sprintf("Transaction %s is %s; approve it, then retry the send.", txn.ID, txn.Status))
		return ErrBlocked
	}

	msg, err := ex.Messaging.SendPayment(ctx, messaging.SendRequest{
		Type:            messaging.TypeCustomerCredit,
		AccountID:       txn.FromAccount,
		TransactionID:   txn.ID,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		CounterpartyBIC: ex.Defaults.CounterpartyBIC,
	})
	if err != nil {
		return err
	}
	ex.Tracker.Record("messaging.send_payment")
	ex.Report.AddPairs("Payment message",
		report.Pair{Key: "message", Value: msg.ID},
		report.Pair{Key: "type", Value: msg.Type},
		report.Pair{Key: "transaction", Value: msg.TransactionID},
		report.Pair{Key: "amount", Value: fmtAmount(msg.Amount)},
		report.Pair{Key: "currency", Value: msg.Currency},
		report.Pair{Key: "status", Value: string(msg.Status)},
	)
	return nil
}

func stepMessageStatus(ctx context.Context, ex *Exec) error {
	if ex.Entities.MessageID == "" {
		return ex.missing("a message id", "Message ids look like MSG-2001.")
	}
	msg, err := ex.Messaging.GetMessage(ctx, ex.Entities.MessageID)
	if err != nil {
		return err
	}
	ex.Tracker.Record("messaging.get_message")
	pairs := []report.Pair{
		{Key: "message", Value: msg.ID},
		{Key: "type", Value: msg.Type},
		{Key: "account", Value: msg.AccountID},
		{Key: "amount", Value: fmtAmount(msg.Amount)},
		{Key: "currency", Value: msg.Currency},
		{Key: "status", Value: string(msg.Status)},
	}
	if msg.TransactionID != "" {
		pairs = append(pairs, report.Pair{Key: "transaction", Value: msg.TransactionID})
	}
	ex.Report.AddPairs("Payment message", pairs...)
	return nil
}

func stepMessages(ctx context.Context, ex *Exec) error {
	var (
		msgs  []messaging.Message
		title string
		err   error
	)
	switch {
	case ex.Entities.AccountID != "":
		msgs, err = ex.Messaging.ListByAccount(ctx, ex.Entities.AccountID)
		title = fmt.Sprintf("Messages for %s", ex.Entities.AccountID)
		if err == nil {
			ex.Tracker.Record("messaging.list_by_account")
		}
	case ex.Entities.TransactionID != "":
		msgs, err = ex.Messaging.ListByTransaction(ctx, ex.Entities.TransactionID)
		title = fmt.Sprintf("Messages for %s", ex.Entities.TransactionID)
		if err == nil {
			ex.Tracker.Record("messaging.list_by_transaction")
		}
	default:
		return ex.missing("an account or transaction id", "Tell me whose messages to list, e.g. \"messages for ACC-1001-USD\".")
	}
	if err != nil {
		return err
	}

	if len(msgs) == 0 {
		ex.Report.AddText(title, "No messages found.")
		return nil
	}
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []string{m.ID, m.Type, fmtAmount(m.Amount), m.Currency, string(m.Status)})
	}
	ex.Report.AddTable(title, []string{"message", "type", "amount", "currency", "status"}, rows)
	return nil
}

func stepCollectMessages(ctx context.Context, ex *Exec) error {
	var err error
	if ex.Entities.AccountID != "" {
		ex.reconMsgs, err = ex.Messaging.ListByAccount(ctx, ex.Entities.AccountID)
		if err == nil {
			ex.Tracker.Record("messaging.list_by_account")
		}
		return err
	}
	ex.reconMsgs, err = ex.Messaging.ListMessages(ctx)
	if err == nil {
		ex.Tracker.Record("messaging.list_messages")
	}
	return err
}

func stepCollectTransactions(ctx context.Context, ex *Exec) error {
	var err error
	ex.reconTxns, err = ex.Ledger.ListTransactions(ctx)
	if err == nil {
		ex.Tracker.Record("ledger.list_transactions")
	}
	return err
}

func stepMatch(ctx context.Context, ex *Exec) error {
	out := recon.Reconcile(ex.reconMsgs, ex.reconTxns)
	reconOutcomeBlocks(ex.Report, out)

	if !ex.AutoReconcile {
		return nil
	}

	applied, failed := 0, 0
	for _, id := range out.MatchedIDs {
		if _, err := ex.Messaging.UpdateStatus(ctx, id, messaging.StatusReconciled); err != nil {
			failed++
			continue
		}
		ex.Tracker.Record("messaging.update_status")
		applied++
	}
	for _, id := range out.ConfirmedUnmatchedIDs {
		if _, err := ex.Messaging.UpdateStatus(ctx, id, messaging.StatusUnreconciled); err != nil {
			failed++
			continue
		}
		ex.Tracker.Record("messaging.update_status")
	}

	pairs := []report.Pair{
		{Key: "auto-reconciled", Value: strconv.Itoa(applied)},
		{Key: "marked unreconciled", Value: strconv.Itoa(len(out.ConfirmedUnmatchedIDs))},
	}
	if failed > 0 {
		pairs = append(pairs, report.Pair{Key: "status updates failed", Value: strconv.Itoa(failed)})
	}
	ex.Report.AddPairs("Auto-reconcile", pairs...)
	return nil
}

func stepMissingFixings(ctx context.Context, ex *Exec) error {
	fixings, err := ex.Ledger.MissingFixings(ctx)
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.missing_fixings")
	if len(fixings) == 0 {
		ex.Report.AddText("Rate fixings", "All rate fixings for the current period are present.")
		return nil
	}
	rows := make([][]string, 0, len(fixings))
	for _, f := range fixings {
		rows = append(rows, []string{f.Index, f.Tenor})
	}
	ex.Report.AddTable("Missing rate fixings", []string{"index", "tenor"}, rows)
	return nil
}

func stepProposeFixings(ctx context.Context, ex *Exec) error {
	proposed, err := ex.Ledger.ProposeFixings(ctx)
	if err != nil {
		return err
	}
	ex.Tracker.Record("ledger.propose_fixings")
	if len(proposed) == 0 {
		ex.Report.AddText("Proposed fixings", "Nothing to propose.")
		return nil
	}
	rows := make([][]string, 0, len(proposed))
	for _, f := range proposed {
		rate := ""
		if f.Rate != nil {
			rate = strconv.FormatFloat(*f.Rate, 'f', 4, 64)
		}
		rows = append(rows, []string{f.Index, f.Tenor, rate})
	}
	ex.Report.AddTable("Proposed fixings", []string{"index", "tenor", "rate"}, rows)
	return nil
}

func stepVerifyReports(ctx context.Context, ex *Exec) error {
	date := ex.date()
	checks, err := ex.Messaging.VerifyReports(ctx, date)
	if err != nil {
		return err
	}
	ex.Tracker.Record("messaging.verify_reports")
	addReportChecksTable(ex.Report, date, checks)
	return nil
}

func addReportChecksTable(rep *report.Report, date string, checks []messaging.ReportCheck) {
	rows := make([][]string, 0, len(checks))
	passed := 0
	for _, c := range checks {
		status := "FAILED"
		if c.Passed {
			status = "PASSED"
			passed++
		}
		rows = append(rows, []string{c.Name, status, c.Detail})
	}
	rep.AddTable(fmt.Sprintf("EOD reports for %s (%d/%d passed)", date, passed, len(checks)),
		[]string{"report", "status", "detail"}, rows)
}

func stepRedemptionBatch(ctx context.Context, ex *Exec) error {
	date := ex.date()
	summary, err := ex.Messaging.ProcessRedemptionBatch(ctx, date)
	if err != nil {
		return err
	}
	ex.Tracker.Record("messaging.process_redemption_batch")
	ex.Report.AddPairs(fmt.Sprintf("Redemption batch for %s", date),
		report.Pair{Key: "total", Value: strconv.Itoa(summary.Total)},
		report.Pair{Key: "processed", Value: strconv.Itoa(summary.Processed)},
		report.Pair{Key: "rejected", Value: strconv.Itoa(summary.Rejected)},
	)
	return nil
}

// eodFacts accumulates the independent fact-gathering results feeding the
// readiness assessment.
type eodFacts struct {
	blockers     []string
	blockersOK   bool
	unreconciled int
	reconOK      bool
	fixings      int
	reports      []messaging.ReportCheck
}

func eodSteps() []Step {
	facts := func(ex *Exec) *eodFacts {
		if ex.eod == nil {
			ex.eod = &eodFacts{}
		}
		return ex.eod
	}

	return []Step{
		{
			Title: "Ledger EOD blockers",
			Run: func(ctx context.Context, ex *Exec) error {
				blockers, err := ex.Ledger.EODBlockers(ctx)
				if err != nil {
					facts(ex).blockers = []string{"ledger blocker check unavailable"}
					return err
				}
				ex.Tracker.Record("ledger.eod_blockers")
				f := facts(ex)
				f.blockers = blockers
				f.blockersOK = true
				return nil
			},
		},
		{
			Title: "Reconciliation pass",
			Run: func(ctx context.Context, ex *Exec) error {
				msgs, err := ex.Messaging.ListMessages(ctx)
				if err != nil {
					return err
				}
				ex.Tracker.Record("messaging.list_messages")
				txns, err := ex.Ledger.ListTransactions(ctx)
				if err != nil {
					return err
				}
				ex.Tracker.Record("ledger.list_transactions")

				out := recon.Reconcile(msgs, txns)
				reconOutcomeBlocks(ex.Report, out)
				f := facts(ex)
				f.unreconciled = len(out.Unmatched)
				f.reconOK = true
				return nil
			},
		},
		{
			Title: "Rate fixings",
			Run: func(ctx context.Context, ex *Exec) error {
				fixings, err := ex.Ledger.MissingFixings(ctx)
				if err != nil {
					return err
				}
				ex.Tracker.Record("ledger.missing_fixings")
				facts(ex).fixings = len(fixings)
				return nil
			},
		},
		{
			Title: "Report verification",
			Run: func(ctx context.Context, ex *Exec) error {
				date := ex.date()
				checks, err := ex.Messaging.VerifyReports(ctx, date)
				if err != nil {
					return err
				}
				ex.Tracker.Record("messaging.verify_reports")
				addReportChecksTable(ex.Report, date, checks)
				facts(ex).reports = checks
				return nil
			},
		},
		{
			Title: "Readiness assessment",
			Run: func(ctx context.Context, ex *Exec) error {
				f := facts(ex)
				in := readiness.Input{
					LedgerBlockers:    f.blockers,
					UnreconciledCount: f.unreconciled,
					ReportChecks:      f.reports,
					MissingFixings:    f.fixings,
				}
				if !f.blockersOK && len(in.LedgerBlockers) == 0 {
					in.LedgerBlockers = []string{"ledger blocker check unavailable"}
				}
				if !f.reconOK {
					in.UnreconciledCount = -1
				}
				a := readiness.Assess(in)

				verdict := "NOT READY for EOD"
				if a.Ready {
					verdict = "READY for EOD"
				}
				ex.Report.AddText("EOD readiness", verdict)

				rows := make([][]string, 0, len(a.Checks))
				for _, c := range a.Checks {
					status := "FAIL"
					if c.Passed {
						status = "PASS"
					}
					rows = append(rows, []string{c.Name, status, c.Detail})
				}
				ex.Report.AddTable("Checks", []string{"check", "result", "detail"}, rows)

				if len(a.Blocking) > 0 {
					actions := make([]report.Pair, 0, len(a.Blocking))
					for i, b := range a.Blocking {
						actions = append(actions, report.Pair{Key: strconv.Itoa(i + 1), Value: b})
					}
					ex.Report.AddPairs("Required actions", actions...)
				}
				for _, w := range a.Warnings {
					ex.Report.AddText("Warning", w)
				}
				return nil
			},
		},
	}
}
