// Package router maps free-text requests to workflow names. Routing is a
// fixed, ordered rule waterfall over the normalized text and the extracted
// entities; the first matching rule wins, so rule order encodes precedence.
package router

import (
	"strings"

	"github.com/opsdesk-ai/opsdesk/internal/entity"
	"github.com/opsdesk-ai/opsdesk/internal/workflow"
)

type rule struct {
	name  string
	match func(q query) bool
}

type query struct {
	text     string
	tokens   map[string]bool
	entities entity.Entities
}

func (q query) has(words ...string) bool {
	for _, w := range words {
		if q.tokens[w] {
			return true
		}
	}
	return false
}

func (q query) contains(s string) bool {
	return strings.Contains(q.text, s)
}

type Router struct {
	rules []rule
}

// New builds the routing table. Compound workflows come before their parts:
// transfer-and-send must win over book-transfer and send-payment, and the
// EOD check must not swallow report or fixing requests that merely mention
// the day close.
func New() *Router {
	return &Router{rules: []rule{
		{workflow.NameEODCheck, func(q query) bool {
			if q.contains("fixing") || q.contains("redemption") || q.has("report", "reports") {
				return false
			}
			return q.has("eod") || q.contains("end of day") || q.contains("close the day")
		}},
		{workflow.NameTransferAndSend, func(q query) bool {
			return q.has("transfer", "move", "wire") && q.has("send", "swift")
		}},
		{workflow.NameSendPayment, func(q query) bool {
			return q.has("send", "swift") || q.contains("pay out")
		}},
		{workflow.NameApproveTransaction, func(q query) bool {
			return q.has("approve", "validate", "authorize")
		}},
		{workflow.NameBookTransfer, func(q query) bool {
			return q.has("transfer", "book", "move", "wire")
		}},
		{workflow.NameReconcile, func(q query) bool {
			return q.contains("reconcil") || q.has("match", "unmatched")
		}},
		{workflow.NameVerifyReports, func(q query) bool {
			return q.has("report", "reports")
		}},
		{workflow.NameRedemptionBatch, func(q query) bool {
			return q.contains("redemption")
		}},
		{workflow.NameProposeRateFixings, func(q query) bool {
			return q.contains("fixing") && q.has("propose", "suggest", "fill")
		}},
		{workflow.NameRateFixings, func(q query) bool {
			return q.contains("fixing")
		}},
		{workflow.NamePortfolioScan, func(q query) bool {
			return q.has("portfolio") || (q.has("all") && q.has("accounts", "currencies"))
		}},
		{workflow.NameMessageStatus, func(q query) bool {
			return q.entities.MessageID != ""
		}},
		{workflow.NameMessages, func(q query) bool {
			return q.has("message", "messages")
		}},
		{workflow.NameTransactionStatus, func(q query) bool {
			return q.entities.TransactionID != "" || q.has("transaction", "transactions")
		}},
		{workflow.NameAccounts, func(q query) bool {
			return q.has("accounts") || q.has("list")
		}},
		{workflow.NameBalance, func(q query) bool {
			return q.has("balance") || q.contains("how much") || q.entities.AccountID != ""
		}},
	}}
}

// Route returns the first matching workflow name. The same text with the
// same entities always routes to the same workflow.
func (r *Router) Route(text string, ents entity.Entities) (string, bool) {
	q := normalize(text, ents)
	for _, rl := range r.rules {
		if rl.match(q) {
			return rl.name, true
		}
	}
	return "", false
}

func normalize(text string, ents entity.Entities) query {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	norm := b.String()

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(norm) {
		tokens[tok] = true
	}
	return query{text: norm, tokens: tokens, entities: ents}
}
