package ledger

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk-ai/opsdesk/internal/seed"
)

// Mock is an in-process ledger with static demo data. It lets the service
// run end-to-end without an external ledger system.
type Mock struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	transactions map[string]Transaction
	blockers     []string
	missing      []Fixing
}

func NewMock() *Mock {
	return NewMockWithData(seed.Default())
}

func NewMockWithData(data seed.Data) *Mock {
	m := &Mock{
		accounts:     make(map[string]Account),
		transactions: make(map[string]Transaction),
		blockers:     append([]string(nil), data.EODBlockers...),
	}
	for _, a := range data.Accounts {
		m.accounts[a.ID] = Account{ID: a.ID, Name: a.Name, Currency: a.Currency, Balance: a.Balance}
	}
	now := time.Now().UTC()
	for _, t := range data.Transactions {
		m.transactions[t.ID] = Transaction{
			ID:          t.ID,
			FromAccount: t.FromAccount,
			ToAccount:   t.ToAccount,
			Amount:      t.Amount,
			Currency:    t.Currency,
			Status:      TransactionStatus(t.Status),
			CreatedAt:   now,
		}
	}
	for _, f := range data.MissingFixings {
		m.missing = append(m.missing, Fixing{Index: f.Index, Tenor: f.Tenor})
	}
	return m
}

func (m *Mock) ListAccounts(_ context.Context, currency string) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		if currency != "" && !strings.EqualFold(a.Currency, currency) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mock) GetBalance(_ context.Context, accountID string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[strings.ToUpper(strings.TrimSpace(accountID))]
	if !ok {
		return Account{}, &Error{Op: "get_balance", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("account %s not found", accountID)}
	}
	return a, nil
}

func (m *Mock) BookTransaction(_ context.Context, from, to string, amount float64, currency string) (Transaction, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[from]; !ok {
		return Transaction{}, &Error{Op: "book_transaction", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("account %s not found", from)}
	}
	if _, ok := m.accounts[to]; !ok {
		return Transaction{}, &Error{Op: "book_transaction", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("account %s not found", to)}
	}
	if amount <= 0 {
		return Transaction{}, &Error{Op: "book_transaction", StatusCode: http.StatusBadRequest, Message: "amount must be positive"}
	}

	t := Transaction{
		ID:          "TXN-" + strings.ToUpper(uuid.NewString()[:8]),
		FromAccount: from,
		ToAccount:   to,
		Amount:      amount,
		Currency:    strings.ToUpper(currency),
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	m.transactions[t.ID] = t
	return t, nil
}

func (m *Mock) GetTransaction(_ context.Context, id string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transactions[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Transaction{}, &Error{Op: "get_transaction", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("transaction %s not found", id)}
	}
	return t, nil
}

// ApproveTransaction is the human gate: PENDING moves to VALIDATED, every
// other status is rejected. FAILED is terminal.
func (m *Mock) ApproveTransaction(_ context.Context, id string) (Transaction, error) {
	id = strings.ToUpper(strings.TrimSpace(id))

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return Transaction{}, &Error{Op: "approve_transaction", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("transaction %s not found", id)}
	}
	if t.Status != StatusPending {
		return Transaction{}, &Error{Op: "approve_transaction", StatusCode: http.StatusConflict, Message: fmt.Sprintf("transaction %s is %s, only PENDING can be approved", id, t.Status)}
	}
	t.Status = StatusValidated
	m.transactions[id] = t
	return t, nil
}

func (m *Mock) ListTransactions(_ context.Context) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transaction, 0, len(m.transactions))
	for _, t := range m.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mock) EODBlockers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.blockers...), nil
}

func (m *Mock) MissingFixings(_ context.Context) ([]Fixing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Fixing, 0, len(m.missing))
	for _, f := range m.missing {
		if f.Rate == nil {
			out = append(out, f)
		}
	}
	return out, nil
}

// ProposeFixings fills every missing fixing with a deterministic placeholder
// rate and returns the proposals.
func (m *Mock) ProposeFixings(_ context.Context) ([]Fixing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Fixing, 0, len(m.missing))
	for i := range m.missing {
		if m.missing[i].Rate != nil {
			continue
		}
		rate := 0.03 + 0.001*float64(i)
		m.missing[i].Rate = &rate
		out = append(out, m.missing[i])
	}
	return out, nil
}
