package messaging

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

var legalTransitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusFailed},
	StatusSent:      {StatusConfirmed, StatusFailed},
	StatusConfirmed: {StatusReconciled, StatusUnreconciled},
}

// Mock is an in-process messaging network with static demo data. It owns
// the message lifecycle and rejects illegal transitions.
type Mock struct {
	mu          sync.RWMutex
	messages    map[string]Message
	reports     []seed.Report
	redemptions []seed.Redemption
}

func NewMock() *Mock {
	return NewMockWithData(seed.Default())
}

func NewMockWithData(data seed.Data) *Mock {
	m := &Mock{
		messages:    make(map[string]Message),
		reports:     append([]seed.Report(nil), data.Reports...),
		redemptions: append([]seed.Redemption(nil), data.Redemptions...),
	}
	now := time.Now().UTC()
	for _, s := range data.Messages {
		msg := Message{
			ID:                 s.ID,
			Type:               s.Type,
			AccountID:          s.AccountID,
			TransactionID:      s.TransactionID,
			Amount:             s.Amount,
			Currency:           s.Currency,
			CounterpartyBIC:    s.CounterpartyBIC,
			BeneficiaryName:    s.BeneficiaryName,
			BeneficiaryAccount: s.BeneficiaryAccount,
			Status:             Status(s.Status),
			CreatedAt:          now,
		}
		switch msg.Status {
		case StatusSent:
			msg.SentAt = &now
		case StatusConfirmed, StatusReconciled, StatusUnreconciled:
			msg.SentAt = &now
			msg.ConfirmedAt = &now
		}
		m.messages[msg.ID] = msg
	}
	return m
}

func (m *Mock) SendPayment(_ context.Context, req SendRequest) (Message, error) {
	if req.Amount <= 0 {
		return Message{}, &Error{Op: "send_payment", StatusCode: http.StatusBadRequest, Message: "amount must be positive"}
	}
	if strings.TrimSpace(req.AccountID) == "" {
		return Message{}, &Error{Op: "send_payment", StatusCode: http.StatusBadRequest, Message: "account_id is required"}
	}
	msgType := strings.TrimSpace(req.Type)
	if msgType == "" {
		msgType = TypeCustomerCredit
	}

	now := time.Now().UTC()
	msg := Message{
		ID:                 "MSG-" + strings.ToUpper(uuid.NewString()[:8]),
		Type:               msgType,
		AccountID:          strings.ToUpper(req.AccountID),
		TransactionID:      strings.ToUpper(req.TransactionID),
		Amount:             req.Amount,
		Currency:           strings.ToUpper(req.Currency),
		CounterpartyBIC:    req.CounterpartyBIC,
		BeneficiaryName:    req.BeneficiaryName,
		BeneficiaryAccount: req.BeneficiaryAccount,
		Status:             StatusSent,
		CreatedAt:          now,
		SentAt:             &now,
	}

	m.mu.Lock()
	m.messages[msg.ID] = msg
	m.mu.Unlock()
	return msg, nil
}

func (m *Mock) GetMessage(_ context.Context, id string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Message{}, &Error{Op: "get_message", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("message %s not found", id)}
	}
	return msg, nil
}

func (m *Mock) ListMessages(_ context.Context) ([]Message, error) {
	return m.list(func(Message) bool { return true }), nil
}

func (m *Mock) ListByAccount(_ context.Context, accountID string) ([]Message, error) {
	accountID = strings.ToUpper(strings.TrimSpace(accountID))
	return m.list(func(msg Message) bool { return msg.AccountID == accountID }), nil
}

func (m *Mock) ListByTransaction(_ context.Context, transactionID string) ([]Message, error) {
	transactionID = strings.ToUpper(strings.TrimSpace(transactionID))
	return m.list(func(msg Message) bool { return msg.TransactionID == transactionID }), nil
}

func (m *Mock) ListUnreconciled(_ context.Context) ([]Message, error) {
	return m.list(func(msg Message) bool {
		return msg.Status != StatusReconciled && msg.Status != StatusFailed
	}), nil
}

func (m *Mock) list(keep func(Message) bool) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if keep(msg) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateStatus applies one lifecycle transition, rejecting anything the
// state machine does not allow.
func (m *Mock) UpdateStatus(_ context.Context, id string, status Status) (Message, error) {
	id = strings.ToUpper(strings.TrimSpace(id))

	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return Message{}, &Error{Op: "update_status", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("message %s not found", id)}
	}

	allowed := false
	for _, next := range legalTransitions[msg.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return Message{}, &Error{
			Op:         "update_status",
			StatusCode: http.StatusConflict,
			Message:    fmt.Sprintf("illegal transition %s -> %s for %s", msg.Status, status, id),
		}
	}

	now := time.Now().UTC()
	msg.Status = status
	switch status {
	case StatusSent:
		msg.SentAt = &now
	case StatusConfirmed:
		msg.ConfirmedAt = &now
	}
	m.messages[id] = msg
	return msg, nil
}

func (m *Mock) ProcessRedemptionBatch(_ context.Context, date string) (BatchSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := BatchSummary{Date: date, Total: len(m.redemptions)}
	for _, r := range m.redemptions {
		if r.Valid {
			summary.Processed++
		} else {
			summary.Rejected++
		}
	}
	return summary, nil
}

func (m *Mock) VerifyReports(_ context.Context, date string) ([]ReportCheck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ReportCheck, 0, len(m.reports))
	for _, r := range m.reports {
		detail := r.Detail
		if detail == "" && r.Passed {
			detail = fmt.Sprintf("%s report for %s verified", r.Name, date)
		}
		out = append(out, ReportCheck{Name: r.Name, Passed: r.Passed, Detail: detail})
	}
	return out, nil
}
