// Package messaging talks to the payment-messaging network collaborator. It
// is the sole owner of payment-message state; the core only reads and
// classifies messages.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the payment-message lifecycle state. Legal forward transitions:
// PENDING -> SENT -> CONFIRMED -> {RECONCILED | UNRECONCILED}; FAILED is
// reachable from PENDING or SENT only. No transition may skip a stage
// except failure.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusSent         Status = "SENT"
	StatusConfirmed    Status = "CONFIRMED"
	StatusReconciled   Status = "RECONCILED"
	StatusUnreconciled Status = "UNRECONCILED"
	StatusFailed       Status = "FAILED"
)

// Message type tags, named after the SWIFT MT series they simulate.
const (
	TypeCustomerCredit      = "MT103" // single customer credit transfer
	TypeInstitutionTransfer = "MT202"
	TypeStatement           = "MT940"
	TypeConfirmation        = "MT900"
)

type Message struct {
	ID                 string     `json:"id"`
	Type               string     `json:"type"`
	AccountID          string     `json:"account_id"`
	TransactionID      string     `json:"transaction_id,omitempty"`
	Amount             float64    `json:"amount"`
	Currency           string     `json:"currency"`
	CounterpartyBIC    string     `json:"counterparty_bic"`
	BeneficiaryName    string     `json:"beneficiary_name"`
	BeneficiaryAccount string     `json:"beneficiary_account"`
	Status             Status     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	SentAt             *time.Time `json:"sent_at,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
}

// SendRequest creates one outbound payment message. TransactionID links the
// message to the ledger transaction it represents so reconciliation can
// associate the two records.
type SendRequest struct {
	Type               string  `json:"type"`
	AccountID          string  `json:"account_id"`
	TransactionID      string  `json:"transaction_id,omitempty"`
	Amount             float64 `json:"amount"`
	Currency           string  `json:"currency"`
	CounterpartyBIC    string  `json:"counterparty_bic"`
	BeneficiaryName    string  `json:"beneficiary_name"`
	BeneficiaryAccount string  `json:"beneficiary_account"`
}

type BatchSummary struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Rejected  int    `json:"rejected"`
}

type ReportCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Error is a typed collaborator failure carrying the upstream HTTP status.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("messaging %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *Error) HTTPStatusCode() int { return e.StatusCode }

// Client is the consumed surface of the messaging collaborator.
type Client interface {
	SendPayment(ctx context.Context, req SendRequest) (Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	ListMessages(ctx context.Context) ([]Message, error)
	ListByAccount(ctx context.Context, accountID string) ([]Message, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]Message, error)
	ListUnreconciled(ctx context.Context) ([]Message, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Message, error)
	ProcessRedemptionBatch(ctx context.Context, date string) (BatchSummary, error)
	VerifyReports(ctx context.Context, date string) ([]ReportCheck, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.BaseURL) != "" {
			return NewHTTPClient(cfg.BaseURL, cfg.Timeout), nil
		}
		return NewMock(), nil
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("messaging base url is required for http mode")
		}
		return NewHTTPClient(cfg.BaseURL, cfg.Timeout), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported messaging client mode %q", cfg.Mode)
	}
}
