// Package ledger talks to the account/transaction ledger collaborator.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusValidated TransactionStatus = "VALIDATED"
	StatusFailed    TransactionStatus = "FAILED"
)

type Account struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

type Transaction struct {
	ID          string            `json:"id"`
	FromAccount string            `json:"from_account"`
	ToAccount   string            `json:"to_account"`
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Fixing is one rate fixing slot. Rate is nil while the fixing is missing.
type Fixing struct {
	Index string   `json:"index"`
	Tenor string   `json:"tenor"`
	Rate  *float64 `json:"rate,omitempty"`
}

// Error is a typed collaborator failure carrying the upstream HTTP status.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *Error) HTTPStatusCode() int { return e.StatusCode }

// Client is the consumed surface of the ledger collaborator. All calls are
// synchronous request/response.
type Client interface {
	ListAccounts(ctx context.Context, currency string) ([]Account, error)
	GetBalance(ctx context.Context, accountID string) (Account, error)
	BookTransaction(ctx context.Context, from, to string, amount float64, currency string) (Transaction, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	ApproveTransaction(ctx context.Context, id string) (Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	EODBlockers(ctx context.Context) ([]string, error)
	MissingFixings(ctx context.Context) ([]Fixing, error)
	ProposeFixings(ctx context.Context) ([]Fixing, error)
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
			return nil, errors.New("ledger base url is required for http mode")
		}
		return NewHTTPClient(cfg.BaseURL, cfg.Timeout), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger client mode %q", cfg.Mode)
	}
}
