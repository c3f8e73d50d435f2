package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opsdesk-ai/opsdesk/internal/reliability"
)

// HTTPClient talks to a remote ledger service.
type HTTPClient struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:      &http.Client{Timeout: timeout},
		maxAttempts: 3,
	}
}

func (c *HTTPClient) ListAccounts(ctx context.Context, currency string) ([]Account, error) {
	var out []Account
	path := "/accounts"
	if strings.TrimSpace(currency) != "" {
		path += "?currency=" + url.QueryEscape(currency)
	}
	if err := c.doJSON(ctx, "list_accounts", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetBalance(ctx context.Context, accountID string) (Account, error) {
	var out Account
	err := c.doJSON(ctx, "get_balance", http.MethodGet, "/accounts/"+url.PathEscape(accountID), nil, &out)
	return out, err
}

func (c *HTTPClient) BookTransaction(ctx context.Context, from, to string, amount float64, currency string) (Transaction, error) {
	body := map[string]any{
		"from_account": from,
		"to_account":   to,
		"amount":       amount,
		"currency":     currency,
	}
	var out Transaction
	err := c.doJSON(ctx, "book_transaction", http.MethodPost, "/transactions", body, &out)
	return out, err
}

func (c *HTTPClient) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var out Transaction
	err := c.doJSON(ctx, "get_transaction", http.MethodGet, "/transactions/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *HTTPClient) ApproveTransaction(ctx context.Context, id string) (Transaction, error) {
	var out Transaction
	err := c.doJSON(ctx, "approve_transaction", http.MethodPost, "/transactions/"+url.PathEscape(id)+"/approve", nil, &out)
	return out, err
}

func (c *HTTPClient) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	if err := c.doJSON(ctx, "list_transactions", http.MethodGet, "/transactions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) EODBlockers(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.doJSON(ctx, "eod_blockers", http.MethodGet, "/eod/blockers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) MissingFixings(ctx context.Context) ([]Fixing, error) {
	var out []Fixing
	if err := c.doJSON(ctx, "missing_fixings", http.MethodGet, "/fixings/missing", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ProposeFixings(ctx context.Context) ([]Fixing, error) {
	var out []Fixing
	if err := c.doJSON(ctx, "propose_fixings", http.MethodPost, "/fixings/propose", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// doJSON performs one request with retries on retryable statuses. GETs and
// the idempotent approve are safe to retry; booking is not retried to avoid
// duplicate transactions in the at-least-once demo model.
func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	attempts := c.maxAttempts
	if op == "book_transaction" {
		attempts = 1
	}

	return reliability.Do(ctx, attempts, 200*time.Millisecond, 2*time.Second, retryable, func() error {
		return c.once(ctx, op, method, path, body, out)
	})
}

func (c *HTTPClient) once(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ledger %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ledger %s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return &Error{Op: op, StatusCode: 0, Message: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &Error{Op: op, StatusCode: res.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger %s: decode response: %w", op, err)
	}
	return nil
}

func retryable(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		if le.StatusCode == 0 {
			return true
		}
		return reliability.IsRetryableHTTPStatus(le.StatusCode)
	}
	return false
}
