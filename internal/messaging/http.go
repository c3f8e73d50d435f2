package messaging

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

// HTTPClient talks to a remote payment-messaging service.
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

func (c *HTTPClient) SendPayment(ctx context.Context, req SendRequest) (Message, error) {
	var out Message
	err := c.doJSON(ctx, "send_payment", http.MethodPost, "/messages", req, &out)
	return out, err
}

func (c *HTTPClient) GetMessage(ctx context.Context, id string) (Message, error) {
	var out Message
	err := c.doJSON(ctx, "get_message", http.MethodGet, "/messages/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *HTTPClient) ListMessages(ctx context.Context) ([]Message, error) {
	return c.listMessages(ctx, "list_messages", "/messages")
}

func (c *HTTPClient) ListByAccount(ctx context.Context, accountID string) ([]Message, error) {
	return c.listMessages(ctx, "list_by_account", "/messages?account="+url.QueryEscape(accountID))
}

func (c *HTTPClient) ListByTransaction(ctx context.Context, transactionID string) ([]Message, error) {
	return c.listMessages(ctx, "list_by_transaction", "/messages?transaction="+url.QueryEscape(transactionID))
}

func (c *HTTPClient) ListUnreconciled(ctx context.Context) ([]Message, error) {
	return c.listMessages(ctx, "list_unreconciled", "/messages?unreconciled=true")
}

func (c *HTTPClient) listMessages(ctx context.Context, op, path string) ([]Message, error) {
	var out []Message
	if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, id string, status Status) (Message, error) {
	var out Message
	body := map[string]string{"status": string(status)}
	err := c.doJSON(ctx, "update_status", http.MethodPost, "/messages/"+url.PathEscape(id)+"/status", body, &out)
	return out, err
}

func (c *HTTPClient) ProcessRedemptionBatch(ctx context.Context, date string) (BatchSummary, error) {
	var out BatchSummary
	err := c.doJSON(ctx, "process_redemption_batch", http.MethodPost, "/redemptions/"+url.PathEscape(date), nil, &out)
	return out, err
}

func (c *HTTPClient) VerifyReports(ctx context.Context, date string) ([]ReportCheck, error) {
	var out []ReportCheck
	err := c.doJSON(ctx, "verify_reports", http.MethodGet, "/reports/verify?date="+url.QueryEscape(date), nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// doJSON performs one request with retries on retryable statuses. Sends and
// batch processing are not retried: outbound delivery is at-least-once and
// a blind retry could duplicate a payment message.
func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	attempts := c.maxAttempts
	if op == "send_payment" || op == "process_redemption_batch" {
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
			return fmt.Errorf("messaging %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("messaging %s: create request: %w", op, err)
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
		return fmt.Errorf("messaging %s: decode response: %w", op, err)
	}
	return nil
}

func retryable(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		if me.StatusCode == 0 {
			return true
		}
		return reliability.IsRetryableHTTPStatus(me.StatusCode)
	}
	return false
}
