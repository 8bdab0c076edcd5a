package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GatewayError is a transient failure (network, timeout, gateway 5xx). The
// caller must not finalize a Transaction on it; the attempt stays recoverable
// via a status re-query keyed by invoice number.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("gateway %s: %v", e.Op, e.Err) }
func (e *GatewayError) Unwrap() error { return e.Err }

// RejectedError is a definitive refusal from the gateway, e.g. "payment
// system disabled". It finalizes the Transaction as FAILED.
type RejectedError struct {
	Op     string
	Code   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway %s rejected (%s): %s", e.Op, e.Code, e.Reason)
}

type DepositRequest struct {
	InvoiceNo     string `json:"custom_transaction_id"`
	UserID        string `json:"custom_user_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentSystem string `json:"payment_system"`
}

type WithdrawalRequest struct {
	InvoiceNo     string `json:"custom_transaction_id"`
	UserID        string `json:"custom_user_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentSystem string `json:"payment_system"`
	AccountNumber string `json:"account_number"`
}

// OrderResult is the gateway's view of one order: its id plus a free-text
// status the caller normalizes with NormalizeStatus.
type OrderResult struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url,omitempty"`
}

// Client is the outbound surface to the payment aggregator. Every call is
// keyed by the caller-supplied invoice number, so a crash after the gateway
// acknowledged but before the response was persisted is recoverable by
// re-querying status.
type Client interface {
	CreateDepositPage(ctx context.Context, req DepositRequest) (*OrderResult, error)
	CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*OrderResult, error)
	QueryDepositStatus(ctx context.Context, invoiceNo string) (*OrderResult, error)
	QueryWithdrawalStatus(ctx context.Context, invoiceNo string) (*OrderResult, error)
}

type Config struct {
	BaseURL   string
	AccessKey string
	Secret    string
	Timeout   time.Duration
}

type HTTPClient struct {
	cfg    Config
	hc     *http.Client
	tokens *tokenStore
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &HTTPClient{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
	}
	c.tokens = newTokenStore(c.fetchToken)
	return c
}

func (c *HTTPClient) CreateDepositPage(ctx context.Context, req DepositRequest) (*OrderResult, error) {
	return c.call(ctx, "create_deposit", http.MethodPost, "/api/deposit/create", req)
}

func (c *HTTPClient) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*OrderResult, error) {
	return c.call(ctx, "create_withdrawal", http.MethodPost, "/api/withdrawal/create", req)
}

func (c *HTTPClient) QueryDepositStatus(ctx context.Context, invoiceNo string) (*OrderResult, error) {
	return c.call(ctx, "query_deposit", http.MethodGet, "/api/deposit/status?custom_transaction_id="+invoiceNo, nil)
}

func (c *HTTPClient) QueryWithdrawalStatus(ctx context.Context, invoiceNo string) (*OrderResult, error) {
	return c.call(ctx, "query_withdrawal", http.MethodGet, "/api/withdrawal/status?custom_transaction_id="+invoiceNo, nil)
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (c *HTTPClient) fetchToken(ctx context.Context) (accessToken, error) {
	body, _ := json.Marshal(map[string]string{
		"access_key": c.cfg.AccessKey,
		"secret":     c.cfg.Secret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/auth/token", bytes.NewReader(body))
	if err != nil {
		return accessToken{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return accessToken{}, &GatewayError{Op: "token", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return accessToken{}, &GatewayError{Op: "token", Err: fmt.Errorf("status %s", resp.Status)}
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return accessToken{}, &GatewayError{Op: "token", Err: err}
	}
	now := time.Now()
	return accessToken{
		Value:     tr.Token,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

type gatewayResponse struct {
	OrderResult
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (c *HTTPClient) call(ctx context.Context, op, method, path string, payload any) (*OrderResult, error) {
	tok, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		return nil, &GatewayError{Op: op, Err: fmt.Errorf("token rejected: %s", resp.Status)}
	}

	var gr gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil && resp.StatusCode < 300 {
		return nil, &GatewayError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode >= 300 {
		// An explicit error code is a definitive refusal; anything else could
		// be transient, so the transaction must not be finalized on it.
		if gr.ErrorCode != "" {
			return nil, &RejectedError{Op: op, Code: gr.ErrorCode, Reason: gr.ErrorMessage}
		}
		return nil, &GatewayError{Op: op, Err: fmt.Errorf("status %s", resp.Status)}
	}
	return &gr.OrderResult, nil
}
