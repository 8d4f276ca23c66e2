package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drsullivan13/weather-server/internal/common"
)

// maxResponseSize caps accounts service response bodies.
const maxResponseSize = 1 << 20

// ChargeRequest moves Amount from the payer to the destination account.
// ID is an idempotency key.
type ChargeRequest struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	PayeeName   string          `json:"payeeName"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// ChargeReceipt is the accounts service acknowledgement of a charge.
type ChargeReceipt struct {
	ID            string `json:"id"`
	TransactionID string `json:"transactionId"`
}

// PaymentRequestInput describes a payment the caller must settle out of band.
type PaymentRequestInput struct {
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	PayeeName   string          `json:"payeeName"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// PaymentRequest is an outstanding payment the caller can complete at URL.
type PaymentRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Introspection is the RFC 7662 view of an access token.
type Introspection struct {
	Active   bool   `json:"active"`
	Subject  string `json:"sub"`
	ClientID string `json:"client_id"`
	Expiry   int64  `json:"exp"`
}

// AccountsClient talks to the ATXP accounts service on behalf of the
// destination account.
type AccountsClient struct {
	account    *Account
	httpClient *http.Client
	logger     *common.Logger
}

// NewAccountsClient creates a client authenticated as account.
func NewAccountsClient(account *Account, timeout time.Duration, logger *common.Logger) *AccountsClient {
	return &AccountsClient{
		account: account,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Charge settles req against the payer's balance. A payer without funds
// yields an error wrapping ErrPaymentDeclined.
func (c *AccountsClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeReceipt, error) {
	body, err := c.doJSON(ctx, "/charge", req)
	if err != nil {
		return nil, err
	}

	var receipt ChargeReceipt
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &receipt); err != nil {
			return nil, fmt.Errorf("failed to decode charge response: %w", err)
		}
	}
	if receipt.ID == "" {
		receipt.ID = req.ID
	}
	return &receipt, nil
}

// CreatePaymentRequest registers an outstanding payment and returns where
// the caller can complete it.
func (c *AccountsClient) CreatePaymentRequest(ctx context.Context, in PaymentRequestInput) (*PaymentRequest, error) {
	body, err := c.doJSON(ctx, "/payment-request", in)
	if err != nil {
		return nil, err
	}

	var pr PaymentRequest
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode payment request response: %w", err)
	}
	if pr.ID == "" {
		return nil, fmt.Errorf("payment request response missing id")
	}
	if pr.URL == "" {
		pr.URL = c.account.BaseURL + "/payment-request/" + url.PathEscape(pr.ID)
	}
	return &pr, nil
}

// Introspect asks the accounts service whether token is active.
func (c *AccountsClient) Introspect(ctx context.Context, token string) (*Introspection, error) {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.account.BaseURL+"/introspect", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req, "/introspect")
	if err != nil {
		return nil, err
	}

	var info Introspection
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	return &info, nil
}

// doJSON POSTs data as JSON to path on the accounts service.
func (c *AccountsClient) doJSON(ctx context.Context, path string, data any) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.account.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path)
}

func (c *AccountsClient) do(req *http.Request, path string) ([]byte, error) {
	req.SetBasicAuth(c.account.Token, "")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("method", req.Method).Str("path", path).Msg("accounts request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Error().Str("method", req.Method).Str("path", path).Int64("duration_ms", duration.Milliseconds()).Str("error", err.Error()).Msg("accounts request failed")
		return nil, fmt.Errorf("accounts request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Int64("duration_ms", duration.Milliseconds()).Msg("accounts response")

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// parseErrorResponse extracts a meaningful error from an accounts service
// error response.
func parseErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
		if errResp.ErrorDescription != "" {
			msg += ": " + errResp.ErrorDescription
		}
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	if statusCode == http.StatusPaymentRequired {
		return fmt.Errorf("%w: %s", ErrPaymentDeclined, msg)
	}
	return fmt.Errorf("accounts service error (%d): %s", statusCode, msg)
}
