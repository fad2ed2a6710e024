package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AlertaPix/alertapix/internal/pkg/env"
	"github.com/shopspring/decimal"
)

const defaultAPIBaseURL = "https://api.mercadopago.com"

// Payment statuses reported by Mercado Pago that this platform reacts to.
const (
	PaymentStatusApproved  = "approved"
	PaymentStatusPending   = "pending"
	PaymentStatusInProcess = "in_process"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
)

// Client talks to the Mercado Pago payments API with the platform credential.
// Per-streamer connected-account tokens are passed explicitly where needed.
type Client struct {
	AccessToken string
	APIBaseURL  string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from MP_ACCESS_TOKEN / MP_API_BASE_URL.
func NewClientFromEnv() *Client {
	return &Client{
		AccessToken: strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", "")),
		APIBaseURL:  strings.TrimRight(env.GetEnv("MP_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePaymentInput carries everything needed to open a PIX charge.
type CreatePaymentInput struct {
	AmountReais       decimal.Decimal
	Description       string
	ExternalReference string
	PayerEmail        string
	ExpiresAt         time.Time

	// Marketplace mode: when CollectorToken is set the payment is created on
	// the connected seller account and ApplicationFeeReais is retained.
	CollectorToken      string
	ApplicationFeeReais decimal.Decimal
}

// Payment is the subset of the provider payment object the platform reads.
type Payment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	ExternalReference string          `json:"external_reference"`
	DateOfExpiration  string          `json:"date_of_expiration"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreatePayment opens a PIX payment carrying the transaction id as external
// reference. The same id doubles as idempotency key so provider-side retries
// cannot open two charges for one purchase intent.
func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	token := strings.TrimSpace(in.CollectorToken)
	if token == "" {
		token = c.AccessToken
	}
	if token == "" {
		return nil, errors.New("MP_ACCESS_TOKEN is not configured")
	}
	if strings.TrimSpace(in.ExternalReference) == "" {
		return nil, errors.New("external reference is required")
	}
	if in.AmountReais.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("amount must be positive")
	}

	body := map[string]interface{}{
		"transaction_amount": in.AmountReais.InexactFloat64(),
		"description":        in.Description,
		"payment_method_id":  "pix",
		"external_reference": in.ExternalReference,
		"payer": map[string]string{
			"email": strings.TrimSpace(in.PayerEmail),
		},
	}
	if !in.ExpiresAt.IsZero() {
		body["date_of_expiration"] = in.ExpiresAt.Format("2006-01-02T15:04:05.000-07:00")
	}
	if in.CollectorToken != "" && in.ApplicationFeeReais.GreaterThan(decimal.Zero) {
		body["application_fee"] = in.ApplicationFeeReais.InexactFloat64()
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Idempotency-Key", in.ExternalReference)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago create payment failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out Payment
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, errors.New("mercadopago create payment returned empty id")
	}
	return &out, nil
}

// GetPayment re-fetches the authoritative payment object by id. Webhook
// payloads are never trusted for amount or status; this call is.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, errors.New("payment id is required")
	}
	if c.AccessToken == "" {
		return nil, errors.New("MP_ACCESS_TOKEN is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago get payment %s failed: status=%d body=%s", id, resp.StatusCode, string(body))
	}

	var out Payment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
