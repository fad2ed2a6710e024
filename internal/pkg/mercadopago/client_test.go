package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(server *httptest.Server) *Client {
	return &Client{
		AccessToken: "platform-token",
		APIBaseURL:  server.URL,
		HTTPClient:  server.Client(),
	}
}

func TestGetPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/123456", r.URL.Path)
		assert.Equal(t, "Bearer platform-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 123456,
			"status": "approved",
			"transaction_amount": 25.00,
			"external_reference": "tx-1"
		}`))
	}))
	defer server.Close()

	payment, err := testClient(server).GetPayment(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), payment.ID)
	assert.Equal(t, PaymentStatusApproved, payment.Status)
	assert.True(t, payment.TransactionAmount.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, "tx-1", payment.ExternalReference)
}

func TestGetPaymentUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Payment not found"}`))
	}))
	defer server.Close()

	_, err := testClient(server).GetPayment(context.Background(), "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=404")
	assert.Contains(t, err.Error(), "Payment not found")
}

func TestGetPaymentValidation(t *testing.T) {
	c := &Client{AccessToken: "x", APIBaseURL: "http://unused", HTTPClient: http.DefaultClient}
	_, err := c.GetPayment(context.Background(), "  ")
	assert.Error(t, err)

	c.AccessToken = ""
	_, err = c.GetPayment(context.Background(), "123")
	assert.Error(t, err)
}

func TestCreatePayment(t *testing.T) {
	var gotBody map[string]interface{}
	var gotIdempotency, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		gotIdempotency = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"id": 987654,
			"status": "pending",
			"point_of_interaction": {"transaction_data": {
				"qr_code": "000201pix...",
				"qr_code_base64": "aVZC...",
				"ticket_url": "https://mp.example/ticket"
			}}
		}`))
	}))
	defer server.Close()

	payment, err := testClient(server).CreatePayment(context.Background(), CreatePaymentInput{
		AmountReais:       decimal.RequireFromString("25.00"),
		Description:       "Alerta: Airhorn",
		ExternalReference: "tx-1",
		PayerEmail:        "viewer@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "tx-1", gotIdempotency)
	assert.Equal(t, "Bearer platform-token", gotAuth)
	assert.Equal(t, "pix", gotBody["payment_method_id"])
	assert.Equal(t, "tx-1", gotBody["external_reference"])
	assert.InDelta(t, 25.0, gotBody["transaction_amount"], 0.001)
	assert.NotContains(t, gotBody, "application_fee")

	assert.Equal(t, int64(987654), payment.ID)
	assert.Equal(t, "000201pix...", payment.PointOfInteraction.TransactionData.QRCode)
	assert.Equal(t, "https://mp.example/ticket", payment.PointOfInteraction.TransactionData.TicketURL)
}

func TestCreatePaymentMarketplaceMode(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	_, err := testClient(server).CreatePayment(context.Background(), CreatePaymentInput{
		AmountReais:         decimal.RequireFromString("10.00"),
		ExternalReference:   "tx-2",
		PayerEmail:          "viewer@example.com",
		CollectorToken:      "seller-token",
		ApplicationFeeReais: decimal.RequireFromString("0.50"),
	})
	require.NoError(t, err)

	// The charge opens on the connected seller account with the platform cut.
	assert.Equal(t, "Bearer seller-token", gotAuth)
	assert.InDelta(t, 0.5, gotBody["application_fee"], 0.001)
}

func TestCreatePaymentValidation(t *testing.T) {
	c := &Client{AccessToken: "x", APIBaseURL: "http://unused", HTTPClient: http.DefaultClient}

	_, err := c.CreatePayment(context.Background(), CreatePaymentInput{
		AmountReais: decimal.RequireFromString("10.00"),
	})
	assert.Error(t, err, "missing external reference")

	_, err = c.CreatePayment(context.Background(), CreatePaymentInput{
		AmountReais:       decimal.Zero,
		ExternalReference: "tx-1",
	})
	assert.Error(t, err, "non-positive amount")
}
