package mercadopago

import (
	"encoding/json"
	"strings"
)

// WebhookNotification is the merged view of a provider notification. Mercado
// Pago spreads the discriminator and payment id across query parameters and
// the JSON body depending on notification mode.
type WebhookNotification struct {
	Type      string
	Action    string
	PaymentID string
}

// IsPaymentEvent reports whether the notification refers to a payment at all.
// Everything else (plans, invoices, chargeback test pings) is acknowledged
// and ignored so the provider does not retry.
func (n WebhookNotification) IsPaymentEvent() bool {
	return strings.EqualFold(n.Type, "payment")
}

type webhookBody struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Topic  string      `json:"topic"`
	Action string      `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// ParseWebhookNotification merges query parameters and JSON body into one
// notification. Query values win only when the body omits a field.
func ParseWebhookNotification(queryType, queryTopic, queryID string, body []byte) WebhookNotification {
	var parsed webhookBody
	if len(body) > 0 {
		// A malformed body is not fatal; query parameters may still carry
		// everything needed.
		_ = json.Unmarshal(body, &parsed)
	}

	n := WebhookNotification{
		Type:   strings.TrimSpace(parsed.Type),
		Action: strings.TrimSpace(parsed.Action),
	}
	if n.Type == "" {
		n.Type = strings.TrimSpace(parsed.Topic)
	}
	if n.Type == "" {
		n.Type = strings.TrimSpace(queryType)
	}
	if n.Type == "" {
		n.Type = strings.TrimSpace(queryTopic)
	}

	n.PaymentID = strings.TrimSpace(parsed.Data.ID.String())
	if n.PaymentID == "" || n.PaymentID == "0" {
		n.PaymentID = strings.TrimSpace(parsed.ID.String())
	}
	if n.PaymentID == "" || n.PaymentID == "0" {
		n.PaymentID = strings.TrimSpace(queryID)
	}
	if n.PaymentID == "0" {
		n.PaymentID = ""
	}
	return n
}
