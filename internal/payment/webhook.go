package payment

import (
	"encoding/json"
	"errors"
	"fmt"
)

type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type WebhookEvent struct {
	Event     string        `json:"event"`
	CreatedAt int64         `json:"created_at"`
	Payment   PaymentEntity `json:"-"`
	Refund    RefundEntity  `json:"-"`
}

// ParseWebhook decodes the parts of a Razorpay webhook the API acts on.
// Signature verification is separate and must happen first.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var raw struct {
		Event     string `json:"event"`
		CreatedAt int64  `json:"created_at"`
		Payload   struct {
			Payment struct {
				Entity PaymentEntity `json:"entity"`
			} `json:"payment"`
			Refund struct {
				Entity RefundEntity `json:"entity"`
			} `json:"refund"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	if raw.Event == "" {
		return WebhookEvent{}, errors.New("webhook has no event")
	}
	return WebhookEvent{
		Event:     raw.Event,
		CreatedAt: raw.CreatedAt,
		Payment:   raw.Payload.Payment.Entity,
		Refund:    raw.Payload.Refund.Entity,
	}, nil
}
