// Package payment wraps the Razorpay SDK: order creation and signature
// checks for checkout callbacks and webhooks.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
	EventRefundProcessed = "refund.processed"

	SignatureHeader = "X-Razorpay-Signature"
)

var (
	ErrInvalidSignature = errors.New("invalid razorpay signature")
	ErrNotConfigured    = errors.New("razorpay is not configured")
)

// GatewayError is a failed call to the Razorpay API.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("razorpay %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

type Client struct {
	cfg Config
	rzp *razorpay.Client
}

// NewClient builds an SDK client. BaseURL and httpClient are optional and
// exist so tests can point the SDK at a local server.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	rzp := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		rzp.Order.Request.BaseURL = base
	}
	if httpClient != nil {
		rzp.Order.Request.HTTPClient = httpClient
	}
	return &Client{cfg: cfg, rzp: rzp}
}

func (c *Client) KeyID() string { return c.cfg.KeyID }

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder registers an order with Razorpay. Amount is in the minor
// unit (paise). The SDK call is not context aware, so ctx only bounds how
// long the caller waits.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderRequest) (Order, error) {
	if c.cfg.KeyID == "" || c.cfg.KeySecret == "" {
		return Order{}, ErrNotConfigured
	}
	if in.Amount <= 0 {
		return Order{}, fmt.Errorf("amount must be positive, got %d", in.Amount)
	}

	data := map[string]interface{}{
		"amount":   in.Amount,
		"currency": in.Currency,
		"receipt":  in.Receipt,
	}
	if len(in.Notes) > 0 {
		notes := make(map[string]interface{}, len(in.Notes))
		for k, v := range in.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	done := make(chan createResult, 1)
	go func() {
		body, err := c.rzp.Order.Create(data, nil)
		done <- createResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return Order{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return Order{}, &GatewayError{Op: "create order", Err: res.err}
		}
		return decodeOrder(res.body)
	}
}

func decodeOrder(body map[string]interface{}) (Order, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Order{}, err
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return Order{}, fmt.Errorf("failed to parse razorpay response: %w", err)
	}
	if order.ID == "" {
		return Order{}, errors.New("razorpay returned an order without id")
	}
	return order, nil
}

// VerifyPaymentSignature checks the signature returned to the browser by
// Razorpay Checkout.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	if c.cfg.KeySecret == "" {
		return ErrNotConfigured
	}
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	if !utils.VerifyPaymentSignature(params, strings.TrimSpace(signature), c.cfg.KeySecret) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against
// the raw request body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	if c.cfg.WebhookSecret == "" {
		return ErrNotConfigured
	}
	if !utils.VerifyWebhookSignature(string(body), strings.TrimSpace(signature), c.cfg.WebhookSecret) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces the signature Razorpay attaches to a message, for
// simulating gateway callbacks.
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
