package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/events"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

const maxWebhookBody = 1 << 20

type createPaymentRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpayOrderId" binding:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" binding:"required"`
	RazorpaySignature string `json:"razorpaySignature" binding:"required"`
}

type CheckoutSession struct {
	KeyID           string `json:"keyId"`
	OrderID         string `json:"orderId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Receipt         string `json:"receipt"`
}

func paymentsEnabled(c *gin.Context, route string, d Dependencies) bool {
	if d.Payments == nil {
		respondWithError(c, http.StatusServiceUnavailable, route, "payments are not configured")
		return false
	}
	return true
}

func announcePaid(ctx context.Context, d Dependencies, o models.Order) {
	d.Events.Emit(ctx, events.TopicPaymentCaptured, o.ID.Hex(), events.PaymentCapturedPayload{
		OrderID:           o.ID.Hex(),
		RazorpayOrderID:   o.Payment.RazorpayOrderID,
		RazorpayPaymentID: o.Payment.RazorpayPaymentID,
		AmountMinor:       pricing.ToMinorUnits(o.Total),
	})
	d.Hub.Broadcast("order.paid", gin.H{"orderId": o.ID.Hex(), "ref": o.Ref, "status": o.Status})
}

// CreatePaymentOrder opens a Razorpay order for an unpaid razorpay order.
// An existing gateway order is reused, including after a failed attempt:
// Razorpay accepts repeat payments against the same order, and a late
// capture on it must still match.
func CreatePaymentOrder(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payment/orders"
		defer handlePanic(c, route)

		if !paymentsEnabled(c, route, d) {
			return
		}
		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req createPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		orderID, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid orderId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		order, err := d.Orders.Get(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && order.UserID != userID) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		switch {
		case order.PaymentMethod != models.PaymentMethodRazorpay:
			respondWithError(c, http.StatusBadRequest, route, "order is not payable online")
			return
		case order.PaymentStatus == models.PaymentStatusPaid:
			respondWithError(c, http.StatusConflict, route, "order already paid")
			return
		case order.Status.Terminal():
			respondWithError(c, http.StatusConflict, route, "order is closed")
			return
		}

		amount := pricing.ToMinorUnits(order.Total)
		session := CheckoutSession{
			KeyID:    d.Payments.KeyID(),
			OrderID:  order.ID.Hex(),
			Amount:   amount,
			Currency: order.Currency,
			Receipt:  order.Ref,
		}

		if existing := order.Payment.RazorpayOrderID; existing != "" {
			if order.PaymentStatus == models.PaymentStatusFailed {
				if err := d.Orders.AttachRazorpayOrder(ctx, order.ID, existing); err != nil {
					if errors.Is(err, store.ErrConflict) {
						respondWithError(c, http.StatusConflict, route, "order already paid")
						return
					}
					respondInternal(c, route, err)
					return
				}
			}
			session.RazorpayOrderID = existing
			c.JSON(http.StatusOK, session)
			return
		}

		gatewayOrder, err := d.Payments.CreateOrder(ctx, payment.CreateOrderRequest{
			Amount:   amount,
			Currency: order.Currency,
			Receipt:  order.Ref,
			Notes:    map[string]string{"orderId": order.ID.Hex()},
		})
		if err != nil {
			log.Println("[PAYMENT] [ERROR] razorpay create order failed:", err)
			respondWithError(c, http.StatusBadGateway, route, "payment gateway error")
			return
		}

		if err := d.Orders.AttachRazorpayOrder(ctx, order.ID, gatewayOrder.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				respondWithError(c, http.StatusConflict, route, "order already paid")
				return
			}
			respondInternal(c, route, err)
			return
		}

		session.RazorpayOrderID = gatewayOrder.ID
		c.JSON(http.StatusOK, session)
	}
}

// VerifyPayment checks the Checkout callback signature and marks the
// order paid.
func VerifyPayment(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payment/verify"
		defer handlePanic(c, route)

		if !paymentsEnabled(c, route, d) {
			return
		}
		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req verifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := d.Payments.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid payment signature")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		order, err := d.Orders.FindByRazorpayOrder(ctx, req.RazorpayOrderID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && order.UserID != userID && middleware.Role(c) != models.RoleAdmin) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		updated, captured, err := d.Orders.MarkPaid(ctx, order.ID, req.RazorpayPaymentID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if captured {
			announcePaid(ctx, d, updated)
		}

		c.JSON(http.StatusOK, gin.H{"status": "paid", "order": updated})
	}
}

// PaymentWebhook handles Razorpay server callbacks. Orders are matched by
// any gateway order id ever attached to them. Unknown events and unknown
// orders are acknowledged with 200 so Razorpay stops retrying.
func PaymentWebhook(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/payment/webhook"
		defer handlePanic(c, route)

		if !paymentsEnabled(c, route, d) {
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		if err := d.Payments.VerifyWebhookSignature(body, c.GetHeader(payment.SignatureHeader)); err != nil {
			if errors.Is(err, payment.ErrNotConfigured) {
				respondWithError(c, http.StatusServiceUnavailable, route, "webhook secret is not configured")
				return
			}
			respondWithError(c, http.StatusBadRequest, route, "invalid signature")
			return
		}

		event, err := payment.ParseWebhook(body)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid payload")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		if event.Payment.OrderID == "" {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		order, err := d.Orders.FindByRazorpayOrder(ctx, event.Payment.OrderID)
		if errors.Is(err, store.ErrNotFound) {
			log.Println("[PAYMENT] [WARN] webhook for unknown razorpay order:", event.Payment.OrderID)
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		switch event.Event {
		case payment.EventPaymentCaptured, payment.EventOrderPaid:
			if expected := pricing.ToMinorUnits(order.Total); event.Payment.Amount != expected {
				log.Printf("[PAYMENT] [ERROR] amount mismatch for %s: got %d want %d", order.Ref, event.Payment.Amount, expected)
				c.JSON(http.StatusOK, gin.H{"status": "ignored"})
				return
			}
			updated, captured, err := d.Orders.MarkPaid(ctx, order.ID, event.Payment.ID)
			if err != nil {
				respondInternal(c, route, err)
				return
			}
			if captured {
				announcePaid(ctx, d, updated)
			}

		case payment.EventPaymentFailed:
			reason := event.Payment.ErrorDescription
			if reason == "" {
				reason = "payment failed"
			}
			if err := d.Orders.MarkPaymentFailed(ctx, order.ID, reason); err != nil {
				respondInternal(c, route, err)
				return
			}
			d.Events.Emit(ctx, events.TopicPaymentFailed, order.ID.Hex(), events.PaymentFailedPayload{
				OrderID:         order.ID.Hex(),
				RazorpayOrderID: event.Payment.OrderID,
				Reason:          reason,
			})

		case payment.EventRefundProcessed:
			// partial refunds leave the order paid
			if expected := pricing.ToMinorUnits(order.Total); event.Refund.Amount != expected {
				log.Printf("[PAYMENT] [INFO] partial refund %s for %s: %d of %d", event.Refund.ID, order.Ref, event.Refund.Amount, expected)
				c.JSON(http.StatusOK, gin.H{"status": "ignored"})
				return
			}
			updated, refunded, err := d.Orders.MarkRefunded(ctx, order.ID, event.Refund.ID)
			if err != nil {
				respondInternal(c, route, err)
				return
			}
			if refunded {
				d.Events.Emit(ctx, events.TopicPaymentRefunded, order.ID.Hex(), events.PaymentRefundedPayload{
					OrderID:          order.ID.Hex(),
					RazorpayRefundID: event.Refund.ID,
					AmountMinor:      event.Refund.Amount,
				})
				d.Hub.Broadcast("order.refunded", gin.H{"orderId": updated.ID.Hex(), "ref": updated.Ref})
			}

		default:
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
