package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentMethodCOD      = "cod"
	PaymentMethodRazorpay = "razorpay"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderItem is a priced line captured at checkout.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	LineTotal float64            `bson:"lineTotal" json:"lineTotal"`
}

// PaymentDetails tracks the Razorpay side of an order. RazorpayOrderID is
// the gateway order offered to the customer now; RazorpayOrderIDs keeps
// every one ever attached.
type PaymentDetails struct {
	RazorpayOrderID   string     `bson:"razorpayOrderId,omitempty" json:"razorpayOrderId,omitempty"`
	RazorpayOrderIDs  []string   `bson:"razorpayOrderIds,omitempty" json:"-"`
	RazorpayPaymentID string     `bson:"razorpayPaymentId,omitempty" json:"razorpayPaymentId,omitempty"`
	PaidAt            *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	FailureReason     string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	RazorpayRefundID  string     `bson:"razorpayRefundId,omitempty" json:"razorpayRefundId,omitempty"`
	RefundedAt        *time.Time `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
}

type StatusChange struct {
	Status OrderStatus `bson:"status" json:"status"`
	At     time.Time   `bson:"at" json:"at"`
	By     string      `bson:"by,omitempty" json:"by,omitempty"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Ref             string             `bson:"ref" json:"ref"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Items           []OrderItem        `bson:"items" json:"items"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	ShippingFee     float64            `bson:"shippingFee" json:"shippingFee"`
	Total           float64            `bson:"total" json:"total"`
	Currency        string             `bson:"currency" json:"currency"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	Payment         PaymentDetails     `bson:"payment" json:"payment"`
	Status          OrderStatus        `bson:"status" json:"status"`
	StatusHistory   []StatusChange     `bson:"statusHistory" json:"statusHistory"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type OrderFilter struct {
	UserID *primitive.ObjectID
	Status OrderStatus
	Page   int64
	Limit  int64
}
