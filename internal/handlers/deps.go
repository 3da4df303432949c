package handlers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/redisx"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	FindActive(ctx context.Context, tokenHash string) (models.RefreshToken, error)
	Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
	RevokeByHash(ctx context.Context, tokenHash string) error
}

type AddressStore interface {
	List(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error)
	Get(ctx context.Context, userID, id primitive.ObjectID) (models.Address, error)
	Default(ctx context.Context, userID primitive.ObjectID) (models.Address, error)
	Create(ctx context.Context, a *models.Address) error
	Update(ctx context.Context, a *models.Address) error
	SetDefault(ctx context.Context, userID, id primitive.ObjectID) (models.Address, error)
	Delete(ctx context.Context, userID, id primitive.ObjectID) error
}

type ProductStore interface {
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Product, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	All(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Replace(ctx context.Context, p *models.Product, setStock bool) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
}

type CategoryStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.Category, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type OrderStore interface {
	Place(ctx context.Context, o *models.Order, shipping pricing.ShippingPolicy) error
	Get(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, to models.OrderStatus, by string, allowedFrom ...models.OrderStatus) (models.Order, error)
	AttachRazorpayOrder(ctx context.Context, id primitive.ObjectID, razorpayOrderID string) error
	FindByRazorpayOrder(ctx context.Context, razorpayOrderID string) (models.Order, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, paymentID string) (models.Order, bool, error)
	MarkPaymentFailed(ctx context.Context, id primitive.ObjectID, reason string) error
	MarkRefunded(ctx context.Context, id primitive.ObjectID, refundID string) (models.Order, bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type CartStore interface {
	Items(ctx context.Context, userID string) ([]redisx.CartLine, error)
	SetItem(ctx context.Context, userID, productID string, quantity int) error
	AddItem(ctx context.Context, userID, productID string, delta int) (int, error)
	Quantity(ctx context.Context, userID, productID string) (int, error)
	RemoveItem(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type IdempotencyStore interface {
	Reserve(ctx context.Context, userID, key string) (string, error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Release(ctx context.Context, userID, key string) error
}

type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, in payment.CreateOrderRequest) (payment.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
	VerifyWebhookSignature(body []byte, signature string) error
}

// Broadcaster is the admin live feed.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type EventEmitter interface {
	Emit(ctx context.Context, topic, key string, payload any)
}

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

// Dependencies is everything NewRouter wires. Idempotency, Payments, Hub
// and Events may be nil; the affected features degrade as documented on
// each handler.
type Dependencies struct {
	Config config.Config

	Users         UserStore
	RefreshTokens RefreshTokenStore
	Addresses     AddressStore
	Products      ProductStore
	Categories    CategoryStore
	Orders        OrderStore
	Cart          CartStore
	Idempotency   IdempotencyStore
	Payments      PaymentGateway
	Hub           Broadcaster
	Events        EventEmitter

	HealthChecks map[string]HealthCheck
}

func (d Dependencies) shippingPolicy() pricing.ShippingPolicy {
	return pricing.ShippingPolicy{Fee: d.Config.ShippingFee, FreeThreshold: d.Config.FreeShippingThreshold}
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, interface{}) {}
func (nopBroadcaster) ServeWS(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, `{"error":"live feed disabled"}`, http.StatusServiceUnavailable)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, string, any) {}
