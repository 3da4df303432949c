package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/redisx"
	"storefront/internal/store"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

/* ---------- users & tokens ---------- */

type fakeUsers struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[primitive.ObjectID]models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return store.ErrConflict
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now().UTC()
	f.byID[u.ID] = *u
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

type fakeRefreshTokens struct {
	mu     sync.Mutex
	tokens map[primitive.ObjectID]models.RefreshToken
}

func newFakeRefreshTokens() *fakeRefreshTokens {
	return &fakeRefreshTokens{tokens: map[primitive.ObjectID]models.RefreshToken{}}
}

func (f *fakeRefreshTokens) Create(_ context.Context, t *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = primitive.NewObjectID()
	f.tokens[t.ID] = *t
	return nil
}

func (f *fakeRefreshTokens) FindActive(_ context.Context, hash string) (models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == hash && !t.Revoked {
			return t, nil
		}
	}
	return models.RefreshToken{}, store.ErrNotFound
}

func (f *fakeRefreshTokens) Revoke(_ context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || t.Revoked {
		return store.ErrNotFound
	}
	t.Revoked = true
	t.ReplacedByToken = replacedBy
	f.tokens[id] = t
	return nil
}

func (f *fakeRefreshTokens) RevokeByHash(ctx context.Context, hash string) error {
	t, err := f.FindActive(ctx, hash)
	if err != nil {
		return err
	}
	return f.Revoke(ctx, t.ID, nil)
}

/* ---------- addresses ---------- */

type fakeAddresses struct {
	mu   sync.Mutex
	list []models.Address
}

func (f *fakeAddresses) List(_ context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Address, 0)
	for _, a := range f.list {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

func (f *fakeAddresses) find(userID, id primitive.ObjectID) int {
	for i, a := range f.list {
		if a.ID == id && a.UserID == userID {
			return i
		}
	}
	return -1
}

func (f *fakeAddresses) clearDefault(userID primitive.ObjectID) {
	for i := range f.list {
		if f.list[i].UserID == userID {
			f.list[i].IsDefault = false
		}
	}
}

func (f *fakeAddresses) Get(_ context.Context, userID, id primitive.ObjectID) (models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(userID, id); i >= 0 {
		return f.list[i], nil
	}
	return models.Address{}, store.ErrNotFound
}

func (f *fakeAddresses) Default(_ context.Context, userID primitive.ObjectID) (models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.list {
		if a.UserID == userID && a.IsDefault {
			return a, nil
		}
	}
	return models.Address{}, store.ErrNotFound
}

func (f *fakeAddresses) Create(_ context.Context, a *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	owned := 0
	for _, existing := range f.list {
		if existing.UserID == a.UserID {
			owned++
		}
	}
	if owned == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		f.clearDefault(a.UserID)
	}
	a.ID = primitive.NewObjectID()
	f.list = append(f.list, *a)
	return nil
}

func (f *fakeAddresses) Update(_ context.Context, a *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(a.UserID, a.ID)
	if i < 0 {
		return store.ErrNotFound
	}
	if f.list[i].IsDefault {
		a.IsDefault = true
	}
	if a.IsDefault {
		f.clearDefault(a.UserID)
	}
	f.list[i] = *a
	return nil
}

func (f *fakeAddresses) SetDefault(_ context.Context, userID, id primitive.ObjectID) (models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(userID, id)
	if i < 0 {
		return models.Address{}, store.ErrNotFound
	}
	f.clearDefault(userID)
	f.list[i].IsDefault = true
	return f.list[i], nil
}

func (f *fakeAddresses) Delete(_ context.Context, userID, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(userID, id)
	if i < 0 {
		return store.ErrNotFound
	}
	removed := f.list[i]
	f.list = append(f.list[:i], f.list[i+1:]...)
	if removed.IsDefault {
		for j := len(f.list) - 1; j >= 0; j-- {
			if f.list[j].UserID == userID {
				f.list[j].IsDefault = true
				break
			}
		}
	}
	return nil
}

func (f *fakeAddresses) defaults(userID primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.list {
		if a.UserID == userID && a.IsDefault {
			n++
		}
	}
	return n
}

/* ---------- catalog ---------- */

type fakeProducts struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
}

func newFakeProducts(products ...models.Product) *fakeProducts {
	f := &fakeProducts{products: map[primitive.ObjectID]models.Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) List(_ context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Product, 0)
	for _, p := range f.products {
		if p.IsDeleted {
			continue
		}
		if filter.Active != nil && p.IsActive != *filter.Active {
			continue
		}
		if filter.Active == nil && !filter.IncludeHidden && !p.IsActive {
			continue
		}
		if filter.Category != "" && !containsString(p.Category, filter.Category) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := int64(len(out))
	if filter.Limit > 0 {
		start := (filter.Page - 1) * filter.Limit
		if start > total {
			start = total
		}
		end := start + filter.Limit
		if end > total {
			end = total
		}
		out = out[start:end]
	}
	return out, total, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeProducts) Get(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.IsDeleted {
		return models.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, err := f.Get(ctx, id); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) All(ctx context.Context) ([]models.Product, error) {
	list, _, err := f.List(ctx, models.ProductFilter{IncludeHidden: true})
	return list, err
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = primitive.NewObjectID()
	p.InStock = p.Stock > 0
	p.IsOnSale = pricing.IsOnSale(p.Price, p.SaleEnabled, p.SalePrice)
	f.products[p.ID] = *p
	return nil
}

func (f *fakeProducts) Replace(_ context.Context, p *models.Product, setStock bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.products[p.ID]
	if !ok || existing.IsDeleted {
		return store.ErrNotFound
	}
	if !setStock {
		p.Stock = existing.Stock
	}
	p.InStock = p.Stock > 0
	p.IsOnSale = pricing.IsOnSale(p.Price, p.SaleEnabled, p.SalePrice)
	f.products[p.ID] = *p
	return nil
}

// setStock changes stock behind the handlers' back, like a concurrent
// checkout would.
func (f *fakeProducts) setStock(id primitive.ObjectID, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	p.Stock = stock
	f.products[id] = p
}

func (f *fakeProducts) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.IsDeleted {
		return store.ErrNotFound
	}
	p.IsDeleted, p.IsActive = true, false
	f.products[id] = p
	return nil
}

func (f *fakeProducts) stock(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

type fakeCategories struct {
	mu   sync.Mutex
	list []models.Category
}

func (f *fakeCategories) List(_ context.Context, activeOnly bool) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Category, 0, len(f.list))
	for _, c := range f.list {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCategories) Get(_ context.Context, id primitive.ObjectID) (models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.list {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Category{}, store.ErrNotFound
}

func (f *fakeCategories) Create(_ context.Context, c *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Name = strings.TrimSpace(c.Name)
	for _, existing := range f.list {
		if existing.Name == c.Name {
			return store.ErrConflict
		}
	}
	c.ID = primitive.NewObjectID()
	c.Slug = models.Slugify(c.Name)
	f.list = append(f.list, *c)
	return nil
}

func (f *fakeCategories) Update(_ context.Context, c *models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.list {
		if f.list[i].ID == c.ID {
			f.list[i] = *c
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeCategories) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.list {
		if f.list[i].ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

/* ---------- orders ---------- */

// fakeOrders mirrors store.Orders against fakeProducts: stock is checked
// and decremented, restocking statuses put it back.
type fakeOrders struct {
	mu       sync.Mutex
	products *fakeProducts
	orders   map[primitive.ObjectID]models.Order
}

func newFakeOrders(products *fakeProducts) *fakeOrders {
	return &fakeOrders{products: products, orders: map[primitive.ObjectID]models.Order{}}
}

func (f *fakeOrders) Place(_ context.Context, o *models.Order, shipping pricing.ShippingPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products.mu.Lock()
	defer f.products.mu.Unlock()

	lines := make([]pricing.Line, 0, len(o.Items))
	for _, item := range o.Items {
		p, ok := f.products.products[item.ProductID]
		if !ok || p.IsDeleted || !p.IsActive {
			return &store.ProductNotFoundError{ProductID: item.ProductID}
		}
		if p.Stock < item.Quantity {
			return &store.OutOfStockError{ProductID: item.ProductID, Available: p.Stock, Requested: item.Quantity}
		}
	}

	now := time.Now().UTC()
	for i, item := range o.Items {
		p := f.products.products[item.ProductID]
		p.Stock -= item.Quantity
		f.products.products[item.ProductID] = p

		unit := pricing.EffectivePrice(p.Price, p.SaleEnabled, p.SalePrice)
		o.Items[i].Name = p.Name
		o.Items[i].Price = unit
		o.Items[i].LineTotal = pricing.LineTotal(unit, item.Quantity)
		lines = append(lines, pricing.Line{UnitPrice: unit, Quantity: item.Quantity})
	}

	quote := pricing.QuoteLines(lines, shipping)
	o.ID = primitive.NewObjectID()
	o.Ref = store.NewOrderRef(now)
	o.Subtotal, o.ShippingFee, o.Total = quote.Subtotal, quote.ShippingFee, quote.Total
	o.Status = models.OrderStatusPending
	o.PaymentStatus = models.PaymentStatusPending
	o.StatusHistory = []models.StatusChange{{Status: models.OrderStatusPending, At: now}}
	o.CreatedAt, o.UpdatedAt = now, now
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrders) Get(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) List(_ context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Order, 0)
	for _, o := range f.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id primitive.ObjectID, to models.OrderStatus, by string, allowedFrom ...models.OrderStatus) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.Order{}, store.ErrNotFound
	}
	allowed := len(allowedFrom) == 0
	for _, s := range allowedFrom {
		if s == o.Status {
			allowed = true
		}
	}
	if !allowed || !models.CanTransition(o.Status, to) {
		return models.Order{}, store.ErrInvalidTransition
	}

	o.Status = to
	o.StatusHistory = append(o.StatusHistory, models.StatusChange{Status: to, At: time.Now().UTC(), By: by})
	if to.Restocks() {
		f.products.mu.Lock()
		for _, item := range o.Items {
			p := f.products.products[item.ProductID]
			p.Stock += item.Quantity
			f.products.products[item.ProductID] = p
		}
		f.products.mu.Unlock()
	}
	f.orders[id] = o
	return o, nil
}

func (f *fakeOrders) AttachRazorpayOrder(_ context.Context, id primitive.ObjectID, razorpayOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.PaymentStatus == models.PaymentStatusPaid {
		return store.ErrConflict
	}
	o.Payment.RazorpayOrderID = razorpayOrderID
	o.Payment.FailureReason = ""
	if !containsString(o.Payment.RazorpayOrderIDs, razorpayOrderID) {
		o.Payment.RazorpayOrderIDs = append(o.Payment.RazorpayOrderIDs, razorpayOrderID)
	}
	o.PaymentStatus = models.PaymentStatusPending
	f.orders[id] = o
	return nil
}

func (f *fakeOrders) FindByRazorpayOrder(_ context.Context, razorpayOrderID string) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Payment.RazorpayOrderID == razorpayOrderID || containsString(o.Payment.RazorpayOrderIDs, razorpayOrderID) {
			return o, nil
		}
	}
	return models.Order{}, store.ErrNotFound
}

func (f *fakeOrders) MarkPaid(_ context.Context, id primitive.ObjectID, paymentID string) (models.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.Order{}, false, store.ErrNotFound
	}
	if o.PaymentStatus == models.PaymentStatusPaid {
		return o, false, nil
	}
	now := time.Now().UTC()
	o.PaymentStatus = models.PaymentStatusPaid
	o.Payment.RazorpayPaymentID = paymentID
	o.Payment.PaidAt = &now
	if o.Status == models.OrderStatusPending {
		o.Status = models.OrderStatusConfirmed
		o.StatusHistory = append(o.StatusHistory, models.StatusChange{Status: models.OrderStatusConfirmed, At: now, By: "payment"})
	}
	f.orders[id] = o
	return o, true, nil
}

func (f *fakeOrders) MarkRefunded(_ context.Context, id primitive.ObjectID, refundID string) (models.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return models.Order{}, false, store.ErrNotFound
	}
	if o.PaymentStatus != models.PaymentStatusPaid {
		return o, false, nil
	}
	now := time.Now().UTC()
	o.PaymentStatus = models.PaymentStatusRefunded
	o.Payment.RazorpayRefundID = refundID
	o.Payment.RefundedAt = &now
	f.orders[id] = o
	return o, true, nil
}

func (f *fakeOrders) MarkPaymentFailed(_ context.Context, id primitive.ObjectID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if ok && o.PaymentStatus == models.PaymentStatusPending {
		o.PaymentStatus = models.PaymentStatusFailed
		o.Payment.FailureReason = reason
		f.orders[id] = o
	}
	return nil
}

func (f *fakeOrders) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeOrders) put(o models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

/* ---------- redis-backed ---------- */

type fakeCart struct {
	mu    sync.Mutex
	lines map[string]map[string]int
}

func newFakeCart() *fakeCart {
	return &fakeCart{lines: map[string]map[string]int{}}
}

func (f *fakeCart) Items(_ context.Context, userID string) ([]redisx.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]redisx.CartLine, 0, len(f.lines[userID]))
	for id, qty := range f.lines[userID] {
		out = append(out, redisx.CartLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (f *fakeCart) SetItem(_ context.Context, userID, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lines[userID] == nil {
		f.lines[userID] = map[string]int{}
	}
	if quantity <= 0 {
		delete(f.lines[userID], productID)
		return nil
	}
	f.lines[userID][productID] = quantity
	return nil
}

func (f *fakeCart) AddItem(_ context.Context, userID, productID string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lines[userID] == nil {
		f.lines[userID] = map[string]int{}
	}
	f.lines[userID][productID] += delta
	return f.lines[userID][productID], nil
}

func (f *fakeCart) Quantity(_ context.Context, userID, productID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines[userID][productID], nil
}

func (f *fakeCart) RemoveItem(_ context.Context, userID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines[userID], productID)
	return nil
}

func (f *fakeCart) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, userID)
	return nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) Reserve(_ context.Context, userID, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := userID + ":" + key
	v, ok := f.keys[k]
	switch {
	case !ok:
		f.keys[k] = ""
		return "", nil
	case v == "":
		return "", redisx.ErrInFlight
	default:
		return v, nil
	}
}

func (f *fakeIdempotency) Complete(_ context.Context, userID, key, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[userID+":"+key] = orderID
	return nil
}

func (f *fakeIdempotency) Release(_ context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, userID+":"+key)
	return nil
}

/* ---------- side channels ---------- */

type recordedEvent struct {
	Topic   string
	Key     string
	Payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEmitter) Emit(_ context.Context, topic, key string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Topic: topic, Key: key, Payload: payload})
}

func (r *recordingEmitter) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}

type recordingHub struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHub) Broadcast(event string, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, event)
}

func (h *recordingHub) ServeWS(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("live"))
}

/* ---------- harness ---------- */

type testEnv struct {
	t          *testing.T
	deps       Dependencies
	router     *gin.Engine
	users      *fakeUsers
	tokens     *fakeRefreshTokens
	addresses  *fakeAddresses
	products   *fakeProducts
	categories *fakeCategories
	orders     *fakeOrders
	cart       *fakeCart
	idem       *fakeIdempotency
	events     *recordingEmitter
	hub        *recordingHub
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:             testSecret,
		AccessTokenTTL:        15 * time.Minute,
		RefreshTokenTTL:       24 * time.Hour,
		CORSOrigins:           []string{"http://localhost:5173"},
		Currency:              "INR",
		ShippingFee:           49,
		FreeShippingThreshold: 499,
		ServiceName:           "storefront-test",
	}
}

// newTestEnv builds a router over in-memory stores. mutate may adjust the
// dependencies (e.g. install a payment gateway) before routes are mounted.
func newTestEnv(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()
	products := newFakeProducts()
	env := &testEnv{
		t:          t,
		users:      newFakeUsers(),
		tokens:     newFakeRefreshTokens(),
		addresses:  &fakeAddresses{},
		products:   products,
		categories: &fakeCategories{},
		orders:     newFakeOrders(products),
		cart:       newFakeCart(),
		idem:       newFakeIdempotency(),
		events:     &recordingEmitter{},
		hub:        &recordingHub{},
	}
	env.deps = Dependencies{
		Config:        testConfig(),
		Users:         env.users,
		RefreshTokens: env.tokens,
		Addresses:     env.addresses,
		Products:      env.products,
		Categories:    env.categories,
		Orders:        env.orders,
		Cart:          env.cart,
		Idempotency:   env.idem,
		Hub:           env.hub,
		Events:        env.events,
		HealthChecks:  map[string]HealthCheck{},
	}
	if mutate != nil {
		mutate(&env.deps)
	}
	env.router = NewRouter(env.deps)
	return env
}

func (e *testEnv) addUser(role string) models.User {
	e.t.Helper()
	u := models.User{Name: "Test " + role, Email: primitive.NewObjectID().Hex() + "@example.com", Role: role}
	require.NoError(e.t, e.users.Create(context.Background(), &u))
	return u
}

func (e *testEnv) tokenFor(u models.User) string {
	e.t.Helper()
	issuer := tokenIssuer{secret: testSecret, accessTTL: time.Minute}
	token, err := issuer.accessToken(u, time.Now())
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) addProduct(name string, price float64, stock int) models.Product {
	e.t.Helper()
	p := models.Product{
		Name:     name,
		Price:    price,
		Stock:    stock,
		IsActive: true,
		Category: models.StringList{"Grocery"},
	}
	require.NoError(e.t, e.products.Create(context.Background(), &p))
	return p
}

func (e *testEnv) addAddress(u models.User) models.Address {
	e.t.Helper()
	a := models.Address{UserID: u.ID, Label: "Home", Line1: "1 Main St", City: "Pune", State: "MH", Country: "IN", ZipCode: "411001"}
	require.NoError(e.t, e.addresses.Create(context.Background(), &a))
	return a
}

func (e *testEnv) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
