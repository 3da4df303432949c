package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/events"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/redisx"
	"storefront/internal/store"
)

const (
	maxOrderLines    = 50
	maxLineQuantity  = 99
	idempotencyLimit = 128
)

type createOrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=99"`
}

type createOrderRequest struct {
	Items         []createOrderItemRequest `json:"items" binding:"omitempty,dive"`
	FromCart      bool                     `json:"fromCart"`
	AddressID     string                   `json:"addressId"`
	PaymentMethod string                   `json:"paymentMethod" binding:"required,oneof=cod razorpay"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// mergeOrderItems folds duplicate product ids into one line.
func mergeOrderItems(items []createOrderItemRequest) ([]models.OrderItem, error) {
	if len(items) == 0 {
		return nil, errors.New("at least one item is required")
	}

	merged := make([]models.OrderItem, 0, len(items))
	index := make(map[primitive.ObjectID]int, len(items))
	for _, item := range items {
		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, errors.New("invalid productId")
		}
		if item.Quantity <= 0 {
			return nil, errors.New("quantity must be greater than zero")
		}
		if item.Quantity > maxLineQuantity {
			return nil, errors.New("quantity must be at most 99 per product")
		}
		if i, ok := index[productID]; ok {
			merged[i].Quantity += item.Quantity
			if merged[i].Quantity > maxLineQuantity {
				return nil, errors.New("quantity must be at most 99 per product")
			}
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, models.OrderItem{ProductID: productID, Quantity: item.Quantity})
	}
	if len(merged) > maxOrderLines {
		return nil, errors.New("too many items in one order")
	}
	return merged, nil
}

func cartToItems(lines []redisx.CartLine) []createOrderItemRequest {
	items := make([]createOrderItemRequest, 0, len(lines))
	for _, l := range lines {
		items = append(items, createOrderItemRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return items
}

func orderCreatedPayload(o models.Order) events.OrderCreatedPayload {
	items := make([]events.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, events.OrderItem{ProductID: it.ProductID.Hex(), Quantity: it.Quantity, Price: it.Price})
	}
	return events.OrderCreatedPayload{
		OrderID:       o.ID.Hex(),
		Ref:           o.Ref,
		UserID:        o.UserID.Hex(),
		Items:         items,
		Total:         o.Total,
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
	}
}

func announceStatusChange(ctx context.Context, d Dependencies, o models.Order, from models.OrderStatus, by string) {
	d.Events.Emit(ctx, events.TopicOrderStatusChanged, o.ID.Hex(), events.OrderStatusChangedPayload{
		OrderID: o.ID.Hex(),
		From:    string(from),
		To:      string(o.Status),
		By:      by,
	})
	d.Hub.Broadcast("order.status_changed", gin.H{
		"orderId": o.ID.Hex(),
		"ref":     o.Ref,
		"from":    from,
		"status":  o.Status,
	})
}

// previousStatus reads the status before the latest history entry.
func previousStatus(o models.Order, fallback models.OrderStatus) models.OrderStatus {
	if n := len(o.StatusHistory); n >= 2 {
		return o.StatusHistory[n-2].Status
	}
	return fallback
}

// resolveShippingAddress uses the requested address, or the default one
// when no id is given.
func resolveShippingAddress(ctx context.Context, c *gin.Context, route string, addresses AddressStore, userID primitive.ObjectID, rawID string) (models.Address, bool) {
	var (
		address models.Address
		err     error
	)
	if rawID = strings.TrimSpace(rawID); rawID != "" {
		id, perr := primitive.ObjectIDFromHex(rawID)
		if perr != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid addressId")
			return models.Address{}, false
		}
		address, err = addresses.Get(ctx, userID, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusBadRequest, route, "address not found")
			return models.Address{}, false
		}
	} else {
		address, err = addresses.Default(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusBadRequest, route, "shipping address required")
			return models.Address{}, false
		}
	}
	if err != nil {
		respondInternal(c, route, err)
		return models.Address{}, false
	}
	return address, true
}

/* =========================
   CREATE ORDER
========================= */

// CreateOrder prices and places an order. Prices always come from the
// catalog. With an Idempotency-Key header, a replay returns the first
// order's id with 200.
func CreateOrder(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.FromCart && len(req.Items) > 0 {
			respondWithError(c, http.StatusBadRequest, route, "send either items or fromCart, not both")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		requested := req.Items
		if req.FromCart {
			lines, err := d.Cart.Items(ctx, userID.Hex())
			if err != nil {
				respondInternal(c, route, err)
				return
			}
			if len(lines) == 0 {
				respondWithError(c, http.StatusBadRequest, route, "cart is empty")
				return
			}
			requested = cartToItems(lines)
		}

		items, err := mergeOrderItems(requested)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		address, ok := resolveShippingAddress(ctx, c, route, d.Addresses, userID, req.AddressID)
		if !ok {
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if len(idemKey) > idempotencyLimit {
			respondWithError(c, http.StatusBadRequest, route, "Idempotency-Key too long")
			return
		}
		if idemKey != "" && d.Idempotency != nil {
			existing, err := d.Idempotency.Reserve(ctx, userID.Hex(), idemKey)
			switch {
			case errors.Is(err, redisx.ErrInFlight):
				respondWithError(c, http.StatusConflict, route, "a request with this Idempotency-Key is in progress")
				return
			case err != nil:
				respondInternal(c, route, err)
				return
			case existing != "":
				c.JSON(http.StatusOK, gin.H{"orderId": existing, "idempotent": true})
				return
			}
		}

		order := models.Order{
			UserID:          userID,
			Items:           items,
			Currency:        d.Config.Currency,
			ShippingAddress: address.Snapshot(),
			PaymentMethod:   req.PaymentMethod,
		}

		if err := d.Orders.Place(ctx, &order, d.shippingPolicy()); err != nil {
			if idemKey != "" && d.Idempotency != nil {
				if rerr := d.Idempotency.Release(ctx, userID.Hex(), idemKey); rerr != nil {
					log.Println("[ORDER] [WARN] idempotency release failed:", rerr)
				}
			}

			var stockErr *store.OutOfStockError
			if errors.As(err, &stockErr) {
				respondWithErrorDetails(c, http.StatusConflict, route, "insufficient stock", gin.H{
					"productId": stockErr.ProductID.Hex(),
					"available": stockErr.Available,
					"requested": stockErr.Requested,
				})
				return
			}
			var notFoundErr *store.ProductNotFoundError
			if errors.As(err, &notFoundErr) {
				respondWithErrorDetails(c, http.StatusNotFound, route, "product not found", gin.H{
					"productId": notFoundErr.ProductID.Hex(),
				})
				return
			}
			respondInternal(c, route, err)
			return
		}

		if idemKey != "" && d.Idempotency != nil {
			if err := d.Idempotency.Complete(ctx, userID.Hex(), idemKey, order.ID.Hex()); err != nil {
				log.Println("[ORDER] [WARN] idempotency complete failed:", err)
			}
		}
		if req.FromCart {
			if err := d.Cart.Clear(ctx, userID.Hex()); err != nil {
				log.Println("[ORDER] [WARN] cart clear failed:", err)
			}
		}

		d.Events.Emit(ctx, events.TopicOrderCreated, order.ID.Hex(), orderCreatedPayload(order))
		d.Hub.Broadcast("order.created", order)

		log.Println("[ORDER] [INFO] order created:", order.Ref)
		c.JSON(http.StatusCreated, order)
	}
}

/* =========================
   READ
========================= */

func GetMyOrders(orders OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		listOrders(c, route, orders, &userID)
	}
}

func AdminGetOrders(orders OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/orders"
		defer handlePanic(c, route)

		var userID *primitive.ObjectID
		if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
			id, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid userId")
				return
			}
			userID = &id
		}
		listOrders(c, route, orders, userID)
	}
}

func listOrders(c *gin.Context, route string, orders OrderStore, userID *primitive.ObjectID) {
	page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, err.Error())
		return
	}

	filter := models.OrderFilter{UserID: userID, Page: page, Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		filter.Status = status
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	list, total, err := orders.List(ctx, filter)
	if err != nil {
		respondInternal(c, route, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       list,
		"pagination": paginationBody(page, limit, total),
	})
}

// loadOwnedOrder returns the order when the caller owns it or is an
// admin. Other users get 404 so order ids do not leak.
func loadOwnedOrder(ctx context.Context, c *gin.Context, route string, orders OrderStore) (models.Order, bool) {
	userID, ok := currentUserID(c, route)
	if !ok {
		return models.Order{}, false
	}
	id, ok := parseObjectIDParam(c, "id")
	if !ok {
		respondWithError(c, http.StatusBadRequest, route, "invalid order id")
		return models.Order{}, false
	}

	order, err := orders.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(c, http.StatusNotFound, route, "order not found")
		return models.Order{}, false
	}
	if err != nil {
		respondInternal(c, route, err)
		return models.Order{}, false
	}
	if order.UserID != userID && middleware.Role(c) != models.RoleAdmin {
		respondWithError(c, http.StatusNotFound, route, "order not found")
		return models.Order{}, false
	}
	return order, true
}

func GetOrder(orders OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/:id"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, ok := loadOwnedOrder(ctx, c, route, orders)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

/* =========================
   STATUS
========================= */

// CancelOrder lets the owner cancel while the order is still pending.
func CancelOrder(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders/:id/cancel"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		order, ok := loadOwnedOrder(ctx, c, route, d.Orders)
		if !ok {
			return
		}

		by := "user:" + order.UserID.Hex()
		updated, err := d.Orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled, by, models.OrderStatusPending)
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrConflict):
			respondWithError(c, http.StatusConflict, route, "only pending orders can be cancelled")
			return
		case err != nil:
			respondInternal(c, route, err)
			return
		}

		announceStatusChange(ctx, d, updated, order.Status, by)
		c.JSON(http.StatusOK, updated)
	}
}

// UpdateOrderStatus is the admin transition endpoint. The transition
// table lives in models.CanTransition.
func UpdateOrderStatus(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /api/orders/:id/status"
		defer handlePanic(c, route)

		adminID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		to, err := models.ParseOrderStatus(req.Status)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		current, err := d.Orders.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		by := "admin:" + adminID.Hex()
		updated, err := d.Orders.UpdateStatus(ctx, id, to, by)
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		case errors.Is(err, store.ErrInvalidTransition):
			respondWithErrorDetails(c, http.StatusConflict, route, "invalid status transition", gin.H{
				"from": current.Status,
				"to":   to,
			})
			return
		case errors.Is(err, store.ErrConflict):
			respondWithError(c, http.StatusConflict, route, "order was modified concurrently, retry")
			return
		case err != nil:
			respondInternal(c, route, err)
			return
		}

		from := previousStatus(updated, current.Status)
		log.Printf("[ORDER] [INFO] order %s %s -> %s", updated.Ref, from, updated.Status)
		announceStatusChange(ctx, d, updated, from, by)
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteOrder(orders OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/orders/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		switch err := orders.Delete(ctx, id); {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "order not found")
		case err != nil:
			respondInternal(c, route, err)
		default:
			c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
		}
	}
}

func LiveOrders(hub Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	}
}
