package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/redisx"
	"storefront/internal/store"
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=99"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0,max=99"`
}

type CartLineView struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
	Stock     int     `json:"stock"`
	Available bool    `json:"available"`
}

type CartView struct {
	Items       []CartLineView `json:"items"`
	Subtotal    float64        `json:"subtotal"`
	ShippingFee float64        `json:"shippingFee"`
	Total       float64        `json:"total"`
	Currency    string         `json:"currency"`
}

// priceCart joins the stored quantities with live catalog data. Lines whose
// product is gone or hidden, or that exceed stock, are returned with
// Available=false and left out of the totals.
func priceCart(ctx context.Context, products ProductStore, lines []redisx.CartLine, shipping pricing.ShippingPolicy, currency string) (CartView, error) {
	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, l := range lines {
		if id, err := primitive.ObjectIDFromHex(l.ProductID); err == nil {
			ids = append(ids, id)
		}
	}

	found, err := products.GetMany(ctx, ids)
	if err != nil {
		return CartView{}, err
	}
	byID := make(map[string]models.Product, len(found))
	for _, p := range found {
		byID[p.ID.Hex()] = p
	}

	view := CartView{Items: make([]CartLineView, 0, len(lines)), Currency: currency}
	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok || !p.IsActive {
			view.Items = append(view.Items, CartLineView{ProductID: l.ProductID, Quantity: l.Quantity})
			continue
		}
		unit := pricing.EffectivePrice(p.Price, p.SaleEnabled, p.SalePrice)
		available := p.Stock >= l.Quantity
		view.Items = append(view.Items, CartLineView{
			ProductID: l.ProductID,
			Name:      p.Name,
			ImageURL:  p.ImageURL,
			Price:     unit,
			Quantity:  l.Quantity,
			LineTotal: pricing.LineTotal(unit, l.Quantity),
			Stock:     p.Stock,
			Available: available,
		})
		if available {
			priced = append(priced, pricing.Line{UnitPrice: unit, Quantity: l.Quantity})
		}
	}

	quote := pricing.QuoteLines(priced, shipping)
	view.Subtotal, view.ShippingFee, view.Total = quote.Subtotal, quote.ShippingFee, quote.Total
	return view, nil
}

func GetCart(cart CartStore, products ProductStore, shipping pricing.ShippingPolicy, currency string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		lines, err := cart.Items(ctx, userID.Hex())
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		view, err := priceCart(ctx, products, lines, shipping, currency)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// loadPurchasable returns the product if it can be put in a cart.
func loadPurchasable(ctx context.Context, c *gin.Context, route string, products ProductStore, rawID string) (models.Product, bool) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid productId")
		return models.Product{}, false
	}
	product, err := products.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !product.IsActive) {
		respondWithError(c, http.StatusNotFound, route, "product not found")
		return models.Product{}, false
	}
	if err != nil {
		respondInternal(c, route, err)
		return models.Product{}, false
	}
	return product, true
}

func respondOutOfStock(c *gin.Context, route string, available int) {
	respondWithErrorDetails(c, http.StatusConflict, route, "insufficient stock", gin.H{"available": available})
}

// AddCartItem increments the line by quantity, up to the per-product
// limit checkout accepts.
func AddCartItem(cart CartStore, products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/cart/items"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req cartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		product, ok := loadPurchasable(ctx, c, route, products, req.ProductID)
		if !ok {
			return
		}

		current, err := cart.Quantity(ctx, userID.Hex(), product.ID.Hex())
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if current+req.Quantity > maxLineQuantity {
			respondWithErrorDetails(c, http.StatusBadRequest, route, "quantity must be at most 99 per product", gin.H{"current": current})
			return
		}
		if current+req.Quantity > product.Stock {
			respondOutOfStock(c, route, product.Stock)
			return
		}

		qty, err := cart.AddItem(ctx, userID.Hex(), product.ID.Hex(), req.Quantity)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, redisx.CartLine{ProductID: product.ID.Hex(), Quantity: qty})
	}
}

// UpdateCartItem sets an absolute quantity; zero removes the line.
func UpdateCartItem(cart CartStore, products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/cart/items/:productId"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req cartQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		productID := c.Param("productId")
		if *req.Quantity == 0 {
			if err := cart.RemoveItem(ctx, userID.Hex(), productID); err != nil {
				respondInternal(c, route, err)
				return
			}
			c.JSON(http.StatusOK, redisx.CartLine{ProductID: productID, Quantity: 0})
			return
		}

		product, ok := loadPurchasable(ctx, c, route, products, productID)
		if !ok {
			return
		}
		if *req.Quantity > product.Stock {
			respondOutOfStock(c, route, product.Stock)
			return
		}

		if err := cart.SetItem(ctx, userID.Hex(), product.ID.Hex(), *req.Quantity); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, redisx.CartLine{ProductID: product.ID.Hex(), Quantity: *req.Quantity})
	}
}

func RemoveCartItem(cart CartStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart/items/:productId"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := cart.RemoveItem(ctx, userID.Hex(), c.Param("productId")); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "item removed"})
	}
}

func ClearCart(cart CartStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/cart"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := cart.Clear(ctx, userID.Hex()); err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
	}
}
