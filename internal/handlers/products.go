package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

/*
GET /api/products
- pagination is optional; without page+limit the whole catalog is returned
- hidden and deleted products never appear
*/
func GetProducts(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products"
		defer handlePanic(c, route)

		filter := models.ProductFilter{
			Category: c.Query("category"),
			Search:   c.Query("search"),
		}

		pageStr, limitStr := c.Query("page"), c.Query("limit")
		paged := pageStr != "" || limitStr != ""
		if paged {
			page, limit, err := parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			filter.Page, filter.Limit = page, limit
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		list, total, err := products.List(ctx, filter)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Printf("[%s] returning %d products", route, len(list))
		if !paged {
			c.JSON(http.StatusOK, list)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":       list,
			"pagination": paginationBody(filter.Page, filter.Limit, total),
		})
	}
}

func GetProduct(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid product id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		product, err := products.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !product.IsActive) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

/* =======================
   ADMIN
======================= */

type ProductRequest struct {
	Name        *string   `json:"name"`
	Price       *float64  `json:"price"`
	SaleEnabled *bool     `json:"saleEnabled"`
	SalePrice   *float64  `json:"salePrice"`
	Category    *[]string `json:"category"`
	Description *string   `json:"description"`
	Brand       *string   `json:"brand"`
	ImageURL    *string   `json:"imageUrl"`
	Stock       *int      `json:"stock"`
	IsActive    *bool     `json:"isActive"`
}

// resolveCategories keeps only names that exist as categories, in the
// order given.
func resolveCategories(ctx context.Context, categories CategoryStore, names []string) (models.StringList, error) {
	wanted := models.NormalizeList(names)
	if len(wanted) == 0 {
		return nil, errors.New("category required")
	}
	known, err := categories.List(ctx, false)
	if err != nil {
		return nil, err
	}
	exists := make(map[string]struct{}, len(known))
	for _, c := range known {
		exists[c.Name] = struct{}{}
	}
	for _, name := range wanted {
		if _, ok := exists[name]; !ok {
			return nil, fmt.Errorf("category not found: %s", name)
		}
	}
	return wanted, nil
}

func applyProductText(p *models.Product, req ProductRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return errors.New("name required")
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Brand != nil {
		p.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return errors.New("stock must be zero or greater")
		}
		p.Stock = *req.Stock
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return nil
}

func AdminGetProducts(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := models.ProductFilter{
			Category:      c.Query("category"),
			Search:        c.Query("search"),
			IncludeHidden: true,
			Page:          page,
			Limit:         limit,
		}
		if isActive := strings.TrimSpace(c.Query("isActive")); isActive != "" {
			active := strings.EqualFold(isActive, "true")
			filter.Active = &active
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		list, total, err := products.List(ctx, filter)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":       list,
			"pagination": paginationBody(page, limit, total),
		})
	}
}

func CreateProduct(products ProductStore, categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/products"
		defer handlePanic(c, route)

		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.Name == nil {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}
		if req.Price == nil {
			respondWithError(c, http.StatusBadRequest, route, "price required")
			return
		}
		if req.Stock == nil {
			respondWithError(c, http.StatusBadRequest, route, "stock required")
			return
		}
		if req.Category == nil {
			respondWithError(c, http.StatusBadRequest, route, "category required")
			return
		}

		product := models.Product{IsActive: true}
		if err := applyProductText(&product, req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		sale, err := pricing.ResolveSaleUpdate(0, false, 0, pricing.SaleUpdateInput{
			Price:       req.Price,
			SaleEnabled: req.SaleEnabled,
			SalePrice:   req.SalePrice,
		})
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		product.Price, product.SaleEnabled, product.SalePrice = sale.Price, sale.SaleEnabled, sale.SalePrice

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		product.Category, err = resolveCategories(ctx, categories, *req.Category)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		if err := products.Create(ctx, &product); err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Printf("[%s] product created: %s", route, product.ID.Hex())
		c.JSON(http.StatusCreated, product)
	}
}

// UpdateProduct applies a partial update. Sale fields are merged with the
// stored ones before validation.
func UpdateProduct(products ProductStore, categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/products/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		product, err := products.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if err := applyProductText(&product, req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		sale, err := pricing.ResolveSaleUpdate(product.Price, product.SaleEnabled, product.SalePrice, pricing.SaleUpdateInput{
			Price:       req.Price,
			SaleEnabled: req.SaleEnabled,
			SalePrice:   req.SalePrice,
		})
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		product.Price, product.SaleEnabled, product.SalePrice = sale.Price, sale.SaleEnabled, sale.SalePrice

		if req.Category != nil {
			product.Category, err = resolveCategories(ctx, categories, *req.Category)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
		}

		if err := products.Replace(ctx, &product, req.Stock != nil); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func DeleteProduct(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/products/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		switch err := products.SoftDelete(ctx, id); {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "product not found")
		case err != nil:
			respondInternal(c, route, err)
		default:
			c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
		}
	}
}
