package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
	"storefront/internal/store"
)

type CategoryRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

func GetCategories(categories CategoryStore) gin.HandlerFunc {
	return listCategories("GET /api/categories", categories, true)
}

func AdminGetCategories(categories CategoryStore) gin.HandlerFunc {
	return listCategories("GET /api/admin/categories", categories, false)
}

func listCategories(route string, categories CategoryStore, activeOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		list, err := categories.List(ctx, activeOnly)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func CreateCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/categories"
		defer handlePanic(c, route)

		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		category := models.Category{Name: *req.Name, IsActive: true}
		if req.IsActive != nil {
			category.IsActive = *req.IsActive
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := categories.Create(ctx, &category); err != nil {
			if errors.Is(err, store.ErrConflict) {
				respondWithError(c, http.StatusConflict, route, "category already exists")
				return
			}
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func UpdateCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/categories/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.Name == nil && req.IsActive == nil {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		category, err := categories.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			category.Name = *req.Name
		}
		if req.IsActive != nil {
			category.IsActive = *req.IsActive
		}

		switch err := categories.Update(ctx, &category); {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "category not found")
		case errors.Is(err, store.ErrConflict):
			respondWithError(c, http.StatusConflict, route, "category already exists")
		case err != nil:
			respondInternal(c, route, err)
		default:
			c.JSON(http.StatusOK, category)
		}
	}
}

func DeleteCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/categories/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		switch err := categories.Delete(ctx, id); {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "category not found")
		case err != nil:
			respondInternal(c, route, err)
		default:
			c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
		}
	}
}
