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

type addressRequest struct {
	Label     string `json:"label"`
	Line1     string `json:"line1" binding:"required"`
	Line2     string `json:"line2"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state" binding:"required"`
	Country   string `json:"country"`
	ZipCode   string `json:"zipCode" binding:"required"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault"`
}

func (r addressRequest) toAddress() models.Address {
	country := strings.TrimSpace(r.Country)
	if country == "" {
		country = "IN"
	}
	label := strings.TrimSpace(r.Label)
	if label == "" {
		label = "Home"
	}
	return models.Address{
		Label:     label,
		Line1:     strings.TrimSpace(r.Line1),
		Line2:     strings.TrimSpace(r.Line2),
		City:      strings.TrimSpace(r.City),
		State:     strings.TrimSpace(r.State),
		Country:   country,
		ZipCode:   strings.TrimSpace(r.ZipCode),
		Phone:     strings.TrimSpace(r.Phone),
		IsDefault: r.IsDefault,
	}
}

func GetAddresses(addresses AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/addresses"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		list, err := addresses.List(ctx, userID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"addresses": list})
	}
}

func GetAddress(addresses AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid address id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		address, err := addresses.Get(ctx, userID, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "address not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, address)
	}
}

// CreateAddress stores a new address. With isDefault=true, or when it is
// the user's first address, it becomes the only default.
func CreateAddress(addresses AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/addresses"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		address := req.toAddress()
		address.UserID = userID

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := addresses.Create(ctx, &address); err != nil {
			if errors.Is(err, store.ErrConflict) {
				respondWithError(c, http.StatusConflict, route, "default address changed concurrently, retry")
				return
			}
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, address)
	}
}

func UpdateAddress(addresses AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid address id")
			return
		}

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		address := req.toAddress()
		address.ID = id
		address.UserID = userID

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		switch err := addresses.Update(ctx, &address); {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "address not found")
		case errors.Is(err, store.ErrConflict):
			respondWithError(c, http.StatusConflict, route, "default address changed concurrently, retry")
		case err != nil:
			respondInternal(c, route, err)
		default:
			c.JSON(http.StatusOK, address)
		}
	}
}

func SetDefaultAddress(addresses AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /api/addresses/:id/default"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid address id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		address, err := addresses.SetDefault(ctx, userID, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "address not found")
		case errors.Is(err, store.ErrConflict):
			respondWithError(c, http.StatusConflict, route, "default address changed concurrently, retry")
		case err != nil:
			respondInternal(c, route, err)
		default:
			c.JSON(http.StatusOK, address)
		}
	}
}

func DeleteAddress(addresses AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/addresses/:id"
		defer handlePanic(c, route)

		userID, ok := currentUserID(c, route)
		if !ok {
			return
		}
		id, ok := parseObjectIDParam(c, "id")
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid address id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		switch err := addresses.Delete(ctx, userID, id); {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "address not found")
		case err != nil:
			respondInternal(c, route, err)
		default:
			c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
		}
	}
}
