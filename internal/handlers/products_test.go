package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"storefront/internal/models"
)

func TestPublicCatalogHidesInactiveProducts(t *testing.T) {
	env := newTestEnv(t, nil)
	visible := env.addProduct("Apple", 30, 10)
	hidden := env.addProduct("Banana", 10, 10)
	hidden.IsActive = false
	require.NoError(t, env.products.Replace(context.Background(), &hidden, false))

	w := env.do(http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[[]models.Product](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, visible.ID, list[0].ID)
	assert.True(t, list[0].InStock)

	w = env.do(http.MethodGet, "/api/products/"+hidden.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/products?page=1&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	paged := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 1, paged["pagination"].(map[string]any)["totalPages"])

	w = env.do(http.MethodGet, "/api/products?page=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	admin := env.tokenFor(env.addUser(models.RoleAdmin))
	w = env.do(http.MethodGet, "/api/admin/products", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, w)["pagination"].(map[string]any)["total"])
}

func TestAdminProductLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.tokenFor(env.addUser(models.RoleAdmin))
	require.NoError(t, env.categories.Create(context.Background(), &models.Category{Name: "Dairy", IsActive: true}))

	w := env.do(http.MethodPost, "/api/admin/products", admin, gin.H{
		"name": "Cheese", "price": 250.0, "stock": 4, "category": []string{"Unknown"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "category not found")

	w = env.do(http.MethodPost, "/api/admin/products", admin, gin.H{
		"name": "Cheese", "price": 250.0, "stock": 4, "category": []string{"Dairy"},
		"saleEnabled": true, "salePrice": 300.0,
	})
	require.Equal(t, http.StatusBadRequest, w.Code, "sale price above price")

	w = env.do(http.MethodPost, "/api/admin/products", admin, gin.H{
		"name": "Cheese", "price": 250.0, "stock": 4, "category": []string{"Dairy"},
		"saleEnabled": true, "salePrice": 200.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[models.Product](t, w)
	assert.True(t, created.IsOnSale)
	assert.True(t, created.IsActive)

	w = env.do(http.MethodPut, "/api/admin/products/"+created.ID.Hex(), admin, gin.H{"saleEnabled": false, "stock": 9})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[models.Product](t, w)
	assert.False(t, updated.IsOnSale)
	assert.Equal(t, 9, updated.Stock)
	assert.Equal(t, "Cheese", updated.Name)

	w = env.do(http.MethodDelete, "/api/admin/products/"+created.ID.Hex(), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/api/products/"+created.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodDelete, "/api/admin/products/"+created.ID.Hex(), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProductWithoutStockKeepsCurrentStock(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.tokenFor(env.addUser(models.RoleAdmin))
	p := env.addProduct("Rice", 60, 20)

	// a checkout lands between the admin loading the form and saving it
	env.products.setStock(p.ID, 17)

	w := env.do(http.MethodPut, "/api/admin/products/"+p.ID.Hex(), admin, gin.H{"price": 65.0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[models.Product](t, w)
	assert.Equal(t, 65.0, updated.Price)
	assert.Equal(t, 17, updated.Stock)
	assert.Equal(t, 17, env.products.stock(p.ID))

	w = env.do(http.MethodPut, "/api/admin/products/"+p.ID.Hex(), admin, gin.H{"stock": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated = decodeBody[models.Product](t, w)
	assert.Equal(t, 0, updated.Stock)
	assert.False(t, updated.InStock)
}

func TestAdminProductRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	customer := env.tokenFor(env.addUser(models.RoleUser))

	w := env.do(http.MethodPost, "/api/admin/products", customer, gin.H{"name": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, "/api/admin/products", "", gin.H{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCategoryAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.tokenFor(env.addUser(models.RoleAdmin))

	w := env.do(http.MethodPost, "/api/admin/categories", admin, gin.H{"name": "Fresh Fruit"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[models.Category](t, w)
	assert.Equal(t, "fresh-fruit", created.Slug)

	w = env.do(http.MethodPost, "/api/admin/categories", admin, gin.H{"name": "Fresh Fruit"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPut, "/api/admin/categories/"+created.ID.Hex(), admin, gin.H{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[[]models.Category](t, w))

	w = env.do(http.MethodGet, "/api/admin/categories", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]models.Category](t, w), 1)

	w = env.do(http.MethodDelete, "/api/admin/categories/"+created.ID.Hex(), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExportProducts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addProduct("Apple", 30, 10)
	env.addProduct("Mango", 80, 0)
	admin := env.tokenFor(env.addUser(models.RoleAdmin))

	w := env.do(http.MethodGet, "/api/admin/products/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=products-")

	book, err := xlsx.OpenBinary(w.Body.Bytes())
	require.NoError(t, err)
	sheet := book.Sheet["Products"]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "ID", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "Apple", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "Mango", sheet.Rows[2].Cells[1].Value)
}
