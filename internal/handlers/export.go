package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"

	"storefront/internal/models"
	"storefront/internal/pricing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var productExportHeaders = []string{
	"ID", "Name", "Brand", "Category", "Price", "SaleEnabled", "SalePrice",
	"EffectivePrice", "Stock", "Active", "ImageURL", "CreatedAt", "UpdatedAt",
}

func productsWorkbook(products []models.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range productExportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID.Hex())
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Brand)
		row.AddCell().SetValue(strings.Join(p.Category, ", "))
		row.AddCell().SetValue(p.Price)
		row.AddCell().SetValue(p.SaleEnabled)
		row.AddCell().SetValue(p.SalePrice)
		row.AddCell().SetValue(pricing.EffectivePrice(p.Price, p.SaleEnabled, p.SalePrice))
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetValue(p.IsActive)
		row.AddCell().SetValue(p.ImageURL)
		row.AddCell().SetValue(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return file, nil
}

// ExportProducts streams every non-deleted product as an xlsx workbook.
func ExportProducts(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/products/export"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		list, err := products.All(ctx)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		file, err := productsWorkbook(list)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		var buf bytes.Buffer
		if err := file.Write(&buf); err != nil {
			respondInternal(c, route, err)
			return
		}

		filename := fmt.Sprintf("products-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}
