// Package catalog loads and generates product data for the seed command.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"storefront/internal/models"
	"storefront/internal/pricing"
)

type SeedFile struct {
	Categories []string      `yaml:"categories"`
	Products   []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Brand       string   `yaml:"brand"`
	Price       float64  `yaml:"price"`
	SalePrice   float64  `yaml:"salePrice"`
	Category    []string `yaml:"category"`
	ImageURL    string   `yaml:"imageUrl"`
	Stock       int      `yaml:"stock"`
	Active      *bool    `yaml:"active"`
}

func LoadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, err
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates a seed document. Unknown keys are
// rejected so typos do not silently drop fields.
func ParseSeed(data []byte) (SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}

	var errs []error
	for i, p := range f.Products {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("products[%d]: name is required", i))
		}
		if p.Price <= 0 {
			errs = append(errs, fmt.Errorf("products[%d]: price must be greater than 0", i))
		}
		if p.Stock < 0 {
			errs = append(errs, fmt.Errorf("products[%d]: stock must not be negative", i))
		}
		if p.SalePrice > 0 {
			if err := pricing.ValidateSaleFields(p.Price, true, p.SalePrice, true); err != nil {
				errs = append(errs, fmt.Errorf("products[%d]: %w", i, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return SeedFile{}, err
	}
	return f, nil
}

func (f SeedFile) ToProducts() []models.Product {
	products := make([]models.Product, 0, len(f.Products))
	for _, p := range f.Products {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		products = append(products, models.Product{
			Name:        strings.TrimSpace(p.Name),
			Description: p.Description,
			Brand:       p.Brand,
			Price:       p.Price,
			SaleEnabled: p.SalePrice > 0,
			SalePrice:   p.SalePrice,
			Category:    models.NormalizeList(p.Category),
			ImageURL:    p.ImageURL,
			Stock:       p.Stock,
			IsActive:    active,
		})
	}
	return products
}

// CategoryNames merges the declared categories with those referenced by
// products.
func (f SeedFile) CategoryNames() []string {
	names := append([]string{}, f.Categories...)
	for _, p := range f.Products {
		names = append(names, p.Category...)
	}
	return []string(models.NormalizeList(names))
}
