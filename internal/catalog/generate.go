package catalog

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

var (
	generatedCategories = []string{"Electronics", "Home", "Grocery", "Fashion", "Sports", "Books"}
	adjectives          = []string{"Classic", "Smart", "Organic", "Compact", "Premium", "Everyday", "Eco", "Pro"}
	nouns               = map[string][]string{
		"Electronics": {"Headphones", "Charger", "Speaker", "Keyboard"},
		"Home":        {"Lamp", "Cushion", "Kettle", "Planter"},
		"Grocery":     {"Basmati Rice", "Green Tea", "Almonds", "Honey"},
		"Fashion":     {"Kurta", "Sneakers", "Backpack", "Scarf"},
		"Sports":      {"Yoga Mat", "Cricket Bat", "Water Bottle", "Dumbbells"},
		"Books":       {"Cookbook", "Notebook", "Novel", "Atlas"},
	}
	brands = []string{"Acme", "Northwind", "Lumen", "Kairo", "Tanaka"}
)

// Generate returns n synthetic products. The same seed always yields the
// same products.
func Generate(n int, seed int64) []models.Product {
	rng := rand.New(rand.NewSource(seed))
	products := make([]models.Product, 0, n)

	for i := 0; i < n; i++ {
		category := generatedCategories[rng.Intn(len(generatedCategories))]
		noun := nouns[category][rng.Intn(len(nouns[category]))]
		adjective := adjectives[rng.Intn(len(adjectives))]

		// 99.00 .. 4999.00 in whole rupees
		price := decimal.NewFromInt(int64(99 + rng.Intn(4901)))

		p := models.Product{
			Name:        fmt.Sprintf("%s %s #%d", adjective, noun, i+1),
			Description: fmt.Sprintf("%s %s for everyday use.", adjective, noun),
			Brand:       brands[rng.Intn(len(brands))],
			Price:       price.InexactFloat64(),
			Category:    models.StringList{category},
			Stock:       rng.Intn(200),
			IsActive:    true,
		}

		if rng.Intn(4) == 0 {
			discount := decimal.NewFromInt(int64(5 + rng.Intn(36))).Div(decimal.NewFromInt(100))
			p.SaleEnabled = true
			p.SalePrice = price.Mul(decimal.NewFromInt(1).Sub(discount)).Round(2).InexactFloat64()
		}
		products = append(products, p)
	}
	return products
}

func GeneratedCategories() []string {
	return append([]string{}, generatedCategories...)
}
