package store

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
	"storefront/internal/pricing"
)

// normalizeProductDocument repairs fields that seed scripts wrote with the
// wrong BSON type before decoding into models.Product.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	for _, key := range []string{"isActive", "saleEnabled", "isDeleted"} {
		if val, ok := raw[key]; ok {
			if s, isString := val.(string); isString {
				raw[key] = strings.EqualFold(strings.TrimSpace(s), "true")
			}
		}
	}
	if _, ok := raw["isActive"]; !ok {
		raw["isActive"] = true
	}

	for _, key := range []string{"price", "salePrice"} {
		switch typed := raw[key].(type) {
		case int32:
			raw[key] = float64(typed)
		case int64:
			raw[key] = float64(typed)
		case nil, float64:
		default:
			raw[key] = 0.0
		}
	}

	switch typed := raw["stock"].(type) {
	case int32:
		raw["stock"] = int(typed)
	case int64:
		raw["stock"] = int(typed)
	case float64:
		raw["stock"] = int(typed)
	case int:
	default:
		raw["stock"] = 0
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}
	decorateProduct(&p)
	return p, nil
}

func decorateProduct(p *models.Product) {
	p.InStock = p.Stock > 0
	p.IsOnSale = pricing.IsOnSale(p.Price, p.SaleEnabled, p.SalePrice)
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
