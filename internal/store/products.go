package store

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
)

type Products struct {
	col *mongo.Collection
}

func NewProducts(db *mongo.Database) *Products {
	return &Products{col: db.Collection(database.ProductsCollection)}
}

func productFilter(f models.ProductFilter) bson.M {
	filter := bson.M{"isDeleted": bson.M{"$ne": true}}

	switch {
	case f.Active != nil:
		filter["isActive"] = *f.Active
	case !f.IncludeHidden:
		filter["isActive"] = bson.M{"$ne": false}
	}

	if category := strings.TrimSpace(f.Category); category != "" {
		filter["category"] = bson.M{"$in": []string{category}}
	}

	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = []bson.M{
			{"name": pattern},
			{"brand": pattern},
			{"description": pattern},
		}
	}
	return filter
}

// List returns one page of products and the total matching the filter.
func (s *Products) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	filter := productFilter(f)

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := s.col.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *Products) Get(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	var raw bson.M
	if err := s.col.FindOne(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}}).Decode(&raw); err != nil {
		return models.Product{}, translate(err)
	}
	return normalizeProductDocument(raw)
}

// GetMany returns the live products among ids, in no particular order.
func (s *Products) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "isDeleted": bson.M{"$ne": true}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeProducts(ctx, cursor)
}

// All streams every non-deleted product, used by the admin export.
func (s *Products) All(ctx context.Context) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.col.Find(ctx, bson.M{"isDeleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeProducts(ctx, cursor)
}

func (s *Products) Create(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.IsDeleted = false

	res, err := s.col.InsertOne(ctx, p)
	if err != nil {
		return translate(err)
	}
	p.ID = res.InsertedID.(primitive.ObjectID)
	decorateProduct(p)
	return nil
}

// Replace writes the editable fields of p and reloads it. Stock is only
// written when setStock is true: checkout moves it with $inc, and an
// edit that did not touch stock must not overwrite a concurrent decrement.
func (s *Products) Replace(ctx context.Context, p *models.Product, setStock bool) error {
	fields := bson.M{
		"name":        p.Name,
		"price":       p.Price,
		"saleEnabled": p.SaleEnabled,
		"salePrice":   p.SalePrice,
		"category":    p.Category,
		"description": p.Description,
		"brand":       p.Brand,
		"imageUrl":    p.ImageURL,
		"isActive":    p.IsActive,
		"updatedAt":   time.Now().UTC(),
	}
	if setStock {
		fields["stock"] = p.Stock
	}

	var raw bson.M
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": p.ID, "isDeleted": bson.M{"$ne": true}},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if err != nil {
		return translate(err)
	}
	fresh, err := normalizeProductDocument(raw)
	if err != nil {
		return err
	}
	*p = fresh
	return nil
}

func (s *Products) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"isDeleted": true, "isActive": false, "deletedAt": now, "updatedAt": now}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMany is used by the seed command.
func (s *Products) InsertMany(ctx context.Context, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, 0, len(products))
	now := time.Now().UTC()
	for i := range products {
		if products[i].CreatedAt.IsZero() {
			products[i].CreatedAt = now
		}
		products[i].UpdatedAt = now
		docs = append(docs, products[i])
	}
	res, err := s.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if res != nil {
		return len(res.InsertedIDs), translate(err)
	}
	return 0, translate(err)
}
