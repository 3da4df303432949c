package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
)

type Categories struct {
	col *mongo.Collection
}

func NewCategories(db *mongo.Database) *Categories {
	return &Categories{col: db.Collection(database.CategoriesCollection)}
}

func (s *Categories) List(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	categories := make([]models.Category, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Categories) Get(ctx context.Context, id primitive.ObjectID) (models.Category, error) {
	var c models.Category
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	return c, translate(err)
}

// Create inserts c; the unique name index turns duplicates into ErrConflict.
func (s *Categories) Create(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = models.Slugify(c.Name)
	c.CreatedAt = time.Now().UTC()

	res, err := s.col.InsertOne(ctx, c)
	if err != nil {
		return translate(err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Categories) Update(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = models.Slugify(c.Name)
	c.UpdatedAt = time.Now().UTC()

	res, err := s.col.UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{"$set": bson.M{
		"name":      c.Name,
		"slug":      c.Slug,
		"isActive":  c.IsActive,
		"updatedAt": c.UpdatedAt,
	}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Categories) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureNames creates any missing active categories by name; the seed
// command uses it before inserting products.
func (s *Categories) EnsureNames(ctx context.Context, names []string) error {
	now := time.Now().UTC()
	for _, name := range models.NormalizeList(names) {
		_, err := s.col.UpdateOne(ctx,
			bson.M{"name": name},
			bson.M{"$setOnInsert": bson.M{
				"name":      name,
				"slug":      models.Slugify(name),
				"isActive":  true,
				"createdAt": now,
			}},
			optionsUpsert(),
		)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}
