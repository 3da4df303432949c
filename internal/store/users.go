package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/database"
	"storefront/internal/models"
)

type Users struct {
	col *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{col: db.Collection(database.UsersCollection)}
}

// Create inserts u and fills its ID. A duplicate email yields ErrConflict.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	u.CreatedAt, u.UpdatedAt = now, now

	res, err := s.col.InsertOne(ctx, u)
	if err != nil {
		return translate(err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&u)
	return u, translate(err)
}

func (s *Users) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, translate(err)
}

// UpsertAdmin creates or promotes the account used for the admin panel.
func (s *Users) UpsertAdmin(ctx context.Context, email, name, passwordHash string) error {
	now := time.Now().UTC()
	_, err := s.col.UpdateOne(ctx,
		bson.M{"email": strings.ToLower(strings.TrimSpace(email))},
		bson.M{
			"$set": bson.M{
				"role":         models.RoleAdmin,
				"passwordHash": passwordHash,
				"updatedAt":    now,
			},
			"$setOnInsert": bson.M{"name": name, "createdAt": now},
		},
		optionsUpsert(),
	)
	return translate(err)
}
