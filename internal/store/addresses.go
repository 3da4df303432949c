package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
	"storefront/internal/models"
)

// Addresses keeps the address book. Every write that touches isDefault
// runs in a transaction, and the partial unique index on
// {userId} where isDefault=true rejects any interleaving that slips past.
type Addresses struct {
	client *mongo.Client
	col    *mongo.Collection
}

func NewAddresses(db *mongo.Database) *Addresses {
	return &Addresses{client: db.Client(), col: db.Collection(database.AddressesCollection)}
}

func (s *Addresses) List(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "isDefault", Value: -1}, {Key: "updatedAt", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	addresses := make([]models.Address, 0)
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (s *Addresses) Get(ctx context.Context, userID, id primitive.ObjectID) (models.Address, error) {
	var a models.Address
	err := s.col.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&a)
	return a, translate(err)
}

func (s *Addresses) Default(ctx context.Context, userID primitive.ObjectID) (models.Address, error) {
	var a models.Address
	err := s.col.FindOne(ctx, bson.M{"userId": userID, "isDefault": true}).Decode(&a)
	return a, translate(err)
}

// Create inserts a. The user's first address always becomes the default;
// a new default clears the previous one in the same transaction.
func (s *Addresses) Create(ctx context.Context, a *models.Address) error {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.CreatedAt, a.UpdatedAt = now, now

	err := withTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		count, err := s.col.CountDocuments(sessCtx, bson.M{"userId": a.UserID})
		if err != nil {
			return err
		}
		if count == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if err := s.clearDefault(sessCtx, a.UserID, now); err != nil {
				return err
			}
		}
		_, err = s.col.InsertOne(sessCtx, a)
		return err
	})
	return translate(err)
}

// Update replaces the editable fields of a. The current default stays
// default; moving the flag happens by promoting another address.
func (s *Addresses) Update(ctx context.Context, a *models.Address) error {
	now := time.Now().UTC()

	err := withTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		var existing models.Address
		if err := s.col.FindOne(sessCtx, bson.M{"_id": a.ID, "userId": a.UserID}).Decode(&existing); err != nil {
			return err
		}
		if existing.IsDefault {
			a.IsDefault = true
		}
		if a.IsDefault && !existing.IsDefault {
			if err := s.clearDefault(sessCtx, a.UserID, now); err != nil {
				return err
			}
		}
		a.CreatedAt, a.UpdatedAt = existing.CreatedAt, now

		_, err := s.col.UpdateOne(sessCtx, bson.M{"_id": a.ID, "userId": a.UserID}, bson.M{"$set": bson.M{
			"label":     a.Label,
			"line1":     a.Line1,
			"line2":     a.Line2,
			"city":      a.City,
			"state":     a.State,
			"country":   a.Country,
			"zipCode":   a.ZipCode,
			"phone":     a.Phone,
			"isDefault": a.IsDefault,
			"updatedAt": now,
		}})
		return err
	})
	return translate(err)
}

func (s *Addresses) SetDefault(ctx context.Context, userID, id primitive.ObjectID) (models.Address, error) {
	now := time.Now().UTC()
	var updated models.Address

	err := withTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		if err := s.col.FindOne(sessCtx, bson.M{"_id": id, "userId": userID}).Err(); err != nil {
			return err
		}
		if err := s.clearDefault(sessCtx, userID, now); err != nil {
			return err
		}
		return s.col.FindOneAndUpdate(sessCtx,
			bson.M{"_id": id, "userId": userID},
			bson.M{"$set": bson.M{"isDefault": true, "updatedAt": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
	})
	return updated, translate(err)
}

// Delete removes the address. Deleting the default promotes the most
// recently updated remaining address.
func (s *Addresses) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	err := withTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
		var removed models.Address
		if err := s.col.FindOneAndDelete(sessCtx, bson.M{"_id": id, "userId": userID}).Decode(&removed); err != nil {
			return err
		}
		if !removed.IsDefault {
			return nil
		}

		opts := options.FindOneAndUpdate().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
		err := s.col.FindOneAndUpdate(sessCtx,
			bson.M{"userId": userID},
			bson.M{"$set": bson.M{"isDefault": true, "updatedAt": time.Now().UTC()}},
			opts,
		).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	})
	return translate(err)
}

func (s *Addresses) clearDefault(ctx context.Context, userID primitive.ObjectID, now time.Time) error {
	_, err := s.col.UpdateMany(ctx,
		bson.M{"userId": userID, "isDefault": true},
		bson.M{"$set": bson.M{"isDefault": false, "updatedAt": now}},
	)
	return err
}
