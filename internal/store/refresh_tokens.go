package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/database"
	"storefront/internal/models"
)

type RefreshTokens struct {
	col *mongo.Collection
}

func NewRefreshTokens(db *mongo.Database) *RefreshTokens {
	return &RefreshTokens{col: db.Collection(database.RefreshTokensCollection)}
}

func (s *RefreshTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.col.InsertOne(ctx, t)
	if err != nil {
		return translate(err)
	}
	t.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindActive returns the unrevoked token with the given hash. Expiry is
// left to the caller so it can revoke and report it.
func (s *RefreshTokens) FindActive(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := s.col.FindOne(ctx, bson.M{"tokenHash": tokenHash, "revoked": false}).Decode(&t)
	return t, translate(err)
}

// Revoke marks id revoked, recording its successor when rotating.
func (s *RefreshTokens) Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	set := bson.M{"revoked": true}
	if replacedBy != nil {
		set["replacedByToken"] = *replacedBy
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id, "revoked": false}, bson.M{"$set": set})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RefreshTokens) RevokeByHash(ctx context.Context, tokenHash string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"tokenHash": tokenHash, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
