package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection         = "users"
	RefreshTokensCollection = "refresh_tokens"
	AddressesCollection     = "addresses"
	ProductsCollection      = "products"
	CategoriesCollection    = "categories"
	OrdersCollection        = "orders"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{UsersCollection, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		}}},
		{RefreshTokensCollection, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "tokenHash", Value: 1}},
				Options: options.Index().SetName("tokenHash_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
			},
		}},
		{AddressesCollection, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
				Options: options.Index().SetName("userId_updatedAt"),
			},
			{
				// Storage-level guard for "one default address per user".
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetName("userId_default_unique").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isDefault": true}),
			},
		}},
		{ProductsCollection, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("category_createdAt"),
			},
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetName("name_index"),
			},
		}},
		{CategoriesCollection, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_unique").SetUnique(true),
		}}},
		{OrdersCollection, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("userId_createdAt"),
			},
			{
				Keys:    bson.D{{Key: "ref", Value: 1}},
				Options: options.Index().SetName("ref_unique").SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "payment.razorpayOrderId", Value: 1}},
				Options: options.Index().
					SetName("razorpayOrderId_index").
					SetPartialFilterExpression(bson.M{"payment.razorpayOrderId": bson.M{"$exists": true}}),
			},
			{
				Keys:    bson.D{{Key: "payment.razorpayOrderIds", Value: 1}},
				Options: options.Index().SetName("razorpayOrderIds_index"),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("status_createdAt"),
			},
		}},
	}
}

// EnsureIndexes creates every index the stores rely on. It stops at the
// first failing collection.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, plan := range indexPlan() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		names, err := db.Collection(plan.collection).Indexes().CreateMany(ctx, plan.models)
		cancel()
		if err != nil {
			log.Printf("[DB] [ERROR] %s indexes: %v", plan.collection, err)
			return fmt.Errorf("ensure %s indexes: %w", plan.collection, err)
		}
		log.Printf("[DB] [INFO] %s indexes ready: %v", plan.collection, names)
	}
	return nil
}
