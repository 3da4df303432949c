package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/database"
)

// testMongoURI points at a replica set; the stores use transactions.
// Start one with: docker run -d -p 27017:27017 mongo:7 --replSet rs0
// followed by: mongosh --eval 'rs.initiate()'
func testMongoURI() string {
	if uri := os.Getenv("MONGODB_TEST_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017/?directConnection=true"
}

// requireMongo skips the test unless a replica set is reachable and
// returns a fresh database with indexes applied. The database is dropped
// when the test ends.
func requireMongo(t *testing.T) *mongo.Database {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in -short mode")
	}
	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("Skipping integration test (SKIP_INTEGRATION=true)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(testMongoURI()).
		SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		t.Skipf("MongoDB is not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	var hello bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		t.Skipf("MongoDB is not available: %v", err)
	}
	if _, ok := hello["setName"]; !ok {
		t.Skip("MongoDB is not a replica set; transactions are unavailable")
	}

	db := client.Database("storefront_test_" + primitive.NewObjectID().Hex())
	require.NoError(t, database.EnsureIndexes(ctx, db))
	t.Cleanup(func() { _ = db.Drop(context.Background()) })
	return db
}

func insertRawProduct(t *testing.T, db *mongo.Database, doc bson.M) primitive.ObjectID {
	t.Helper()
	id := primitive.NewObjectID()
	doc["_id"] = id
	_, err := db.Collection(database.ProductsCollection).InsertOne(context.Background(), doc)
	require.NoError(t, err)
	return id
}

func rawStock(t *testing.T, db *mongo.Database, id primitive.ObjectID) int {
	t.Helper()
	var doc struct {
		Stock int `bson:"stock"`
	}
	require.NoError(t, db.Collection(database.ProductsCollection).FindOne(context.Background(), bson.M{"_id": id}).Decode(&doc))
	return doc.Stock
}
