package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// UsersCollection is the collection holding account documents
const UsersCollection = "users"

// OpenMongo connects to MongoDB and verifies the connection against the primary
func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, nil
}

// EnsureMongoIndexes creates the unique email index and the sparse reset
// token lookup index. It is idempotent.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "reset_token_hash", Value: 1}},
			Options: options.Index().
				SetName("reset_token_hash").
				SetPartialFilterExpression(bson.M{"reset_token_hash": bson.M{"$type": "string"}}),
		},
	}

	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create mongodb indexes: %w", err)
	}

	return nil
}
