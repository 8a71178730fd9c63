package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"htmlvault/internal/config"
)

// NewMongo connects to MongoDB and verifies the connection with a ping.
// It shares connectTimeout with NewPostgres.
func NewMongo(ctx context.Context, c config.MongoConfig) (*mongo.Client, error) {
	if c.URI == "" {
		return nil, fmt.Errorf("invalid mongo config: uri is required")
	}
	if c.Database == "" || c.Collection == "" {
		return nil, fmt.Errorf("invalid mongo config: database and collection are required")
	}

	ctx, cancel := withConnectTimeout(ctx)
	defer cancel()

	opts := options.Client().
		ApplyURI(c.URI).
		SetAppName(ApplicationName).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
