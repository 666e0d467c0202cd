package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB client wrapper
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect establishes a connection to MongoDB and bootstraps indexes.
func Connect(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m := &MongoDB{
		client:   client,
		database: client.Database(dbName),
	}

	if err := m.createIndexes(); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return m, nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Collection returns a collection instance
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

func (m *MongoDB) createIndexes() error {
	ctx := context.Background()

	userIndexes := []mongo.IndexModel{
		{Keys: bson.M{"email": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.M{"created_at": -1}},
	}
	if _, err := m.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	// The share token index is partial so records whose stale token was
	// cleared do not collide on the empty string.
	fileIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "folder_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_trashed", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_favorite", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "size", Value: -1}}},
		{
			Keys: bson.M{"share_token": 1},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"share_token": bson.M{"$gt": ""}},
			),
		},
	}
	if _, err := m.Collection("files").Indexes().CreateMany(ctx, fileIndexes); err != nil {
		return fmt.Errorf("failed to create file indexes: %w", err)
	}

	// Path uniqueness only holds among non-trashed folders; a trashed
	// namesake must not block recreating the folder.
	folderIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "path", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"is_trashed": false},
			),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "parent_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_trashed", Value: 1}}},
	}
	if _, err := m.Collection("folders").Indexes().CreateMany(ctx, folderIndexes); err != nil {
		return fmt.Errorf("failed to create folder indexes: %w", err)
	}

	return nil
}

// NewRepositories creates the MongoDB-backed repository set.
func NewRepositories(mongodb *MongoDB) *Repository {
	return &Repository{
		User:   NewUserRepository(mongodb),
		File:   NewFileRepository(mongodb),
		Folder: NewFolderRepository(mongodb),
	}
}
