package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

type folderRepository struct {
	collection *mongo.Collection
}

// NewFolderRepository creates a new MongoDB folder repository
func NewFolderRepository(mongodb *MongoDB) FolderRepository {
	return &folderRepository{collection: mongodb.Collection("folders")}
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID.IsZero() {
		folder.ID = primitive.NewObjectID()
	}
	folder.CreatedAt = time.Now()
	folder.UpdatedAt = folder.CreatedAt
	folder.Version = 1

	if _, err := r.collection.InsertOne(ctx, folder); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkg.ErrDuplicateName
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (r *folderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error) {
	var folder models.Folder
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&folder)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, pkg.ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to get folder by ID: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) FindSibling(ctx context.Context, userID primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error) {
	query := bson.M{
		"user_id":    userID,
		"name":       name,
		"is_trashed": false,
	}
	if parentID != nil {
		query["parent_id"] = *parentID
	} else {
		query["parent_id"] = nil
	}

	var folder models.Folder
	err := r.collection.FindOne(ctx, query).Decode(&folder)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, pkg.ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to find sibling folder: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) ListByParent(ctx context.Context, userID primitive.ObjectID, parentID *primitive.ObjectID, onlyActive bool) ([]*models.Folder, error) {
	query := bson.M{"user_id": userID}
	if parentID != nil {
		query["parent_id"] = *parentID
	} else {
		query["parent_id"] = nil
	}
	if onlyActive {
		query["is_trashed"] = false
	}
	return r.findAll(ctx, query, bson.D{{Key: "name", Value: 1}})
}

func (r *folderRepository) ListByPathPrefix(ctx context.Context, userID primitive.ObjectID, prefix string) ([]*models.Folder, error) {
	query := bson.M{
		"user_id": userID,
		"path":    bson.M{"$regex": "^" + regexp.QuoteMeta(prefix) + "/"},
	}
	return r.findAll(ctx, query, bson.D{{Key: "path", Value: 1}})
}

func (r *folderRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Folder, error) {
	return r.findAll(ctx, bson.M{"user_id": userID}, bson.D{{Key: "name", Value: 1}})
}

func (r *folderRepository) ListTrashed(ctx context.Context, userID primitive.ObjectID) ([]*models.Folder, error) {
	query := bson.M{"user_id": userID, "is_trashed": true}
	return r.findAll(ctx, query, bson.D{{Key: "trashed_at", Value: -1}})
}

func (r *folderRepository) ListTrashedBefore(ctx context.Context, userID primitive.ObjectID, cutoff time.Time) ([]*models.Folder, error) {
	query := bson.M{
		"user_id":    userID,
		"is_trashed": true,
		"trashed_at": bson.M{"$lt": cutoff},
	}
	return r.findAll(ctx, query, nil)
}

// Update replaces the record guarded by the version the caller read; see
// FileRepository.Update for the conflict semantics.
func (r *folderRepository) Update(ctx context.Context, folder *models.Folder) error {
	prev := folder.Version
	folder.Version = prev + 1
	folder.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": folder.ID, "version": prev}, folder)
	if err != nil {
		folder.Version = prev
		return fmt.Errorf("failed to update folder: %w", err)
	}
	if result.MatchedCount == 0 {
		folder.Version = prev
		return pkg.ErrConflict
	}
	return nil
}

func (r *folderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if result.DeletedCount == 0 {
		return pkg.ErrFolderNotFound
	}
	return nil
}

func (r *folderRepository) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete folders: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *folderRepository) findAll(ctx context.Context, query bson.M, sort bson.D) ([]*models.Folder, error) {
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find folders: %w", err)
	}
	defer cursor.Close(ctx)

	var folders []*models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, fmt.Errorf("failed to decode folders: %w", err)
	}
	return folders, nil
}
