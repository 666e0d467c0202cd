package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

type fileRepository struct {
	collection *mongo.Collection
}

// NewFileRepository creates a new MongoDB file repository
func NewFileRepository(mongodb *MongoDB) FileRepository {
	return &fileRepository{collection: mongodb.Collection("files")}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID.IsZero() {
		file.ID = primitive.NewObjectID()
	}
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	file.Version = 1

	if _, err := r.collection.InsertOne(ctx, file); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkg.ErrDuplicateName
		}
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (r *fileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	var file models.File
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&file)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, pkg.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file by ID: %w", err)
	}
	return &file, nil
}

func (r *fileRepository) GetByShareToken(ctx context.Context, token string) (*models.File, error) {
	var file models.File
	err := r.collection.FindOne(ctx, bson.M{"share_token": token}).Decode(&file)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, pkg.ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to get file by share token: %w", err)
	}
	return &file, nil
}

// Update replaces the record if the stored version still matches the version
// the caller read. On success the in-memory record carries the new version.
func (r *fileRepository) Update(ctx context.Context, file *models.File) error {
	prev := file.Version
	file.Version = prev + 1
	file.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": file.ID, "version": prev}, file)
	if err != nil {
		file.Version = prev
		return fmt.Errorf("failed to update file: %w", err)
	}
	if result.MatchedCount == 0 {
		file.Version = prev
		return pkg.ErrConflict
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if result.DeletedCount == 0 {
		return pkg.ErrFileNotFound
	}
	return nil
}

func (r *fileRepository) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete files: %w", err)
	}
	return result.DeletedCount, nil
}

func buildFileFilter(userID primitive.ObjectID, filter FileFilter) bson.M {
	query := bson.M{"user_id": userID}

	if filter.FolderID != nil {
		query["folder_id"] = *filter.FolderID
	} else if filter.RootOnly {
		query["folder_id"] = nil
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Favorite != nil {
		query["is_favorite"] = *filter.Favorite
	}
	if filter.Trashed != nil {
		query["is_trashed"] = *filter.Trashed
	}
	if filter.UpdatedAfter != nil {
		query["updated_at"] = bson.M{"$gte": *filter.UpdatedAfter}
	}
	if filter.Search != "" {
		query["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
	}

	return query
}

func (r *fileRepository) List(ctx context.Context, userID primitive.ObjectID, filter FileFilter, params *pkg.PaginationParams) ([]*models.File, int64, error) {
	query := buildFileFilter(userID, filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	opts := options.Find().
		SetSkip(int64(params.GetOffset())).
		SetLimit(int64(params.Limit)).
		SetSort(bson.D{{Key: params.Sort, Value: params.GetSortDirection()}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find files: %w", err)
	}
	defer cursor.Close(ctx)

	var files []*models.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, 0, fmt.Errorf("failed to decode files: %w", err)
	}

	return files, total, nil
}

func (r *fileRepository) ListByFolder(ctx context.Context, folderID primitive.ObjectID, includeTrashed bool) ([]*models.File, error) {
	query := bson.M{"folder_id": folderID}
	if !includeTrashed {
		query["is_trashed"] = false
	}
	return r.findAll(ctx, query, bson.D{{Key: "name", Value: 1}})
}

func (r *fileRepository) ListByFolderIDs(ctx context.Context, userID primitive.ObjectID, folderIDs []primitive.ObjectID) ([]*models.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	query := bson.M{"user_id": userID, "folder_id": bson.M{"$in": folderIDs}}
	return r.findAll(ctx, query, nil)
}

func (r *fileRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.File, error) {
	return r.findAll(ctx, bson.M{"user_id": userID}, nil)
}

func (r *fileRepository) ListTrashed(ctx context.Context, userID primitive.ObjectID) ([]*models.File, error) {
	query := bson.M{"user_id": userID, "is_trashed": true}
	return r.findAll(ctx, query, bson.D{{Key: "trashed_at", Value: -1}})
}

func (r *fileRepository) ListTrashedBefore(ctx context.Context, userID primitive.ObjectID, cutoff time.Time) ([]*models.File, error) {
	query := bson.M{
		"user_id":    userID,
		"is_trashed": true,
		"trashed_at": bson.M{"$lt": cutoff},
	}
	return r.findAll(ctx, query, nil)
}

func (r *fileRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	return r.incrementCounter(ctx, id, "views")
}

func (r *fileRepository) IncrementDownloads(ctx context.Context, id primitive.ObjectID) error {
	return r.incrementCounter(ctx, id, "downloads")
}

func (r *fileRepository) Count(ctx context.Context, userID primitive.ObjectID, filter FileFilter) (int64, error) {
	total, err := r.collection.CountDocuments(ctx, buildFileFilter(userID, filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return total, nil
}

func (r *fileRepository) TypeDistribution(ctx context.Context, userID primitive.ObjectID) ([]TypeStat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "is_trashed": false}}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$type",
			"count":      bson.M{"$sum": 1},
			"total_size": bson.M{"$sum": "$size"},
		}}},
		{{Key: "$sort", Value: bson.M{"total_size": -1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate type distribution: %w", err)
	}
	defer cursor.Close(ctx)

	var stats []TypeStat
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode type distribution: %w", err)
	}
	return stats, nil
}

func (r *fileRepository) LargestFiles(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.File, error) {
	query := bson.M{"user_id": userID, "is_trashed": false}
	opts := options.Find().
		SetSort(bson.D{{Key: "size", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find largest files: %w", err)
	}
	defer cursor.Close(ctx)

	var files []*models.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode largest files: %w", err)
	}
	return files, nil
}

func (r *fileRepository) CountUploadedBetween(ctx context.Context, userID primitive.ObjectID, from, to time.Time) (int64, error) {
	query := bson.M{
		"user_id":    userID,
		"is_trashed": false,
		"created_at": bson.M{"$gte": from, "$lte": to},
	}
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return total, nil
}

func (r *fileRepository) UploadsPerDay(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) ([]DayStat, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":    userID,
			"is_trashed": false,
			"created_at": bson.M{"$gte": start, "$lt": end},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$created_at",
			}},
			"count":      bson.M{"$sum": 1},
			"total_size": bson.M{"$sum": "$size"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate uploads per day: %w", err)
	}
	defer cursor.Close(ctx)

	var stats []DayStat
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode uploads per day: %w", err)
	}
	return stats, nil
}

func (r *fileRepository) findAll(ctx context.Context, query bson.M, sort bson.D) ([]*models.File, error) {
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find files: %w", err)
	}
	defer cursor.Close(ctx)

	var files []*models.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %w", err)
	}
	return files, nil
}

// Counter bumps bypass the version check: views and downloads are monotonic
// and never participate in read-modify-write cycles.
func (r *fileRepository) incrementCounter(ctx context.Context, id primitive.ObjectID, field string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return pkg.ErrFileNotFound
	}
	return nil
}
