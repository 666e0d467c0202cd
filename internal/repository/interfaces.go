package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

// TypeStat is one row of the per-type size distribution.
type TypeStat struct {
	Type      models.FileType `bson:"_id" json:"type"`
	Count     int64           `bson:"count" json:"count"`
	TotalSize int64           `bson:"total_size" json:"totalSize"`
}

// DayStat is one day of an upload histogram. Day is formatted 2006-01-02.
type DayStat struct {
	Day       string `bson:"_id" json:"day"`
	Count     int64  `bson:"count" json:"count"`
	TotalSize int64  `bson:"total_size" json:"totalSize"`
}

// FileFilter narrows file listings. Zero values mean "no constraint";
// RootOnly selects files with no folder.
type FileFilter struct {
	FolderID     *primitive.ObjectID
	RootOnly     bool
	Type         models.FileType
	Favorite     *bool
	Trashed      *bool
	UpdatedAfter *time.Time
	Search       string
}

// UserRepository persists user accounts and the quota ledger field.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List returns every account. Used by background maintenance, not by
	// request handling.
	List(ctx context.Context) ([]*models.User, error)

	// UpdateStorageUsed atomically applies a signed delta to storage_used.
	// A negative delta that would take the value below zero fails with
	// pkg.ErrQuotaUnderflow and leaves the ledger untouched.
	UpdateStorageUsed(ctx context.Context, id primitive.ObjectID, delta int64) error

	Delete(ctx context.Context, id primitive.ObjectID) error
}

// FileRepository persists file metadata records.
//
// Update replaces the whole record guarded by the version the caller read;
// a mismatch (concurrent writer or deleted record) fails with pkg.ErrConflict.
type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error)
	GetByShareToken(ctx context.Context, token string) (*models.File, error)
	Update(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error)

	List(ctx context.Context, userID primitive.ObjectID, filter FileFilter, params *pkg.PaginationParams) ([]*models.File, int64, error)
	ListByFolder(ctx context.Context, folderID primitive.ObjectID, includeTrashed bool) ([]*models.File, error)
	ListByFolderIDs(ctx context.Context, userID primitive.ObjectID, folderIDs []primitive.ObjectID) ([]*models.File, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.File, error)
	ListTrashed(ctx context.Context, userID primitive.ObjectID) ([]*models.File, error)
	ListTrashedBefore(ctx context.Context, userID primitive.ObjectID, cutoff time.Time) ([]*models.File, error)

	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	IncrementDownloads(ctx context.Context, id primitive.ObjectID) error

	Count(ctx context.Context, userID primitive.ObjectID, filter FileFilter) (int64, error)
	TypeDistribution(ctx context.Context, userID primitive.ObjectID) ([]TypeStat, error)
	LargestFiles(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.File, error)
	CountUploadedBetween(ctx context.Context, userID primitive.ObjectID, from, to time.Time) (int64, error)
	UploadsPerDay(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) ([]DayStat, error)
}

// FolderRepository persists folder records and answers the tree queries.
type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error)

	// FindSibling returns the non-trashed folder with the given name under
	// owner+parent, or pkg.ErrFolderNotFound. parentID nil means root level.
	FindSibling(ctx context.Context, userID primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error)

	// ListByParent returns children of parentID (nil = top level) sorted by
	// name ascending. onlyActive excludes trashed folders.
	ListByParent(ctx context.Context, userID primitive.ObjectID, parentID *primitive.ObjectID, onlyActive bool) ([]*models.Folder, error)

	// ListByPathPrefix returns folders whose path starts with prefix + "/".
	ListByPathPrefix(ctx context.Context, userID primitive.ObjectID, prefix string) ([]*models.Folder, error)

	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Folder, error)
	ListTrashed(ctx context.Context, userID primitive.ObjectID) ([]*models.Folder, error)
	ListTrashedBefore(ctx context.Context, userID primitive.ObjectID, cutoff time.Time) ([]*models.Folder, error)

	Update(ctx context.Context, folder *models.Folder) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}

// Repository bundles the store-backed repositories behind one handle.
type Repository struct {
	User   UserRepository
	File   FileRepository
	Folder FolderRepository
}
