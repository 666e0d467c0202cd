package badgerstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

type folderRepository struct {
	store *Store
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if folder.ID.IsZero() {
		folder.ID = primitive.NewObjectID()
	}
	folder.CreatedAt = time.Now()
	folder.UpdatedAt = folder.CreatedAt
	folder.Version = 1
	if folder.Color == "" {
		folder.Color = models.DefaultFolderColor
	}

	if err := r.store.put(folderKey(folder.ID), folder); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (r *folderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.getByID(id)
}

func (r *folderRepository) FindSibling(ctx context.Context, userID primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	folders, err := r.collect(func(f *models.Folder) bool {
		return f.UserID == userID && !f.IsTrashed && f.Name == name && sameParent(f.ParentID, parentID)
	})
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, pkg.ErrFolderNotFound
	}
	return folders[0], nil
}

func (r *folderRepository) ListByParent(ctx context.Context, userID primitive.ObjectID, parentID *primitive.ObjectID, onlyActive bool) ([]*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	folders, err := r.collect(func(f *models.Folder) bool {
		if f.UserID != userID || !sameParent(f.ParentID, parentID) {
			return false
		}
		return !onlyActive || !f.IsTrashed
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})
	return folders, nil
}

func (r *folderRepository) ListByPathPrefix(ctx context.Context, userID primitive.ObjectID, prefix string) ([]*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	folders, err := r.collect(func(f *models.Folder) bool {
		return f.UserID == userID && strings.HasPrefix(f.Path, prefix+"/")
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].Path < folders[j].Path
	})
	return folders, nil
}

func (r *folderRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.collect(func(f *models.Folder) bool {
		return f.UserID == userID
	})
}

func (r *folderRepository) ListTrashed(ctx context.Context, userID primitive.ObjectID) ([]*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	folders, err := r.collect(func(f *models.Folder) bool {
		return f.UserID == userID && f.IsTrashed
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(folders, func(i, j int) bool {
		ti, tj := folders[i].TrashedAt, folders[j].TrashedAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})
	return folders, nil
}

func (r *folderRepository) ListTrashedBefore(ctx context.Context, userID primitive.ObjectID, cutoff time.Time) ([]*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.collect(func(f *models.Folder) bool {
		return f.UserID == userID && f.IsTrashed && f.TrashedAt != nil && f.TrashedAt.Before(cutoff)
	})
}

func (r *folderRepository) Update(ctx context.Context, folder *models.Folder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, err := r.getByID(folder.ID)
	if err != nil {
		return pkg.ErrConflict
	}
	if current.Version != folder.Version {
		return pkg.ErrConflict
	}

	folder.Version++
	folder.UpdatedAt = time.Now()

	if err := r.store.put(folderKey(folder.ID), folder); err != nil {
		folder.Version--
		return fmt.Errorf("failed to update folder: %w", err)
	}
	return nil
}

func (r *folderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existed, err := r.store.delete(folderKey(id))
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if !existed {
		return pkg.ErrFolderNotFound
	}
	return nil
}

func (r *folderRepository) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		existed, err := r.store.delete(folderKey(id))
		if err != nil {
			return deleted, fmt.Errorf("failed to delete folder %s: %w", id.Hex(), err)
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

func (r *folderRepository) getByID(id primitive.ObjectID) (*models.Folder, error) {
	var folder models.Folder
	if err := r.store.get(folderKey(id), &folder); err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, pkg.ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &folder, nil
}

func (r *folderRepository) collect(match func(*models.Folder) bool) ([]*models.Folder, error) {
	var folders []*models.Folder
	err := r.store.scan(folderPrefix, func(val []byte) (bool, error) {
		var folder models.Folder
		if err := bson.Unmarshal(val, &folder); err != nil {
			return false, err
		}
		if match(&folder) {
			folders = append(folders, &folder)
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folders: %w", err)
	}
	return folders, nil
}

func sameParent(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
