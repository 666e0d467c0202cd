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
	"github.com/skyvault/skyvault/internal/repository"
)

type fileRepository struct {
	store *Store
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if file.ID.IsZero() {
		file.ID = primitive.NewObjectID()
	}
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	file.Version = 1

	if err := r.store.put(fileKey(file.ID), file); err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (r *fileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.getByID(id)
}

func (r *fileRepository) GetByShareToken(ctx context.Context, token string) (*models.File, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var found *models.File
	err := r.store.scan(filePrefix, func(val []byte) (bool, error) {
		var file models.File
		if err := bson.Unmarshal(val, &file); err != nil {
			return false, err
		}
		if file.ShareToken == token {
			found = &file
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}
	if found == nil {
		return nil, pkg.ErrShareNotFound
	}
	return found, nil
}

func (r *fileRepository) Update(ctx context.Context, file *models.File) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, err := r.getByID(file.ID)
	if err != nil {
		return pkg.ErrConflict
	}
	if current.Version != file.Version {
		return pkg.ErrConflict
	}

	file.Version++
	file.UpdatedAt = time.Now()

	if err := r.store.put(fileKey(file.ID), file); err != nil {
		file.Version--
		return fmt.Errorf("failed to update file: %w", err)
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existed, err := r.store.delete(fileKey(id))
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if !existed {
		return pkg.ErrFileNotFound
	}
	return nil
}

func (r *fileRepository) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		existed, err := r.store.delete(fileKey(id))
		if err != nil {
			return deleted, fmt.Errorf("failed to delete file %s: %w", id.Hex(), err)
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

func matchFileFilter(file *models.File, userID primitive.ObjectID, filter repository.FileFilter) bool {
	if file.UserID != userID {
		return false
	}
	if filter.FolderID != nil {
		if file.FolderID == nil || *file.FolderID != *filter.FolderID {
			return false
		}
	} else if filter.RootOnly && file.FolderID != nil {
		return false
	}
	if filter.Type != "" && file.Type != filter.Type {
		return false
	}
	if filter.Favorite != nil && file.IsFavorite != *filter.Favorite {
		return false
	}
	if filter.Trashed != nil && file.IsTrashed != *filter.Trashed {
		return false
	}
	if filter.UpdatedAfter != nil && file.UpdatedAt.Before(*filter.UpdatedAfter) {
		return false
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(file.Name), strings.ToLower(filter.Search)) {
		return false
	}
	return true
}

func (r *fileRepository) List(ctx context.Context, userID primitive.ObjectID, filter repository.FileFilter, params *pkg.PaginationParams) ([]*models.File, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		return matchFileFilter(f, userID, filter)
	})
	if err != nil {
		return nil, 0, err
	}

	total := int64(len(files))
	sortFiles(files, params.Sort, params.Order == "asc")

	offset := params.GetOffset()
	if offset >= len(files) {
		return nil, total, nil
	}
	end := offset + params.Limit
	if end > len(files) {
		end = len(files)
	}
	return files[offset:end], total, nil
}

func (r *fileRepository) ListByFolder(ctx context.Context, folderID primitive.ObjectID, includeTrashed bool) ([]*models.File, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		if f.FolderID == nil || *f.FolderID != folderID {
			return false
		}
		return includeTrashed || !f.IsTrashed
	})
	if err != nil {
		return nil, err
	}
	sortFiles(files, "name", true)
	return files, nil
}

func (r *fileRepository) ListByFolderIDs(ctx context.Context, userID primitive.ObjectID, folderIDs []primitive.ObjectID) ([]*models.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}

	idSet := make(map[primitive.ObjectID]struct{}, len(folderIDs))
	for _, id := range folderIDs {
		idSet[id] = struct{}{}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.collect(func(f *models.File) bool {
		if f.UserID != userID || f.FolderID == nil {
			return false
		}
		_, ok := idSet[*f.FolderID]
		return ok
	})
}

func (r *fileRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.File, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.collect(func(f *models.File) bool {
		return f.UserID == userID
	})
}

func (r *fileRepository) ListTrashed(ctx context.Context, userID primitive.ObjectID) ([]*models.File, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		return f.UserID == userID && f.IsTrashed
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		ti, tj := files[i].TrashedAt, files[j].TrashedAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})
	return files, nil
}

func (r *fileRepository) ListTrashedBefore(ctx context.Context, userID primitive.ObjectID, cutoff time.Time) ([]*models.File, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.collect(func(f *models.File) bool {
		return f.UserID == userID && f.IsTrashed && f.TrashedAt != nil && f.TrashedAt.Before(cutoff)
	})
}

func (r *fileRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	return r.incrementCounter(id, func(f *models.File) { f.Views++ })
}

func (r *fileRepository) IncrementDownloads(ctx context.Context, id primitive.ObjectID) error {
	return r.incrementCounter(id, func(f *models.File) { f.Downloads++ })
}

func (r *fileRepository) Count(ctx context.Context, userID primitive.ObjectID, filter repository.FileFilter) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		return matchFileFilter(f, userID, filter)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(files)), nil
}

func (r *fileRepository) TypeDistribution(ctx context.Context, userID primitive.ObjectID) ([]repository.TypeStat, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		return f.UserID == userID && !f.IsTrashed
	})
	if err != nil {
		return nil, err
	}

	byType := make(map[models.FileType]*repository.TypeStat)
	for _, f := range files {
		stat, ok := byType[f.Type]
		if !ok {
			stat = &repository.TypeStat{Type: f.Type}
			byType[f.Type] = stat
		}
		stat.Count++
		stat.TotalSize += f.Size
	}

	stats := make([]repository.TypeStat, 0, len(byType))
	for _, stat := range byType {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].TotalSize > stats[j].TotalSize
	})
	return stats, nil
}

func (r *fileRepository) LargestFiles(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.File, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		return f.UserID == userID && !f.IsTrashed
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Size > files[j].Size
	})
	if limit < len(files) {
		files = files[:limit]
	}
	return files, nil
}

func (r *fileRepository) CountUploadedBetween(ctx context.Context, userID primitive.ObjectID, from, to time.Time) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		return f.UserID == userID && !f.IsTrashed &&
			!f.CreatedAt.Before(from) && !f.CreatedAt.After(to)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(files)), nil
}

func (r *fileRepository) UploadsPerDay(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) ([]repository.DayStat, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	files, err := r.collect(func(f *models.File) bool {
		created := f.CreatedAt.UTC()
		return f.UserID == userID && !f.IsTrashed &&
			!created.Before(start) && created.Before(end)
	})
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*repository.DayStat)
	for _, f := range files {
		day := f.CreatedAt.UTC().Format("2006-01-02")
		stat, ok := byDay[day]
		if !ok {
			stat = &repository.DayStat{Day: day}
			byDay[day] = stat
		}
		stat.Count++
		stat.TotalSize += f.Size
	}

	stats := make([]repository.DayStat, 0, len(byDay))
	for _, stat := range byDay {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Day < stats[j].Day
	})
	return stats, nil
}

func (r *fileRepository) getByID(id primitive.ObjectID) (*models.File, error) {
	var file models.File
	if err := r.store.get(fileKey(id), &file); err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, pkg.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

func (r *fileRepository) collect(match func(*models.File) bool) ([]*models.File, error) {
	var files []*models.File
	err := r.store.scan(filePrefix, func(val []byte) (bool, error) {
		var file models.File
		if err := bson.Unmarshal(val, &file); err != nil {
			return false, err
		}
		if match(&file) {
			files = append(files, &file)
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}
	return files, nil
}

func (r *fileRepository) incrementCounter(id primitive.ObjectID, bump func(*models.File)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	file, err := r.getByID(id)
	if err != nil {
		return err
	}
	bump(file)

	if err := r.store.put(fileKey(id), file); err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}
	return nil
}

func sortFiles(files []*models.File, field string, asc bool) {
	less := func(i, j int) bool {
		switch field {
		case "name":
			return files[i].Name < files[j].Name
		case "size":
			return files[i].Size < files[j].Size
		case "updated_at":
			return files[i].UpdatedAt.Before(files[j].UpdatedAt)
		default:
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		}
	}
	if asc {
		sort.SliceStable(files, less)
	} else {
		sort.SliceStable(files, func(i, j int) bool { return less(j, i) })
	}
}
