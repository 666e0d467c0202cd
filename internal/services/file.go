package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/metrics"
	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
)

// FileService handles file records and their blobs: uploads under quota
// admission, the trash lifecycle, duplication, and downloads.
type FileService struct {
	fileRepo   repository.FileRepository
	folderRepo repository.FolderRepository
	quota      *QuotaService
	storage    *StorageService
	logger     zerolog.Logger
}

// NewFileService creates a new file service.
func NewFileService(
	fileRepo repository.FileRepository,
	folderRepo repository.FolderRepository,
	quota *QuotaService,
	storage *StorageService,
	logger zerolog.Logger,
) *FileService {
	return &FileService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		quota:      quota,
		storage:    storage,
		logger:     logger.With().Str("service", "file").Logger(),
	}
}

// UploadFileRequest represents an upload.
type UploadFileRequest struct {
	Name        string              `json:"name" validate:"required,min=1,max=255"`
	FolderID    *primitive.ObjectID `json:"folderId,omitempty"`
	Size        int64               `json:"size" validate:"min=0"`
	MimeType    string              `json:"mimeType"`
	Tags        []string            `json:"tags"`
	Description string              `json:"description" validate:"max=500"`
	Body        io.Reader           `json:"-"`
}

// FileDeleteResult reports what a delete call did: first call trashes,
// second call removes permanently and frees quota.
type FileDeleteResult struct {
	Trashed    bool  `json:"trashed"`
	BytesFreed int64 `json:"bytesFreed"`
}

// Upload admits the file against the owner's quota, stores the blob, and
// commits the ledger movement once the record exists.
func (s *FileService) Upload(ctx context.Context, userID primitive.ObjectID, req *UploadFileRequest) (*models.File, error) {
	if err := pkg.DefaultValidator.Validate(req); err != nil {
		return nil, pkg.ErrValidationFailed.WithDetails(map[string]interface{}{
			"errors": err,
		})
	}

	name := pkg.Files.SanitizeFilename(req.Name)
	if name == "" {
		return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "invalid file name",
		})
	}

	if req.FolderID != nil {
		folder, err := s.ownedFolder(ctx, userID, *req.FolderID)
		if err != nil {
			return nil, err
		}
		if folder.IsTrashed {
			return nil, pkg.ErrFolderNotFound
		}
	}

	if err := s.quota.Admit(ctx, userID, req.Size); err != nil {
		return nil, err
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = pkg.Files.GetMimeType(name)
	}

	key := s.storage.BuildKey(userID, name)
	result, err := s.storage.Upload(ctx, key, req.Body, req.Size, mimeType)
	if err != nil {
		return nil, err
	}

	file := &models.File{
		Name:         name,
		OriginalName: req.Name,
		Type:         models.FileTypeFromMime(mimeType),
		Size:         req.Size,
		StorageKey:   key,
		URL:          result.URL,
		MimeType:     mimeType,
		UserID:       userID,
		FolderID:     req.FolderID,
		Tags:         req.Tags,
		Description:  req.Description,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("failed to clean up blob after create failure")
		}
		return nil, err
	}

	if err := s.quota.Commit(ctx, userID, file.Size); err != nil {
		return nil, err
	}

	metrics.Uploads.Inc()
	metrics.UploadBytes.Add(float64(file.Size))

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("file_id", file.ID.Hex()).
		Int64("size", file.Size).
		Msg("file uploaded")
	return file, nil
}

// GetFile returns a file owned by the user.
func (s *FileService) GetFile(ctx context.Context, userID, fileID primitive.ObjectID) (*models.File, error) {
	return s.getOwned(ctx, userID, fileID)
}

// ListFiles lists the user's files matching the filter.
func (s *FileService) ListFiles(ctx context.Context, userID primitive.ObjectID, filter repository.FileFilter, params *pkg.PaginationParams) ([]*models.File, int64, error) {
	return s.fileRepo.List(ctx, userID, filter, params)
}

// RecentFiles returns the most recently touched active files.
func (s *FileService) RecentFiles(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.File, error) {
	params := pkg.DefaultPaginationParams()
	params.Sort = "updated_at"
	params.Order = "desc"
	if limit > 0 {
		params.Limit = limit
	}

	files, _, err := s.fileRepo.List(ctx, userID, repository.FileFilter{Trashed: boolPtr(false)}, params)
	return files, err
}

// RenameFile renames a file. The blob key never changes.
func (s *FileService) RenameFile(ctx context.Context, userID, fileID primitive.ObjectID, newName string) (*models.File, error) {
	newName = pkg.Files.SanitizeFilename(newName)
	if newName == "" {
		return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "invalid file name",
		})
	}

	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, file, func(f *models.File) {
		f.Name = newName
	})
}

// MoveFile reparents a file. A nil folderID moves it to the root level.
func (s *FileService) MoveFile(ctx context.Context, userID, fileID primitive.ObjectID, folderID *primitive.ObjectID) (*models.File, error) {
	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	if folderID != nil {
		folder, err := s.ownedFolder(ctx, userID, *folderID)
		if err != nil {
			return nil, err
		}
		if folder.IsTrashed {
			return nil, pkg.ErrFolderNotFound
		}
	}

	return s.mutate(ctx, file, func(f *models.File) {
		f.FolderID = folderID
	})
}

// ToggleFavorite flips the favorite flag on a file.
func (s *FileService) ToggleFavorite(ctx context.Context, userID, fileID primitive.ObjectID) (*models.File, error) {
	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, file, func(f *models.File) {
		f.IsFavorite = !f.IsFavorite
	})
}

// DeleteFile is the two-stage delete. An active file goes to trash; a
// trashed file is removed permanently together with its blob, and its
// bytes return to the quota ledger.
func (s *FileService) DeleteFile(ctx context.Context, userID, fileID primitive.ObjectID) (*FileDeleteResult, error) {
	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	if !file.IsTrashed {
		now := time.Now()
		if _, err := s.mutate(ctx, file, func(f *models.File) {
			f.IsTrashed = true
			f.TrashedAt = &now
		}); err != nil {
			return nil, err
		}
		return &FileDeleteResult{Trashed: true}, nil
	}

	if file.StorageKey != "" {
		if err := s.storage.Delete(ctx, file.StorageKey); err != nil {
			s.logger.Warn().
				Err(err).
				Str("file_id", file.ID.Hex()).
				Str("key", file.StorageKey).
				Msg("failed to delete blob, leaving orphan")
		}
	}

	if err := s.fileRepo.Delete(ctx, file.ID); err != nil {
		return nil, err
	}
	if err := s.quota.Release(ctx, userID, file.Size); err != nil {
		return nil, err
	}

	metrics.PermanentDeletes.Inc()
	metrics.BytesFreed.Add(float64(file.Size))

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("file_id", file.ID.Hex()).
		Int64("bytes_freed", file.Size).
		Msg("file permanently deleted")
	return &FileDeleteResult{BytesFreed: file.Size}, nil
}

// RestoreFile brings a trashed file back. When its folder is gone or
// itself trashed the file is reattached at the root.
func (s *FileService) RestoreFile(ctx context.Context, userID, fileID primitive.ObjectID) (*models.File, error) {
	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	// Only trash can be restored; anything else is not found there.
	if !file.IsTrashed {
		return nil, pkg.ErrFileNotFound
	}

	folderID := file.FolderID
	if folderID != nil {
		folder, err := s.folderRepo.GetByID(ctx, *folderID)
		if err != nil || folder.UserID != userID || folder.IsTrashed {
			folderID = nil
		}
	}

	return s.mutate(ctx, file, func(f *models.File) {
		f.FolderID = folderID
		f.IsTrashed = false
		f.TrashedAt = nil
	})
}

// DuplicateFile clones a file into the same folder under a "(Copy)"
// name. The clone gets its own blob and is admitted against the quota
// like a fresh upload.
func (s *FileService) DuplicateFile(ctx context.Context, userID, fileID primitive.ObjectID) (*models.File, error) {
	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsTrashed {
		return nil, pkg.ErrFileNotFound
	}

	if err := s.quota.Admit(ctx, userID, file.Size); err != nil {
		return nil, err
	}

	key := s.storage.BuildKey(userID, file.Name)
	body, err := s.storage.Download(ctx, file.StorageKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	result, err := s.storage.Upload(ctx, key, body, file.Size, file.MimeType)
	if err != nil {
		return nil, err
	}

	clone := &models.File{
		Name:         copyName(file.Name),
		OriginalName: file.OriginalName,
		Type:         file.Type,
		Size:         file.Size,
		StorageKey:   key,
		URL:          result.URL,
		MimeType:     file.MimeType,
		UserID:       userID,
		FolderID:     file.FolderID,
		Tags:         append([]string(nil), file.Tags...),
		Description:  file.Description,
	}
	if err := s.fileRepo.Create(ctx, clone); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("failed to clean up blob after create failure")
		}
		return nil, err
	}

	if err := s.quota.Commit(ctx, userID, clone.Size); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("file_id", file.ID.Hex()).
		Str("copy_id", clone.ID.Hex()).
		Msg("file duplicated")
	return clone, nil
}

// Download opens the blob for an owned file and bumps its download
// counter.
func (s *FileService) Download(ctx context.Context, userID, fileID primitive.ObjectID) (*models.File, io.ReadCloser, error) {
	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.storage.Download(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, err
	}

	if err := s.fileRepo.IncrementDownloads(ctx, file.ID); err != nil {
		s.logger.Warn().Err(err).Str("file_id", file.ID.Hex()).Msg("failed to bump download counter")
	}
	return file, body, nil
}

func (s *FileService) getOwned(ctx context.Context, userID, fileID primitive.ObjectID) (*models.File, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, pkg.ErrFileNotFound
	}
	return file, nil
}

func (s *FileService) ownedFolder(ctx context.Context, userID, folderID primitive.ObjectID) (*models.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, pkg.ErrFolderNotFound
	}
	return folder, nil
}

func (s *FileService) mutate(ctx context.Context, file *models.File, mutate func(*models.File)) (*models.File, error) {
	var err error
	for attempt := 0; attempt < casRetries; attempt++ {
		mutate(file)
		err = s.fileRepo.Update(ctx, file)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, pkg.ErrConflict) {
			return nil, err
		}
		file, err = s.fileRepo.GetByID(ctx, file.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, pkg.ErrConflict
}

// copyName derives the clone's name, keeping the extension at the end.
func copyName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + " (Copy)" + ext
}
