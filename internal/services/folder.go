package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/metrics"
	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
)

// casRetries bounds how often a mutation is replayed after losing an
// optimistic concurrency race.
const casRetries = 3

// FolderService handles the folder tree: creation, rename and move with
// path propagation, the trash lifecycle, and cascading permanent deletes.
type FolderService struct {
	folderRepo repository.FolderRepository
	fileRepo   repository.FileRepository
	quota      *QuotaService
	storage    *StorageService
	locks      *userLocks
	logger     zerolog.Logger
}

// NewFolderService creates a new folder service.
func NewFolderService(
	folderRepo repository.FolderRepository,
	fileRepo repository.FileRepository,
	quota *QuotaService,
	storage *StorageService,
	logger zerolog.Logger,
) *FolderService {
	return &FolderService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
		quota:      quota,
		storage:    storage,
		locks:      newUserLocks(),
		logger:     logger.With().Str("service", "folder").Logger(),
	}
}

// CreateFolderRequest represents a folder creation request.
type CreateFolderRequest struct {
	Name     string              `json:"name" validate:"required,min=1,max=255,foldername"`
	ParentID *primitive.ObjectID `json:"parentId,omitempty"`
	Color    string              `json:"color" validate:"omitempty,color"`
	Icon     string              `json:"icon" validate:"max=50"`
}

// FolderTree is a folder with its resolved children.
type FolderTree struct {
	*models.Folder
	Children []*FolderTree `json:"children"`
}

// FolderContents is a single level of the hierarchy: the folder itself
// (nil at root), its active subfolders, and a page of its files.
type FolderContents struct {
	Folder  *models.Folder   `json:"folder,omitempty"`
	Folders []*models.Folder `json:"folders"`
	Files   []*models.File   `json:"files"`
	Total   int64            `json:"totalFiles"`
}

// FolderDeleteResult reports what a delete call did. The first delete of a
// folder moves its subtree to trash; deleting an already trashed folder
// removes the subtree permanently.
type FolderDeleteResult struct {
	Trashed        bool  `json:"trashed"`
	FoldersRemoved int64 `json:"foldersRemoved"`
	FilesRemoved   int64 `json:"filesRemoved"`
	BytesFreed     int64 `json:"bytesFreed"`
}

// TrashContents lists the top level of a user's trash. Items inside a
// trashed folder are reached through that folder, not listed again.
type TrashContents struct {
	Folders []*models.Folder `json:"folders"`
	Files   []*models.File   `json:"files"`
}

// CreateFolder creates a new folder under the given parent.
func (s *FolderService) CreateFolder(ctx context.Context, userID primitive.ObjectID, req *CreateFolderRequest) (*models.Folder, error) {
	if err := pkg.DefaultValidator.Validate(req); err != nil {
		return nil, pkg.ErrValidationFailed.WithDetails(map[string]interface{}{
			"errors": err,
		})
	}

	req.Name = pkg.Files.SanitizeFilename(req.Name)
	if req.Name == "" {
		return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "invalid folder name",
		})
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	path := models.RootPath(req.Name)
	if req.ParentID != nil {
		parent, err := s.getOwned(ctx, userID, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.IsTrashed {
			return nil, pkg.ErrFolderNotFound
		}
		path = parent.ChildPath(req.Name)
	}

	if _, err := s.folderRepo.FindSibling(ctx, userID, req.ParentID, req.Name); err == nil {
		return nil, pkg.ErrDuplicateName.WithDetails(map[string]interface{}{
			"name": req.Name,
		})
	}

	folder := &models.Folder{
		Name:     req.Name,
		UserID:   userID,
		ParentID: req.ParentID,
		Path:     path,
		Color:    req.Color,
		Icon:     req.Icon,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("folder_id", folder.ID.Hex()).
		Str("path", folder.Path).
		Msg("folder created")
	return folder, nil
}

// GetFolder returns a folder owned by the user.
func (s *FolderService) GetFolder(ctx context.Context, userID, folderID primitive.ObjectID) (*models.Folder, error) {
	return s.getOwned(ctx, userID, folderID)
}

// RenameFolder renames a folder and rewrites the paths of every
// descendant folder.
func (s *FolderService) RenameFolder(ctx context.Context, userID, folderID primitive.ObjectID, newName string) (*models.Folder, error) {
	newName = pkg.Files.SanitizeFilename(newName)
	if newName == "" {
		return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "invalid folder name",
		})
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.Name == newName {
		return folder, nil
	}

	if sibling, err := s.folderRepo.FindSibling(ctx, userID, folder.ParentID, newName); err == nil && sibling.ID != folder.ID {
		return nil, pkg.ErrDuplicateName.WithDetails(map[string]interface{}{
			"name": newName,
		})
	}

	folder, err = s.mutateFolder(ctx, folder, func(f *models.Folder) {
		f.Name = newName
	})
	if err != nil {
		return nil, err
	}

	if err := s.rewriteSubtreePaths(ctx, userID, folder); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("folder_id", folder.ID.Hex()).
		Str("path", folder.Path).
		Msg("folder renamed")
	return folder, nil
}

// MoveFolder reparents a folder. Moving a folder into itself or one of
// its descendants is rejected.
func (s *FolderService) MoveFolder(ctx context.Context, userID, folderID primitive.ObjectID, newParentID *primitive.ObjectID) (*models.Folder, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	if newParentID != nil {
		if *newParentID == folder.ID {
			return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
				"message": "cannot move a folder into itself",
			})
		}
		parent, err := s.getOwned(ctx, userID, *newParentID)
		if err != nil {
			return nil, err
		}
		if parent.IsTrashed {
			return nil, pkg.ErrFolderNotFound
		}
		if strings.HasPrefix(parent.Path+"/", folder.Path+"/") {
			return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
				"message": "cannot move a folder into its own subtree",
			})
		}
	}

	if sibling, err := s.folderRepo.FindSibling(ctx, userID, newParentID, folder.Name); err == nil && sibling.ID != folder.ID {
		return nil, pkg.ErrDuplicateName.WithDetails(map[string]interface{}{
			"name": folder.Name,
		})
	}

	folder, err = s.mutateFolder(ctx, folder, func(f *models.Folder) {
		f.ParentID = newParentID
	})
	if err != nil {
		return nil, err
	}

	if err := s.rewriteSubtreePaths(ctx, userID, folder); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("folder_id", folder.ID.Hex()).
		Str("path", folder.Path).
		Msg("folder moved")
	return folder, nil
}

// Tree returns the user's active folder hierarchy, built from a single
// flat read. A non-nil rootID scopes the result to that folder's
// children instead of the top level.
func (s *FolderService) Tree(ctx context.Context, userID primitive.ObjectID, rootID *primitive.ObjectID) ([]*FolderTree, error) {
	if rootID != nil {
		if _, err := s.getOwned(ctx, userID, *rootID); err != nil {
			return nil, err
		}
	}

	folders, err := s.folderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[primitive.ObjectID]*FolderTree)
	for _, f := range folders {
		if f.IsTrashed {
			continue
		}
		nodes[f.ID] = &FolderTree{Folder: f, Children: []*FolderTree{}}
	}

	var roots []*FolderTree
	for _, node := range nodes {
		if rootID != nil {
			if node.ParentID != nil && *node.ParentID == *rootID {
				roots = append(roots, node)
			}
		} else if node.ParentID == nil || nodes[*node.ParentID] == nil {
			roots = append(roots, node)
		}
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
			}
		}
	}

	sortTrees(roots)
	for _, node := range nodes {
		sortTrees(node.Children)
	}
	return roots, nil
}

// Contents lists one level of the hierarchy. A nil folderID lists the
// root level.
func (s *FolderService) Contents(ctx context.Context, userID primitive.ObjectID, folderID *primitive.ObjectID, params *pkg.PaginationParams) (*FolderContents, error) {
	contents := &FolderContents{Folders: []*models.Folder{}, Files: []*models.File{}}

	filter := repository.FileFilter{Trashed: boolPtr(false)}
	if folderID != nil {
		folder, err := s.getOwned(ctx, userID, *folderID)
		if err != nil {
			return nil, err
		}
		if folder.IsTrashed {
			return nil, pkg.ErrFolderNotFound
		}
		contents.Folder = folder
		filter.FolderID = folderID
	} else {
		filter.RootOnly = true
	}

	folders, err := s.folderRepo.ListByParent(ctx, userID, folderID, true)
	if err != nil {
		return nil, err
	}
	contents.Folders = folders

	files, total, err := s.fileRepo.List(ctx, userID, filter, params)
	if err != nil {
		return nil, err
	}
	contents.Files = files
	contents.Total = total
	return contents, nil
}

// ToggleFavorite flips the favorite flag on a folder.
func (s *FolderService) ToggleFavorite(ctx context.Context, userID, folderID primitive.ObjectID) (*models.Folder, error) {
	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	return s.mutateFolder(ctx, folder, func(f *models.Folder) {
		f.IsFavorite = !f.IsFavorite
	})
}

// DeleteFolder is the two-stage delete. An active folder is moved to
// trash with its whole subtree. A folder already in trash is removed
// permanently, together with every descendant folder, all contained
// files, and their blobs, and the freed bytes are returned to the quota
// ledger.
func (s *FolderService) DeleteFolder(ctx context.Context, userID, folderID primitive.ObjectID) (*FolderDeleteResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	if !folder.IsTrashed {
		if err := s.trashSubtree(ctx, userID, folder); err != nil {
			return nil, err
		}
		return &FolderDeleteResult{Trashed: true}, nil
	}
	return s.permanentDelete(ctx, userID, folder)
}

// RestoreFolder brings a trashed folder and its subtree back. When the
// original parent is gone or itself trashed the folder is reattached at
// the root.
func (s *FolderService) RestoreFolder(ctx context.Context, userID, folderID primitive.ObjectID) (*models.Folder, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	folder, err := s.getOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	// Only trash can be restored; anything else is not found there.
	if !folder.IsTrashed {
		return nil, pkg.ErrFolderNotFound
	}

	parentID := folder.ParentID
	if parentID != nil {
		parent, err := s.folderRepo.GetByID(ctx, *parentID)
		if err != nil || parent.UserID != userID || parent.IsTrashed {
			parentID = nil
		}
	}

	if sibling, err := s.folderRepo.FindSibling(ctx, userID, parentID, folder.Name); err == nil && sibling.ID != folder.ID {
		return nil, pkg.ErrDuplicateName.WithDetails(map[string]interface{}{
			"name": folder.Name,
		})
	}

	folder, err = s.mutateFolder(ctx, folder, func(f *models.Folder) {
		f.ParentID = parentID
		f.IsTrashed = false
		f.TrashedAt = nil
	})
	if err != nil {
		return nil, err
	}

	subtree, err := s.collectSubtree(ctx, userID, folder)
	if err != nil {
		return nil, err
	}
	for _, desc := range subtree[1:] {
		if _, err := s.mutateFolder(ctx, desc, func(f *models.Folder) {
			f.IsTrashed = false
			f.TrashedAt = nil
		}); err != nil {
			return nil, err
		}
	}
	if err := s.restoreSubtreeFiles(ctx, userID, subtree); err != nil {
		return nil, err
	}
	if err := s.rewriteSubtreePaths(ctx, userID, folder); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("folder_id", folder.ID.Hex()).
		Str("path", folder.Path).
		Msg("folder restored")
	return folder, nil
}

// ListTrash returns the top level of the user's trash.
func (s *FolderService) ListTrash(ctx context.Context, userID primitive.ObjectID) (*TrashContents, error) {
	trashedFolders, err := s.folderRepo.ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	trashedSet := make(map[primitive.ObjectID]struct{}, len(trashedFolders))
	for _, f := range trashedFolders {
		trashedSet[f.ID] = struct{}{}
	}

	contents := &TrashContents{Folders: []*models.Folder{}, Files: []*models.File{}}
	for _, f := range trashedFolders {
		if f.ParentID != nil {
			if _, inside := trashedSet[*f.ParentID]; inside {
				continue
			}
		}
		contents.Folders = append(contents.Folders, f)
	}

	files, err := s.fileRepo.ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.FolderID != nil {
			if _, inside := trashedSet[*file.FolderID]; inside {
				continue
			}
		}
		contents.Files = append(contents.Files, file)
	}
	return contents, nil
}

// getOwned fetches a folder and hides other users' folders behind
// not-found, so folder IDs cannot be probed across accounts.
func (s *FolderService) getOwned(ctx context.Context, userID, folderID primitive.ObjectID) (*models.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, pkg.ErrFolderNotFound
	}
	return folder, nil
}

// mutateFolder applies mutate and persists it, replaying on optimistic
// concurrency conflicts.
func (s *FolderService) mutateFolder(ctx context.Context, folder *models.Folder, mutate func(*models.Folder)) (*models.Folder, error) {
	var err error
	for attempt := 0; attempt < casRetries; attempt++ {
		mutate(folder)
		err = s.folderRepo.Update(ctx, folder)
		if err == nil {
			return folder, nil
		}
		if !errors.Is(err, pkg.ErrConflict) {
			return nil, err
		}
		folder, err = s.folderRepo.GetByID(ctx, folder.ID)
		if err != nil {
			return nil, err
		}
	}
	return nil, pkg.ErrConflict
}

// collectSubtree returns the folder and every descendant, walking parent
// links breadth-first. A visited set guards against reference cycles in
// corrupted data.
func (s *FolderService) collectSubtree(ctx context.Context, userID primitive.ObjectID, root *models.Folder) ([]*models.Folder, error) {
	seen := map[primitive.ObjectID]struct{}{root.ID: {}}
	subtree := []*models.Folder{root}

	queue := []*models.Folder{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.folderRepo.ListByParent(ctx, userID, &current.ID, false)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			subtree = append(subtree, child)
			queue = append(queue, child)
		}
	}
	return subtree, nil
}

// rewriteSubtreePaths recomputes the materialized path of every
// descendant from the (already persisted) root folder downward.
func (s *FolderService) rewriteSubtreePaths(ctx context.Context, userID primitive.ObjectID, root *models.Folder) error {
	rootPath := models.RootPath(root.Name)
	if root.ParentID != nil {
		parent, err := s.folderRepo.GetByID(ctx, *root.ParentID)
		if err != nil {
			return err
		}
		rootPath = parent.ChildPath(root.Name)
	}
	if root.Path != rootPath {
		updated, err := s.mutateFolder(ctx, root, func(f *models.Folder) {
			f.Path = rootPath
		})
		if err != nil {
			return err
		}
		*root = *updated
	}

	subtree, err := s.collectSubtree(ctx, userID, root)
	if err != nil {
		return err
	}

	paths := map[primitive.ObjectID]string{root.ID: root.Path}
	for _, desc := range subtree[1:] {
		parentPath, ok := paths[*desc.ParentID]
		if !ok {
			continue
		}
		want := parentPath + "/" + desc.Name
		paths[desc.ID] = want
		if desc.Path == want {
			continue
		}
		if _, err := s.mutateFolder(ctx, desc, func(f *models.Folder) {
			f.Path = want
		}); err != nil {
			return err
		}
	}
	return nil
}

// trashSubtree marks the folder, every descendant folder, and every
// contained file as trashed with a shared timestamp.
func (s *FolderService) trashSubtree(ctx context.Context, userID primitive.ObjectID, root *models.Folder) error {
	now := time.Now()

	subtree, err := s.collectSubtree(ctx, userID, root)
	if err != nil {
		return err
	}

	folderIDs := make([]primitive.ObjectID, 0, len(subtree))
	for _, folder := range subtree {
		folderIDs = append(folderIDs, folder.ID)
		if folder.IsTrashed {
			continue
		}
		if _, err := s.mutateFolder(ctx, folder, func(f *models.Folder) {
			f.IsTrashed = true
			f.TrashedAt = &now
		}); err != nil {
			return err
		}
	}

	files, err := s.fileRepo.ListByFolderIDs(ctx, userID, folderIDs)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.IsTrashed {
			continue
		}
		if err := s.mutateFile(ctx, file, func(f *models.File) {
			f.IsTrashed = true
			f.TrashedAt = &now
		}); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("folder_id", root.ID.Hex()).
		Int("folders", len(subtree)).
		Int("files", len(files)).
		Msg("folder subtree trashed")
	return nil
}

// restoreSubtreeFiles clears the trash flag on every file contained in
// the given folders.
func (s *FolderService) restoreSubtreeFiles(ctx context.Context, userID primitive.ObjectID, subtree []*models.Folder) error {
	folderIDs := make([]primitive.ObjectID, 0, len(subtree))
	for _, folder := range subtree {
		folderIDs = append(folderIDs, folder.ID)
	}

	files, err := s.fileRepo.ListByFolderIDs(ctx, userID, folderIDs)
	if err != nil {
		return err
	}
	for _, file := range files {
		if !file.IsTrashed {
			continue
		}
		if err := s.mutateFile(ctx, file, func(f *models.File) {
			f.IsTrashed = false
			f.TrashedAt = nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// permanentDelete removes a trashed subtree for good: blobs first, then
// file records, then the quota refund, then the folder records. The
// refund equals the exact byte sum of the removed files.
func (s *FolderService) permanentDelete(ctx context.Context, userID primitive.ObjectID, root *models.Folder) (*FolderDeleteResult, error) {
	subtree, err := s.collectSubtree(ctx, userID, root)
	if err != nil {
		return nil, err
	}

	folderIDs := make([]primitive.ObjectID, 0, len(subtree))
	for _, folder := range subtree {
		folderIDs = append(folderIDs, folder.ID)
	}

	files, err := s.fileRepo.ListByFolderIDs(ctx, userID, folderIDs)
	if err != nil {
		return nil, err
	}

	var bytesFreed int64
	fileIDs := make([]primitive.ObjectID, 0, len(files))
	for _, file := range files {
		fileIDs = append(fileIDs, file.ID)
		bytesFreed += file.Size
		if s.storage != nil && file.StorageKey != "" {
			if err := s.storage.Delete(ctx, file.StorageKey); err != nil {
				s.logger.Warn().
					Err(err).
					Str("file_id", file.ID.Hex()).
					Str("key", file.StorageKey).
					Msg("failed to delete blob, leaving orphan")
			}
		}
	}

	filesRemoved, err := s.fileRepo.DeleteByIDs(ctx, fileIDs)
	if err != nil {
		return nil, err
	}

	if bytesFreed > 0 {
		if err := s.quota.Release(ctx, userID, bytesFreed); err != nil {
			return nil, err
		}
	}

	foldersRemoved, err := s.folderRepo.DeleteByIDs(ctx, folderIDs)
	if err != nil {
		return nil, err
	}

	result := &FolderDeleteResult{
		FoldersRemoved: foldersRemoved,
		FilesRemoved:   filesRemoved,
		BytesFreed:     bytesFreed,
	}
	if foldersRemoved != int64(len(folderIDs)) || filesRemoved != int64(len(fileIDs)) {
		return result, pkg.ErrCascadeIncomplete.WithDetails(map[string]interface{}{
			"folders_expected": len(folderIDs),
			"folders_removed":  foldersRemoved,
			"files_expected":   len(fileIDs),
			"files_removed":    filesRemoved,
		})
	}

	metrics.PermanentDeletes.Add(float64(filesRemoved))
	metrics.BytesFreed.Add(float64(bytesFreed))

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("folder_id", root.ID.Hex()).
		Int64("folders", foldersRemoved).
		Int64("files", filesRemoved).
		Int64("bytes_freed", bytesFreed).
		Msg("folder subtree permanently deleted")
	return result, nil
}

// mutateFile is the file-record twin of mutateFolder.
func (s *FolderService) mutateFile(ctx context.Context, file *models.File, mutate func(*models.File)) error {
	var err error
	for attempt := 0; attempt < casRetries; attempt++ {
		mutate(file)
		err = s.fileRepo.Update(ctx, file)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pkg.ErrConflict) {
			return err
		}
		file, err = s.fileRepo.GetByID(ctx, file.ID)
		if err != nil {
			return err
		}
	}
	return pkg.ErrConflict
}

func sortTrees(trees []*FolderTree) {
	sort.Slice(trees, func(i, j int) bool {
		return trees[i].Name < trees[j].Name
	})
}

func boolPtr(b bool) *bool { return &b }
