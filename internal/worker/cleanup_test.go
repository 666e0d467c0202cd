package worker

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
	"github.com/skyvault/skyvault/internal/repository/badgerstore"
	"github.com/skyvault/skyvault/internal/services"
)

type sweepEnv struct {
	repos   *repository.Repository
	quota   *services.QuotaService
	files   *services.FileService
	folders *services.FolderService
	worker  *CleanupWorker
}

func newSweepEnv(t *testing.T) *sweepEnv {
	t.Helper()

	store, err := badgerstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repos := badgerstore.NewRepositories(store)
	storage, err := services.NewStorageService(&services.StorageConfig{
		Provider:  "local",
		LocalPath: t.TempDir(),
	})
	require.NoError(t, err)

	logger := pkg.NopLogger()
	quota := services.NewQuotaService(repos.User, nil, logger)
	folders := services.NewFolderService(repos.Folder, repos.File, quota, storage, logger)
	files := services.NewFileService(repos.File, repos.Folder, quota, storage, logger)

	return &sweepEnv{
		repos:   repos,
		quota:   quota,
		files:   files,
		folders: folders,
		worker:  NewCleanupWorker(repos, folders, storage, quota, 30*24*time.Hour, time.Hour, logger),
	}
}

func (e *sweepEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Sweeper", Email: email, StorageLimit: 1 << 20}
	require.NoError(t, e.repos.User.Create(context.Background(), user))
	return user
}

func (e *sweepEnv) upload(t *testing.T, userID primitive.ObjectID, name string, size int64, folderID *primitive.ObjectID) *models.File {
	t.Helper()
	file, err := e.files.Upload(context.Background(), userID, &services.UploadFileRequest{
		Name:     name,
		FolderID: folderID,
		Size:     size,
		Body:     bytes.NewReader(bytes.Repeat([]byte("x"), int(size))),
	})
	require.NoError(t, err)
	return file
}

// backdateFileTrash pushes a trashed file's timestamp past the retention
// window.
func (e *sweepEnv) backdateFileTrash(t *testing.T, fileID primitive.ObjectID, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	file, err := e.repos.File.GetByID(ctx, fileID)
	require.NoError(t, err)
	past := time.Now().Add(-age)
	file.TrashedAt = &past
	require.NoError(t, e.repos.File.Update(ctx, file))
}

func (e *sweepEnv) backdateFolderTrash(t *testing.T, folderID primitive.ObjectID, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	folder, err := e.repos.Folder.GetByID(ctx, folderID)
	require.NoError(t, err)
	past := time.Now().Add(-age)
	folder.TrashedAt = &past
	require.NoError(t, e.repos.Folder.Update(ctx, folder))
}

func TestSweepRemovesExpiredTrash(t *testing.T) {
	env := newSweepEnv(t)
	user := env.createUser(t, "sweep@example.com")
	ctx := context.Background()

	old := env.upload(t, user.ID, "old.bin", 500, nil)
	fresh := env.upload(t, user.ID, "fresh.bin", 300, nil)

	_, err := env.files.DeleteFile(ctx, user.ID, old.ID)
	require.NoError(t, err)
	_, err = env.files.DeleteFile(ctx, user.ID, fresh.ID)
	require.NoError(t, err)
	env.backdateFileTrash(t, old.ID, 31*24*time.Hour)

	result, err := env.worker.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.FilesRemoved)
	assert.Equal(t, int64(500), result.BytesFreed)
	assert.Equal(t, 0, result.Errors)

	// The expired file is gone, the fresh one survives in trash.
	_, err = env.files.GetFile(ctx, user.ID, old.ID)
	assert.ErrorIs(t, err, pkg.ErrFileNotFound)
	kept, err := env.files.GetFile(ctx, user.ID, fresh.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsTrashed)

	// Quota refunded only for the swept file.
	usage, err := env.quota.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), usage.Used)
}

func TestSweepCascadesExpiredFolders(t *testing.T) {
	env := newSweepEnv(t)
	user := env.createUser(t, "cascade@example.com")
	ctx := context.Background()

	root, err := env.folders.CreateFolder(ctx, user.ID, &services.CreateFolderRequest{Name: "Old"})
	require.NoError(t, err)
	sub, err := env.folders.CreateFolder(ctx, user.ID, &services.CreateFolderRequest{Name: "Sub", ParentID: &root.ID})
	require.NoError(t, err)
	env.upload(t, user.ID, "deep.bin", 700, &sub.ID)

	_, err = env.folders.DeleteFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)
	env.backdateFolderTrash(t, root.ID, 40*24*time.Hour)

	result, err := env.worker.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.FoldersRemoved)
	assert.Equal(t, int64(1), result.FilesRemoved)
	assert.Equal(t, int64(700), result.BytesFreed)

	usage, err := env.quota.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Used)
}

func TestSweepSpansUsers(t *testing.T) {
	env := newSweepEnv(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")
	ctx := context.Background()

	for _, u := range []*models.User{alice, bob} {
		f := env.upload(t, u.ID, "junk.bin", 100, nil)
		_, err := env.files.DeleteFile(ctx, u.ID, f.ID)
		require.NoError(t, err)
		env.backdateFileTrash(t, f.ID, 60*24*time.Hour)
	}

	result, err := env.worker.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersSwept)
	assert.Equal(t, int64(2), result.FilesRemoved)
	assert.Equal(t, int64(200), result.BytesFreed)
}
