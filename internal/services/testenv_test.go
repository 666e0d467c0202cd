package services

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
	"github.com/skyvault/skyvault/internal/repository/badgerstore"
)

// testEnv wires the service stack against an embedded store and local
// blob storage, both in temp directories.
type testEnv struct {
	repos   *repository.Repository
	quota   *QuotaService
	storage *StorageService
	folders *FolderService
	files   *FileService
	shares  *ShareService
	stats   *StatsService

	userSeq int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := badgerstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repos := badgerstore.NewRepositories(store)

	storage, err := NewStorageService(&StorageConfig{
		Provider:  "local",
		LocalPath: t.TempDir(),
	})
	require.NoError(t, err)

	logger := pkg.NopLogger()
	quota := NewQuotaService(repos.User, nil, logger)

	return &testEnv{
		repos:   repos,
		quota:   quota,
		storage: storage,
		folders: NewFolderService(repos.Folder, repos.File, quota, storage, logger),
		files:   NewFileService(repos.File, repos.Folder, quota, storage, logger),
		shares:  NewShareService(repos.File, repos.User, logger),
		stats:   NewStatsService(repos.User, repos.File, repos.Folder, quota, logger),
	}
}

func (e *testEnv) createUser(t *testing.T, limit int64) *models.User {
	t.Helper()
	e.userSeq++

	user := &models.User{
		Name:         fmt.Sprintf("User %d", e.userSeq),
		Email:        fmt.Sprintf("user%d@example.com", e.userSeq),
		Password:     "hashed",
		StorageLimit: limit,
	}
	require.NoError(t, e.repos.User.Create(context.Background(), user))
	return user
}

func (e *testEnv) mustCreateFolder(t *testing.T, userID primitive.ObjectID, name string, parentID *primitive.ObjectID) *models.Folder {
	t.Helper()
	folder, err := e.folders.CreateFolder(context.Background(), userID, &CreateFolderRequest{
		Name:     name,
		ParentID: parentID,
	})
	require.NoError(t, err)
	return folder
}

func (e *testEnv) mustUpload(t *testing.T, userID primitive.ObjectID, name string, size int64, folderID *primitive.ObjectID) *models.File {
	t.Helper()
	file, err := e.files.Upload(context.Background(), userID, &UploadFileRequest{
		Name:     name,
		FolderID: folderID,
		Size:     size,
		MimeType: "application/octet-stream",
		Body:     bytes.NewReader(bytes.Repeat([]byte("x"), int(size))),
	})
	require.NoError(t, err)
	return file
}

// testBody returns an upload body of the given size.
func testBody(size int64) *bytes.Reader {
	return bytes.NewReader(bytes.Repeat([]byte("x"), int(size)))
}

func (e *testEnv) storageUsed(t *testing.T, userID primitive.ObjectID) int64 {
	t.Helper()
	user, err := e.repos.User.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.StorageUsed
}
