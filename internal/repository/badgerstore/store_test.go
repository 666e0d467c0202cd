package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
)

func openTestRepos(t *testing.T) *repository.Repository {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewRepositories(store)
}

func TestFileUpdateRejectsStaleVersion(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	file := &models.File{
		UserID: primitive.NewObjectID(),
		Name:   "doc.txt",
		Size:   10,
	}
	require.NoError(t, repos.File.Create(ctx, file))
	require.Equal(t, int64(1), file.Version)

	first, err := repos.File.GetByID(ctx, file.ID)
	require.NoError(t, err)
	stale, err := repos.File.GetByID(ctx, file.ID)
	require.NoError(t, err)

	first.Name = "renamed.txt"
	require.NoError(t, repos.File.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	stale.Name = "loser.txt"
	err = repos.File.Update(ctx, stale)
	assert.ErrorIs(t, err, pkg.ErrConflict)

	// The winning write is intact.
	current, err := repos.File.GetByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", current.Name)
	assert.Equal(t, int64(2), current.Version)
}

func TestFolderUpdateRejectsStaleVersion(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	folder := &models.Folder{
		UserID: primitive.NewObjectID(),
		Name:   "Docs",
		Path:   "/Docs",
	}
	require.NoError(t, repos.Folder.Create(ctx, folder))

	fresh, err := repos.Folder.GetByID(ctx, folder.ID)
	require.NoError(t, err)
	stale, err := repos.Folder.GetByID(ctx, folder.ID)
	require.NoError(t, err)

	fresh.Name = "Documents"
	require.NoError(t, repos.Folder.Update(ctx, fresh))

	err = repos.Folder.Update(ctx, stale)
	assert.ErrorIs(t, err, pkg.ErrConflict)
}

func TestUpdateStorageUsedUnderflow(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	user := &models.User{Name: "U", Email: "u@example.com", StorageLimit: 1000}
	require.NoError(t, repos.User.Create(ctx, user))

	require.NoError(t, repos.User.UpdateStorageUsed(ctx, user.ID, 400))
	err := repos.User.UpdateStorageUsed(ctx, user.ID, -500)
	assert.ErrorIs(t, err, pkg.ErrQuotaUnderflow)

	// Usage is untouched after a rejected release.
	got, err := repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), got.StorageUsed)
}

func TestTrashedNameDoesNotBlockSibling(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	trashed := &models.Folder{
		UserID:    userID,
		Name:      "Projects",
		Path:      "/Projects",
		IsTrashed: true,
	}
	now := time.Now()
	trashed.TrashedAt = &now
	require.NoError(t, repos.Folder.Create(ctx, trashed))

	// FindSibling only considers live folders, so the name is free.
	_, err := repos.Folder.FindSibling(ctx, userID, nil, "Projects")
	assert.ErrorIs(t, err, pkg.ErrFolderNotFound)
}
