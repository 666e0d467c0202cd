package services

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

func TestUploadQuotaWalkthrough(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 5000)
	ctx := context.Background()

	// 2000 of 5000 fits.
	first := env.mustUpload(t, user.ID, "first.bin", 2000, nil)
	assert.Equal(t, int64(2000), env.storageUsed(t, user.ID))

	// Another 4000 would exceed the limit.
	_, err := env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name: "big.bin",
		Size: 4000,
		Body: bytes.NewReader(bytes.Repeat([]byte("x"), 4000)),
	})
	assert.ErrorIs(t, err, pkg.ErrQuotaExceeded)
	assert.Equal(t, int64(2000), env.storageUsed(t, user.ID))

	// Trashing alone frees nothing.
	res, err := env.files.DeleteFile(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, res.Trashed)
	assert.Equal(t, int64(2000), env.storageUsed(t, user.ID))

	// The second delete is permanent and refunds the bytes.
	res, err = env.files.DeleteFile(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, res.Trashed)
	assert.Equal(t, int64(2000), res.BytesFreed)
	assert.Equal(t, int64(0), env.storageUsed(t, user.ID))

	// Now the 4000 upload fits.
	env.mustUpload(t, user.ID, "big.bin", 4000, nil)
	assert.Equal(t, int64(4000), env.storageUsed(t, user.ID))
}

func TestUploadExactLimit(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1000)

	env.mustUpload(t, user.ID, "full.bin", 1000, nil)
	assert.Equal(t, int64(1000), env.storageUsed(t, user.ID))

	_, err := env.files.Upload(context.Background(), user.ID, &UploadFileRequest{
		Name: "one.bin",
		Size: 1,
		Body: bytes.NewReader([]byte("x")),
	})
	assert.ErrorIs(t, err, pkg.ErrQuotaExceeded)
}

func TestUploadIntoTrashedFolder(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	folder := env.mustCreateFolder(t, user.ID, "Doomed", nil)
	_, err := env.folders.DeleteFolder(ctx, user.ID, folder.ID)
	require.NoError(t, err)

	_, err = env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name:     "late.txt",
		FolderID: &folder.ID,
		Size:     10,
		Body:     bytes.NewReader(bytes.Repeat([]byte("x"), 10)),
	})
	assert.ErrorIs(t, err, pkg.ErrFolderNotFound)
}

func TestUploadStoresBlob(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	file, err := env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name:     "hello.txt",
		Size:     5,
		MimeType: "text/plain",
		Body:     bytes.NewReader([]byte("hello")),
	})
	require.NoError(t, err)
	assert.Equal(t, models.FileTypeNote, file.Type)
	assert.NotEmpty(t, file.StorageKey)

	got, body, err := env.files.Download(ctx, user.ID, file.ID)
	require.NoError(t, err)
	defer body.Close()

	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Equal(t, file.ID, got.ID)
}

func TestRestoreFileNotTrashed(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)

	file := env.mustUpload(t, user.ID, "active.txt", 10, nil)

	// An active file is not in the trash, so there is nothing to restore.
	_, err := env.files.RestoreFile(context.Background(), user.ID, file.ID)
	assert.ErrorIs(t, err, pkg.ErrFileNotFound)
}

func TestRestoreFileAfterFolderGone(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	folder := env.mustCreateFolder(t, user.ID, "Temp", nil)
	file := env.mustUpload(t, user.ID, "stray.txt", 10, &folder.ID)

	// Trash the file alone, then trash its folder.
	_, err := env.files.DeleteFile(ctx, user.ID, file.ID)
	require.NoError(t, err)
	_, err = env.folders.DeleteFolder(ctx, user.ID, folder.ID)
	require.NoError(t, err)

	restored, err := env.files.RestoreFile(ctx, user.ID, file.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.FolderID)
	assert.False(t, restored.IsTrashed)
}

func TestDuplicateFile(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	file, err := env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name:     "report.pdf",
		Size:     100,
		MimeType: "application/pdf",
		Body:     bytes.NewReader(bytes.Repeat([]byte("p"), 100)),
	})
	require.NoError(t, err)

	clone, err := env.files.DuplicateFile(ctx, user.ID, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "report (Copy).pdf", clone.Name)
	assert.Equal(t, file.Size, clone.Size)
	assert.NotEqual(t, file.StorageKey, clone.StorageKey)
	assert.Equal(t, int64(200), env.storageUsed(t, user.ID))
}

func TestDuplicateFileQuotaDenied(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 150)
	ctx := context.Background()

	file := env.mustUpload(t, user.ID, "block.bin", 100, nil)

	_, err := env.files.DuplicateFile(ctx, user.ID, file.ID)
	assert.ErrorIs(t, err, pkg.ErrQuotaExceeded)
	assert.Equal(t, int64(100), env.storageUsed(t, user.ID))
}

func TestRenameAndMoveFile(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	folder := env.mustCreateFolder(t, user.ID, "Dest", nil)
	file := env.mustUpload(t, user.ID, "old.txt", 10, nil)

	renamed, err := env.files.RenameFile(ctx, user.ID, file.ID, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", renamed.Name)
	assert.Equal(t, file.StorageKey, renamed.StorageKey)

	moved, err := env.files.MoveFile(ctx, user.ID, file.ID, &folder.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, folder.ID, *moved.FolderID)
}

func TestFileOwnershipHidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, 1<<30)
	other := env.createUser(t, 1<<30)

	file := env.mustUpload(t, owner.ID, "secret.txt", 10, nil)

	_, err := env.files.GetFile(context.Background(), other.ID, file.ID)
	assert.ErrorIs(t, err, pkg.ErrFileNotFound)
}

func TestRecentFiles(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	env.mustUpload(t, user.ID, "a.txt", 10, nil)
	b := env.mustUpload(t, user.ID, "b.txt", 10, nil)

	// Touching a file puts it in front.
	_, err := env.files.RenameFile(ctx, user.ID, b.ID, "b2.txt")
	require.NoError(t, err)

	recent, err := env.files.RecentFiles(ctx, user.ID, 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, "b2.txt", recent[0].Name)
}
