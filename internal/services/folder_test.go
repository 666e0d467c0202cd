package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

func TestCreateFolderDerivesPaths(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	docs := env.mustCreateFolder(t, user.ID, "Documents", nil)
	assert.Equal(t, "/Documents", docs.Path)
	assert.Nil(t, docs.ParentID)

	work := env.mustCreateFolder(t, user.ID, "Work", &docs.ID)
	assert.Equal(t, "/Documents/Work", work.Path)

	reports := env.mustCreateFolder(t, user.ID, "Reports", &work.ID)
	assert.Equal(t, "/Documents/Work/Reports", reports.Path)

	_, err := env.folders.CreateFolder(ctx, user.ID, &CreateFolderRequest{Name: "Work", ParentID: &docs.ID})
	assert.ErrorIs(t, err, pkg.ErrDuplicateName)

	// Same name is fine under a different parent.
	other, err := env.folders.CreateFolder(ctx, user.ID, &CreateFolderRequest{Name: "Work"})
	require.NoError(t, err)
	assert.Equal(t, "/Work", other.Path)
}

func TestCreateFolderUnknownParent(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	stranger := env.createUser(t, 1<<30)

	theirs := env.mustCreateFolder(t, stranger.ID, "Private", nil)

	// Another user's folder is indistinguishable from a missing one.
	_, err := env.folders.CreateFolder(context.Background(), user.ID, &CreateFolderRequest{
		Name:     "Sub",
		ParentID: &theirs.ID,
	})
	assert.ErrorIs(t, err, pkg.ErrFolderNotFound)
}

func TestRenameFolderRewritesDescendantPaths(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	a := env.mustCreateFolder(t, user.ID, "A", nil)
	b := env.mustCreateFolder(t, user.ID, "B", &a.ID)
	c := env.mustCreateFolder(t, user.ID, "C", &b.ID)

	// A sibling tree that must come through the rename untouched.
	other := env.mustCreateFolder(t, user.ID, "A2", nil)
	otherChild := env.mustCreateFolder(t, user.ID, "B2", &other.ID)

	renamed, err := env.folders.RenameFolder(ctx, user.ID, a.ID, "Archive")
	require.NoError(t, err)
	assert.Equal(t, "/Archive", renamed.Path)

	b2, err := env.folders.GetFolder(ctx, user.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "/Archive/B", b2.Path)

	c2, err := env.folders.GetFolder(ctx, user.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "/Archive/B/C", c2.Path)

	outside, err := env.folders.GetFolder(ctx, user.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "/A2", outside.Path)

	outsideChild, err := env.folders.GetFolder(ctx, user.ID, otherChild.ID)
	require.NoError(t, err)
	assert.Equal(t, "/A2/B2", outsideChild.Path)
}

func TestRenameFolderDuplicateSibling(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)

	env.mustCreateFolder(t, user.ID, "One", nil)
	two := env.mustCreateFolder(t, user.ID, "Two", nil)

	_, err := env.folders.RenameFolder(context.Background(), user.ID, two.ID, "One")
	assert.ErrorIs(t, err, pkg.ErrDuplicateName)
}

func TestMoveFolder(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	src := env.mustCreateFolder(t, user.ID, "Src", nil)
	child := env.mustCreateFolder(t, user.ID, "Child", &src.ID)
	dst := env.mustCreateFolder(t, user.ID, "Dst", nil)

	moved, err := env.folders.MoveFolder(ctx, user.ID, src.ID, &dst.ID)
	require.NoError(t, err)
	assert.Equal(t, "/Dst/Src", moved.Path)

	child2, err := env.folders.GetFolder(ctx, user.ID, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "/Dst/Src/Child", child2.Path)

	// Back to the root level.
	moved, err = env.folders.MoveFolder(ctx, user.ID, src.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "/Src", moved.Path)
}

func TestMoveFolderIntoOwnSubtree(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	a := env.mustCreateFolder(t, user.ID, "A", nil)
	b := env.mustCreateFolder(t, user.ID, "B", &a.ID)

	_, err := env.folders.MoveFolder(ctx, user.ID, a.ID, &b.ID)
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)

	_, err = env.folders.MoveFolder(ctx, user.ID, a.ID, &a.ID)
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestFolderTree(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	a := env.mustCreateFolder(t, user.ID, "A", nil)
	env.mustCreateFolder(t, user.ID, "B", &a.ID)
	env.mustCreateFolder(t, user.ID, "Z", nil)
	env.mustCreateFolder(t, user.ID, "C", nil)

	tree, err := env.folders.Tree(ctx, user.ID, nil)
	require.NoError(t, err)

	require.Len(t, tree, 3)
	assert.Equal(t, "A", tree[0].Name)
	assert.Equal(t, "C", tree[1].Name)
	assert.Equal(t, "Z", tree[2].Name)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "B", tree[0].Children[0].Name)

	// Scoped to a subtree root.
	scoped, err := env.folders.Tree(ctx, user.ID, &a.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "B", scoped[0].Name)
}

func TestContents(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	docs := env.mustCreateFolder(t, user.ID, "Docs", nil)
	env.mustCreateFolder(t, user.ID, "Nested", &docs.ID)
	env.mustUpload(t, user.ID, "inside.txt", 10, &docs.ID)
	env.mustUpload(t, user.ID, "root.txt", 10, nil)

	contents, err := env.folders.Contents(ctx, user.ID, &docs.ID, pkg.DefaultPaginationParams())
	require.NoError(t, err)
	require.Len(t, contents.Folders, 1)
	require.Len(t, contents.Files, 1)
	assert.Equal(t, "inside.txt", contents.Files[0].Name)

	root, err := env.folders.Contents(ctx, user.ID, nil, pkg.DefaultPaginationParams())
	require.NoError(t, err)
	require.Len(t, root.Folders, 1)
	require.Len(t, root.Files, 1)
	assert.Equal(t, "root.txt", root.Files[0].Name)
}

func TestDeleteFolderTwiceCascades(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	root := env.mustCreateFolder(t, user.ID, "Project", nil)
	sub := env.mustCreateFolder(t, user.ID, "Assets", &root.ID)
	env.mustUpload(t, user.ID, "a.bin", 300, &root.ID)
	env.mustUpload(t, user.ID, "b.bin", 700, &sub.ID)
	require.Equal(t, int64(1000), env.storageUsed(t, user.ID))

	// First delete trashes the whole subtree and frees nothing.
	res, err := env.folders.DeleteFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)
	assert.True(t, res.Trashed)
	require.Equal(t, int64(1000), env.storageUsed(t, user.ID))

	subAfter, err := env.folders.GetFolder(ctx, user.ID, sub.ID)
	require.NoError(t, err)
	assert.True(t, subAfter.IsTrashed)

	// Second delete removes everything and refunds the exact byte sum.
	res, err = env.folders.DeleteFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)
	assert.False(t, res.Trashed)
	assert.Equal(t, int64(2), res.FoldersRemoved)
	assert.Equal(t, int64(2), res.FilesRemoved)
	assert.Equal(t, int64(1000), res.BytesFreed)
	assert.Equal(t, int64(0), env.storageUsed(t, user.ID))

	_, err = env.folders.GetFolder(ctx, user.ID, root.ID)
	assert.ErrorIs(t, err, pkg.ErrFolderNotFound)
}

func TestRestoreFolder(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	root := env.mustCreateFolder(t, user.ID, "Keep", nil)
	sub := env.mustCreateFolder(t, user.ID, "Inner", &root.ID)
	file := env.mustUpload(t, user.ID, "doc.txt", 50, &sub.ID)

	_, err := env.folders.DeleteFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)

	restored, err := env.folders.RestoreFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsTrashed)
	assert.Nil(t, restored.TrashedAt)

	subAfter, err := env.folders.GetFolder(ctx, user.ID, sub.ID)
	require.NoError(t, err)
	assert.False(t, subAfter.IsTrashed)
	assert.Equal(t, "/Keep/Inner", subAfter.Path)

	fileAfter, err := env.files.GetFile(ctx, user.ID, file.ID)
	require.NoError(t, err)
	assert.False(t, fileAfter.IsTrashed)
}

func TestRestoreFolderNotTrashed(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)

	folder := env.mustCreateFolder(t, user.ID, "Active", nil)

	// An active folder is not in the trash, so there is nothing to restore.
	_, err := env.folders.RestoreFolder(context.Background(), user.ID, folder.ID)
	assert.ErrorIs(t, err, pkg.ErrFolderNotFound)
}

func TestRestoreFolderMissingParentReattachesAtRoot(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	parent := env.mustCreateFolder(t, user.ID, "Parent", nil)
	child := env.mustCreateFolder(t, user.ID, "Child", &parent.ID)

	// Trash the child on its own, then trash the parent. Restoring the
	// child while its parent is still in trash must reattach it at the
	// root level.
	_, err := env.folders.DeleteFolder(ctx, user.ID, child.ID)
	require.NoError(t, err)
	_, err = env.folders.DeleteFolder(ctx, user.ID, parent.ID)
	require.NoError(t, err)

	restored, err := env.folders.RestoreFolder(ctx, user.ID, child.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.ParentID)
	assert.Equal(t, "/Child", restored.Path)
}

func TestTrashedFolderFreesName(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	first := env.mustCreateFolder(t, user.ID, "Docs", nil)
	_, err := env.folders.DeleteFolder(ctx, user.ID, first.ID)
	require.NoError(t, err)

	// The trashed namesake must not block recreating the folder.
	second, err := env.folders.CreateFolder(ctx, user.ID, &CreateFolderRequest{Name: "Docs"})
	require.NoError(t, err)
	assert.Equal(t, "/Docs", second.Path)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestListTrashTopLevelOnly(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	root := env.mustCreateFolder(t, user.ID, "Root", nil)
	env.mustCreateFolder(t, user.ID, "Nested", &root.ID)
	env.mustUpload(t, user.ID, "inner.txt", 10, &root.ID)
	loose := env.mustUpload(t, user.ID, "loose.txt", 10, nil)

	_, err := env.folders.DeleteFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)
	_, err = env.files.DeleteFile(ctx, user.ID, loose.ID)
	require.NoError(t, err)

	trash, err := env.folders.ListTrash(ctx, user.ID)
	require.NoError(t, err)

	// Only the trashed root and the loose file appear; their contents are
	// implied.
	require.Len(t, trash.Folders, 1)
	assert.Equal(t, root.ID, trash.Folders[0].ID)
	require.Len(t, trash.Files, 1)
	assert.Equal(t, loose.ID, trash.Files[0].ID)
}

func TestListTrashIsNotPaged(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	// Well past any listing page size.
	total := pkg.MaxLimit + 20
	now := time.Now()
	for i := 0; i < total; i++ {
		file := &models.File{
			UserID:    user.ID,
			Name:      fmt.Sprintf("junk-%03d.bin", i),
			Size:      1,
			IsTrashed: true,
			TrashedAt: &now,
		}
		require.NoError(t, env.repos.File.Create(ctx, file))
	}

	trash, err := env.folders.ListTrash(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, trash.Files, total)
}

func TestToggleFolderFavorite(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	folder := env.mustCreateFolder(t, user.ID, "Starred", nil)
	require.False(t, folder.IsFavorite)

	folder, err := env.folders.ToggleFavorite(ctx, user.ID, folder.ID)
	require.NoError(t, err)
	assert.True(t, folder.IsFavorite)

	folder, err = env.folders.ToggleFavorite(ctx, user.ID, folder.ID)
	require.NoError(t, err)
	assert.False(t, folder.IsFavorite)
}

func TestTrashTimestampSetOnSubtree(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<30)
	ctx := context.Background()

	root := env.mustCreateFolder(t, user.ID, "Old", nil)
	before := time.Now().Add(-time.Second)

	_, err := env.folders.DeleteFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)

	trashed, err := env.folders.GetFolder(ctx, user.ID, root.ID)
	require.NoError(t, err)
	require.NotNil(t, trashed.TrashedAt)
	assert.True(t, trashed.TrashedAt.After(before))
}
