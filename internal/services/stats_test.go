package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/internal/models"
)

func TestStorageReport(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 10000)
	ctx := context.Background()

	env.mustCreateFolder(t, user.ID, "Stuff", nil)

	_, err := env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name: "photo.png", Size: 500, MimeType: "image/png",
		Body: testBody(500),
	})
	require.NoError(t, err)
	_, err = env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name: "paper.pdf", Size: 2000, MimeType: "application/pdf",
		Body: testBody(2000),
	})
	require.NoError(t, err)
	_, err = env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name: "scan.pdf", Size: 1000, MimeType: "application/pdf",
		Body: testBody(1000),
	})
	require.NoError(t, err)

	favorite := env.mustUpload(t, user.ID, "starred.txt", 100, nil)
	_, err = env.files.ToggleFavorite(ctx, user.ID, favorite.ID)
	require.NoError(t, err)

	report, err := env.stats.StorageReport(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(3600), report.Quota.Used)
	assert.Equal(t, int64(4), report.TotalFiles)
	assert.Equal(t, int64(1), report.TotalFolders)
	assert.Equal(t, int64(1), report.FavoriteFiles)
	assert.Equal(t, int64(0), report.TrashedFiles)
	assert.Equal(t, int64(4), report.UploadsThisMonth)
	assert.InDelta(t, 36.0, report.Quota.Percentage, 0.01)

	// Types ordered by total size, largest first.
	require.Len(t, report.ByType, 3)
	assert.Equal(t, models.FileTypePDF, report.ByType[0].Type)
	assert.Equal(t, int64(3000), report.ByType[0].TotalSize)
	assert.Equal(t, int64(2), report.ByType[0].Count)
	assert.Equal(t, models.FileTypeImage, report.ByType[1].Type)
	assert.Equal(t, models.FileTypeOther, report.ByType[2].Type)

	// Largest files descend by size.
	require.NotEmpty(t, report.LargestFiles)
	assert.Equal(t, "paper.pdf", report.LargestFiles[0].Name)
}

func TestStorageReportExcludesTrashedFromDistribution(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 10000)
	ctx := context.Background()

	file, err := env.files.Upload(ctx, user.ID, &UploadFileRequest{
		Name: "gone.png", Size: 400, MimeType: "image/png",
		Body: testBody(400),
	})
	require.NoError(t, err)

	_, err = env.files.DeleteFile(ctx, user.ID, file.ID)
	require.NoError(t, err)

	report, err := env.stats.StorageReport(ctx, user.ID)
	require.NoError(t, err)

	// Trashed content still occupies quota but is not listed.
	assert.Equal(t, int64(400), report.Quota.Used)
	assert.Equal(t, int64(0), report.TotalFiles)
	assert.Equal(t, int64(1), report.TrashedFiles)
	assert.Empty(t, report.ByType)
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 10000)
	ctx := context.Background()

	env.mustUpload(t, user.ID, "today1.txt", 100, nil)
	env.mustUpload(t, user.ID, "today2.txt", 200, nil)

	now := time.Now().UTC()
	stats, err := env.stats.Calendar(ctx, user.ID, now.Year(), now.Month())
	require.NoError(t, err)

	require.Len(t, stats.Days, 1)
	assert.Equal(t, now.Format("2006-01-02"), stats.Days[0].Day)
	assert.Equal(t, int64(2), stats.Days[0].Count)
	assert.Equal(t, int64(300), stats.Days[0].TotalSize)

	// A month with no uploads yields an empty, non-nil slice.
	empty, err := env.stats.Calendar(ctx, user.ID, 2001, time.March)
	require.NoError(t, err)
	assert.Empty(t, empty.Days)
	assert.NotNil(t, empty.Days)
}
