package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
)

func TestQuotaAdmitCommitRelease(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1000)
	ctx := context.Background()

	require.NoError(t, env.quota.Admit(ctx, user.ID, 600))
	require.NoError(t, env.quota.Commit(ctx, user.ID, 600))

	err := env.quota.Admit(ctx, user.ID, 500)
	assert.ErrorIs(t, err, pkg.ErrQuotaExceeded)

	require.NoError(t, env.quota.Release(ctx, user.ID, 600))
	require.NoError(t, env.quota.Admit(ctx, user.ID, 500))

	usage, err := env.quota.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Used)
	assert.Equal(t, int64(1000), usage.Limit)
	assert.Equal(t, int64(1000), usage.Available)
}

func TestQuotaReleaseUnderflow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1000)
	ctx := context.Background()

	require.NoError(t, env.quota.Commit(ctx, user.ID, 100))

	// Releasing more than the ledger holds must fail loudly, not clamp.
	err := env.quota.Release(ctx, user.ID, 200)
	assert.ErrorIs(t, err, pkg.ErrQuotaUnderflow)
	assert.Equal(t, int64(100), env.storageUsed(t, user.ID))
}

func TestQuotaUsagePercentage(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 3000)
	ctx := context.Background()

	require.NoError(t, env.quota.Commit(ctx, user.ID, 1000))

	usage, err := env.quota.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.InDelta(t, 33.33, usage.Percentage, 0.001)
}

// recordingAlerts captures threshold notifications.
type recordingAlerts struct {
	mu    sync.Mutex
	calls []float64
}

func (r *recordingAlerts) SendStorageAlert(ctx context.Context, user *models.User, percentage float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, percentage)
	return nil
}

func TestQuotaAlertThresholds(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1000)
	ctx := context.Background()

	alerts := &recordingAlerts{}
	quota := NewQuotaService(env.repos.User, alerts, pkg.NopLogger())

	// 0 -> 50%: no threshold crossed.
	require.NoError(t, quota.Commit(ctx, user.ID, 500))
	assert.Empty(t, alerts.calls)

	// 50% -> 85%: crosses 80.
	require.NoError(t, quota.Commit(ctx, user.ID, 350))
	require.Len(t, alerts.calls, 1)
	assert.Equal(t, float64(80), alerts.calls[0])

	// 85% -> 96%: crosses 90 and 95, but only the highest is reported.
	require.NoError(t, quota.Commit(ctx, user.ID, 110))
	require.Len(t, alerts.calls, 2)
	assert.Equal(t, float64(95), alerts.calls[1])

	// Releases never alert.
	require.NoError(t, quota.Release(ctx, user.ID, 900))
	assert.Len(t, alerts.calls, 2)
}

func TestQuotaConservationAcrossLifecycle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, 1<<20)
	ctx := context.Background()

	folder := env.mustCreateFolder(t, user.ID, "Ledger", nil)
	env.mustUpload(t, user.ID, "a.bin", 111, &folder.ID)
	env.mustUpload(t, user.ID, "b.bin", 222, &folder.ID)
	loose := env.mustUpload(t, user.ID, "c.bin", 333, nil)
	require.Equal(t, int64(666), env.storageUsed(t, user.ID))

	// Trash everything; the ledger must not move.
	_, err := env.folders.DeleteFolder(ctx, user.ID, folder.ID)
	require.NoError(t, err)
	_, err = env.files.DeleteFile(ctx, user.ID, loose.ID)
	require.NoError(t, err)
	require.Equal(t, int64(666), env.storageUsed(t, user.ID))

	// Permanent deletes drain it back to zero exactly.
	_, err = env.folders.DeleteFolder(ctx, user.ID, folder.ID)
	require.NoError(t, err)
	_, err = env.files.DeleteFile(ctx, user.ID, loose.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), env.storageUsed(t, user.ID))
}
