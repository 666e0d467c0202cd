// Package worker runs the background maintenance loops.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/metrics"
	"github.com/skyvault/skyvault/internal/repository"
	"github.com/skyvault/skyvault/internal/services"
)

const (
	// DefaultRetention is how long trashed items survive before the sweep
	// removes them permanently.
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultSweepInterval is how often the sweep loop wakes up.
	DefaultSweepInterval = time.Hour
)

// CleanupWorker permanently removes trashed items that outlived the
// retention window, freeing their blobs and returning their bytes to the
// owners' quota ledgers.
type CleanupWorker struct {
	repos     *repository.Repository
	folderSvc *services.FolderService
	storage   *services.StorageService
	quota     *services.QuotaService
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

// SweepResult reports one sweep run.
type SweepResult struct {
	StartedAt      time.Time `json:"startedAt"`
	Duration       string    `json:"duration"`
	UsersSwept     int       `json:"usersSwept"`
	FoldersRemoved int64     `json:"foldersRemoved"`
	FilesRemoved   int64     `json:"filesRemoved"`
	BytesFreed     int64     `json:"bytesFreed"`
	Errors         int       `json:"errors"`
}

// NewCleanupWorker creates a new cleanup worker. Zero retention or
// interval fall back to the defaults.
func NewCleanupWorker(
	repos *repository.Repository,
	folderSvc *services.FolderService,
	storage *services.StorageService,
	quota *services.QuotaService,
	retention time.Duration,
	interval time.Duration,
	logger zerolog.Logger,
) *CleanupWorker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &CleanupWorker{
		repos:     repos,
		folderSvc: folderSvc,
		storage:   storage,
		quota:     quota,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("worker", "cleanup").Logger(),
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("interval", w.interval).
		Dur("retention", w.retention).
		Msg("cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("cleanup worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep runs one retention pass over every account.
func (w *CleanupWorker) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{StartedAt: time.Now()}
	cutoff := result.StartedAt.Add(-w.retention)

	users, err := w.repos.User.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := w.sweepUser(ctx, user.ID, cutoff, result); err != nil {
			result.Errors++
			w.logger.Error().
				Err(err).
				Str("user_id", user.ID.Hex()).
				Msg("failed to sweep user")
		}
		result.UsersSwept++
	}

	result.Duration = time.Since(result.StartedAt).String()
	metrics.SweepRuns.Inc()

	w.logger.Info().
		Int("users", result.UsersSwept).
		Int64("folders_removed", result.FoldersRemoved).
		Int64("files_removed", result.FilesRemoved).
		Int64("bytes_freed", result.BytesFreed).
		Int("errors", result.Errors).
		Msg("sweep completed")
	return result, nil
}

// sweepUser removes one account's expired trash. Folders go first so a
// file inside an expired folder is not deleted twice; the folder cascade
// already handles everything underneath it.
func (w *CleanupWorker) sweepUser(ctx context.Context, userID primitive.ObjectID, cutoff time.Time, result *SweepResult) error {
	folders, err := w.repos.Folder.ListTrashedBefore(ctx, userID, cutoff)
	if err != nil {
		return err
	}

	removed := make(map[primitive.ObjectID]struct{})
	for _, folder := range folders {
		if _, gone := removed[folder.ID]; gone {
			continue
		}
		// The cascade may have taken this folder out already as part of
		// an ancestor's subtree.
		if _, err := w.repos.Folder.GetByID(ctx, folder.ID); err != nil {
			continue
		}

		res, err := w.folderSvc.DeleteFolder(ctx, userID, folder.ID)
		if err != nil {
			return err
		}
		removed[folder.ID] = struct{}{}
		result.FoldersRemoved += res.FoldersRemoved
		result.FilesRemoved += res.FilesRemoved
		result.BytesFreed += res.BytesFreed
	}

	files, err := w.repos.File.ListTrashedBefore(ctx, userID, cutoff)
	if err != nil {
		return err
	}
	for _, file := range files {
		// Already removed through a folder cascade above.
		if _, err := w.repos.File.GetByID(ctx, file.ID); err != nil {
			continue
		}

		if file.StorageKey != "" {
			if err := w.storage.Delete(ctx, file.StorageKey); err != nil {
				w.logger.Warn().
					Err(err).
					Str("file_id", file.ID.Hex()).
					Str("key", file.StorageKey).
					Msg("failed to delete blob, leaving orphan")
			}
		}
		if err := w.repos.File.Delete(ctx, file.ID); err != nil {
			return err
		}
		if err := w.quota.Release(ctx, userID, file.Size); err != nil {
			return err
		}

		result.FilesRemoved++
		result.BytesFreed += file.Size
		metrics.PermanentDeletes.Inc()
		metrics.BytesFreed.Add(float64(file.Size))
	}
	return nil
}
