package services

import (
	"context"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
)

// Storage alert thresholds as percentages of the account limit.
var alertThresholds = []float64{80, 90, 95}

// StorageAlertSender notifies a user that their account is close to full.
type StorageAlertSender interface {
	SendStorageAlert(ctx context.Context, user *models.User, percentage float64) error
}

// QuotaService maintains the per-user storage ledger. Every byte admitted
// into the account goes through Admit before the upload and Commit after it,
// and comes back out through Release when content is permanently removed.
type QuotaService struct {
	userRepo repository.UserRepository
	alerts   StorageAlertSender
	logger   zerolog.Logger
}

// QuotaUsage is a point-in-time view of a user's ledger.
type QuotaUsage struct {
	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Available  int64   `json:"available"`
	Percentage float64 `json:"percentage"`
}

// NewQuotaService creates a new quota service. alerts may be nil when
// threshold notifications are disabled.
func NewQuotaService(userRepo repository.UserRepository, alerts StorageAlertSender, logger zerolog.Logger) *QuotaService {
	return &QuotaService{
		userRepo: userRepo,
		alerts:   alerts,
		logger:   logger.With().Str("service", "quota").Logger(),
	}
}

// Admit checks whether size additional bytes fit within the user's limit.
// It does not reserve anything. Callers follow a successful upload with
// Commit, which is the authoritative ledger movement.
func (s *QuotaService) Admit(ctx context.Context, userID primitive.ObjectID, size int64) error {
	if size < 0 {
		return pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "size must not be negative",
		})
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.StorageUsed+size > user.StorageLimit {
		return pkg.ErrQuotaExceeded.WithDetails(map[string]interface{}{
			"requested": size,
			"used":      user.StorageUsed,
			"limit":     user.StorageLimit,
			"available": user.StorageLeft(),
		})
	}
	return nil
}

// Commit records size bytes against the user's ledger and fires a storage
// alert when the movement crosses an alert threshold.
func (s *QuotaService) Commit(ctx context.Context, userID primitive.ObjectID, size int64) error {
	if size == 0 {
		return nil
	}

	before, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdateStorageUsed(ctx, userID, size); err != nil {
		return err
	}

	s.logger.Debug().
		Str("user_id", userID.Hex()).
		Int64("delta", size).
		Msg("quota committed")

	s.maybeAlert(ctx, before, size)
	return nil
}

// Release returns size bytes to the user's ledger. The repository rejects
// movements that would drive the ledger negative, and that error is
// surfaced rather than clamped so callers notice accounting bugs.
func (s *QuotaService) Release(ctx context.Context, userID primitive.ObjectID, size int64) error {
	if size < 0 {
		return pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "size must not be negative",
		})
	}
	if size == 0 {
		return nil
	}

	if err := s.userRepo.UpdateStorageUsed(ctx, userID, -size); err != nil {
		return err
	}

	s.logger.Debug().
		Str("user_id", userID.Hex()).
		Int64("delta", -size).
		Msg("quota released")
	return nil
}

// Usage returns the user's current ledger view.
func (s *QuotaService) Usage(ctx context.Context, userID primitive.ObjectID) (*QuotaUsage, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &QuotaUsage{
		Used:       user.StorageUsed,
		Limit:      user.StorageLimit,
		Available:  user.StorageLeft(),
		Percentage: user.StoragePercentage(),
	}, nil
}

// maybeAlert sends at most one notification per commit, for the highest
// threshold the movement crossed.
func (s *QuotaService) maybeAlert(ctx context.Context, before *models.User, delta int64) {
	if s.alerts == nil || before.StorageLimit <= 0 || delta <= 0 {
		return
	}

	prevPct := float64(before.StorageUsed) / float64(before.StorageLimit) * 100
	newPct := float64(before.StorageUsed+delta) / float64(before.StorageLimit) * 100

	var crossed float64
	for _, threshold := range alertThresholds {
		if prevPct < threshold && newPct >= threshold {
			crossed = threshold
		}
	}
	if crossed == 0 {
		return
	}

	after := *before
	after.StorageUsed += delta
	if err := s.alerts.SendStorageAlert(ctx, &after, crossed); err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", before.ID.Hex()).
			Float64("threshold", crossed).
			Msg("failed to send storage alert")
	}
}
