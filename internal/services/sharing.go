package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/metrics"
	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
)

const (
	// shareTokenBytes is the entropy of a share token. The token itself
	// is the hex encoding, twice as many characters.
	shareTokenBytes = 20

	// defaultShareDays is the link lifetime when the owner does not pick
	// one.
	defaultShareDays = 7
)

// ShareService issues, resolves, and revokes public share links on files.
type ShareService struct {
	fileRepo repository.FileRepository
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewShareService creates a new share service.
func NewShareService(fileRepo repository.FileRepository, userRepo repository.UserRepository, logger zerolog.Logger) *ShareService {
	return &ShareService{
		fileRepo: fileRepo,
		userRepo: userRepo,
		logger:   logger.With().Str("service", "share").Logger(),
	}
}

// ShareLink is what the owner gets back after issuing a link.
type ShareLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SharedFileView is what a link resolves to: the file plus the sharer's
// public identity, and nothing of the storage internals.
type SharedFileView struct {
	Name     string                `json:"name"`
	Type     models.FileType       `json:"type"`
	Size     int64                 `json:"size"`
	MimeType string                `json:"mimeType"`
	URL      string                `json:"url"`
	Views    int64                 `json:"views"`
	Owner    models.PublicIdentity `json:"owner"`
}

// ShareFile issues a share link on an owned, active file. Re-sharing an
// already shared file rotates the token and resets the expiry.
func (s *ShareService) ShareFile(ctx context.Context, userID, fileID primitive.ObjectID, expiresInDays int) (*ShareLink, error) {
	if expiresInDays < 0 {
		return nil, pkg.ErrInvalidInput.WithDetails(map[string]interface{}{
			"message": "expiry must not be negative",
		})
	}
	if expiresInDays == 0 {
		expiresInDays = defaultShareDays
	}

	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsTrashed {
		return nil, pkg.ErrFileNotFound
	}

	token, err := pkg.GenerateSecureToken(shareTokenBytes)
	if err != nil {
		return nil, pkg.ErrInternalServer.WithCause(err)
	}
	expiresAt := time.Now().Add(time.Duration(expiresInDays) * 24 * time.Hour)

	if err := s.mutate(ctx, file, func(f *models.File) {
		f.ShareToken = token
		f.ShareExpire = &expiresAt
		f.IsShared = true
	}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("file_id", fileID.Hex()).
		Time("expires_at", expiresAt).
		Msg("share link issued")
	return &ShareLink{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveShare looks up a share token and returns the anonymous file
// view. Expired, revoked, and trashed targets all resolve to not-found
// so a caller cannot tell which case they hit. Each successful resolve
// bumps the view counter.
func (s *ShareService) ResolveShare(ctx context.Context, token string) (*SharedFileView, error) {
	if token == "" {
		return nil, pkg.ErrShareNotFound
	}

	file, err := s.fileRepo.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if file.IsTrashed || !file.ShareActive(time.Now()) {
		return nil, pkg.ErrShareNotFound
	}

	// A share on a deleted account is as dead as an expired one.
	owner, err := s.userRepo.GetByID(ctx, file.UserID)
	if err != nil {
		return nil, pkg.ErrShareNotFound
	}

	if err := s.fileRepo.IncrementViews(ctx, file.ID); err != nil {
		s.logger.Warn().Err(err).Str("file_id", file.ID.Hex()).Msg("failed to bump view counter")
	}

	metrics.ShareResolves.Inc()
	return &SharedFileView{
		Name:     file.Name,
		Type:     file.Type,
		Size:     file.Size,
		MimeType: file.MimeType,
		URL:      file.URL,
		Views:    file.Views + 1,
		Owner:    owner.Public(),
	}, nil
}

// RevokeShare invalidates a file's share link.
func (s *ShareService) RevokeShare(ctx context.Context, userID, fileID primitive.ObjectID) error {
	file, err := s.getOwned(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if !file.IsShared {
		return nil
	}

	if err := s.mutate(ctx, file, func(f *models.File) {
		f.ShareToken = ""
		f.ShareExpire = nil
		f.IsShared = false
	}); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Str("file_id", fileID.Hex()).
		Msg("share link revoked")
	return nil
}

func (s *ShareService) getOwned(ctx context.Context, userID, fileID primitive.ObjectID) (*models.File, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, pkg.ErrFileNotFound
	}
	return file, nil
}

func (s *ShareService) mutate(ctx context.Context, file *models.File, mutate func(*models.File)) error {
	var err error
	for attempt := 0; attempt < casRetries; attempt++ {
		mutate(file)
		err = s.fileRepo.Update(ctx, file)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
		file, err = s.fileRepo.GetByID(ctx, file.ID)
		if err != nil {
			return err
		}
	}
	return pkg.ErrConflict
}

func isConflict(err error) bool {
	return errors.Is(err, pkg.ErrConflict)
}
