package services

import (
	"context"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
)

// UserService handles accounts: registration, login, and full account
// deletion.
type UserService struct {
	userRepo   repository.UserRepository
	fileRepo   repository.FileRepository
	folderRepo repository.FolderRepository
	storage    *StorageService
	jwt        *pkg.JWTManager
	email      EmailService
	logger     zerolog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	repos *repository.Repository,
	storage *StorageService,
	jwt *pkg.JWTManager,
	email EmailService,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:   repos.User,
		fileRepo:   repos.File,
		folderRepo: repos.Folder,
		storage:    storage,
		jwt:        jwt,
		email:      email,
		logger:     logger.With().Str("service", "user").Logger(),
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued token and the public identity.
type AuthResponse struct {
	Token string                 `json:"token"`
	User  *models.PublicIdentity `json:"user"`
}

// Register creates a new account with the default storage limit.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := pkg.DefaultValidator.Validate(req); err != nil {
		return nil, pkg.ErrValidationFailed.WithDetails(map[string]interface{}{
			"errors": err,
		})
	}

	hashed, err := pkg.HashPassword(req.Password)
	if err != nil {
		return nil, pkg.ErrInternalServer.WithCause(err)
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hashed,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.email.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn().Err(err).Str("email", user.Email).Msg("failed to send welcome email")
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, pkg.ErrInternalServer.WithCause(err)
	}

	s.logger.Info().Str("user_id", user.ID.Hex()).Msg("user registered")
	pub := user.Public()
	return &AuthResponse{Token: token, User: &pub}, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password produce the same error.
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := pkg.DefaultValidator.Validate(req); err != nil {
		return nil, pkg.ErrValidationFailed.WithDetails(map[string]interface{}{
			"errors": err,
		})
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, pkg.ErrInvalidToken.WithDetails(map[string]interface{}{
			"message": "invalid credentials",
		})
	}
	if !pkg.VerifyPassword(req.Password, user.Password) {
		return nil, pkg.ErrInvalidToken.WithDetails(map[string]interface{}{
			"message": "invalid credentials",
		})
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, pkg.ErrInternalServer.WithCause(err)
	}
	pub := user.Public()
	return &AuthResponse{Token: token, User: &pub}, nil
}

// GetProfile returns the full account record for its owner.
func (s *UserService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// DeleteAccount removes the account and everything it owns: every blob,
// every file record, every folder, and finally the user itself.
func (s *UserService) DeleteAccount(ctx context.Context, userID primitive.ObjectID) error {
	files, err := s.fileRepo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	fileIDs := make([]primitive.ObjectID, 0, len(files))
	for _, file := range files {
		fileIDs = append(fileIDs, file.ID)
		if file.StorageKey == "" {
			continue
		}
		if err := s.storage.Delete(ctx, file.StorageKey); err != nil {
			s.logger.Warn().
				Err(err).
				Str("file_id", file.ID.Hex()).
				Str("key", file.StorageKey).
				Msg("failed to delete blob, leaving orphan")
		}
	}
	if _, err := s.fileRepo.DeleteByIDs(ctx, fileIDs); err != nil {
		return err
	}

	folders, err := s.folderRepo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	folderIDs := make([]primitive.ObjectID, 0, len(folders))
	for _, folder := range folders {
		folderIDs = append(folderIDs, folder.ID)
	}
	if _, err := s.folderRepo.DeleteByIDs(ctx, folderIDs); err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID.Hex()).
		Int("files", len(files)).
		Int("folders", len(folders)).
		Msg("account deleted")
	return nil
}
