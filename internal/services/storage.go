package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/pkg"
)

// StorageProvider abstracts the blob backend that holds file content.
type StorageProvider interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*UploadResult, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	GetURL(ctx context.Context, key string) (string, error)
	GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error)
}

// UploadResult describes a stored blob.
type UploadResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	ETag string `json:"etag,omitempty"`
}

// StorageConfig configures the blob backend.
type StorageConfig struct {
	Provider     string   `json:"provider" mapstructure:"provider"`
	Bucket       string   `json:"bucket" mapstructure:"bucket"`
	Region       string   `json:"region" mapstructure:"region"`
	AccessKey    string   `json:"access_key" mapstructure:"access_key"`
	SecretKey    string   `json:"secret_key" mapstructure:"secret_key"`
	Endpoint     string   `json:"endpoint,omitempty" mapstructure:"endpoint"`
	BaseURL      string   `json:"base_url" mapstructure:"base_url"`
	LocalPath    string   `json:"local_path" mapstructure:"local_path"`
	AllowedTypes []string `json:"allowed_types" mapstructure:"allowed_types"`
	MaxFileSize  int64    `json:"max_file_size" mapstructure:"max_file_size"`
}

// StorageService validates uploads and delegates blob movement to the
// configured provider.
type StorageService struct {
	provider     StorageProvider
	providerType string
	allowedTypes []string
	maxFileSize  int64
}

// NewStorageService creates a new storage service.
func NewStorageService(config *StorageConfig) (*StorageService, error) {
	var provider StorageProvider
	var err error

	switch strings.ToLower(config.Provider) {
	case "s3", "aws":
		provider, err = NewS3Provider(config)
	case "local", "":
		provider, err = NewLocalProvider(config)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage provider: %w", err)
	}

	return &StorageService{
		provider:     provider,
		providerType: config.Provider,
		allowedTypes: config.AllowedTypes,
		maxFileSize:  config.MaxFileSize,
	}, nil
}

// BuildKey derives the blob key for a new upload. Keys are namespaced per
// user and randomized so renames never touch the blob store.
func (s *StorageService) BuildKey(userID primitive.ObjectID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("users/%s/%s%s", userID.Hex(), uuid.NewString(), ext)
}

// Upload validates and stores a blob.
func (s *StorageService) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*UploadResult, error) {
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return nil, pkg.ErrFileTooLarge.WithDetails(map[string]interface{}{
			"size": size,
			"max":  s.maxFileSize,
		})
	}
	if !s.isAllowedType(contentType) {
		return nil, pkg.ErrInvalidFileType.WithDetails(map[string]interface{}{
			"content_type": contentType,
		})
	}

	result, err := s.provider.Upload(ctx, key, body, size, contentType)
	if err != nil {
		return nil, pkg.ErrFileUploadFailed.WithCause(err)
	}
	return result, nil
}

// Download opens a blob for reading.
func (s *StorageService) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.provider.Download(ctx, key)
	if err != nil {
		return nil, pkg.ErrFileNotFound.WithCause(err)
	}
	return reader, nil
}

// Delete removes a blob.
func (s *StorageService) Delete(ctx context.Context, key string) error {
	if err := s.provider.Delete(ctx, key); err != nil {
		return pkg.ErrStorageProvider.WithCause(err)
	}
	return nil
}

// GetURL returns the public URL for a blob.
func (s *StorageService) GetURL(ctx context.Context, key string) (string, error) {
	url, err := s.provider.GetURL(ctx, key)
	if err != nil {
		return "", pkg.ErrStorageProvider.WithCause(err)
	}
	return url, nil
}

// GetPresignedURL returns a time-limited download URL for a blob.
func (s *StorageService) GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error) {
	url, err := s.provider.GetPresignedURL(ctx, key, expirySeconds)
	if err != nil {
		return "", pkg.ErrStorageProvider.WithCause(err)
	}
	return url, nil
}

func (s *StorageService) isAllowedType(contentType string) bool {
	if len(s.allowedTypes) == 0 {
		return true
	}
	for _, allowed := range s.allowedTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

// S3Provider stores blobs in S3 or any S3-compatible service.
type S3Provider struct {
	s3Client *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	region   string
	baseURL  string
}

// NewS3Provider creates a new S3 provider.
func NewS3Provider(config *StorageConfig) (*S3Provider, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:   aws.String(config.Region),
		Endpoint: aws.String(config.Endpoint),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		S3ForcePathStyle: aws.Bool(config.Endpoint != ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Provider{
		s3Client: s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   config.Bucket,
		region:   config.Region,
		baseURL:  config.BaseURL,
	}, nil
}

// Upload uploads a blob to S3.
func (p *S3Provider) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*UploadResult, error) {
	result, err := p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	upload := &UploadResult{
		Key:  key,
		URL:  result.Location,
		Size: size,
	}
	if result.ETag != nil {
		upload.ETag = strings.Trim(*result.ETag, "\"")
	}
	return upload, nil
}

// Download downloads a blob from S3.
func (p *S3Provider) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := p.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return result.Body, nil
}

// Delete deletes a blob from S3.
func (p *S3Provider) Delete(ctx context.Context, key string) error {
	_, err := p.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// GetURL gets the public URL for an S3 object.
func (p *S3Provider) GetURL(ctx context.Context, key string) (string, error) {
	if p.baseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(p.baseURL, "/"), key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key), nil
}

// GetPresignedURL generates a presigned URL for an S3 object.
func (p *S3Provider) GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error) {
	req, _ := p.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(time.Duration(expirySeconds) * time.Second)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

// LocalProvider stores blobs on the local filesystem, mainly for
// development and tests.
type LocalProvider struct {
	basePath string
	baseURL  string
}

// NewLocalProvider creates a new local provider.
func NewLocalProvider(config *StorageConfig) (*LocalProvider, error) {
	basePath := config.LocalPath
	if basePath == "" {
		basePath = "./storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalProvider{
		basePath: basePath,
		baseURL:  config.BaseURL,
	}, nil
}

func (p *LocalProvider) path(key string) string {
	return filepath.Join(p.basePath, filepath.FromSlash(key))
}

// Upload writes a blob to the local filesystem.
func (p *LocalProvider) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*UploadResult, error) {
	path := p.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, body)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}

	url, _ := p.GetURL(ctx, key)
	return &UploadResult{
		Key:  key,
		URL:  url,
		Size: written,
	}, nil
}

// Download opens a blob from the local filesystem.
func (p *LocalProvider) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(p.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes a blob from the local filesystem. Missing blobs are not
// an error so deletes stay idempotent.
func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	if err := os.Remove(p.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// GetURL gets the URL for a local blob.
func (p *LocalProvider) GetURL(ctx context.Context, key string) (string, error) {
	if p.baseURL == "" {
		return "/" + key, nil
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(p.baseURL, "/"), key), nil
}

// GetPresignedURL is not applicable for local storage.
func (p *LocalProvider) GetPresignedURL(ctx context.Context, key string, expirySeconds int) (string, error) {
	return p.GetURL(ctx, key)
}
