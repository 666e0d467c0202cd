package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skyvault/skyvault/internal/models"
	"github.com/skyvault/skyvault/internal/repository"
)

// largestFilesLimit caps the "largest files" section of a storage report.
const largestFilesLimit = 10

// StatsService computes per-account storage reports and upload activity.
type StatsService struct {
	userRepo   repository.UserRepository
	fileRepo   repository.FileRepository
	folderRepo repository.FolderRepository
	quota      *QuotaService
	logger     zerolog.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(
	userRepo repository.UserRepository,
	fileRepo repository.FileRepository,
	folderRepo repository.FolderRepository,
	quota *QuotaService,
	logger zerolog.Logger,
) *StatsService {
	return &StatsService{
		userRepo:   userRepo,
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		quota:      quota,
		logger:     logger.With().Str("service", "stats").Logger(),
	}
}

// StorageReport is the account-wide storage summary.
type StorageReport struct {
	Quota            *QuotaUsage           `json:"quota"`
	TotalFiles       int64                 `json:"totalFiles"`
	TotalFolders     int64                 `json:"totalFolders"`
	FavoriteFiles    int64                 `json:"favoriteFiles"`
	TrashedFiles     int64                 `json:"trashedFiles"`
	ByType           []repository.TypeStat `json:"byType"`
	LargestFiles     []*models.File        `json:"largestFiles"`
	UploadsThisMonth int64                 `json:"uploadsThisMonth"`
}

// CalendarStats is a month of per-day upload activity.
type CalendarStats struct {
	Year  int                  `json:"year"`
	Month time.Month           `json:"month"`
	Days  []repository.DayStat `json:"days"`
}

// StorageReport builds the account summary: the quota ledger view, file
// and folder counts, the size distribution per file type, the largest
// files, and this month's upload count. Trashed content still occupies
// quota but is excluded from the distribution.
func (s *StatsService) StorageReport(ctx context.Context, userID primitive.ObjectID) (*StorageReport, error) {
	usage, err := s.quota.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}

	totalFiles, err := s.fileRepo.Count(ctx, userID, repository.FileFilter{Trashed: boolPtr(false)})
	if err != nil {
		return nil, err
	}

	folders, err := s.folderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var totalFolders int64
	for _, folder := range folders {
		if !folder.IsTrashed {
			totalFolders++
		}
	}

	favorites, err := s.fileRepo.Count(ctx, userID, repository.FileFilter{
		Trashed:  boolPtr(false),
		Favorite: boolPtr(true),
	})
	if err != nil {
		return nil, err
	}

	trashed, err := s.fileRepo.Count(ctx, userID, repository.FileFilter{Trashed: boolPtr(true)})
	if err != nil {
		return nil, err
	}

	byType, err := s.fileRepo.TypeDistribution(ctx, userID)
	if err != nil {
		return nil, err
	}

	largest, err := s.fileRepo.LargestFiles(ctx, userID, largestFilesLimit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	uploads, err := s.fileRepo.CountUploadedBetween(ctx, userID, monthStart, now)
	if err != nil {
		return nil, err
	}

	return &StorageReport{
		Quota:            usage,
		TotalFiles:       totalFiles,
		TotalFolders:     totalFolders,
		FavoriteFiles:    favorites,
		TrashedFiles:     trashed,
		ByType:           byType,
		LargestFiles:     largest,
		UploadsThisMonth: uploads,
	}, nil
}

// Calendar returns per-day upload counts and sizes for one month. Days
// without uploads are omitted.
func (s *StatsService) Calendar(ctx context.Context, userID primitive.ObjectID, year int, month time.Month) (*CalendarStats, error) {
	days, err := s.fileRepo.UploadsPerDay(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}
	if days == nil {
		days = []repository.DayStat{}
	}
	return &CalendarStats{Year: year, Month: month, Days: days}, nil
}
