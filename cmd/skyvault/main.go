package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skyvault/skyvault/internal/config"
	"github.com/skyvault/skyvault/internal/handlers"
	"github.com/skyvault/skyvault/internal/pkg"
	"github.com/skyvault/skyvault/internal/repository"
	"github.com/skyvault/skyvault/internal/repository/badgerstore"
	"github.com/skyvault/skyvault/internal/services"
	"github.com/skyvault/skyvault/internal/worker"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "skyvault",
		Short: "SkyVault cloud storage engine",
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file")
	root.AddCommand(serveCmd(), sweepCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired application.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	repos   *repository.Repository
	redis   *redis.Client
	quota   *services.QuotaService
	storage *services.StorageService
	folders *services.FolderService
	files   *services.FileService
	shares  *services.ShareService
	stats   *services.StatsService
	users   *services.UserService
	jwt     *pkg.JWTManager
	cleanup *worker.CleanupWorker
	close   func() error
}

func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger := pkg.NewLogger(cfg.Log.Level, cfg.Log.Format)

	var repos *repository.Repository
	closeStore := func() error { return nil }

	switch cfg.Storage.Driver {
	case "mongo":
		mongodb, err := repository.Connect(cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
		if err != nil {
			return nil, err
		}
		repos = repository.NewRepositories(mongodb)
		closeStore = mongodb.Disconnect
	case "badger":
		store, err := badgerstore.Open(cfg.Storage.Badger.Dir)
		if err != nil {
			return nil, err
		}
		repos = badgerstore.NewRepositories(store)
		closeStore = store.Close
	}

	storage, err := services.NewStorageService(&cfg.Blob)
	if err != nil {
		closeStore()
		return nil, err
	}

	var email services.EmailService = services.NopEmailService{}
	if cfg.Email.Enabled {
		email = services.NewSMTPEmailService(&cfg.Email.EmailConfig, logger)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	jwt := pkg.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer)

	quota := services.NewQuotaService(repos.User, email, logger)
	folders := services.NewFolderService(repos.Folder, repos.File, quota, storage, logger)
	files := services.NewFileService(repos.File, repos.Folder, quota, storage, logger)
	shares := services.NewShareService(repos.File, repos.User, logger)
	stats := services.NewStatsService(repos.User, repos.File, repos.Folder, quota, logger)
	users := services.NewUserService(repos, storage, jwt, email, logger)

	cleanup := worker.NewCleanupWorker(repos, folders, storage, quota,
		cfg.Cleanup.Retention, cfg.Cleanup.Interval, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		repos:   repos,
		redis:   rdb,
		quota:   quota,
		storage: storage,
		folders: folders,
		files:   files,
		shares:  shares,
		stats:   stats,
		users:   users,
		jwt:     jwt,
		cleanup: cleanup,
		close: func() error {
			if rdb != nil {
				rdb.Close()
			}
			return closeStore()
		},
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the retention sweep loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			h := handlers.NewHandlers(a.users, a.files, a.folders, a.shares, a.stats, a.quota)
			router := handlers.NewRouter(handlers.RouterConfig{
				JWT:            a.jwt,
				Redis:          a.redis,
				RateLimit:      a.cfg.Limits,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				Logger:         a.logger,
			}, h.Auth, h.Files, h.Folders, h.Download, h.Share, h.Stats)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go a.cleanup.Run(ctx)

			srv := &http.Server{
				Addr:    a.cfg.Server.Addr(),
				Handler: router,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			a.logger.Info().Str("addr", srv.Addr).Msg("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one trash retention sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.cleanup.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info().
				Int64("files_removed", result.FilesRemoved).
				Int64("folders_removed", result.FoldersRemoved).
				Int64("bytes_freed", result.BytesFreed).
				Msg("sweep finished")
			return nil
		},
	}
}
