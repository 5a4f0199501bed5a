// ./fieldcam-backend/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldcam/backend/internal/auth"
	"fieldcam/backend/internal/capture"
	"fieldcam/backend/internal/config"
	"fieldcam/backend/internal/database"
	"fieldcam/backend/internal/geofence"
	"fieldcam/backend/internal/handlers"
	"fieldcam/backend/internal/location"
	"fieldcam/backend/internal/logging"
	"fieldcam/backend/internal/middleware"
	"fieldcam/backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	if cfg.MongoURI == "" {
		logger.Fatal("MONGO_URI environment variable not set")
	}
	client, err := database.Connect(ctx, cfg.MongoURI, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(shutdownCtx); err != nil {
			logger.Warn("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}()
	db := client.Database(cfg.DBName)

	photos := database.NewPhotoRepository(db)
	if err := photos.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create photo indexes", zap.Error(err))
	}
	files, err := database.NewLocalFiles(cfg.UploadDir)
	if err != nil {
		logger.Fatal("Failed to prepare upload directory", zap.Error(err))
	}

	// Initialize Session Manager
	provider := auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.Scopes, cfg.SignInTimeout, logger)
	sessions := auth.NewManager(provider, database.NewSessionStore(db), logger)
	if err := sessions.Restore(ctx); err != nil {
		logger.Warn("Could not restore session, starting signed out", zap.Error(err))
	}

	// Initialize remote store
	store, sheet, err := newBackend(ctx, cfg, sessions.HTTPClient(nil), logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage backend", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}

	provisioner := services.NewProvisioner(store, sheet, services.ProvisionerConfig{
		RootFolderID:    cfg.RootFolderID,
		SpreadsheetID:   cfg.SpreadsheetID,
		SpreadsheetName: cfg.SpreadsheetName,
	}, logger)
	status := services.NewStatusTracker(cfg.StatusDisplayDuration)
	uploader, err := services.NewUploader(sessions, provisioner, store, sheet, status, services.UploaderConfig{
		UnknownLocationFolderID: cfg.UnknownLocationFolderID,
		Zone:                    cfg.ReferenceZone,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize uploader", zap.Error(err))
	}

	// Initialize Location Watcher
	resolver := geofence.NewResolver(cfg.Properties)
	feed := location.NewFeed()
	watcher := location.NewWatcher(feed, resolver, location.Options{
		HighAccuracy: true,
		Timeout:      cfg.LocationTimeout,
		MaximumAge:   cfg.LocationMaxAge,
	}, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Location watcher stopped", zap.Error(err))
		}
	}()

	stamper, err := capture.NewStamper(capture.Options{
		Position: capture.Position(cfg.Stamp.Position),
		Format:   capture.Format(cfg.Stamp.Format),
		Color:    cfg.Stamp.Color,
		Quality:  capture.Quality(cfg.Stamp.Quality),
		Zone:     cfg.ReferenceZone,
	})
	if err != nil {
		logger.Fatal("Failed to initialize stamper", zap.Error(err))
	}

	photoHandler := handlers.NewPhotoHandler(photos, files, stamper, uploader, sessions, watcher, handlers.PhotoHandlerConfig{
		Zone:         cfg.ReferenceZone,
		GalleryLimit: cfg.GalleryLimit,
	}, logger)
	locationHandler := &handlers.LocationHandler{Feed: feed, Watcher: watcher, Resolver: resolver, Log: logger}
	syncHandler := &handlers.SyncHandler{Status: status, Layout: provisioner}
	sessionHandler := &auth.Handler{Manager: sessions, Pending: provider, Log: logger}

	// Initialize Gin Router
	router := gin.New()
	router.Use(middleware.RequestLoggerMiddleware(logger), middleware.RecoveryMiddleware(logger))
	router.GET("/health", handlers.HealthCheck)

	api := router.Group("/api/v1")
	{
		protected := api.Group("/").Use(middleware.APIKeyMiddleware(cfg.APIKey))
		{
			// CAPTURE ROUTES
			protected.POST("/captures", photoHandler.CreateCapture)
			protected.GET("/photos", photoHandler.ListPhotos)
			protected.GET("/photos/:id", photoHandler.GetPhoto)
			protected.GET("/photos/:id/image", photoHandler.GetPhotoImage)
			protected.DELETE("/photos/:id", photoHandler.DeletePhoto)
			protected.DELETE("/photos", photoHandler.ClearPhotos)

			// LOCATION ROUTES
			protected.POST("/location", locationHandler.PostFix)
			protected.POST("/location/error", locationHandler.PostError)
			protected.GET("/location", locationHandler.GetLocation)

			// SESSION ROUTES
			protected.POST("/session", sessionHandler.SignIn)
			protected.GET("/session", sessionHandler.GetSession)
			protected.DELETE("/session", sessionHandler.SignOut)

			// SYNC ROUTES
			protected.GET("/sync/status", syncHandler.GetStatus)
		}
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("backend", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// newBackend builds the remote store for cfg.StorageBackend. The log sheet is
// always Google Sheets; off Drive it needs a fixed SPREADSHEET_ID because a
// created sheet cannot be filed under a non-Drive root.
func newBackend(ctx context.Context, cfg *config.Config, authed *http.Client, logger *zap.Logger) (services.Store, services.LogSheet, error) {
	switch cfg.StorageBackend {
	case config.BackendDrive:
		drive, err := services.NewDriveStore(ctx, logger, option.WithHTTPClient(authed))
		if err != nil {
			return nil, nil, err
		}
		sheet, err := services.NewSheetsLog(ctx, drive, logger, option.WithHTTPClient(authed))
		if err != nil {
			return nil, nil, err
		}
		return drive, sheet, nil
	case config.BackendMega:
		mega, err := services.NewMegaStore(cfg.Mega.Email, cfg.Mega.Password, logger)
		if err != nil {
			return nil, nil, err
		}
		sheet, err := fixedSheet(ctx, cfg, authed, logger)
		if err != nil {
			return nil, nil, err
		}
		return mega, sheet, nil
	case config.BackendS3:
		s3, err := services.NewS3Store(ctx, services.S3Options{
			Region:       cfg.S3.Region,
			RootUser:     cfg.S3.RootUser,
			RootPassword: cfg.S3.RootPassword,
			BaseEndpoint: cfg.S3.BaseEndpoint,
			Bucket:       cfg.S3.Bucket,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		sheet, err := fixedSheet(ctx, cfg, authed, logger)
		if err != nil {
			return nil, nil, err
		}
		return s3, sheet, nil
	}
	return nil, nil, errors.New("unknown storage backend " + cfg.StorageBackend)
}

func fixedSheet(ctx context.Context, cfg *config.Config, authed *http.Client, logger *zap.Logger) (services.LogSheet, error) {
	if cfg.SpreadsheetID == "" {
		logger.Warn("SPREADSHEET_ID not set, uploads will not be logged")
		return nil, nil
	}
	sheet, err := services.NewSheetsLog(ctx, nil, logger, option.WithHTTPClient(authed))
	if err != nil {
		return nil, err
	}
	return sheet, nil
}
