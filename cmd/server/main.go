package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agjmills/assetadmin/internal/assets"
	"github.com/agjmills/assetadmin/internal/auth"
	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database"
	"github.com/agjmills/assetadmin/internal/flash"
	"github.com/agjmills/assetadmin/internal/handlers"
	"github.com/agjmills/assetadmin/internal/logger"
	internalMiddleware "github.com/agjmills/assetadmin/internal/middleware"
	"github.com/agjmills/assetadmin/internal/routes"
	"github.com/agjmills/assetadmin/internal/storage"
	"github.com/agjmills/assetadmin/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Env, cfg.LogLevel)

	logger.Info("configuration loaded",
		"max_upload_mb", float64(cfg.MaxUploadSize)/(1024*1024),
		"page_length", cfg.PageLength,
		"storage_backend", cfg.StorageBackend,
		"timezone", cfg.DateLocation().String(),
		"env", cfg.Env,
	)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if _, err := auth.EnsureAdmin(context.Background(), db, cfg); err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}

	if err := handlers.LoadTemplates(web.FS); err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	if err := internalMiddleware.LoadErrorTemplates(web.FS); err != nil {
		log.Fatalf("Failed to load error templates: %v", err)
	}

	categories := assets.DefaultCategories()
	if cfg.CategoriesFile != "" {
		categories, err = assets.LoadCategories(cfg.CategoriesFile)
		if err != nil {
			log.Fatalf("Failed to load categories: %v", err)
		}
	}

	blobs, err := storage.NewBackendFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if err := blobs.ValidateAccess(context.Background()); err != nil {
		log.Fatalf("Storage backend is not usable: %v", err)
	}

	sessionManager, err := auth.NewSessionManager(db, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	svc := assets.NewService(db, blobs, assets.Options{
		Composer: assets.Composer{
			Categories: categories,
			Location:   cfg.DateLocation(),
		},
		Names:             assets.NameGenerator{MaxAttempts: cfg.NameMaxAttempts},
		DefaultFolderName: cfg.DefaultFolderName,
		MaxUploadSize:     cfg.MaxUploadSize,
	})

	flash.Secure = cfg.Env == "production"

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(internalMiddleware.TrustedRealIP(internalMiddleware.ParseTrustedCIDRs(cfg.TrustedProxies)))
	r.Use(internalMiddleware.LoggingMiddleware)
	r.Use(internalMiddleware.RecoverMiddleware)
	r.Use(internalMiddleware.SecurityHeaders)

	versionInfo := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	routes.Setup(r, db, cfg, svc, blobs, sessionManager, versionInfo)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting assetadmin server",
			"address", server.Addr,
			"environment", cfg.Env,
			"version", versionInfo,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if closer, ok := blobs.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close storage backend", "error", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server stopped")
}
