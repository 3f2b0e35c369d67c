package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v1 "github.com/taskbridge/intake-backend/v1"
	"github.com/taskbridge/intake-backend/v1/handlers"
	"github.com/taskbridge/intake-backend/v1/middleware"
	"github.com/taskbridge/intake-backend/v1/models"
	"github.com/taskbridge/intake-backend/v1/services"
	"github.com/taskbridge/intake-backend/v1/utils"
)

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	slog.Info("Starting intake backend initialization")

	dbConfig := v1.NewDatabaseConfig()
	gormDB, err := v1.ConnectGormDB(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	err = gormDB.AutoMigrate(
		&models.Account{},
		&models.SubmissionProfile{},
		&models.JobDetail{},
		&models.ServiceDetail{},
		&models.RateCard{},
		&models.ProviderDocuments{},
		&models.LedgerEntry{},
		&models.CancellationLog{},
	)
	if err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("Failed to create storage client", "error", err)
		os.Exit(1)
	}
	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		slog.Error("GCP_PROJECT_ID environment variable is required")
		os.Exit(1)
	}

	buckets := services.BucketConfig{
		ProfileImages:     utils.GetEnvOrDefault("BUCKET_PROFILE_IMAGES", "taskbridge-profile-images"),
		JobAttachments:    utils.GetEnvOrDefault("BUCKET_JOB_ATTACHMENTS", "taskbridge-job-attachments"),
		ProviderDocuments: utils.GetEnvOrDefault("BUCKET_PROVIDER_DOCUMENTS", "taskbridge-provider-documents"),
	}

	storageService := services.NewStorageService(
		services.NewGCSStore(storageClient, projectID),
		services.NewFallbackStore(),
	)
	if err := storageService.EnsureBuckets(ctx, buckets.ProfileImages, buckets.JobAttachments, buckets.ProviderDocuments); err != nil {
		slog.Error("Failed to ensure storage buckets", "error", err)
		os.Exit(1)
	}

	adminConfig := middleware.AdminAuthConfig{
		Secret:         os.Getenv("ADMIN_JWT_SECRET"),
		ExpectedIssuer: utils.GetEnvOrDefault("ADMIN_JWT_ISSUER", "taskbridge-admin-portal"),
	}
	if err := adminConfig.Validate(); err != nil {
		slog.Error("Invalid admin auth configuration", "error", err)
		os.Exit(1)
	}
	adminAuth := middleware.NewAdminAuthMiddleware(adminConfig)

	submissionService := services.NewSubmissionService(gormDB, storageService, buckets)
	v1Handler := handlers.NewV1Handler(submissionService, adminAuth)

	apiMux := http.NewServeMux()
	v1Handler.SetupV1Routes(apiMux)

	corsMiddleware := middleware.NewCORSMiddleware()

	rootMux := http.NewServeMux()
	rootMux.Handle("/api/", corsMiddleware(apiMux))
	rootMux.Handle("/metrics", promhttp.Handler())
	rootMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	port := utils.GetEnvOrDefault("PORT", "8080")
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      rootMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Intake backend listening", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
