package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/givemetry/advancement/internal/application/analysis"
	"github.com/givemetry/advancement/internal/application/ingest"
	"github.com/givemetry/advancement/internal/bootstrap"
	"github.com/givemetry/advancement/internal/config"
	"github.com/givemetry/advancement/internal/infrastructure/repository"
	"github.com/givemetry/advancement/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	log := cfg.Logger()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("create pgx pool: %v", err)
	}
	defer pool.Close()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	jobRepo := repository.NewUploadJobRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	entityRepo := repository.NewEntityBulkRepository(pool)
	analysisRepo := repository.NewAnalysisRepository(pool)
	fileStore := storage.NewLocalStore(cfg.UploadBaseDir)

	refreshWorker := analysis.NewRefreshWorker(analysisRepo, auditRepo, log, analysis.RefreshConfig{
		PollInterval: cfg.AnalysisPollInterval,
		BatchSize:    cfg.AnalysisBatchSize,
	})
	refreshWorker.Start(workerCtx)

	uploadWorker := ingest.NewUploadWorker(jobRepo, fileStore, entityRepo, auditRepo, refreshWorker, log, ingest.UploadWorkerConfig{
		PollInterval:      cfg.UploadPollInterval,
		BatchSize:         cfg.UploadBatchSize,
		StaleJobThreshold: cfg.StaleJobThreshold,
		UpdateExisting:    true,
	})
	uploadWorker.Start(workerCtx)

	server := bootstrap.NewHTTPServer(db, refreshWorker)

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
}
