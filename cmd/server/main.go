package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/config"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/database"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/ledger"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/metrics"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/payment"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/payment/creem"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/repository"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/server"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/storage"
	"github.com/densematrix-labs/ai-voiceover-saas/internal/tts"
	"github.com/densematrix-labs/ai-voiceover-saas/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.Debug)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	creditRepo := repository.NewCreditRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	generationRepo := repository.NewGenerationRepository(db)

	ledgerService := ledger.NewService(creditRepo, logr, m)

	store, err := storage.New(storage.Config{
		Dir:           cfg.AudioDir,
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	edgeProvider := tts.NewEdgeProvider(cfg.EdgeTTSCommand, store, logr)
	providers := tts.NewRegistry(
		tts.NewOpenAIProvider(cfg.LLMProxyURL, cfg.LLMProxyKey, cfg.RequestTimeout, store, logr),
		edgeProvider,
	)
	dispatcher := tts.NewDispatcher(logr, providers, ledgerService, generationRepo, m, cfg.RequestTimeout)

	creemClient := creem.NewClient(cfg.CreemBaseURL, cfg.CreemAPIKey, cfg.RequestTimeout, logr)
	paymentService := payment.NewService(logr, transactionRepo, ledgerService, creemClient, cfg.CreemProductIDs, cfg.CreemWebhookSecret, m)

	api := server.New(cfg.ListenAddr, cfg.AppName, logr, dispatcher, ledgerService, paymentService, edgeProvider, store.Dir(), cfg.CORSOrigins, prometheus.DefaultGatherer)
	if err := api.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
