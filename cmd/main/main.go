package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chatproassist/voice-events-processor/internal/config"
	"github.com/chatproassist/voice-events-processor/internal/ingestion"
	"github.com/chatproassist/voice-events-processor/internal/ingestion/handler"
	"github.com/chatproassist/voice-events-processor/internal/jetstream"
	"github.com/chatproassist/voice-events-processor/internal/model"
	"github.com/chatproassist/voice-events-processor/internal/observer"
	"github.com/chatproassist/voice-events-processor/internal/server"
	"github.com/chatproassist/voice-events-processor/internal/storage"
	"github.com/chatproassist/voice-events-processor/internal/summarizer"
	"github.com/chatproassist/voice-events-processor/internal/usecase"
	"github.com/chatproassist/voice-events-processor/pkg/logger"
	"github.com/chatproassist/voice-events-processor/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize Metrics conditionally
	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Voice Events Processor",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
	)

	if cfg.Webhook.Secret == "" {
		logger.Log.Warn("Webhook secret is not configured; endpoint accepts unauthenticated events")
	}

	// Initialize repositories
	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	callRepo := storage.NewCallRepoAdapter(postgresRepo)
	leadRepo := storage.NewLeadRepoAdapter(postgresRepo)
	eventRepo := storage.NewCallEventRepoAdapter(postgresRepo)

	// Initialize the call notifier; messaging is optional
	var notifier jetstream.CallNotifier = jetstream.NoopNotifier{}
	var jsClient *jetstream.Client
	if cfg.NATS.Enabled {
		jsClient, err = jetstream.NewClient(cfg.NATS.URL)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
		}
		notifier, err = jetstream.NewNotifier(context.Background(), jsClient, cfg.NATS.Stream, cfg.NATS.Subject)
		if err != nil {
			logger.Log.Fatal("Failed to set up call notifier", zap.Error(err))
		}
	}

	// Summarization collaborator
	summarizerClient := summarizer.NewClient(
		cfg.Summarizer.BaseURL,
		cfg.Summarizer.APIKey,
		cfg.Summarizer.Model,
		cfg.Summarizer.Timeout,
	)

	// Create post-call worker pool
	postCallWorker, err := usecase.NewPostCallWorker(
		cfg.WorkerPools.PostCall,
		callRepo,
		leadRepo,
		summarizerClient,
		logger.Log,
	)
	if err != nil {
		logger.Log.Fatal("Failed to initialize post-call worker pool", zap.Error(err))
	}

	// Create service, injecting the worker pool
	service := usecase.NewCallEventService(callRepo, leadRepo, eventRepo, notifier, postCallWorker)

	// Wire the event router
	webhookHandler := handler.NewWebhookHandler(service)
	router := ingestion.NewRouter()
	router.Register(model.EventCallStart, webhookHandler.HandleEvent)
	router.Register(model.EventTranscript, webhookHandler.HandleEvent)
	router.Register(model.EventStatusUpdate, webhookHandler.HandleEvent)
	router.Register(model.EventCallEnd, webhookHandler.HandleEvent)
	router.Register(model.EventFunctionCall, webhookHandler.HandleEvent)
	router.RegisterDefault(webhookHandler.HandleUnknownEvent)

	// HTTP server
	srv := server.New(server.Options{
		Port:         cfg.Server.Port,
		Environment:  cfg.Environment,
		Secret:       cfg.Webhook.Secret,
		DefaultOwner: cfg.Owner.Default,
	}, router)

	serverErrChan := make(chan error, 1)
	utils.SafeGo(func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("Panic in HTTP server goroutine",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		serverErrChan <- fmt.Errorf("http server panicked")
	})

	// Wait for termination signal or server failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		logger.Log.Error("HTTP server failed, initiating shutdown", zap.Error(err))
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(3)

	// Shutdown HTTP server first so no new events arrive
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping HTTP server")
		start := time.Now()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping HTTP server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] HTTP server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping HTTP server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown post-call worker pool
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping post-call worker pool")
		start := time.Now()
		postCallWorker.Stop()
		logger.Log.Info("[shutdown] Post-call worker pool stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping post-call worker pool",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close external connections
	utils.SafeGo(func() {
		defer wg.Done()

		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		pgStart := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(pgStart)))
		}

		if jsClient != nil {
			logger.Log.Info("[shutdown] Closing JetStream connection")
			jsStart := time.Now()
			jsClient.Close()
			logger.Log.Info("[shutdown] JetStream connection closed",
				zap.Duration("duration", time.Since(jsStart)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait for all components or the shutdown timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("Graceful shutdown complete")
	case <-shutdownCtx.Done():
		logger.Log.Warn("Graceful shutdown timed out; exiting")
	}
}
