package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facegate/internal/api"
	"github.com/your-org/facegate/internal/api/ws"
	"github.com/your-org/facegate/internal/authn"
	"github.com/your-org/facegate/internal/config"
	"github.com/your-org/facegate/internal/models"
	"github.com/your-org/facegate/internal/observability"
	"github.com/your-org/facegate/internal/queue"
	"github.com/your-org/facegate/internal/recognizer"
	"github.com/your-org/facegate/internal/storage"
	"github.com/your-org/facegate/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facegate API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background(), cfg.Recognizer.EmbeddingDim); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge published attempts into the live WebSocket feed.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create attempt consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeAttempts(ctx, "api-feed", func(ctx context.Context, msg jetstream.Msg) error {
		var evt models.AttemptEvent
		if err := json.Unmarshal(msg.Data(), &evt); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:    "attempt",
			Outcome: string(evt.Outcome),
			Data: dto.AttemptResponse{
				ID:           evt.AttemptID,
				Timestamp:    evt.Timestamp.Format(time.RFC3339),
				Outcome:      string(evt.Outcome),
				IdentityID:   evt.IdentityID,
				IdentityName: evt.IdentityName,
				Similarity:   evt.Similarity,
				Details:      evt.Details,
			},
		})

		return nil
	})
	if err != nil {
		slog.Warn("start attempt consumer", "error", err)
	}

	// ONNX Runtime backs the detection and embedding models. The provider
	// defers session creation until the first request needs it.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init failed", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	policy, err := recognizer.ParsePolicy(cfg.Recognizer.PrimaryFacePolicy)
	if err != nil {
		slog.Error("invalid primary face policy", "error", err)
		os.Exit(1)
	}

	provider := recognizer.NewProvider(func() (recognizer.Extractor, error) {
		return recognizer.NewPipeline(cfg.Recognizer)
	}, cfg.Recognizer.InitTimeout, policy)
	defer provider.Close()

	// Warm the models in the background so the first terminal request does
	// not pay the full model load.
	go func() {
		warmCtx, warmCancel := context.WithTimeout(ctx, cfg.Recognizer.InitTimeout)
		defer warmCancel()
		if err := provider.Warm(warmCtx); err != nil {
			slog.Warn("provider warmup failed", "error", err)
		} else {
			slog.Info("embedding provider ready")
		}
	}()

	svc := authn.NewService(authn.ServiceConfig{
		Provider:       provider,
		Gallery:        db,
		Ledger:         db,
		Captures:       minioStore,
		Publisher:      producer,
		MatchThreshold: float32(cfg.Recognizer.MatchThreshold),
		EmbeddingDim:   cfg.Recognizer.EmbeddingDim,
	})

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Service:  svc,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Provider: provider,
		Hub:      hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
