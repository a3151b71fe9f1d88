package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/storyloom/loom/internal/analytics"
	"github.com/storyloom/loom/internal/config"
	"github.com/storyloom/loom/internal/consolidate"
	"github.com/storyloom/loom/internal/llm"
	"github.com/storyloom/loom/internal/ontology"
	"github.com/storyloom/loom/internal/server"
	"github.com/storyloom/loom/internal/store"
	"github.com/storyloom/loom/internal/verify"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	reg := ontology.New(cfg.Relations)

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage backend", zap.Error(err))
	}

	graph, err := store.Open(ctx, backend, reg, log)
	if err != nil {
		log.Fatal("failed to open graph store", zap.Error(err))
	}

	analyzer, err := llm.NewAnalyzer(ctx, cfg.LLM)
	if err != nil {
		log.Fatal("failed to initialize semantic analyzer", zap.Error(err))
	}

	consolidator := consolidate.New(graph, reg, consolidate.NewKeywordDetector(), log)
	analyticsSvc := analytics.New(graph)
	queue := verify.NewQueue(cfg.Verification.QueueSize, log)
	verifier := verify.NewEngine(graph, analyticsSvc, analyzer, queue, verify.Options{
		FastDeadline:      time.Duration(cfg.Verification.FastDeadlineMs) * time.Millisecond,
		MediumTimeout:     time.Duration(cfg.Verification.MediumTimeoutSec) * time.Second,
		RequiredCallbacks: cfg.Verification.RequiredCallbacks,
	}, log)

	srv := server.New(graph, consolidator, analyticsSvc, verifier, log)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.SetupRouter(),
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port),
			zap.String("backend", cfg.Storage.Backend))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := graph.Close(shutdownCtx); err != nil {
		log.Warn("store close failed", zap.Error(err))
	}
	if err := analyzer.Close(); err != nil {
		log.Warn("analyzer close failed", zap.Error(err))
	}
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case "memgraph":
		return store.NewMemgraphBackend(ctx, cfg.Storage.URI, cfg.Storage.User, cfg.Storage.Password, log)
	default:
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return store.NewSQLiteBackend(cfg.Storage.Path)
	}
}
