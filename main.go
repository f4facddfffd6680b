package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"carprice/config"
	"carprice/dataset"
	"carprice/db"
	qhttp "carprice/http"
	"carprice/logging"
	"carprice/ml"
	"carprice/models"
	"carprice/monitoring"
	"carprice/serving"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Open the record store and training history
	store, err := dataset.Open(cfg.Data.CSVPath, cfg.Data.CacheSize, logger.Named("dataset"))
	if err != nil {
		logger.Fatal("open record store", zap.Error(err))
	}
	history, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("open training history", zap.Error(err))
	}
	defer history.Close()
	logger.Info("storage ready",
		zap.String("csv", cfg.Data.CSVPath),
		zap.String("database", cfg.Database.Path))

	// 3. Load the last trained bundle, if any
	holder := serving.NewHolder(nil)
	bundle, err := ml.LoadBundle(cfg.Model.BundlePath)
	switch {
	case err == nil:
		holder.Store(bundle)
		logger.Info("model loaded", zap.String("version", bundle.Version), zap.String("path", cfg.Model.BundlePath))
	case errors.Is(err, models.ErrModelNotTrained):
		logger.Warn("no trained model yet, run train_model or POST /api/train", zap.String("path", cfg.Model.BundlePath))
	default:
		logger.Error("model bundle unreadable, starting without a model", zap.Error(err))
	}

	metrics := monitoring.NewMetrics()
	hub := monitoring.NewWebSocketHub(logger.Named("ws"))
	go hub.Start()
	defer hub.Stop()

	service := serving.NewService(store, holder,
		ml.NewTrainer(cfg.TrainConfig(), logger.Named("trainer")),
		cfg.Model.BundlePath,
		serving.WithHistory(history),
		serving.WithMetrics(metrics),
		serving.WithPublisher(hub),
		serving.WithLogger(logger.Named("service")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Pick up bundles written by the train_model command
	if cfg.Model.Watch {
		watcher := serving.NewWatcher(cfg.Model.BundlePath, service.Activate, metrics.ObserveReload, logger.Named("watcher"))
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("bundle watcher stopped", zap.Error(err))
			}
		}()
	}

	// 5. Start HTTP server
	handlers := qhttp.NewHandlers(service, hub, metrics, cfg.HTTP.StaticDir, logger.Named("api"))
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
	}, handlers, logger.Named("http"))
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	// 6. Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
