package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"carprice/config"
	"carprice/dataset"
	"carprice/db"
	"carprice/logging"
	"carprice/ml"
	"carprice/models"
	"carprice/serving"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	csvPath := flag.String("csv", "", "record CSV (overrides data.csv_path)")
	outPath := flag.String("out", "", "bundle output path (overrides model.bundle_path)")
	modelType := flag.String("model_type", "", "random_forest or decision_tree")
	nEstimators := flag.Int("n_estimators", 0, "number of trees in the forest")
	maxDepth := flag.Int("max_depth", 0, "max tree depth, 0 for unlimited")
	testRatio := flag.Float64("test_ratio", 0, "held-out fraction")
	seed := flag.Int64("seed", 0, "random seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "csv":
			cfg.Data.CSVPath = *csvPath
		case "out":
			cfg.Model.BundlePath = *outPath
		case "model_type":
			cfg.Training.ModelType = *modelType
		case "n_estimators":
			cfg.Training.NEstimators = *nEstimators
		case "max_depth":
			cfg.Training.MaxDepth = *maxDepth
		case "test_ratio":
			cfg.Training.TestRatio = *testRatio
		case "seed":
			cfg.Training.Seed = *seed
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		var insufficient *models.InsufficientDataError
		if errors.As(err, &insufficient) {
			fmt.Fprintf(os.Stderr, "Error: need at least %d cars in the dataset to train, have %d\n", insufficient.Required, insufficient.Count)
			os.Exit(1)
		}
		logger.Error("training failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := dataset.Open(cfg.Data.CSVPath, cfg.Data.CacheSize, logger.Named("dataset"))
	if err != nil {
		return err
	}
	count, err := store.Count()
	if err != nil {
		return err
	}
	fmt.Printf("Training on %d cars...\n", count)

	opts := []serving.Option{serving.WithLogger(logger.Named("service"))}
	history, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		logger.Warn("training history unavailable", zap.Error(err))
	} else {
		defer history.Close()
		opts = append(opts, serving.WithHistory(history))
	}

	trainer := ml.NewTrainer(cfg.TrainConfig(), logger.Named("trainer"))
	service := serving.NewService(store, serving.NewHolder(nil), trainer, cfg.Model.BundlePath, opts...)
	bundle, err := service.Retrain(ctx)
	if err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	p.Printf("Model trained successfully! (%s, version %s)\n", bundle.ModelType, bundle.Version)
	p.Printf("Mean Absolute Error: %.0f\n", bundle.Metrics.MAE)
	p.Printf("R2 Score: %.2f\n", bundle.Metrics.R2)
	p.Printf("Model saved to %s\n", cfg.Model.BundlePath)
	return nil
}
