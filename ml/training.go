package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carprice/models"
)

type TrainConfig struct {
	ModelType       string
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	TestRatio       float64
	Seed            int64
	Workers         int
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		ModelType:       ModelTypeRandomForest,
		NumTrees:        100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		TestRatio:       0.2,
		Seed:            42,
	}
}

func (c TrainConfig) Validate() error {
	switch c.ModelType {
	case ModelTypeRandomForest:
		if c.NumTrees <= 0 {
			return errors.New("n_estimators must be positive")
		}
	case ModelTypeDecisionTree:
	default:
		return fmt.Errorf("%w: %q", errUnsupportedModelType, c.ModelType)
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return fmt.Errorf("test ratio must be in (0, 1), got %v", c.TestRatio)
	}
	if c.MaxDepth < 0 {
		return errors.New("max_depth must not be negative")
	}
	return nil
}

// Trainer fits bundles from record snapshots.
type Trainer struct {
	config TrainConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewTrainer(config TrainConfig, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{config: config, logger: logger, now: time.Now}
}

func (t *Trainer) Config() TrainConfig {
	return t.config
}

// Train builds the vocabularies, encodes the snapshot, fits the regressor on
// the seeded train split and evaluates it on the rest. Poor accuracy never
// fails a run; only a snapshot below MinTrainingRecords does.
func (t *Trainer) Train(ctx context.Context, snapshot []models.SaleRecord) (*Bundle, error) {
	if len(snapshot) < models.MinTrainingRecords {
		return nil, &models.InsufficientDataError{Count: len(snapshot), Required: models.MinTrainingRecords}
	}
	if err := t.config.Validate(); err != nil {
		return nil, err
	}
	t.logger.Info("training started",
		zap.Int("records", len(snapshot)),
		zap.String("model_type", t.config.ModelType))
	start := t.now()

	vocabs := BuildVocabularies(snapshot)
	features := make([][]float64, len(snapshot))
	targets := make([]float64, len(snapshot))
	for i, record := range snapshot {
		fv, err := EncodeRecord(record, vocabs)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		features[i] = fv.Slice()
		targets[i] = record.Price
	}

	trainX, trainY, testX, testY := splitDataset(features, targets, t.config.TestRatio, t.config.Seed)

	model, err := NewRegressor(t.config)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(ctx, trainX, trainY); err != nil {
		return nil, fmt.Errorf("fit %s: %w", t.config.ModelType, err)
	}

	mae, r2, err := evaluateModel(model, testX, testY)
	if err != nil {
		return nil, err
	}
	metrics := Metrics{MAE: mae, R2: r2, TrainSize: len(trainX), TestSize: len(testX)}

	bundle := &Bundle{
		Version:      uuid.NewString(),
		ModelType:    t.config.ModelType,
		TrainedAt:    t.now().UTC(),
		SnapshotSize: len(snapshot),
		Metrics:      metrics,
		regressor:    model,
		vocabularies: vocabs,
	}

	t.logger.Info("training finished",
		zap.String("version", bundle.Version),
		zap.Float64("mae", mae),
		zap.Float64("r2", r2),
		zap.Int("train_size", metrics.TrainSize),
		zap.Int("test_size", metrics.TestSize),
		zap.Duration("elapsed", t.now().Sub(start)))
	return bundle, nil
}

// splitDataset shuffles row indices with a generator seeded by seed and puts
// the first ceil(n*testRatio) of them in the test split.
func splitDataset(features [][]float64, targets []float64, testRatio float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	n := len(features)
	testSize := int(math.Ceil(float64(n) * testRatio))
	if testSize >= n {
		testSize = n - 1
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)
	for i, idx := range indices {
		if i < testSize {
			testX = append(testX, features[idx])
			testY = append(testY, targets[idx])
		} else {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, targets[idx])
		}
	}
	return trainX, trainY, testX, testY
}
