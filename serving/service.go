package serving

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"carprice/dataset"
	"carprice/db"
	"carprice/ml"
	"carprice/models"
	"carprice/monitoring"
)

// HistoryStore persists finished training runs.
type HistoryStore interface {
	SaveTrainingLog(ctx context.Context, entry db.TrainingLog) error
	LoadTrainingLog(ctx context.Context, limit int) ([]db.TrainingLog, error)
}

// BundlePublisher is told about every bundle that becomes active.
type BundlePublisher interface {
	PublishBundle(info any) error
}

// BundleInfo describes a bundle to API clients.
type BundleInfo struct {
	Version      string     `json:"version"`
	ModelType    string     `json:"model_type"`
	TrainedAt    time.Time  `json:"trained_at"`
	SnapshotSize int        `json:"snapshot_size"`
	Metrics      ml.Metrics `json:"metrics"`
	Stale        bool       `json:"stale"`
}

func InfoFor(b *ml.Bundle) BundleInfo {
	return BundleInfo{
		Version:      b.Version,
		ModelType:    b.ModelType,
		TrainedAt:    b.TrainedAt,
		SnapshotSize: b.SnapshotSize,
		Metrics:      b.Metrics,
	}
}

// Service ties the record store, the trainer and the active bundle together.
type Service struct {
	store      *dataset.Store
	auditor    *dataset.Auditor
	holder     *Holder
	trainer    *ml.Trainer
	bundlePath string

	history   HistoryStore
	metrics   *monitoring.Metrics
	publisher BundlePublisher
	logger    *zap.Logger

	trainMu sync.Mutex
}

type Option func(*Service)

func WithHistory(history HistoryStore) Option {
	return func(s *Service) { s.history = history }
}

func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

func WithPublisher(publisher BundlePublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store *dataset.Store, holder *Holder, trainer *ml.Trainer, bundlePath string, opts ...Option) *Service {
	s := &Service{
		store:      store,
		auditor:    dataset.NewAuditor(),
		holder:     holder,
		trainer:    trainer,
		bundlePath: bundlePath,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetActiveModel(holder.Load())
	return s
}

func (s *Service) Holder() *Holder {
	return s.holder
}

// Options returns the display lists of the active bundle and its version.
func (s *Service) Options() (ml.Options, string, error) {
	bundle := s.holder.Load()
	if bundle == nil {
		return ml.Options{}, "", models.ErrModelNotTrained
	}
	return bundle.Options(), bundle.Version, nil
}

func (s *Service) ModelsForBrand(brand string) ([]string, error) {
	return s.store.ModelsForBrand(brand)
}

func (s *Service) Predict(q models.Query) (float64, error) {
	start := time.Now()
	price, err := ml.Predict(s.holder.Load(), q)
	s.metrics.ObservePrediction(err, time.Since(start))
	return price, err
}

// AddRecord appends a validated record and returns the new total.
func (s *Service) AddRecord(in models.RecordInput) (int, error) {
	total, err := s.store.Append(in)
	s.metrics.ObserveAppend(err)
	if err != nil {
		return 0, err
	}
	s.logger.Info("record added", zap.Int("total_cars", total))
	return total, nil
}

// Retrain fits a new bundle on the current snapshot, persists it and makes
// it active. Concurrent calls run one after another.
func (s *Service) Retrain(ctx context.Context) (*ml.Bundle, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := time.Now()
	bundle, err := s.train(ctx)
	s.metrics.ObserveTraining(err, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, bundle)
	s.Activate(bundle)
	return bundle, nil
}

func (s *Service) train(ctx context.Context) (*ml.Bundle, error) {
	snapshot, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	if report := s.auditor.Audit(snapshot); report.Flagged > 0 {
		s.logger.Warn("training on records with quality issues",
			zap.Int("flagged", report.Flagged),
			zap.Int("total", report.Total),
			zap.Any("by_rule", report.ByRule))
	}
	bundle, err := s.trainer.Train(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	if err := bundle.Save(s.bundlePath); err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	return bundle, nil
}

// Activate makes b the bundle served by Predict and Options. A bundle with
// the version already active is ignored.
func (s *Service) Activate(b *ml.Bundle) bool {
	if b == nil {
		return false
	}
	if current := s.holder.Load(); current != nil && current.Version == b.Version {
		return false
	}
	s.holder.Store(b)
	s.metrics.SetActiveModel(b)
	s.logger.Info("model activated",
		zap.String("version", b.Version),
		zap.String("model_type", b.ModelType),
		zap.Int("snapshot_size", b.SnapshotSize))

	if s.publisher != nil {
		if err := s.publisher.PublishBundle(InfoFor(b)); err != nil {
			s.logger.Warn("publish bundle update failed", zap.Error(err))
		}
	}
	return true
}

func (s *Service) recordHistory(ctx context.Context, b *ml.Bundle) {
	if s.history == nil {
		return
	}
	err := s.history.SaveTrainingLog(ctx, db.TrainingLog{
		Version:    b.Version,
		ModelType:  b.ModelType,
		MAE:        b.Metrics.MAE,
		R2:         b.Metrics.R2,
		TrainSize:  b.Metrics.TrainSize,
		TestSize:   b.Metrics.TestSize,
		DataPoints: b.SnapshotSize,
		TrainedAt:  b.TrainedAt,
	})
	if err != nil {
		s.logger.Warn("save training log failed", zap.String("version", b.Version), zap.Error(err))
	}
}

// Quality audits the current contents of the record store.
func (s *Service) Quality() (dataset.QualityReport, error) {
	snapshot, err := s.store.Snapshot()
	if err != nil {
		return dataset.QualityReport{}, err
	}
	return s.auditor.Audit(snapshot), nil
}

// ModelInfo describes the active bundle. Stale is set when records were
// added or removed since it was trained.
func (s *Service) ModelInfo() (BundleInfo, error) {
	bundle := s.holder.Load()
	if bundle == nil {
		return BundleInfo{}, models.ErrModelNotTrained
	}
	info := InfoFor(bundle)
	count, err := s.store.Count()
	if err != nil {
		return BundleInfo{}, err
	}
	info.Stale = count != bundle.SnapshotSize
	return info, nil
}

// History returns the most recent training runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]db.TrainingLog, error) {
	if s.history == nil {
		return []db.TrainingLog{}, nil
	}
	return s.history.LoadTrainingLog(ctx, limit)
}
