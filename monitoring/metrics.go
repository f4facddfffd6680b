package monitoring

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carprice/ml"
	"carprice/models"
)

// 预测与训练计数器使用的结果标签
const (
	OutcomeOK               = "ok"
	OutcomeNotTrained       = "not_trained"
	OutcomeMissingFields    = "missing_fields"
	OutcomeInvalidNumeric   = "invalid_numeric"
	OutcomeUnknownCategory  = "unknown_category"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeError            = "error"
)

// Metrics 服务指标收集器，使用独立的注册表
type Metrics struct {
	registry *prometheus.Registry

	predictions       *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	recordsAppended   *prometheus.CounterVec
	trainingRuns      *prometheus.CounterVec
	trainingDuration  prometheus.Histogram
	modelMAE          prometheus.Gauge
	modelR2           prometheus.Gauge
	modelRecords      prometheus.Gauge
	bundleReloads     prometheus.Counter
}

// NewMetrics 创建并注册所有指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carprice_predictions_total",
			Help: "Price predictions by outcome",
		}, []string{"outcome"}),
		predictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carprice_prediction_latency_seconds",
			Help:    "Latency of a single price prediction",
			Buckets: prometheus.DefBuckets,
		}),
		recordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carprice_records_appended_total",
			Help: "Dataset append attempts by outcome",
		}, []string{"outcome"}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carprice_training_runs_total",
			Help: "Training runs by outcome",
		}, []string{"outcome"}),
		trainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carprice_training_duration_seconds",
			Help:    "Wall time of a training run",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		modelMAE: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carprice_model_mae",
			Help: "Held-out mean absolute error of the active model",
		}),
		modelR2: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carprice_model_r2",
			Help: "Held-out R2 of the active model",
		}),
		modelRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carprice_model_training_records",
			Help: "Snapshot size the active model was trained on",
		}),
		bundleReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carprice_bundle_reloads_total",
			Help: "Model bundles picked up from disk",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.predictions,
		m.predictionLatency,
		m.recordsAppended,
		m.trainingRuns,
		m.trainingDuration,
		m.modelMAE,
		m.modelR2,
		m.modelRecords,
		m.bundleReloads,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 以Prometheus格式暴露指标
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction 记录一次预测
func (m *Metrics) ObservePrediction(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(Outcome(err)).Inc()
	m.predictionLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveAppend(err error) {
	if m == nil {
		return
	}
	m.recordsAppended.WithLabelValues(Outcome(err)).Inc()
}

func (m *Metrics) ObserveTraining(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues(Outcome(err)).Inc()
	m.trainingDuration.Observe(elapsed.Seconds())
}

// SetActiveModel 更新当前模型的评估指标
func (m *Metrics) SetActiveModel(b *ml.Bundle) {
	if m == nil || b == nil {
		return
	}
	m.modelMAE.Set(b.Metrics.MAE)
	m.modelR2.Set(b.Metrics.R2)
	m.modelRecords.Set(float64(b.SnapshotSize))
}

func (m *Metrics) ObserveReload() {
	if m == nil {
		return
	}
	m.bundleReloads.Inc()
}

// Outcome 将错误映射为指标标签
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var (
		missing      *models.MissingFieldsError
		invalid      *models.InvalidNumericValueError
		unknown      *models.UnknownCategoryValueError
		insufficient *models.InsufficientDataError
	)
	switch {
	case errors.Is(err, models.ErrModelNotTrained):
		return OutcomeNotTrained
	case errors.As(err, &missing):
		return OutcomeMissingFields
	case errors.As(err, &invalid):
		return OutcomeInvalidNumeric
	case errors.As(err, &unknown):
		return OutcomeUnknownCategory
	case errors.As(err, &insufficient):
		return OutcomeInsufficientData
	default:
		return OutcomeError
	}
}
