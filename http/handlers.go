package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"carprice/models"
	"carprice/monitoring"
	"carprice/serving"
)

const defaultHistoryLimit = 20

// Handlers 车价API处理器
type Handlers struct {
	service   *serving.Service
	hub       *monitoring.WebSocketHub
	metrics   *monitoring.Metrics
	staticDir string
	logger    *zap.Logger
}

// NewHandlers 创建API处理器，hub和metrics为nil时不注册对应路由
func NewHandlers(service *serving.Service, hub *monitoring.WebSocketHub, metrics *monitoring.Metrics, staticDir string, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		service:   service,
		hub:       hub,
		metrics:   metrics,
		staticDir: staticDir,
		logger:    logger,
	}
}

// Register 注册所有路由
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/options", h.handleOptions)
	mux.HandleFunc("GET /api/models/{brand}", h.handleModelsForBrand)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("POST /api/add", h.handleAdd)
	mux.HandleFunc("POST /api/train", h.handleTrain)
	mux.HandleFunc("GET /api/model", h.handleModelInfo)
	mux.HandleFunc("GET /api/training/history", h.handleTrainingHistory)
	mux.HandleFunc("GET /api/dataset/quality", h.handleDatasetQuality)
	if h.hub != nil {
		mux.HandleFunc("GET /api/ws/model", h.hub.HandleWebSocket)
	}
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	if h.staticDir != "" {
		mux.HandleFunc("GET /{$}", h.handleIndex)
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.staticDir))))
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"model_loaded": h.service.Holder().Load() != nil,
	})
}

func (h *Handlers) handleOptions(w http.ResponseWriter, r *http.Request) {
	options, version, err := h.service.Options()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Version       string   `json:"version"`
		Brands        []string `json:"brands"`
		Models        []string `json:"models"`
		FuelTypes     []string `json:"fuel_types"`
		Transmissions []string `json:"transmissions"`
	}{
		Version:       version,
		Brands:        options.Brands,
		Models:        options.Models,
		FuelTypes:     options.FuelTypes,
		Transmissions: options.Transmissions,
	})
}

func (h *Handlers) handleModelsForBrand(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ModelsForBrand(r.PathValue("brand"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"models": names})
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := decodeFields(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	price, err := h.service.Predict(body.query())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"predicted_price": price,
		"input":           body.echo(),
	})
}

func (h *Handlers) handleAdd(w http.ResponseWriter, r *http.Request) {
	body, err := decodeFields(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	total, err := h.service.AddRecord(body.recordInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "Car added successfully",
		"total_cars": total,
	})
}

func (h *Handlers) handleTrain(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.service.Retrain(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.Info("retrained from api",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("version", bundle.Version),
		zap.Duration("elapsed", time.Since(GetStartTime(r.Context()))))
	respondJSON(w, http.StatusOK, serving.InfoFor(bundle))
}

func (h *Handlers) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.ModelInfo()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (h *Handlers) handleTrainingHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 0 {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = l
	}
	logs, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": logs})
}

func (h *Handlers) handleDatasetQuality(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Quality()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(h.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}

type errorBody struct {
	Error    string   `json:"error"`
	Fields   []string `json:"fields,omitempty"`
	Field    string   `json:"field,omitempty"`
	Value    *string  `json:"value,omitempty"`
	Count    *int     `json:"count,omitempty"`
	Required *int     `json:"required,omitempty"`
}

// respondError 领域错误返回400及详情，其他错误记录日志并返回500
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missing      *models.MissingFieldsError
		invalid      *models.InvalidNumericValueError
		unknown      *models.UnknownCategoryValueError
		insufficient *models.InsufficientDataError
	)
	switch {
	case errors.As(err, &missing):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Fields: missing.Fields})
	case errors.As(err, &invalid):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: invalid.Field, Value: &invalid.Raw})
	case errors.As(err, &unknown):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: unknown.Field, Value: &unknown.Value})
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Count: &insufficient.Count, Required: &insufficient.Required})
	case errors.Is(err, models.ErrModelNotTrained), errors.Is(err, errMalformedJSON):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
