package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	ModelTypeRandomForest = "random_forest"
	ModelTypeDecisionTree = "decision_tree"
)

var errUnsupportedModelType = errors.New("unsupported model type")

func NewRegressor(cfg TrainConfig) (Regressor, error) {
	switch cfg.ModelType {
	case ModelTypeRandomForest:
		forest := NewRandomForest(cfg.NumTrees, cfg.MaxDepth, cfg.MinSamplesSplit, cfg.Seed)
		forest.Workers = cfg.Workers
		return forest, nil
	case ModelTypeDecisionTree:
		return NewDecisionTree(cfg.MaxDepth, cfg.MinSamplesSplit), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedModelType, cfg.ModelType)
	}
}

func decodeRegressor(modelType string, payload json.RawMessage) (Regressor, error) {
	var model Regressor
	switch modelType {
	case ModelTypeRandomForest:
		model = &RandomForest{}
	case ModelTypeDecisionTree:
		model = &DecisionTree{}
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedModelType, modelType)
	}
	if err := json.Unmarshal(payload, model); err != nil {
		return nil, fmt.Errorf("decode %s: %w", modelType, err)
	}
	return model, nil
}
