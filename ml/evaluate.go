package ml

import (
	"errors"
	"fmt"
	"math"
)

// Metrics is the held-out evaluation of a training run.
type Metrics struct {
	MAE       float64 `json:"mae"`
	R2        float64 `json:"r2"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
}

func MeanAbsoluteError(actual, predicted []float64) (float64, error) {
	if len(actual) == 0 {
		return 0, errors.New("actual is empty")
	}
	if len(actual) != len(predicted) {
		return 0, errors.New("actual/predicted length mismatch")
	}
	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual)), nil
}

// R2Score is the coefficient of determination. A constant actual series has
// no variance to explain: the score is 1 for an exact fit and 0 otherwise.
func R2Score(actual, predicted []float64) (float64, error) {
	if len(actual) == 0 {
		return 0, errors.New("actual is empty")
	}
	if len(actual) != len(predicted) {
		return 0, errors.New("actual/predicted length mismatch")
	}
	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	ssRes, ssTot := 0.0, 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		ssRes += diff * diff
		dev := actual[i] - mean
		ssTot += dev * dev
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

func evaluateModel(model Regressor, testX [][]float64, testY []float64) (mae, r2 float64, err error) {
	predicted := make([]float64, len(testX))
	for i, feature := range testX {
		value, err := model.Predict(feature)
		if err != nil {
			return 0, 0, fmt.Errorf("predict test row %d: %w", i, err)
		}
		predicted[i] = value
	}
	if mae, err = MeanAbsoluteError(testY, predicted); err != nil {
		return 0, 0, err
	}
	if r2, err = R2Score(testY, predicted); err != nil {
		return 0, 0, err
	}
	return mae, r2, nil
}
