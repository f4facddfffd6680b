package ml

import "context"

// Regressor maps a feature vector to a price.
type Regressor interface {
	Fit(ctx context.Context, features [][]float64, targets []float64) error
	Predict(features []float64) (float64, error)
}
