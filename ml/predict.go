package ml

import (
	"fmt"
	"math"

	"carprice/models"
)

// Predict estimates the price of q with bundle b, rounded to cents.
func Predict(b *Bundle, q models.Query) (float64, error) {
	if b == nil || b.regressor == nil {
		return 0, models.ErrModelNotTrained
	}
	if err := models.ValidateRequired(q); err != nil {
		return 0, err
	}
	fv, err := Encode(q, b.vocabularies)
	if err != nil {
		return 0, err
	}
	raw, err := b.regressor.Predict(fv.Slice())
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	return roundPrice(raw), nil
}

func roundPrice(value float64) float64 {
	return math.Round(value*100) / 100
}
