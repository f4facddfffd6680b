package models

import (
	"errors"
	"fmt"
	"strings"
)

// MinTrainingRecords is the smallest snapshot a regressor is fit on.
const MinTrainingRecords = 10

// ErrModelNotTrained is returned when no bundle has been produced or loaded yet.
var ErrModelNotTrained = errors.New("model not trained yet")

// InsufficientDataError aborts a training run on a snapshot that is too small.
type InsufficientDataError struct {
	Count    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d records to train, have %d", e.Required, e.Count)
}

// MissingFieldsError lists the required fields that were absent or empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// InvalidNumericValueError reports a numeric field that could not be coerced.
type InvalidNumericValueError struct {
	Field string
	Raw   string
}

func (e *InvalidNumericValueError) Error() string {
	return fmt.Sprintf("invalid numeric value for %s: %q", e.Field, e.Raw)
}

// UnknownCategoryValueError reports a categorical value that has no index in
// the vocabulary the model was trained with.
type UnknownCategoryValueError struct {
	Field string
	Value string
}

func (e *UnknownCategoryValueError) Error() string {
	return fmt.Sprintf("unknown value for %s: %q", e.Field, e.Value)
}
