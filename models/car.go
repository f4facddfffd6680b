package models

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Categorical field names, in feature order.
const (
	FieldBrand        = "brand"
	FieldModel        = "model"
	FieldYear         = "year"
	FieldMileage      = "mileage"
	FieldFuelType     = "fuel_type"
	FieldTransmission = "transmission"
	FieldPrice        = "price"
)

// CategoricalFields are the fields encoded through a vocabulary.
var CategoricalFields = []string{FieldBrand, FieldModel, FieldFuelType, FieldTransmission}

// RecordColumns is the column layout of the record store.
var RecordColumns = []string{
	FieldBrand, FieldModel, FieldYear, FieldMileage, FieldFuelType, FieldTransmission, FieldPrice,
}

// SaleRecord is one historical sale.
type SaleRecord struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Year         int     `json:"year"`
	Mileage      int     `json:"mileage"`
	FuelType     string  `json:"fuel_type"`
	Transmission string  `json:"transmission"`
	Price        float64 `json:"price"`
}

// Category returns the raw value of a categorical field.
func (r SaleRecord) Category(field string) string {
	switch field {
	case FieldBrand:
		return r.Brand
	case FieldModel:
		return r.Model
	case FieldFuelType:
		return r.FuelType
	case FieldTransmission:
		return r.Transmission
	}
	return ""
}

// Query is a prediction request. Numeric fields stay raw until encoding.
type Query struct {
	Brand        string `json:"brand" validate:"required"`
	Model        string `json:"model" validate:"required"`
	Year         string `json:"year" validate:"required"`
	Mileage      string `json:"mileage" validate:"required"`
	FuelType     string `json:"fuel_type" validate:"required"`
	Transmission string `json:"transmission" validate:"required"`
}

// QueryFromRecord builds the query that describes an existing record.
func QueryFromRecord(r SaleRecord) Query {
	return Query{
		Brand:        r.Brand,
		Model:        r.Model,
		Year:         strconv.Itoa(r.Year),
		Mileage:      strconv.Itoa(r.Mileage),
		FuelType:     r.FuelType,
		Transmission: r.Transmission,
	}
}

// RecordInput is an unvalidated record as received from a client.
type RecordInput struct {
	Brand        string `json:"brand" validate:"required"`
	Model        string `json:"model" validate:"required"`
	Year         string `json:"year" validate:"required"`
	Mileage      string `json:"mileage" validate:"required"`
	FuelType     string `json:"fuel_type" validate:"required"`
	Transmission string `json:"transmission" validate:"required"`
	Price        string `json:"price" validate:"required"`
}

// Record validates the input and coerces it into a SaleRecord.
func (in RecordInput) Record() (SaleRecord, error) {
	if err := ValidateRequired(in); err != nil {
		return SaleRecord{}, err
	}
	year, err := ParseInt(FieldYear, in.Year)
	if err != nil {
		return SaleRecord{}, err
	}
	mileage, err := ParseInt(FieldMileage, in.Mileage)
	if err != nil {
		return SaleRecord{}, err
	}
	price, err := ParseFloat(FieldPrice, in.Price)
	if err != nil {
		return SaleRecord{}, err
	}
	return SaleRecord{
		Brand:        in.Brand,
		Model:        in.Model,
		Year:         year,
		Mileage:      mileage,
		FuelType:     in.FuelType,
		Transmission: in.Transmission,
		Price:        price,
	}, nil
}

// Canonical folds surrounding whitespace and Unicode normalization form.
// Encoding never uses it; it only groups spelling variants for the quality
// audit.
func Canonical(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
