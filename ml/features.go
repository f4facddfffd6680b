package ml

import (
	"carprice/models"
)

const FeatureCount = 6

// FeatureVector is the fixed-order input of every regressor:
// brand, model, year, mileage, fuel type, transmission.
type FeatureVector [FeatureCount]float64

func FeatureNames() []string {
	return []string{
		models.FieldBrand,
		models.FieldModel,
		models.FieldYear,
		models.FieldMileage,
		models.FieldFuelType,
		models.FieldTransmission,
	}
}

// Encode turns a query into a feature vector. Categories missing from vocabs
// fail with UnknownCategoryValueError, numeric fields that cannot be read as
// integers with InvalidNumericValueError.
func Encode(q models.Query, vocabs Vocabularies) (FeatureVector, error) {
	var fv FeatureVector
	var err error
	if fv[0], err = vocabs.lookup(models.FieldBrand, q.Brand); err != nil {
		return FeatureVector{}, err
	}
	if fv[1], err = vocabs.lookup(models.FieldModel, q.Model); err != nil {
		return FeatureVector{}, err
	}
	year, err := models.ParseInt(models.FieldYear, q.Year)
	if err != nil {
		return FeatureVector{}, err
	}
	fv[2] = float64(year)
	mileage, err := models.ParseInt(models.FieldMileage, q.Mileage)
	if err != nil {
		return FeatureVector{}, err
	}
	fv[3] = float64(mileage)
	if fv[4], err = vocabs.lookup(models.FieldFuelType, q.FuelType); err != nil {
		return FeatureVector{}, err
	}
	if fv[5], err = vocabs.lookup(models.FieldTransmission, q.Transmission); err != nil {
		return FeatureVector{}, err
	}
	return fv, nil
}

func EncodeRecord(r models.SaleRecord, vocabs Vocabularies) (FeatureVector, error) {
	return Encode(models.QueryFromRecord(r), vocabs)
}

func (fv FeatureVector) Slice() []float64 {
	return append([]float64(nil), fv[:]...)
}
