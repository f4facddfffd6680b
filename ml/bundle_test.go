package ml

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"carprice/models"
)

func trainedBundle(t *testing.T) *Bundle {
	t.Helper()
	bundle, err := NewTrainer(testTrainConfig(), nil).Train(context.Background(), sampleRecords())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return bundle
}

func corollaQuery() models.Query {
	return models.Query{
		Brand:        "Toyota",
		Model:        "Corolla",
		Year:         "2020",
		Mileage:      "30000",
		FuelType:     "Petrol",
		Transmission: "Manual",
	}
}

func TestPredictRoundsToCents(t *testing.T) {
	bundle := trainedBundle(t)

	price, err := bundle.Predict(corollaQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price <= 0 {
		t.Fatalf("expected a positive price, got %f", price)
	}
	if math.Abs(price*100-math.Round(price*100)) > 1e-6 {
		t.Fatalf("expected price rounded to 2 decimals, got %v", price)
	}
}

func TestPredictUnknownBrand(t *testing.T) {
	bundle := trainedBundle(t)
	q := corollaQuery()
	q.Brand = "Tesla"

	_, err := Predict(bundle, q)
	var unknown *models.UnknownCategoryValueError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCategoryValueError, got %v", err)
	}
	if unknown.Field != "brand" || unknown.Value != "Tesla" {
		t.Fatalf("unexpected error detail: %+v", unknown)
	}
}

func TestPredictMissingFields(t *testing.T) {
	bundle := trainedBundle(t)
	q := corollaQuery()
	q.Mileage = ""
	q.Transmission = ""

	_, err := Predict(bundle, q)
	var missing *models.MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
	if len(missing.Fields) != 2 || missing.Fields[0] != "mileage" || missing.Fields[1] != "transmission" {
		t.Fatalf("unexpected missing fields: %v", missing.Fields)
	}
}

func TestPredictWithoutBundle(t *testing.T) {
	if _, err := Predict(nil, corollaQuery()); !errors.Is(err, models.ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{18500.004, 18500},
		{0.125, 0.13},
		{1234.5678, 1234.57},
		{99, 99},
	}
	for _, tt := range tests {
		if got := roundPrice(tt.in); got != tt.want {
			t.Errorf("roundPrice(%v) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestBundleSaveLoad(t *testing.T) {
	bundle := trainedBundle(t)
	path := filepath.Join(t.TempDir(), "data", "car_model.bundle")

	if err := bundle.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadBundle(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Version != bundle.Version || !loaded.TrainedAt.Equal(bundle.TrainedAt) {
		t.Fatalf("metadata not preserved: %+v vs %+v", loaded, bundle)
	}
	if loaded.Metrics != bundle.Metrics || loaded.SnapshotSize != bundle.SnapshotSize {
		t.Fatalf("metrics not preserved: %+v vs %+v", loaded.Metrics, bundle.Metrics)
	}
	for _, record := range sampleRecords() {
		q := models.QueryFromRecord(record)
		want, _ := bundle.Predict(q)
		got, err := loaded.Predict(q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %f after reload, got %f", want, got)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the bundle file, found %d entries", len(entries))
	}
}

func TestLoadBundleMissingFile(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "missing.bundle"))
	if !errors.Is(err, models.ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}

func TestDecodeBundleRejectsGarbage(t *testing.T) {
	if _, err := DecodeBundle(bytes.NewReader([]byte("not a bundle"))); err == nil {
		t.Fatal("expected error for garbage input")
	}
}
