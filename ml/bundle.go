package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/klauspost/compress/zstd"

	"carprice/models"
)

const bundleFormatVersion = 1

// Bundle is a trained regressor together with the vocabularies it was fit
// against. It is never modified after Train or LoadBundle returns it.
type Bundle struct {
	Version      string
	ModelType    string
	TrainedAt    time.Time
	SnapshotSize int
	Metrics      Metrics

	regressor    Regressor
	vocabularies Vocabularies
}

// Options are the selectable values of every categorical field.
type Options struct {
	Brands        []string `json:"brands"`
	Models        []string `json:"models"`
	FuelTypes     []string `json:"fuel_types"`
	Transmissions []string `json:"transmissions"`
}

func (b *Bundle) Options() Options {
	return Options{
		Brands:        b.DisplayList(models.FieldBrand),
		Models:        b.DisplayList(models.FieldModel),
		FuelTypes:     b.DisplayList(models.FieldFuelType),
		Transmissions: b.DisplayList(models.FieldTransmission),
	}
}

// DisplayList returns the ascending values of a categorical field.
func (b *Bundle) DisplayList(field string) []string {
	return b.vocabularies[field].Values()
}

func (b *Bundle) Vocabularies() Vocabularies {
	return b.vocabularies
}

func (b *Bundle) Predict(q models.Query) (float64, error) {
	return Predict(b, q)
}

type bundleFile struct {
	FormatVersion int                 `json:"format_version"`
	Version       string              `json:"version"`
	ModelType     string              `json:"model_type"`
	TrainedAt     time.Time           `json:"trained_at"`
	SnapshotSize  int                 `json:"snapshot_size"`
	Metrics       Metrics             `json:"metrics"`
	Regressor     json.RawMessage     `json:"regressor"`
	Vocabularies  Vocabularies        `json:"vocabularies"`
	DisplayLists  map[string][]string `json:"display_lists"`
}

// Encode writes the bundle as zstd-compressed JSON.
func (b *Bundle) Encode(w io.Writer) error {
	regressor, err := json.Marshal(b.regressor)
	if err != nil {
		return fmt.Errorf("encode regressor: %w", err)
	}
	displayLists := make(map[string][]string, len(models.CategoricalFields))
	for _, field := range models.CategoricalFields {
		displayLists[field] = b.DisplayList(field)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(bundleFile{
		FormatVersion: bundleFormatVersion,
		Version:       b.Version,
		ModelType:     b.ModelType,
		TrainedAt:     b.TrainedAt,
		SnapshotSize:  b.SnapshotSize,
		Metrics:       b.Metrics,
		Regressor:     regressor,
		Vocabularies:  b.vocabularies,
		DisplayLists:  displayLists,
	}); err != nil {
		zw.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	return zw.Close()
}

func DecodeBundle(r io.Reader) (*Bundle, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var file bundleFile
	if err := json.NewDecoder(zr).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if file.FormatVersion != bundleFormatVersion {
		return nil, fmt.Errorf("unsupported bundle format version %d", file.FormatVersion)
	}
	for _, field := range models.CategoricalFields {
		vocab, ok := file.Vocabularies[field]
		if !ok || vocab == nil {
			return nil, fmt.Errorf("bundle is missing the %s vocabulary", field)
		}
		if !slices.Equal(vocab.Values(), file.DisplayLists[field]) {
			return nil, fmt.Errorf("bundle %s display list does not match its vocabulary", field)
		}
	}
	regressor, err := decodeRegressor(file.ModelType, file.Regressor)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Version:      file.Version,
		ModelType:    file.ModelType,
		TrainedAt:    file.TrainedAt,
		SnapshotSize: file.SnapshotSize,
		Metrics:      file.Metrics,
		regressor:    regressor,
		vocabularies: file.Vocabularies,
	}, nil
}

// Save replaces the file at path. The bundle is written to a temporary file
// in the same directory first so readers never see a partial artifact.
func (b *Bundle) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := b.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadBundle reads a bundle written by Save. A missing file is reported as
// models.ErrModelNotTrained.
func LoadBundle(path string) (*Bundle, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, models.ErrModelNotTrained
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeBundle(file)
}
