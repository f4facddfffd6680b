package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"carprice/models"
)

const defaultCacheSize = 256

// Store is the append-only CSV file of sale records. Appends hold the write
// lock for the whole read-append cycle, so there is a single writer at a time.
type Store struct {
	path        string
	mu          sync.RWMutex
	brandModels *lru.Cache[string, []string]
	logger      *zap.Logger
}

// Open prepares the store at path, creating the file with its header row
// when it does not exist yet.
func Open(path string, cacheSize int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, brandModels: cache, logger: logger}
	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureFile() error {
	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("dataset: create dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("dataset: create file %q: %w", s.path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(models.RecordColumns); err != nil {
		f.Close()
		return fmt.Errorf("dataset: write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	s.logger.Info("created record store", zap.String("path", s.path))
	return f.Close()
}

// Snapshot returns every record in file order.
func (s *Store) Snapshot() ([]models.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readAll()
}

func (s *Store) Count() (int, error) {
	records, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Append validates in and writes it as the last row. It returns the new
// number of records. Nothing is written when validation fails.
func (s *Store) Append(in models.RecordInput) (int, error) {
	record, err := in.Record()
	if err != nil {
		return 0, err
	}
	return s.AppendRecord(record)
}

func (s *Store) AppendRecord(record models.SaleRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("dataset: open %q: %w", s.path, err)
	}
	defer f.Close()

	if err := terminateLastLine(f); err != nil {
		return 0, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(encodeRow(record)); err != nil {
		return 0, fmt.Errorf("dataset: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("dataset: write row: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}

	s.brandModels.Purge()
	total := len(records) + 1
	s.logger.Debug("record appended",
		zap.String("brand", record.Brand),
		zap.String("model", record.Model),
		zap.Int("total", total))
	return total, nil
}

// ModelsForBrand lists the distinct models recorded for exactly brand, in
// the order they first appear in the file.
func (s *Store) ModelsForBrand(brand string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cached, ok := s.brandModels.Get(brand); ok {
		return append([]string{}, cached...), nil
	}

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, record := range records {
		if record.Brand != brand {
			continue
		}
		if _, ok := seen[record.Model]; ok {
			continue
		}
		seen[record.Model] = struct{}{}
		result = append(result, record.Model)
	}
	s.brandModels.Add(brand, result)
	return append([]string{}, result...), nil
}

func (s *Store) readAll() ([]models.SaleRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %q: %w", s.path, err)
	}
	defer f.Close()
	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", s.path, err)
	}
	return records, nil
}

// ReadRecords parses a record CSV. Columns are located by header name, so
// their order in the file does not matter.
func ReadRecords(r io.Reader) ([]models.SaleRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.SaleRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range models.RecordColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("header is missing column %q", name)
		}
	}
	reader.FieldsPerRecord = len(header)

	records := make([]models.SaleRecord, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		record, err := decodeRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRow(row []string, columns map[string]int) (models.SaleRecord, error) {
	year, err := models.ParseInt(models.FieldYear, row[columns[models.FieldYear]])
	if err != nil {
		return models.SaleRecord{}, err
	}
	mileage, err := models.ParseInt(models.FieldMileage, row[columns[models.FieldMileage]])
	if err != nil {
		return models.SaleRecord{}, err
	}
	price, err := models.ParseFloat(models.FieldPrice, row[columns[models.FieldPrice]])
	if err != nil {
		return models.SaleRecord{}, err
	}
	return models.SaleRecord{
		Brand:        row[columns[models.FieldBrand]],
		Model:        row[columns[models.FieldModel]],
		Year:         year,
		Mileage:      mileage,
		FuelType:     row[columns[models.FieldFuelType]],
		Transmission: row[columns[models.FieldTransmission]],
		Price:        price,
	}, nil
}

func encodeRow(record models.SaleRecord) []string {
	return []string{
		record.Brand,
		record.Model,
		strconv.Itoa(record.Year),
		strconv.Itoa(record.Mileage),
		record.FuelType,
		record.Transmission,
		strconv.FormatFloat(record.Price, 'f', -1, 64),
	}
}

// terminateLastLine adds a newline when a hand-edited file does not end with one.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte("\n"))
	return err
}
