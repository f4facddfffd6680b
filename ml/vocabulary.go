package ml

import (
	"encoding/json"
	"fmt"
	"sort"

	"carprice/models"
)

// Vocabulary assigns each distinct categorical value its position in the
// ascending sorted list of values seen at training time.
type Vocabulary struct {
	values []string
	index  map[string]int
}

// NewVocabulary rebuilds a vocabulary from its sorted domain. Unsorted or
// duplicated input is rejected because it would not round-trip to the same
// indices.
func NewVocabulary(values []string) (*Vocabulary, error) {
	for i := 1; i < len(values); i++ {
		if values[i-1] >= values[i] {
			return nil, fmt.Errorf("vocabulary values not strictly ascending at %d: %q, %q", i, values[i-1], values[i])
		}
	}
	return newVocabulary(append([]string(nil), values...)), nil
}

func newVocabulary(sorted []string) *Vocabulary {
	index := make(map[string]int, len(sorted))
	for i, value := range sorted {
		index[value] = i
	}
	return &Vocabulary{values: sorted, index: index}
}

// Index returns the index of value, if it was part of the training snapshot.
func (v *Vocabulary) Index(value string) (int, bool) {
	if v == nil {
		return 0, false
	}
	idx, ok := v.index[value]
	return idx, ok
}

// Values returns the sorted domain.
func (v *Vocabulary) Values() []string {
	if v == nil {
		return []string{}
	}
	return append([]string{}, v.values...)
}

func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.values)
}

func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Values())
}

func (v *Vocabulary) UnmarshalJSON(payload []byte) error {
	var values []string
	if err := json.Unmarshal(payload, &values); err != nil {
		return err
	}
	rebuilt, err := NewVocabulary(values)
	if err != nil {
		return err
	}
	*v = *rebuilt
	return nil
}

// Vocabularies holds one vocabulary per categorical field.
type Vocabularies map[string]*Vocabulary

// BuildVocabularies derives the vocabularies of a snapshot. Values are taken
// exactly as stored, so distinct strings always get distinct indices. The
// result only depends on the set of values present, never on record order.
func BuildVocabularies(snapshot []models.SaleRecord) Vocabularies {
	vocabs := make(Vocabularies, len(models.CategoricalFields))
	for _, field := range models.CategoricalFields {
		seen := make(map[string]struct{})
		values := make([]string, 0)
		for _, record := range snapshot {
			value := record.Category(field)
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			values = append(values, value)
		}
		sort.Strings(values)
		vocabs[field] = newVocabulary(values)
	}
	return vocabs
}

func (vs Vocabularies) lookup(field, value string) (float64, error) {
	idx, ok := vs[field].Index(value)
	if !ok {
		return 0, &models.UnknownCategoryValueError{Field: field, Value: value}
	}
	return float64(idx), nil
}
