package ml

import (
	"reflect"
	"testing"

	"carprice/models"
)

func TestBuildVocabulariesSortedIndices(t *testing.T) {
	vocabs := BuildVocabularies(sampleRecords())

	brands := vocabs[models.FieldBrand].Values()
	expected := []string{"BMW", "Ford", "Honda", "Toyota", "Volkswagen"}
	if !reflect.DeepEqual(brands, expected) {
		t.Fatalf("expected brands %v, got %v", expected, brands)
	}
	for i, brand := range expected {
		idx, ok := vocabs[models.FieldBrand].Index(brand)
		if !ok || idx != i {
			t.Fatalf("expected %s at %d, got %d (found=%v)", brand, i, idx, ok)
		}
	}
	if _, ok := vocabs[models.FieldBrand].Index("Tesla"); ok {
		t.Fatal("expected Tesla to have no index")
	}
}

func TestBuildVocabulariesDeterministic(t *testing.T) {
	records := sampleRecords()
	first := BuildVocabularies(records)
	second := BuildVocabularies(records)

	reversed := make([]models.SaleRecord, len(records))
	for i, record := range records {
		reversed[len(records)-1-i] = record
	}
	third := BuildVocabularies(reversed)

	for _, field := range models.CategoricalFields {
		if !reflect.DeepEqual(first[field].Values(), second[field].Values()) {
			t.Fatalf("%s: repeated build differs", field)
		}
		if !reflect.DeepEqual(first[field].Values(), third[field].Values()) {
			t.Fatalf("%s: build depends on record order", field)
		}
	}
}

func TestVocabularyInjective(t *testing.T) {
	vocabs := BuildVocabularies(sampleRecords())
	for _, field := range models.CategoricalFields {
		vocab := vocabs[field]
		seen := make(map[int]string)
		for _, value := range vocab.Values() {
			idx, ok := vocab.Index(value)
			if !ok {
				t.Fatalf("%s: value %q has no index", field, value)
			}
			if other, dup := seen[idx]; dup {
				t.Fatalf("%s: %q and %q share index %d", field, value, other, idx)
			}
			if idx < 0 || idx >= vocab.Len() {
				t.Fatalf("%s: index %d out of range", field, idx)
			}
			seen[idx] = value
		}
	}
}

func TestBuildVocabulariesEmptySnapshot(t *testing.T) {
	vocabs := BuildVocabularies(nil)
	for _, field := range models.CategoricalFields {
		if vocabs[field].Len() != 0 {
			t.Fatalf("%s: expected empty vocabulary", field)
		}
	}
}

func TestBuildVocabulariesKeepsSpellingVariantsDistinct(t *testing.T) {
	records := []models.SaleRecord{
		{Brand: "Toyota"},
		{Brand: "Toyota "},
		{Brand: "Citro\u00ebn"},
		{Brand: "Citroe\u0308n"},
	}
	vocab := BuildVocabularies(records)[models.FieldBrand]
	if vocab.Len() != 4 {
		t.Fatalf("expected 4 distinct brands, got %q", vocab.Values())
	}

	indices := make(map[int]string)
	for _, value := range []string{"Toyota", "Toyota ", "Citro\u00ebn", "Citroe\u0308n"} {
		idx, ok := vocab.Index(value)
		if !ok {
			t.Fatalf("expected %q to resolve", value)
		}
		if other, dup := indices[idx]; dup {
			t.Fatalf("%q and %q share index %d", value, other, idx)
		}
		indices[idx] = value
	}

	if _, ok := vocab.Index("  Toyota\t"); ok {
		t.Fatal("expected padded value to be unknown")
	}
}

func TestNewVocabularyRejectsUnsortedValues(t *testing.T) {
	if _, err := NewVocabulary([]string{"b", "a"}); err == nil {
		t.Fatal("expected error for unsorted values")
	}
	if _, err := NewVocabulary([]string{"a", "a"}); err == nil {
		t.Fatal("expected error for duplicated values")
	}
	vocab, err := NewVocabulary([]string{"Automatic", "Manual"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx, _ := vocab.Index("Manual"); idx != 1 {
		t.Fatalf("expected Manual at 1, got %d", idx)
	}
}
