package dataset

import (
	"fmt"
	"strings"
	"time"

	"carprice/models"
)

const minPlausibleYear = 1900

// QualityRule inspects one record. It returns an error describing the
// problem, or nil when the record looks fine.
type QualityRule interface {
	Check(models.SaleRecord) error
	Name() string
}

// QualityIssue is one problem found in the record store.
type QualityIssue struct {
	Rule    string `json:"rule"`
	Record  int    `json:"record"`
	Message string `json:"message"`
}

// QualityReport summarizes an audit. Flagged counts records with at least
// one issue.
type QualityReport struct {
	Total   int            `json:"total"`
	Flagged int            `json:"flagged"`
	ByRule  map[string]int `json:"by_rule"`
	Issues  []QualityIssue `json:"issues"`
}

// Auditor flags implausible records. It never drops or rewrites anything:
// training uses every stored record regardless of the report.
type Auditor struct {
	rules []func() QualityRule
}

func NewAuditor() *Auditor {
	a := &Auditor{}
	a.AddRule(func() QualityRule { return PriceRule{} })
	a.AddRule(func() QualityRule { return MileageRule{} })
	a.AddRule(func() QualityRule { return YearRule{MaxYear: time.Now().Year() + 1} })
	a.AddRule(func() QualityRule { return newDuplicateRule() })
	a.AddRule(func() QualityRule { return newVariantRule() })
	return a
}

// AddRule registers a rule factory. A fresh rule is built per audit so
// stateful rules start clean.
func (a *Auditor) AddRule(factory func() QualityRule) {
	a.rules = append(a.rules, factory)
}

func (a *Auditor) Audit(records []models.SaleRecord) QualityReport {
	rules := make([]QualityRule, len(a.rules))
	for i, factory := range a.rules {
		rules[i] = factory()
	}

	report := QualityReport{
		Total:  len(records),
		ByRule: make(map[string]int),
		Issues: make([]QualityIssue, 0),
	}
	for i, record := range records {
		flagged := false
		for _, rule := range rules {
			if err := rule.Check(record); err != nil {
				report.Issues = append(report.Issues, QualityIssue{
					Rule:    rule.Name(),
					Record:  i + 1,
					Message: err.Error(),
				})
				report.ByRule[rule.Name()]++
				flagged = true
			}
		}
		if flagged {
			report.Flagged++
		}
	}
	return report
}

type PriceRule struct{}

func (PriceRule) Name() string { return "price" }

func (PriceRule) Check(r models.SaleRecord) error {
	if r.Price <= 0 {
		return fmt.Errorf("non-positive price %v", r.Price)
	}
	return nil
}

type MileageRule struct{}

func (MileageRule) Name() string { return "mileage" }

func (MileageRule) Check(r models.SaleRecord) error {
	if r.Mileage < 0 {
		return fmt.Errorf("negative mileage %d", r.Mileage)
	}
	return nil
}

type YearRule struct {
	MaxYear int
}

func (YearRule) Name() string { return "year" }

func (y YearRule) Check(r models.SaleRecord) error {
	if r.Year < minPlausibleYear || r.Year > y.MaxYear {
		return fmt.Errorf("year %d outside %d..%d", r.Year, minPlausibleYear, y.MaxYear)
	}
	return nil
}

// duplicateRule flags a record identical to an earlier one.
type duplicateRule struct {
	seen map[models.SaleRecord]struct{}
}

func newDuplicateRule() *duplicateRule {
	return &duplicateRule{seen: make(map[models.SaleRecord]struct{})}
}

func (*duplicateRule) Name() string { return "duplicate" }

func (d *duplicateRule) Check(r models.SaleRecord) error {
	if _, ok := d.seen[r]; ok {
		return fmt.Errorf("duplicate of an earlier %s %s record", r.Brand, r.Model)
	}
	d.seen[r] = struct{}{}
	return nil
}

// variantRule flags categorical values that differ from an earlier spelling
// only by surrounding whitespace or Unicode normalization form. Such values
// are encoded as separate categories.
type variantRule struct {
	spellings map[string]map[string]string
}

func newVariantRule() *variantRule {
	spellings := make(map[string]map[string]string, len(models.CategoricalFields))
	for _, field := range models.CategoricalFields {
		spellings[field] = make(map[string]string)
	}
	return &variantRule{spellings: spellings}
}

func (*variantRule) Name() string { return "variant" }

func (v *variantRule) Check(r models.SaleRecord) error {
	var variants []string
	for _, field := range models.CategoricalFields {
		value := r.Category(field)
		key := models.Canonical(value)
		first, ok := v.spellings[field][key]
		if !ok {
			v.spellings[field][key] = value
			continue
		}
		if first != value {
			variants = append(variants, fmt.Sprintf("%s %q vs %q", field, value, first))
		}
	}
	if len(variants) > 0 {
		return fmt.Errorf("spelling variant of an earlier value: %s", strings.Join(variants, ", "))
	}
	return nil
}
