// Package documents holds the closed set of document categories, the row
// shape shared by every category table, and one repository per category.
package documents

import (
	"fmt"

	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/schema"
)

// Category is a document category. The zero value is not a category.
type Category int

const (
	MedicalRecords Category = iota + 1
	MedicalBilling
	Evidence
)

// categoryCount is the number of defined categories; tables are indexed by
// Category-1.
const categoryCount = 3

var categoryTables = [categoryCount]schema.DocumentTable{
	MedicalRecords - 1: schema.MedicalRecordsTable,
	MedicalBilling - 1: schema.MedicalBillingTable,
	Evidence - 1:       schema.EvidenceTable,
}

// Categories returns every category in a stable order.
func Categories() []Category {
	return []Category{MedicalRecords, MedicalBilling, Evidence}
}

// IsValid reports whether c is one of the defined categories.
func (c Category) IsValid() bool {
	return c >= MedicalRecords && c <= Evidence
}

// Table returns the table backing the category.
func (c Category) Table() schema.DocumentTable {
	if !c.IsValid() {
		panic(fmt.Sprintf("documents: invalid category %d", int(c)))
	}
	return categoryTables[c-1]
}

// String returns the table name used on the wire and in audit entries.
func (c Category) String() string {
	if !c.IsValid() {
		return "unknown"
	}
	return categoryTables[c-1].Name
}

// ParseCategory converts a wire name such as "medical_records" to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, phierr.NewInvalidArgumentError("document type", fmt.Sprintf("%q is not a document category", s))
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, phierr.NewInvalidArgumentError("document type", "invalid category")
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
