package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel values assigned by the normalizer when a field cannot be resolved.
const (
	UnknownProduct  = "Unknown"
	GeneralCategory = "General"
)

// DateLayout is the canonical calendar-date form used across the ledger.
// Dates are stored as local-date strings, never as time.Time, so a record
// dated 2024-01-07 stays 2024-01-07 regardless of the machine's timezone.
const DateLayout = "2006-01-02"

// Categories is the closed vocabulary the enrichment step may assign.
var Categories = []string{
	"Rings",
	"Bracelets",
	"Necklaces",
	"Pendants",
	"Earrings",
	"Anklets",
	"Charms",
	"Sets",
	"Other",
}

// SaleRecord is one normalized sales line.
type SaleRecord struct {
	ID       string          `json:"id"`
	Date     string          `json:"date"`     // YYYY-MM-DD local calendar date
	Product  string          `json:"product"`  // never empty; "Unknown" when unresolved
	Category string          `json:"category"` // "General" when uncategorized
	Amount   decimal.Decimal `json:"amount"`   // non-negative
	Quantity int             `json:"quantity"` // at least 1
}

// Retained reports whether a record carries enough signal to keep:
// a positive amount, or a real product name.
func (r SaleRecord) Retained() bool {
	return r.Amount.IsPositive() || (r.Product != "" && r.Product != UnknownProduct)
}

// MappingSchema resolves the semantic fields to source spreadsheet column
// names. Date, Product and Amount are required; Category and Quantity are
// optional.
type MappingSchema struct {
	Date     string `json:"date"`
	Product  string `json:"product"`
	Amount   string `json:"amount"`
	Category string `json:"category,omitempty"`
	Quantity string `json:"quantity,omitempty"`
}

// Validate checks that every required field is mapped.
func (m MappingSchema) Validate() error {
	var missing []string
	if m.Date == "" {
		missing = append(missing, "date")
	}
	if m.Product == "" {
		missing = append(missing, "product")
	}
	if m.Amount == "" {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mapping schema missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Columns returns every source column name the mapping references.
func (m MappingSchema) Columns() []string {
	var cols []string
	for _, c := range []string{m.Date, m.Product, m.Amount, m.Category, m.Quantity} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// CompatibleWith reports whether every column the mapping references is
// present in the given header row. A cached mapping that fails this check
// must not be applied to the new file.
func (m MappingSchema) CompatibleWith(headers []string) bool {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, c := range m.Columns() {
		if !present[c] {
			return false
		}
	}
	return true
}
