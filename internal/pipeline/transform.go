package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

// excelEpochSerial is the spreadsheet serial number for 1970-01-01.
// Numeric date cells at or below it are treated as misrouted data rather
// than dates and fall back to the ingestion day.
const excelEpochSerial = 25569

// Layouts tried for date cells carrying a 4-digit year. Numeric layouts
// are month-first; Go's parser accepts zero-padded values against the
// unpadded verbs, so one form per shape is enough.
var yearLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"1-2-2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Layouts for cells with a two-digit year, tried after the 4-digit forms.
var shortYearLayouts = []string{
	"1/2/06",
	"1-2-06",
}

// Layouts for cells with no year at all; the current year is assumed.
var noYearLayouts = []string{
	"1/2",
	"1-2",
	"Jan 2",
	"January 2",
}

// NormalizeRows maps raw spreadsheet rows onto canonical sale records
// using the resolved column mapping. Malformed cells degrade to their
// documented defaults instead of aborting the batch; rows with no signal
// at all (zero amount and no real product name) are dropped.
func NormalizeRows(rows []map[string]string, mapping domain.MappingSchema, sourceFile string, now time.Time) []domain.SaleRecord {
	stamp := now.UnixMilli()

	records := make([]domain.SaleRecord, 0, len(rows))
	for idx, row := range rows {
		rec := domain.SaleRecord{
			ID:       fmt.Sprintf("%s-%d-%d", sourceFile, idx, stamp),
			Date:     parseDate(row[mapping.Date], now),
			Product:  textOr(row[mapping.Product], domain.UnknownProduct),
			Category: domain.GeneralCategory,
			Amount:   parseAmount(row[mapping.Amount]),
			Quantity: 1,
		}
		if mapping.Category != "" {
			rec.Category = textOr(row[mapping.Category], domain.GeneralCategory)
		}
		if mapping.Quantity != "" {
			rec.Quantity = parseQuantity(row[mapping.Quantity])
		}

		if !rec.Retained() {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// textOr trims the cell and substitutes fallback for empty values.
func textOr(raw, fallback string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fallback
	}
	return s
}

// parseAmount strips currency symbols and thousands separators, then
// parses the remainder as a decimal. Unparseable and negative values
// coerce to zero so a bad cell never poisons the batch.
func parseAmount(raw string) decimal.Decimal {
	cleaned := stripNonNumeric(raw)
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// stripNonNumeric keeps only digits, '.', and '-'.
func stripNonNumeric(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseQuantity parses a unit count. Fractional values truncate toward
// zero; anything unparseable or below 1 defaults to a single unit.
func parseQuantity(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 1
		}
		n = int(f)
	}
	if n < 1 {
		return 1
	}
	return n
}

// parseDate resolves a raw date cell to the canonical local YYYY-MM-DD
// form. Numeric cells are spreadsheet serial days, accepted only above
// the 1970 epoch threshold. String cells run through the known layouts;
// ones without a 4-digit year assume the current year, and parses that
// land before 1970 are pushed forward a century (a two-digit rollover,
// not a genuinely ancient sale). Anything unparseable falls back to the
// ingestion day.
func parseDate(raw string, now time.Time) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return now.Format(domain.DateLayout)
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return serialToDate(serial, now)
	}

	for _, layout := range yearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return fixCentury(t).Format(domain.DateLayout)
		}
	}
	for _, layout := range shortYearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return fixCentury(t).Format(domain.DateLayout)
		}
	}
	for _, layout := range noYearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
			return t.Format(domain.DateLayout)
		}
	}

	return now.Format(domain.DateLayout)
}

// serialToDate converts a spreadsheet serial day to a local date. Serial
// 25570 is 1970-01-01; values at or below the epoch threshold fall back
// to the ingestion day.
func serialToDate(serial float64, now time.Time) string {
	if serial <= excelEpochSerial {
		return now.Format(domain.DateLayout)
	}
	days := int(serial - excelEpochSerial - 1)
	t := time.Date(1970, 1, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, days)
	return t.Format(domain.DateLayout)
}

// fixCentury corrects parses that landed before 1970 by moving them
// forward a century.
func fixCentury(t time.Time) time.Time {
	if t.Year() < 1970 {
		return t.AddDate(100, 0, 0)
	}
	return t
}
