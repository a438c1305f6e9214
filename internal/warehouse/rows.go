package warehouse

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

// SaleRow is one ledger record in the warehouse sales table.
type SaleRow struct {
	SaleID   string `bigquery:"sale_id"`  // REQUIRED
	Business string `bigquery:"business"` // REQUIRED

	SaleDate civil.Date `bigquery:"sale_date"` // DATE, REQUIRED

	Product  string   `bigquery:"product"`  // REQUIRED
	Category string   `bigquery:"category"` // REQUIRED
	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Quantity int64    `bigquery:"quantity"` // REQUIRED INT64

	ExportedTS time.Time `bigquery:"exported_ts"` // TIMESTAMP, REQUIRED
}

// Rows converts a ledger snapshot into warehouse rows. Every record in the
// ledger carries a normalized YYYY-MM-DD date, so a parse failure here means
// the ledger file was edited by hand.
func Rows(l *domain.Ledger, now time.Time) ([]*SaleRow, error) {
	rows := make([]*SaleRow, 0, len(l.Data))
	for _, rec := range l.Data {
		date, err := civil.ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("Rows: record %s: bad date %q: %w", rec.ID, rec.Date, err)
		}
		rows = append(rows, &SaleRow{
			SaleID:     rec.ID,
			Business:   l.Name,
			SaleDate:   date,
			Product:    rec.Product,
			Category:   rec.Category,
			Amount:     rec.Amount.Rat(),
			Quantity:   int64(rec.Quantity),
			ExportedTS: now,
		})
	}
	return rows, nil
}
