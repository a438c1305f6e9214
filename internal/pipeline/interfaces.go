package pipeline

import (
	"context"

	"github.com/dvloznov/sales-ledger/internal/assistant"
	"github.com/dvloznov/sales-ledger/internal/domain"
)

// LedgerStore is the slice of the ledger store the import pipeline needs:
// duplicate detection, the cached mapping, and the final append.
type LedgerStore interface {
	HasFile(sourceFile string) (bool, error)
	Current() (*domain.Ledger, error)
	Append(records []domain.SaleRecord, mapping *domain.MappingSchema, sourceFile string) (int, error)
}

// Assistant covers the AI calls the pipeline makes. A nil Assistant is
// valid: mapping suggestions and enrichment are skipped and imports rely
// on explicit or cached mappings alone.
type Assistant interface {
	SuggestMapping(ctx context.Context, columns []string) (*domain.MappingSchema, error)
	CategorizeProducts(ctx context.Context, products []string) (map[string]assistant.ProductInfo, error)
}
