package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/sales-ledger/internal/assistant"
	"github.com/dvloznov/sales-ledger/internal/domain"
)

// enrichBatchSize bounds how many distinct product names go into a single
// categorization request.
const enrichBatchSize = 50

// enrichConcurrency bounds how many categorization requests run at once.
const enrichConcurrency = 4

// ShouldEnrich reports whether a normalized batch needs AI categorization:
// either the mapping found no category column at all, or at least half the
// rows carry the General placeholder.
func ShouldEnrich(mapping domain.MappingSchema, records []domain.SaleRecord) bool {
	if mapping.Category == "" {
		return true
	}
	if len(records) == 0 {
		return false
	}
	general := 0
	for _, r := range records {
		if r.Category == domain.GeneralCategory {
			general++
		}
	}
	return float64(general)/float64(len(records)) >= 0.5
}

// distinctProducts returns the unique product names in first-seen order.
func distinctProducts(records []domain.SaleRecord) []string {
	seen := make(map[string]bool, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		if seen[r.Product] {
			continue
		}
		seen[r.Product] = true
		names = append(names, r.Product)
	}
	return names
}

// enrichRecords asks the assistant to categorize the batch's distinct
// products and applies the results in place. Batches run concurrently and
// fail independently: a failed batch is logged and skipped, so partial
// enrichment is fine and unmatched products keep their normalized values.
// Returns the number of records updated.
func enrichRecords(ctx context.Context, ai Assistant, records []domain.SaleRecord, log zerolog.Logger) int {
	names := distinctProducts(records)
	if len(names) == 0 {
		return 0
	}

	var mu sync.Mutex
	lookup := make(map[string]assistant.ProductInfo, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for start := 0; start < len(names); start += enrichBatchSize {
		batch := names[start:min(start+enrichBatchSize, len(names))]
		g.Go(func() error {
			info, err := ai.CategorizeProducts(gctx, batch)
			if err != nil {
				log.Warn().Err(err).Int("batch_size", len(batch)).Msg("Categorization batch failed, skipping")
				return nil
			}
			mu.Lock()
			for name, pi := range info {
				lookup[name] = pi
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()

	if len(lookup) == 0 {
		return 0
	}

	updated := 0
	for i := range records {
		info, ok := lookup[records[i].Product]
		if !ok {
			continue
		}
		changed := false
		if info.Category != "" && info.Category != records[i].Category {
			records[i].Category = info.Category
			changed = true
		}
		if info.CleanedName != "" && info.CleanedName != records[i].Product {
			records[i].Product = info.CleanedName
			changed = true
		}
		if changed {
			updated++
		}
	}
	return updated
}
