package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/logger"
)

const (
	// BatchSize defines the number of sales to process in a single batch
	BatchSize = 100
)

// Result reports what a sync run changed in the Notion database.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Archived int `json:"archived"`
}

// SyncSales mirrors a ledger snapshot into a Notion database. The sync is
// one-way: pages whose Sale ID no longer exists in the ledger are archived,
// missing sales get new pages, and existing pages are refreshed with the
// record's current fields. Individual page failures are logged and counted
// as skipped; the run keeps going.
func SyncSales(ctx context.Context, l *domain.Ledger, notionClient NotionService, notionDBID string, dryRun bool) (*Result, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Str("business", l.Name).
		Int("sale_count", len(l.Data)).
		Bool("dry_run", dryRun).
		Msg("Starting sales sync to Notion")

	// Build set of valid sale IDs from the ledger
	validSaleIDs := make(map[string]bool, len(l.Data))
	for _, rec := range l.Data {
		validSaleIDs[rec.ID] = true
	}

	// Query all existing sales from Notion
	log.Info().Msg("Querying existing sales from Notion")
	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	// Map existing sale IDs to their Notion page IDs
	existingPages := make(map[string]string)
	for _, page := range notionPages {
		saleID := extractSaleID(page)
		if saleID != "" {
			existingPages[saleID] = string(page.ID)
		}
	}

	res := &Result{}

	// Archive stale pages: no Sale ID title, or the sale is gone from the ledger
	for _, page := range notionPages {
		saleID := extractSaleID(page)
		if saleID != "" && validSaleIDs[saleID] {
			continue
		}

		if dryRun {
			log.Info().
				Str("sale_id", saleID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}

		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("sale_id", saleID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			res.Skipped++
			continue
		}
		log.Info().
			Str("sale_id", saleID).
			Str("page_id", string(page.ID)).
			Msg("Archived stale Notion page")
		res.Archived++
	}

	// Process sales in batches
	for i := 0; i < len(l.Data); i += BatchSize {
		end := i + BatchSize
		if end > len(l.Data) {
			end = len(l.Data)
		}

		batch := l.Data[i:end]
		log.Info().
			Int("batch_start", i).
			Int("batch_end", end).
			Int("batch_size", len(batch)).
			Msg("Processing batch")

		for j := range batch {
			rec := &batch[j]
			pageID, exists := existingPages[rec.ID]

			if dryRun {
				if exists {
					log.Info().
						Str("sale_id", rec.ID).
						Str("page_id", pageID).
						Msg("[DRY RUN] Would update existing Notion page")
					res.Updated++
				} else {
					log.Info().
						Str("sale_id", rec.ID).
						Msg("[DRY RUN] Would create new Notion page")
					res.Created++
				}
				continue
			}

			props := SaleToNotionProperties(rec)

			if exists {
				if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
					log.Warn().
						Err(err).
						Str("sale_id", rec.ID).
						Str("page_id", pageID).
						Msg("Failed to update Notion page")
					res.Skipped++
					continue
				}
				res.Updated++
				continue
			}

			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().
					Err(err).
					Str("sale_id", rec.ID).
					Msg("Failed to create Notion page")
				res.Skipped++
				continue
			}
			log.Info().
				Str("sale_id", rec.ID).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page")
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("skipped", res.Skipped).
		Int("total", len(l.Data)).
		Msg("Sales sync completed")

	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
