package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/sales-ledger/internal/config"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/notionsync"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	// Parse CLI flags; env vars provide the defaults
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (required)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDatabaseID, "Notion database ID (required)")
	ledgerPath := flag.String("ledger", cfg.LedgerPath, "Path to the ledger file")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("ledger", *ledgerPath).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	// Load the ledger
	store, err := ledger.Open(*ledgerPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", *ledgerPath).Msg("Failed to open ledger store")
	}

	l, err := store.Current()
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Fatal().Msg("No ledger found - nothing to sync")
		}
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	// Sync sales
	result, err := notionsync.SyncSales(ctx, l, notionClient, *notionDBID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d skipped.\n",
		result.Created, result.Updated, result.Archived, result.Skipped)
}
