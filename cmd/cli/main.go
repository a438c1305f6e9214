package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/aggregate"
	"github.com/dvloznov/sales-ledger/internal/assistant"
	"github.com/dvloznov/sales-ledger/internal/config"
	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/insight"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/pipeline"
	"github.com/dvloznov/sales-ledger/internal/warehouse"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(cfg, log)
	case "import":
		runImport(cfg, log)
	case "stats":
		runStats(cfg, log)
	case "insight":
		runInsight(cfg, log)
	case "export":
		runExport(cfg, log)
	case "inspect":
		runInspect(cfg, log)
	case "reset":
		runReset(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Sales Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  init      Create the ledger for a business")
	fmt.Println("  import    Import a sales report spreadsheet into the ledger")
	fmt.Println("  stats     Show aggregated sales statistics")
	fmt.Println("  insight   Show or regenerate the AI strategic insight")
	fmt.Println("  export    Export the ledger to the BigQuery warehouse")
	fmt.Println("  inspect   Inspect the ledger and its recent sales")
	fmt.Println("  reset     Clear all sales data from the ledger")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openStore(cfg *config.Config, log zerolog.Logger) *ledger.Store {
	store, err := ledger.Open(cfg.LedgerPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.LedgerPath).Msg("Failed to open ledger store")
	}
	return store
}

func currentLedger(store *ledger.Store, log zerolog.Logger) *domain.Ledger {
	l, err := store.Current()
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Fatal().Msg("No ledger found - run 'cli init' first")
		}
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}
	return l
}

func runInit(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	name := fs.String("name", cfg.LedgerName, "Business name")
	fs.Parse(os.Args[2:])

	store := openStore(cfg, log)

	l, err := store.Create(*name)
	if err != nil {
		if errors.Is(err, ledger.ErrExists) {
			log.Fatal().Msg("A ledger already exists - use 'cli reset -force' to start over")
		}
		log.Fatal().Err(err).Msg("Failed to create ledger")
	}

	fmt.Printf("Created ledger for %q (%s)\n", l.Name, l.ID)
}

func runImport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	source := fs.String("source", "", "Source name recorded in the ledger (defaults to the filename)")
	dateCol := fs.String("date-col", "", "Spreadsheet column holding the sale date")
	productCol := fs.String("product-col", "", "Spreadsheet column holding the product name")
	amountCol := fs.String("amount-col", "", "Spreadsheet column holding the amount")
	categoryCol := fs.String("category-col", "", "Spreadsheet column holding the category (optional)")
	quantityCol := fs.String("quantity-col", "", "Spreadsheet column holding the quantity (optional)")
	fs.Parse(os.Args[2:])

	filePath := fs.Arg(0)
	if filePath == "" {
		log.Fatal().Msg("Usage: cli import [options] FILE")
	}
	if *source == "" {
		*source = filepath.Base(filePath)
	}

	// Column overrides form an explicit mapping; none means resolve from
	// the cache or the assistant.
	var explicit *domain.MappingSchema
	if *dateCol != "" || *productCol != "" || *amountCol != "" || *categoryCol != "" || *quantityCol != "" {
		m := domain.MappingSchema{
			Date:     *dateCol,
			Product:  *productCol,
			Amount:   *amountCol,
			Category: *categoryCol,
			Quantity: *quantityCol,
		}
		if err := m.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid column mapping")
		}
		explicit = &m
	}

	store := openStore(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var ai pipeline.Assistant
	if cfg.GeminiAPIKey != "" {
		client, err := assistant.NewClient(ctx, assistant.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		ai = client
	}

	importer := pipeline.NewImporter(store, ai, log)

	report, err := importer.Run(ctx, filePath, *source, explicit)
	if err != nil {
		log.Fatal().Err(err).Str("source_name", *source).Msg("Import failed")
	}

	fmt.Printf("Imported %s: %d rows read, %d records added, %d dropped, %d enriched\n",
		report.SourceName, report.RowsRead, report.RecordsAdded, report.Dropped, report.Enriched)
	fmt.Printf("Mapping: date=%s product=%s amount=%s category=%s quantity=%s\n",
		report.Mapping.Date, report.Mapping.Product, report.Mapping.Amount,
		report.Mapping.Category, report.Mapping.Quantity)
}

func runStats(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	rangeKey := fs.String("range", aggregate.RangeAll, "Time range: all, 7d, 30d or custom")
	from := fs.String("from", "", "Custom range start (YYYY-MM-DD)")
	to := fs.String("to", "", "Custom range end (YYYY-MM-DD)")
	fs.Parse(os.Args[2:])

	tr := aggregate.TimeRange{Key: *rangeKey, From: *from, To: *to}
	if (*from != "" || *to != "") && *rangeKey == aggregate.RangeAll {
		tr.Key = aggregate.RangeCustom
	}
	if err := tr.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid time range")
	}

	store := openStore(cfg, log)
	l := currentLedger(store, log)

	stats := aggregate.Compute(l.Data, tr, time.Now())

	fmt.Printf("\n=== %s (%s) ===\n", l.Name, stats.Range)
	fmt.Printf("Total sales:   %d\n", stats.TotalSales)
	fmt.Printf("Total revenue: %s\n", stats.TotalRevenue.StringFixed(2))

	if stats.TopProduct != nil {
		fmt.Printf("Top product:   %s (%d sold, %s)\n",
			stats.TopProduct.Product, stats.TopProduct.Quantity, stats.TopProduct.Revenue.StringFixed(2))
	}

	if len(stats.StarPerformers) > 0 {
		fmt.Println("\n=== Star performers ===")
		for i, p := range stats.StarPerformers {
			fmt.Printf("%d. %-24s %4d sold  %12s\n", i+1, p.Product, p.Quantity, p.Revenue.StringFixed(2))
		}
	}

	if len(stats.Categories) > 0 {
		fmt.Println("\n=== Categories ===")
		for _, c := range stats.Categories {
			fmt.Printf("%-24s %12s  %5.1f%%\n", c.Category, c.Revenue.StringFixed(2), c.Share)
		}
	}

	if len(stats.Weekdays) > 0 {
		fmt.Println("\n=== Weekdays ===")
		for _, d := range stats.Weekdays {
			fmt.Printf("%-10s %4d sold  %12s\n", d.Weekday, d.Quantity, d.Revenue.StringFixed(2))
		}
	}
	fmt.Println()
}

func runInsight(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("insight", flag.ExitOnError)
	rangeKey := fs.String("range", aggregate.RangeAll, "Time range: all, 7d, 30d or custom")
	from := fs.String("from", "", "Custom range start (YYYY-MM-DD)")
	to := fs.String("to", "", "Custom range end (YYYY-MM-DD)")
	refresh := fs.Bool("refresh", false, "Force regeneration even over a fresh insight")
	fs.Parse(os.Args[2:])

	tr := aggregate.TimeRange{Key: *rangeKey, From: *from, To: *to}
	if (*from != "" || *to != "") && *rangeKey == aggregate.RangeAll {
		tr.Key = aggregate.RangeCustom
	}
	if err := tr.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid time range")
	}

	store := openStore(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var gen insight.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := assistant.NewClient(ctx, assistant.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		gen = client
	}

	svc := insight.NewService(store, gen, log)

	var st *insight.State
	var err error
	if *refresh {
		st, err = svc.Refresh(ctx, tr, true)
	} else {
		st, err = svc.Status(tr)
	}
	if err != nil {
		if errors.Is(err, insight.ErrNoGenerator) {
			log.Fatal().Msg("GEMINI_API_KEY is required to generate insights")
		}
		if errors.Is(err, ledger.ErrNotFound) {
			log.Fatal().Msg("No ledger found - run 'cli init' first")
		}
		log.Fatal().Err(err).Msg("Failed to load insight")
	}

	// Generation runs in the background; wait for it before printing.
	for st.Status == insight.StatusGenerating {
		select {
		case <-ctx.Done():
			log.Fatal().Msg("Timed out waiting for insight generation")
		case <-time.After(500 * time.Millisecond):
		}
		st, err = svc.Status(tr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load insight")
		}
	}

	if st.Insight == nil {
		fmt.Println("No insight cached yet - run 'cli insight -refresh' to generate one.")
		return
	}

	fmt.Printf("\n=== Strategic insight (%s, %s) ===\n", st.Range, st.Status)
	if st.GeneratedAt != nil {
		fmt.Printf("Generated: %s\n", st.GeneratedAt.Format(time.RFC3339))
	}
	fmt.Printf("\nDriving revenue: %s\n", st.Insight.Drive)
	fmt.Printf("Recent win:      %s\n", st.Insight.Win)
	fmt.Printf("Risk:            %s\n", st.Insight.Risk)
	fmt.Printf("Next action:     %s\n\n", st.Insight.Action)
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	project := fs.String("project", cfg.BQProject, "BigQuery project ID")
	dataset := fs.String("dataset", cfg.BQDataset, "BigQuery dataset ID")
	fs.Parse(os.Args[2:])

	if *project == "" {
		log.Fatal().Msg("Error: -project is required (or set BQ_PROJECT)")
	}
	if *dataset == "" {
		log.Fatal().Msg("Error: -dataset is required (or set BQ_DATASET)")
	}

	store := openStore(cfg, log)
	l := currentLedger(store, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	exporter, err := warehouse.Connect(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to BigQuery")
	}
	defer exporter.Close()

	if err := exporter.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure warehouse table")
	}

	n, err := exporter.ExportSales(ctx, l, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Warehouse export failed")
	}

	fmt.Printf("Exported %d rows to %s.%s.sales\n", n, *project, *dataset)
}

func runInspect(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Number of recent sales to show")
	fs.Parse(os.Args[2:])

	store := openStore(cfg, log)
	l := currentLedger(store, log)

	fmt.Println("\n=== Ledger ===")
	fmt.Printf("ID:       %s\n", l.ID)
	fmt.Printf("Business: %s\n", l.Name)
	fmt.Printf("Created:  %s\n", l.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", l.LastUpdated.Format(time.RFC3339))
	fmt.Printf("Sales:    %d\n", l.TotalSales)
	fmt.Printf("Revenue:  %s\n", l.TotalRevenue.StringFixed(2))
	fmt.Printf("Files:    %d synced\n", len(l.SyncedFiles))
	for _, f := range l.SyncedFiles {
		fmt.Printf("          - %s\n", f)
	}
	if l.MappingSchema != nil {
		fmt.Printf("Mapping:  date=%s product=%s amount=%s category=%s quantity=%s\n",
			l.MappingSchema.Date, l.MappingSchema.Product, l.MappingSchema.Amount,
			l.MappingSchema.Category, l.MappingSchema.Quantity)
	} else {
		fmt.Println("Mapping:  none cached")
	}
	if l.GoogleFileURL != "" {
		fmt.Printf("Mirror:   %s\n", l.GoogleFileURL)
	} else {
		fmt.Println("Mirror:   not mirrored")
	}

	n := *limit
	if n > len(l.Data) {
		n = len(l.Data)
	}
	fmt.Printf("\n=== Recent sales (%d of %d) ===\n", n, len(l.Data))
	for i := 0; i < n; i++ {
		rec := l.Data[len(l.Data)-1-i]
		fmt.Printf("%d. %s  %-24s %3d x %12s  [%s]\n",
			i+1, rec.Date, rec.Product, rec.Quantity, rec.Amount.StringFixed(2), rec.Category)
	}
	fmt.Println()
}

func runReset(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	force := fs.Bool("force", false, "Actually clear the ledger")
	fs.Parse(os.Args[2:])

	if !*force {
		log.Fatal().Msg("Reset clears every sale - re-run with -force to proceed")
	}

	store := openStore(cfg, log)

	if err := store.Reset(); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Fatal().Msg("No ledger found - run 'cli init' first")
		}
		log.Fatal().Err(err).Msg("Failed to reset ledger")
	}

	fmt.Println("Ledger cleared.")
}
