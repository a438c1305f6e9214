package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dvloznov/sales-ledger/internal/assistant"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/spreadsheet"
)

// Debug tool: parse a sales report without touching the ledger. Prints the
// detected header and the first rows, and when GEMINI_API_KEY is set also
// shows what mapping the assistant would suggest for it.

const previewRows = 10

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: parse-report FILE")
	}
	path := os.Args[1]

	table, err := spreadsheet.Read(path)
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", path, err)
	}

	fmt.Printf("File:    %s\n", path)
	fmt.Printf("Columns: %d\n", len(table.Headers))
	fmt.Printf("Rows:    %d\n\n", len(table.Rows))

	for i, h := range table.Headers {
		fmt.Printf("  %2d. %s\n", i+1, h)
	}

	n := previewRows
	if n > len(table.Rows) {
		n = len(table.Rows)
	}
	fmt.Printf("\nFirst %d rows:\n", n)
	for i := 0; i < n; i++ {
		fmt.Printf("%d.\n", i+1)
		for _, h := range table.Headers {
			fmt.Printf("   %-24s %s\n", h+":", table.Rows[i][h])
		}
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Println("\nGEMINI_API_KEY not set - skipping mapping suggestion.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := assistant.NewClient(ctx, assistant.Config{
		APIKey: apiKey,
		Model:  os.Getenv("GEMINI_MODEL"),
	}, logger.New("warn"))
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}

	mapping, err := client.SuggestMapping(ctx, table.Headers)
	if err != nil {
		return fmt.Errorf("mapping suggestion failed: %w", err)
	}

	fmt.Println("\nSuggested mapping:")
	fmt.Printf("   date:     %s\n", mapping.Date)
	fmt.Printf("   product:  %s\n", mapping.Product)
	fmt.Printf("   amount:   %s\n", mapping.Amount)
	fmt.Printf("   category: %s\n", mapping.Category)
	fmt.Printf("   quantity: %s\n", mapping.Quantity)

	return nil
}
