package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/spreadsheet"
)

// Report summarizes one completed import.
type Report struct {
	SourceName   string               `json:"source_name"`
	RowsRead     int                  `json:"rows_read"`
	RecordsAdded int                  `json:"records_added"`
	Dropped      int                  `json:"dropped"`
	Enriched     int                  `json:"enriched"`
	Mapping      domain.MappingSchema `json:"mapping"`
}

// Importer runs sales report files through the import pipeline into the
// ledger.
type Importer struct {
	store     LedgerStore
	assistant Assistant
	read      func(path string) (*spreadsheet.Table, error)
	now       func() time.Time
	log       zerolog.Logger
}

// NewImporter creates an Importer backed by the real spreadsheet reader.
// ai may be nil when no API key is configured.
func NewImporter(store LedgerStore, ai Assistant, log zerolog.Logger) *Importer {
	return NewImporterWithDeps(store, ai, spreadsheet.Read, time.Now, log)
}

// NewImporterWithDeps is the fully-injected constructor used by tests.
func NewImporterWithDeps(
	store LedgerStore,
	ai Assistant,
	read func(path string) (*spreadsheet.Table, error),
	now func() time.Time,
	log zerolog.Logger,
) *Importer {
	return &Importer{
		store:     store,
		assistant: ai,
		read:      read,
		now:       now,
		log:       log,
	}
}

// Run imports a single report file into the ledger. sourceName is the
// original filename recorded for duplicate detection; explicit, when
// non-nil, overrides both the cached mapping and AI suggestions.
func (imp *Importer) Run(ctx context.Context, filePath, sourceName string, explicit *domain.MappingSchema) (*Report, error) {
	state := &PipelineState{
		FilePath:        filePath,
		SourceName:      sourceName,
		ExplicitMapping: explicit,
	}

	if err := NewImportPipeline(imp).Execute(ctx, state); err != nil {
		return nil, err
	}

	report := &Report{
		SourceName:   sourceName,
		RowsRead:     len(state.Table.Rows),
		RecordsAdded: state.Added,
		Dropped:      len(state.Table.Rows) - len(state.Records),
		Enriched:     state.Enriched,
		Mapping:      *state.Mapping,
	}

	imp.log.Info().
		Str("source_file", sourceName).
		Int("rows_read", report.RowsRead).
		Int("records_added", report.RecordsAdded).
		Int("dropped", report.Dropped).
		Int("enriched", report.Enriched).
		Msg("Import completed")

	return report, nil
}
