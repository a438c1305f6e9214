package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/spreadsheet"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	FilePath        string
	SourceName      string
	ExplicitMapping *domain.MappingSchema

	Table    *spreadsheet.Table
	Mapping  *domain.MappingSchema
	Records  []domain.SaleRecord
	Enriched int
	Added    int
}

// Step 1: CheckDuplicateStep rejects a source file the ledger already
// ingested, before any file I/O happens.
type CheckDuplicateStep struct {
	store LedgerStore
}

func (s *CheckDuplicateStep) Execute(ctx context.Context, state *PipelineState) error {
	has, err := s.store.HasFile(state.SourceName)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%q: %w", state.SourceName, ledger.ErrDuplicateFile)
	}
	return nil
}

// Step 2: ReadSpreadsheetStep loads the file into a generic row table.
type ReadSpreadsheetStep struct {
	read func(path string) (*spreadsheet.Table, error)
}

func (s *ReadSpreadsheetStep) Execute(ctx context.Context, state *PipelineState) error {
	table, err := s.read(state.FilePath)
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return fmt.Errorf("%q: %w", state.SourceName, ErrEmptyFile)
	}
	state.Table = table
	return nil
}

// Step 3: ResolveMappingStep picks the column mapping for this file.
// Precedence: explicit mapping from the request, then the ledger's cached
// mapping if it still matches the file's columns, then an AI suggestion.
// If all three miss, the import fails with the file's columns attached so
// the caller can map them by hand.
type ResolveMappingStep struct {
	store     LedgerStore
	assistant Assistant
	log       zerolog.Logger
}

func (s *ResolveMappingStep) Execute(ctx context.Context, state *PipelineState) error {
	headers := state.Table.Headers

	if state.ExplicitMapping != nil {
		if err := state.ExplicitMapping.Validate(); err != nil {
			return err
		}
		if !state.ExplicitMapping.CompatibleWith(headers) {
			s.log.Warn().Strs("columns", headers).Msg("Explicit mapping references columns missing from the file")
			return &MappingUnresolvedError{Columns: append([]string(nil), headers...)}
		}
		state.Mapping = state.ExplicitMapping
		return nil
	}

	// The cached mapping is re-validated on every import: a different
	// report format must not be read through stale column names.
	if cur, err := s.store.Current(); err == nil && cur.MappingSchema != nil {
		if cur.MappingSchema.CompatibleWith(headers) {
			state.Mapping = cur.MappingSchema
			return nil
		}
		s.log.Info().Strs("columns", headers).Msg("Cached mapping no longer matches file columns, re-resolving")
	}

	if s.assistant != nil {
		suggested, err := s.assistant.SuggestMapping(ctx, headers)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("Mapping suggestion failed, continuing without it")
		case suggested.Validate() != nil || !suggested.CompatibleWith(headers):
			s.log.Warn().Interface("mapping", suggested).Msg("Suggested mapping does not fit the file, discarding")
		default:
			state.Mapping = suggested
			return nil
		}
	}

	return &MappingUnresolvedError{Columns: append([]string(nil), headers...)}
}

// Step 4: NormalizeRowsStep converts raw rows into canonical sale records.
type NormalizeRowsStep struct {
	now func() time.Time
}

func (s *NormalizeRowsStep) Execute(ctx context.Context, state *PipelineState) error {
	records := NormalizeRows(state.Table.Rows, *state.Mapping, state.SourceName, s.now())
	if len(records) == 0 {
		return fmt.Errorf("%q: %w", state.SourceName, ErrNoValidRows)
	}
	state.Records = records
	return nil
}

// Step 5: EnrichCategoriesStep fills in real categories via the assistant
// when the batch needs it. Enrichment is best effort and never fails the
// import.
type EnrichCategoriesStep struct {
	assistant Assistant
	log       zerolog.Logger
}

func (s *EnrichCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.assistant == nil {
		return nil
	}
	if !ShouldEnrich(*state.Mapping, state.Records) {
		return nil
	}
	state.Enriched = enrichRecords(ctx, s.assistant, state.Records, s.log)
	return nil
}

// Step 6: AppendLedgerStep appends the batch to the ledger and records the
// source file and the mapping that produced it.
type AppendLedgerStep struct {
	store LedgerStore
}

func (s *AppendLedgerStep) Execute(ctx context.Context, state *PipelineState) error {
	added, err := s.store.Append(state.Records, state.Mapping, state.SourceName)
	if err != nil {
		return err
	}
	state.Added = added
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewImportPipeline creates the standard 6-step pipeline for importing a
// sales report into the ledger.
func NewImportPipeline(imp *Importer) *Pipeline {
	return NewPipeline(
		&CheckDuplicateStep{store: imp.store},
		&ReadSpreadsheetStep{read: imp.read},
		&ResolveMappingStep{store: imp.store, assistant: imp.assistant, log: imp.log},
		&NormalizeRowsStep{now: imp.now},
		&EnrichCategoriesStep{assistant: imp.assistant, log: imp.log},
		&AppendLedgerStep{store: imp.store},
	)
}
