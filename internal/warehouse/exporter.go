package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

const salesTable = "sales"

// Exporter snapshots the ledger into a BigQuery sales table. Each export
// replaces the business's rows wholesale; the warehouse always reflects
// the ledger as of the last run.
type Exporter struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewExporter wraps an existing BigQuery client.
func NewExporter(client *bigquery.Client, projectID, datasetID string) *Exporter {
	return &Exporter{client: client, projectID: projectID, datasetID: datasetID}
}

// Connect creates a BigQuery client and returns an Exporter over it.
// It assumes Application Default Credentials are configured.
func Connect(ctx context.Context, projectID, datasetID string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating client: %w", err)
	}
	return NewExporter(client, projectID, datasetID), nil
}

// Close releases the underlying client.
func (e *Exporter) Close() error {
	return e.client.Close()
}

// EnsureTable creates the sales table if it does not exist.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	q := e.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.%s`"+` (
			sale_id STRING NOT NULL,
			business STRING NOT NULL,
			sale_date DATE NOT NULL,
			product STRING NOT NULL,
			category STRING NOT NULL,
			amount NUMERIC NOT NULL,
			quantity INT64 NOT NULL,
			exported_ts TIMESTAMP NOT NULL
		)
	`, e.projectID, e.datasetID, salesTable))

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("EnsureTable: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("EnsureTable: job error: %w", err)
	}
	return nil
}

// ExportSales replaces the business's warehouse rows with the given ledger
// snapshot. Returns the number of rows written.
func (e *Exporter) ExportSales(ctx context.Context, l *domain.Ledger, now time.Time) (int, error) {
	rows, err := Rows(l, now)
	if err != nil {
		return 0, fmt.Errorf("ExportSales: %w", err)
	}

	if err := e.deleteBusinessRows(ctx, l.Name); err != nil {
		return 0, fmt.Errorf("ExportSales: %w", err)
	}

	if len(rows) == 0 {
		return 0, nil
	}

	table := e.client.DatasetInProject(e.projectID, e.datasetID).Table(salesTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return 0, fmt.Errorf("ExportSales: inserting rows: %w", err)
	}

	return len(rows), nil
}

func (e *Exporter) deleteBusinessRows(ctx context.Context, business string) error {
	q := e.client.Query(fmt.Sprintf(`
		DELETE FROM `+"`%s.%s.%s`"+`
		WHERE business = @business
	`, e.projectID, e.datasetID, salesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "business", Value: business},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("deleting previous rows: run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("deleting previous rows: wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("deleting previous rows: job error: %w", err)
	}
	return nil
}

// CountRows returns how many warehouse rows the business currently has.
func (e *Exporter) CountRows(ctx context.Context, business string) (int64, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM `+"`%s.%s.%s`"+`
		WHERE business = @business
	`, e.projectID, e.datasetID, salesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "business", Value: business},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountRows: reading query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("CountRows: iterating: %w", err)
	}
	return row.N, nil
}
