package notionsync_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/notionsync"
)

type fakeNotion struct {
	mu       sync.Mutex
	pages    []notionapi.Page
	pageSize int

	created   []notionapi.Properties
	updated   map[string]notionapi.Properties
	archived  []string
	createErr error

	cursors []notionapi.Cursor
}

func (f *fakeNotion) CreatePage(_ context.Context, _ string, properties notionapi.Properties) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID("created-" + strconv.Itoa(len(f.created)))}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = make(map[string]notionapi.Properties)
	}
	f.updated[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, filter.StartCursor)

	start := 0
	if filter.StartCursor != "" {
		start, _ = strconv.Atoi(string(filter.StartCursor))
	}
	size := f.pageSize
	if size <= 0 {
		size = len(f.pages)
	}
	end := start + size
	if end >= len(f.pages) {
		return &notionapi.DatabaseQueryResponse{Results: f.pages[start:], HasMore: false}, nil
	}
	return &notionapi.DatabaseQueryResponse{
		Results:    f.pages[start:end],
		HasMore:    true,
		NextCursor: notionapi.Cursor(strconv.Itoa(end)),
	}, nil
}

func (f *fakeNotion) ArchivePage(_ context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, pageID)
	return nil
}

func salePage(pageID, saleID string) notionapi.Page {
	props := notionapi.Properties{}
	if saleID != "" {
		props["Sale ID"] = &notionapi.TitleProperty{
			Title: []notionapi.RichText{{PlainText: saleID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func testLedger(ids ...string) *domain.Ledger {
	l := &domain.Ledger{Name: "Test Shop"}
	for _, id := range ids {
		l.Data = append(l.Data, domain.SaleRecord{
			ID:       id,
			Date:     "2026-08-20",
			Product:  "Silver Ring",
			Category: "Rings",
			Amount:   decimal.NewFromInt(120),
			Quantity: 1,
		})
	}
	return l
}

func TestSaleToNotionProperties(t *testing.T) {
	rec := &domain.SaleRecord{
		ID:       "jan.csv-0-1",
		Date:     "2026-01-05",
		Product:  "Silver Ring",
		Category: "Rings",
		Amount:   decimal.RequireFromString("1200.50"),
		Quantity: 2,
	}

	props := notionsync.SaleToNotionProperties(rec)

	title, ok := props["Sale ID"].(notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 || title.Title[0].Text.Content != "jan.csv-0-1" {
		t.Errorf("Sale ID property = %#v", props["Sale ID"])
	}
	product, ok := props["Product"].(notionapi.RichTextProperty)
	if !ok || len(product.RichText) == 0 || product.RichText[0].Text.Content != "Silver Ring" {
		t.Errorf("Product property = %#v", props["Product"])
	}
	category, ok := props["Category"].(notionapi.SelectProperty)
	if !ok || category.Select.Name != "Rings" {
		t.Errorf("Category property = %#v", props["Category"])
	}
	amount, ok := props["Amount"].(notionapi.NumberProperty)
	if !ok || amount.Number != 1200.50 {
		t.Errorf("Amount property = %#v", props["Amount"])
	}
	quantity, ok := props["Quantity"].(notionapi.NumberProperty)
	if !ok || quantity.Number != 2 {
		t.Errorf("Quantity property = %#v", props["Quantity"])
	}
	date, ok := props["Date"].(notionapi.DateProperty)
	if !ok || date.Date == nil || date.Date.Start == nil {
		t.Fatalf("Date property = %#v", props["Date"])
	}
	if got := time.Time(*date.Date.Start).Format(domain.DateLayout); got != "2026-01-05" {
		t.Errorf("Date start = %s, want 2026-01-05", got)
	}
}

func TestSaleToNotionPropertiesMalformedDate(t *testing.T) {
	rec := &domain.SaleRecord{
		ID:       "bad-1",
		Date:     "05/01/2026",
		Product:  "Ring",
		Category: "General",
		Amount:   decimal.NewFromInt(10),
		Quantity: 1,
	}

	props := notionsync.SaleToNotionProperties(rec)
	if _, ok := props["Date"]; ok {
		t.Error("expected no Date property for a malformed date")
	}
	if _, ok := props["Sale ID"]; !ok {
		t.Error("expected Sale ID property to survive a malformed date")
	}
}

func TestSyncSalesCreatesMissingPages(t *testing.T) {
	notion := &fakeNotion{}
	l := testLedger("sale-1", "sale-2")

	res, err := notionsync.SyncSales(context.Background(), l, notion, "db-1", false)
	if err != nil {
		t.Fatalf("SyncSales failed: %v", err)
	}

	if res.Created != 2 || res.Updated != 0 || res.Archived != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v, want 2 created", res)
	}
	if len(notion.created) != 2 {
		t.Fatalf("expected 2 CreatePage calls, got %d", len(notion.created))
	}
	title := notion.created[0]["Sale ID"].(notionapi.TitleProperty)
	if title.Title[0].Text.Content != "sale-1" {
		t.Errorf("first created page sale ID = %q", title.Title[0].Text.Content)
	}
}

func TestSyncSalesArchivesStalePages(t *testing.T) {
	notion := &fakeNotion{
		pages: []notionapi.Page{
			salePage("page-1", "sale-1"),
			salePage("page-2", "sale-gone"),
			salePage("page-3", ""),
		},
	}
	l := testLedger("sale-1")

	res, err := notionsync.SyncSales(context.Background(), l, notion, "db-1", false)
	if err != nil {
		t.Fatalf("SyncSales failed: %v", err)
	}

	if res.Archived != 2 {
		t.Errorf("Archived = %d, want 2 (stale page and untitled page)", res.Archived)
	}
	if len(notion.archived) != 2 {
		t.Fatalf("expected 2 ArchivePage calls, got %v", notion.archived)
	}
	if res.Updated != 1 || res.Created != 0 {
		t.Errorf("result = %+v, want 1 updated and 0 created", res)
	}
	if _, ok := notion.updated["page-1"]; !ok {
		t.Errorf("expected page-1 to be refreshed, updated = %v", notion.updated)
	}
}

func TestSyncSalesDryRunMakesNoChanges(t *testing.T) {
	notion := &fakeNotion{
		pages: []notionapi.Page{
			salePage("page-1", "sale-1"),
			salePage("page-2", "sale-gone"),
		},
	}
	l := testLedger("sale-1", "sale-2")

	res, err := notionsync.SyncSales(context.Background(), l, notion, "db-1", true)
	if err != nil {
		t.Fatalf("SyncSales failed: %v", err)
	}

	if res.Created != 1 || res.Updated != 1 || res.Archived != 1 {
		t.Errorf("dry run result = %+v, want 1 created / 1 updated / 1 archived", res)
	}
	if len(notion.created) != 0 || len(notion.updated) != 0 || len(notion.archived) != 0 {
		t.Errorf("dry run touched Notion: created=%d updated=%d archived=%d",
			len(notion.created), len(notion.updated), len(notion.archived))
	}
}

func TestSyncSalesPaginatesDatabaseQuery(t *testing.T) {
	notion := &fakeNotion{
		pages: []notionapi.Page{
			salePage("page-1", "old-1"),
			salePage("page-2", "old-2"),
			salePage("page-3", "old-3"),
		},
		pageSize: 2,
	}

	res, err := notionsync.SyncSales(context.Background(), testLedger(), notion, "db-1", false)
	if err != nil {
		t.Fatalf("SyncSales failed: %v", err)
	}

	if res.Archived != 3 {
		t.Errorf("Archived = %d, want all 3 pages across both query pages", res.Archived)
	}
	if len(notion.cursors) != 2 {
		t.Fatalf("expected 2 QueryDatabase calls, got %d", len(notion.cursors))
	}
	if notion.cursors[0] != "" || notion.cursors[1] != "2" {
		t.Errorf("cursors = %v, want [\"\" \"2\"]", notion.cursors)
	}
}

func TestSyncSalesSkipsFailedPages(t *testing.T) {
	notion := &fakeNotion{createErr: errors.New("rate limited")}
	l := testLedger("sale-1", "sale-2")

	res, err := notionsync.SyncSales(context.Background(), l, notion, "db-1", false)
	if err != nil {
		t.Fatalf("SyncSales failed: %v", err)
	}

	if res.Skipped != 2 || res.Created != 0 {
		t.Errorf("result = %+v, want both sales skipped", res)
	}
}
