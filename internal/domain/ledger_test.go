package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSaleRecord_Retained(t *testing.T) {
	tests := []struct {
		name    string
		record  SaleRecord
		want    bool
	}{
		{
			name:   "positive amount and real product",
			record: SaleRecord{Product: "Silver Ring", Amount: decimal.NewFromFloat(19.99)},
			want:   true,
		},
		{
			name:   "zero amount but real product",
			record: SaleRecord{Product: "Widget", Amount: decimal.Zero},
			want:   true,
		},
		{
			name:   "positive amount with unknown product",
			record: SaleRecord{Product: UnknownProduct, Amount: decimal.NewFromInt(5)},
			want:   true,
		},
		{
			name:   "zero amount with unknown product",
			record: SaleRecord{Product: UnknownProduct, Amount: decimal.Zero},
			want:   false,
		},
		{
			name:   "zero amount with empty product",
			record: SaleRecord{Product: "", Amount: decimal.Zero},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Retained(); got != tt.want {
				t.Errorf("Retained() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMappingSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mapping MappingSchema
		wantErr bool
	}{
		{
			name:    "complete mapping",
			mapping: MappingSchema{Date: "Date", Product: "Item", Amount: "Total", Category: "Type", Quantity: "Qty"},
			wantErr: false,
		},
		{
			name:    "required fields only",
			mapping: MappingSchema{Date: "Date", Product: "Item", Amount: "Total"},
			wantErr: false,
		},
		{
			name:    "missing date",
			mapping: MappingSchema{Product: "Item", Amount: "Total"},
			wantErr: true,
		},
		{
			name:    "missing amount",
			mapping: MappingSchema{Date: "Date", Product: "Item"},
			wantErr: true,
		},
		{
			name:    "empty mapping",
			mapping: MappingSchema{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMappingSchema_CompatibleWith(t *testing.T) {
	mapping := MappingSchema{Date: "Date", Product: "Item", Amount: "Total", Category: "Type"}

	tests := []struct {
		name    string
		headers []string
		want    bool
	}{
		{
			name:    "all columns present",
			headers: []string{"Date", "Item", "Total", "Type", "Notes"},
			want:    true,
		},
		{
			name:    "missing optional column",
			headers: []string{"Date", "Item", "Total"},
			want:    false,
		},
		{
			name:    "missing required column",
			headers: []string{"Date", "Item", "Type"},
			want:    false,
		},
		{
			name:    "empty headers",
			headers: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapping.CompatibleWith(tt.headers); got != tt.want {
				t.Errorf("CompatibleWith(%v) = %v, want %v", tt.headers, got, tt.want)
			}
		})
	}
}

func TestLedger_Recompute(t *testing.T) {
	l := &Ledger{
		Data: []SaleRecord{
			{Amount: decimal.NewFromFloat(10.50), Quantity: 1},
			{Amount: decimal.NewFromFloat(4.25), Quantity: 2},
			{Amount: decimal.Zero, Quantity: 1},
		},
	}

	l.Recompute()

	if l.TotalSales != 3 {
		t.Errorf("Expected 3 total sales, got %d", l.TotalSales)
	}
	want := decimal.NewFromFloat(14.75)
	if !l.TotalRevenue.Equal(want) {
		t.Errorf("Expected total revenue %s, got %s", want, l.TotalRevenue)
	}
}

func TestLedger_HasFile(t *testing.T) {
	l := &Ledger{SyncedFiles: []string{"jan.xlsx", "feb.csv"}}

	if !l.HasFile("jan.xlsx") {
		t.Error("Expected jan.xlsx to be recorded")
	}
	if l.HasFile("mar.xlsx") {
		t.Error("Expected mar.xlsx to be absent")
	}
}

func TestLedger_InsightStale(t *testing.T) {
	analyzed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	insight := &Insight{Drive: "rings", Win: "growth", Risk: "stock", Action: "promote"}

	tests := []struct {
		name     string
		ledger   Ledger
		rangeKey string
		want     bool
	}{
		{
			name:     "no cached insight",
			ledger:   Ledger{LastUpdated: analyzed},
			rangeKey: "all",
			want:     true,
		},
		{
			name: "fresh cache",
			ledger: Ledger{
				LastStrategicInsight: insight,
				AnalysisTimestamp:    &analyzed,
				AnalysisRange:        "all",
				LastUpdated:          analyzed.Add(-time.Hour),
			},
			rangeKey: "all",
			want:     false,
		},
		{
			name: "ledger mutated after analysis",
			ledger: Ledger{
				LastStrategicInsight: insight,
				AnalysisTimestamp:    &analyzed,
				AnalysisRange:        "all",
				LastUpdated:          analyzed.Add(time.Minute),
			},
			rangeKey: "all",
			want:     true,
		},
		{
			name: "range changed since analysis",
			ledger: Ledger{
				LastStrategicInsight: insight,
				AnalysisTimestamp:    &analyzed,
				AnalysisRange:        "all",
				LastUpdated:          analyzed.Add(-time.Hour),
			},
			rangeKey: "7d",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ledger.InsightStale(tt.rangeKey); got != tt.want {
				t.Errorf("InsightStale(%q) = %v, want %v", tt.rangeKey, got, tt.want)
			}
		})
	}
}

func TestLedger_Clone(t *testing.T) {
	ts := time.Now()
	orig := &Ledger{
		ID:          "led-1",
		Name:        "Shop",
		Data:        []SaleRecord{{ID: "r1", Product: "Ring", Amount: decimal.NewFromInt(10), Quantity: 1}},
		SyncedFiles: []string{"jan.xlsx"},
		MappingSchema: &MappingSchema{
			Date: "Date", Product: "Item", Amount: "Total",
		},
		LastStrategicInsight: &Insight{Drive: "d"},
		AnalysisTimestamp:    &ts,
	}

	cp := orig.Clone()

	cp.Data[0].Product = "Changed"
	cp.SyncedFiles[0] = "changed.xlsx"
	cp.MappingSchema.Date = "Changed"
	cp.LastStrategicInsight.Drive = "changed"

	if orig.Data[0].Product != "Ring" {
		t.Error("Clone shares Data with original")
	}
	if orig.SyncedFiles[0] != "jan.xlsx" {
		t.Error("Clone shares SyncedFiles with original")
	}
	if orig.MappingSchema.Date != "Date" {
		t.Error("Clone shares MappingSchema with original")
	}
	if orig.LastStrategicInsight.Drive != "d" {
		t.Error("Clone shares LastStrategicInsight with original")
	}
}
