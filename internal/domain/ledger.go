package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Insight is the AI narrative summary cached on the ledger: one sentence
// each for the main revenue drive, a recent win, a risk, and a suggested
// action.
type Insight struct {
	Drive  string `json:"drive"`
	Win    string `json:"win"`
	Risk   string `json:"risk"`
	Action string `json:"action"`
}

// Ledger is the whole business's sales history plus derived counters and
// sync metadata. It is persisted as a single JSON document and mutated
// only through the ledger store.
type Ledger struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Data          []SaleRecord    `json:"data"`
	TotalSales    int             `json:"totalSales"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	SyncedFiles   []string        `json:"syncedFiles"`
	MappingSchema *MappingSchema  `json:"mappingSchema,omitempty"`

	LastStrategicInsight *Insight   `json:"lastStrategicInsight,omitempty"`
	AnalysisTimestamp    *time.Time `json:"analysisTimestamp,omitempty"`
	AnalysisRange        string     `json:"analysisRange,omitempty"`

	GoogleFileURL string    `json:"googleFileUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// HasFile reports whether sourceFile has already been ingested.
func (l *Ledger) HasFile(sourceFile string) bool {
	for _, f := range l.SyncedFiles {
		if f == sourceFile {
			return true
		}
	}
	return false
}

// Recompute rebuilds TotalSales and TotalRevenue from Data. Counters are
// always rebuilt from scratch rather than adjusted incrementally so they
// cannot drift from the records.
func (l *Ledger) Recompute() {
	l.TotalSales = len(l.Data)
	total := decimal.Zero
	for _, r := range l.Data {
		total = total.Add(r.Amount)
	}
	l.TotalRevenue = total
}

// InsightStale reports whether the cached narrative must be regenerated
// before display: no cache yet, a ledger mutation after the last analysis,
// or a different active time range.
func (l *Ledger) InsightStale(rangeKey string) bool {
	if l.LastStrategicInsight == nil || l.AnalysisTimestamp == nil {
		return true
	}
	if l.LastUpdated.After(*l.AnalysisTimestamp) {
		return true
	}
	return l.AnalysisRange != rangeKey
}

// Clone returns a deep copy safe to hand outside the store.
func (l *Ledger) Clone() *Ledger {
	cp := *l
	cp.Data = make([]SaleRecord, len(l.Data))
	copy(cp.Data, l.Data)
	cp.SyncedFiles = make([]string, len(l.SyncedFiles))
	copy(cp.SyncedFiles, l.SyncedFiles)
	if l.MappingSchema != nil {
		m := *l.MappingSchema
		cp.MappingSchema = &m
	}
	if l.LastStrategicInsight != nil {
		ins := *l.LastStrategicInsight
		cp.LastStrategicInsight = &ins
	}
	if l.AnalysisTimestamp != nil {
		ts := *l.AnalysisTimestamp
		cp.AnalysisTimestamp = &ts
	}
	return &cp
}
