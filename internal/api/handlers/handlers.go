package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/aggregate"
	"github.com/dvloznov/sales-ledger/internal/api/middleware"
	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/insight"
	"github.com/dvloznov/sales-ledger/internal/jobs"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/pipeline"
)

// ledgerSummary is the ledger without its record data, for list-free
// dashboard views and mutation responses.
type ledgerSummary struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	TotalSales    int                   `json:"totalSales"`
	TotalRevenue  decimal.Decimal       `json:"totalRevenue"`
	SyncedFiles   []string              `json:"syncedFiles"`
	MappingSchema *domain.MappingSchema `json:"mappingSchema,omitempty"`
	GoogleFileURL string                `json:"googleFileUrl,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	LastUpdated   time.Time             `json:"lastUpdated"`
}

func summarize(l *domain.Ledger) ledgerSummary {
	return ledgerSummary{
		ID:            l.ID,
		Name:          l.Name,
		TotalSales:    l.TotalSales,
		TotalRevenue:  l.TotalRevenue,
		SyncedFiles:   l.SyncedFiles,
		MappingSchema: l.MappingSchema,
		GoogleFileURL: l.GoogleFileURL,
		CreatedAt:     l.CreatedAt,
		LastUpdated:   l.LastUpdated,
	}
}

// writeDomainError maps service errors onto HTTP statuses. Anything it
// does not recognize is logged and returned as a 500 with the fallback
// message.
func writeDomainError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	var unresolved *pipeline.MappingUnresolvedError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "No ledger found - create one first")
	case errors.Is(err, ledger.ErrExists):
		middleware.WriteError(w, http.StatusConflict, "A ledger already exists")
	case errors.Is(err, ledger.ErrDuplicateFile):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInvalidBackup):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, pipeline.ErrEmptyFile), errors.Is(err, pipeline.ErrNoValidRows):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &unresolved):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   unresolved.Error(),
			"columns": unresolved.Columns,
		})
	case errors.Is(err, insight.ErrNoGenerator):
		middleware.WriteError(w, http.StatusServiceUnavailable, "AI insight is not configured")
	default:
		log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// rangeFromQuery builds the aggregation window from ?range=&from=&to=.
// A missing range key means "all", unless explicit bounds were given.
func rangeFromQuery(q url.Values) aggregate.TimeRange {
	tr := aggregate.TimeRange{
		Key:  q.Get("range"),
		From: q.Get("from"),
		To:   q.Get("to"),
	}
	if tr.Key == "" {
		if tr.From != "" || tr.To != "" {
			tr.Key = aggregate.RangeCustom
		} else {
			tr.Key = aggregate.RangeAll
		}
	}
	return tr
}

// LedgerHandler handles ledger lifecycle endpoints.
type LedgerHandler struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(store *ledger.Store, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		store: store,
		log:   log,
	}
}

// CreateLedger handles POST /api/v1/ledger
func (h *LedgerHandler) CreateLedger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Business name is required")
		return
	}

	l, err := h.store.Create(req.Name)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to create ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, summarize(l))
}

// GetLedger handles GET /api/v1/ledger
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	l, err := h.store.Current()
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to load ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summarize(l))
}

// ResetLedger handles DELETE /api/v1/ledger
func (h *LedgerHandler) ResetLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(); err != nil {
		writeDomainError(w, h.log, err, "Failed to reset ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ExportLedger handles GET /api/v1/ledger/export
func (h *LedgerHandler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.store.ExportJSON(&buf); err != nil {
		writeDomainError(w, h.log, err, "Failed to export ledger")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-ledger.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ImportLedger handles POST /api/v1/ledger/import
func (h *LedgerHandler) ImportLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ImportJSON(r.Body); err != nil {
		writeDomainError(w, h.log, err, "Failed to restore ledger")
		return
	}

	l, err := h.store.Current()
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to load restored ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summarize(l))
}

// SetMapping handles PUT /api/v1/ledger/mapping
func (h *LedgerHandler) SetMapping(w http.ResponseWriter, r *http.Request) {
	var m domain.MappingSchema
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := m.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SetMapping(m); err != nil {
		writeDomainError(w, h.log, err, "Failed to set mapping")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "mapping updated",
		"mapping": m,
	})
}

// StatsHandler handles aggregation endpoints.
type StatsHandler struct {
	store *ledger.Store
	log   zerolog.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store *ledger.Store, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		store: store,
		log:   log,
	}
}

// GetStats handles GET /api/v1/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	tr := rangeFromQuery(r.URL.Query())
	if err := tr.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	l, err := h.store.Current()
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to load ledger")
		return
	}

	stats := aggregate.Compute(l.Data, tr, time.Now())
	middleware.WriteJSON(w, http.StatusOK, stats)
}
