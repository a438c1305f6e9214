package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/api/middleware"
	"github.com/dvloznov/sales-ledger/internal/insight"
	"github.com/dvloznov/sales-ledger/internal/ledger"
)

// InsightHandler handles AI insight endpoints.
type InsightHandler struct {
	svc *insight.Service
	log zerolog.Logger
}

// NewInsightHandler creates a new insight handler.
func NewInsightHandler(svc *insight.Service, log zerolog.Logger) *InsightHandler {
	return &InsightHandler{
		svc: svc,
		log: log,
	}
}

// GetInsight handles GET /api/v1/insight
//
// Serves the cached narrative when it is fresh for the requested range and
// kicks off a background regeneration otherwise. Without a configured
// generator it degrades to reporting whatever is cached.
func (h *InsightHandler) GetInsight(w http.ResponseWriter, r *http.Request) {
	tr := rangeFromQuery(r.URL.Query())
	if err := tr.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.svc.Refresh(r.Context(), tr, false)
	if errors.Is(err, insight.ErrNoGenerator) {
		state, err = h.svc.Status(tr)
	}
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to load insight")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, state)
}

// RefreshInsight handles POST /api/v1/insight/refresh
//
// Forces regeneration even when the cache is fresh. Responds 202 with the
// in-flight state; poll GET /api/v1/insight for the result.
func (h *InsightHandler) RefreshInsight(w http.ResponseWriter, r *http.Request) {
	tr := rangeFromQuery(r.URL.Query())
	if err := tr.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.svc.Refresh(r.Context(), tr, true)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to refresh insight")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, state)
}

// MirrorFlusher forces a pending cloud mirror upload.
type MirrorFlusher interface {
	Flush(ctx context.Context) error
}

// MirrorHandler handles cloud mirror endpoints.
type MirrorHandler struct {
	flusher MirrorFlusher
	store   *ledger.Store
	log     zerolog.Logger
}

// NewMirrorHandler creates a new mirror handler. flusher may be nil when
// no bucket is configured.
func NewMirrorHandler(flusher MirrorFlusher, store *ledger.Store, log zerolog.Logger) *MirrorHandler {
	return &MirrorHandler{
		flusher: flusher,
		store:   store,
		log:     log,
	}
}

// SyncMirror handles POST /api/v1/mirror/sync
func (h *MirrorHandler) SyncMirror(w http.ResponseWriter, r *http.Request) {
	if h.flusher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Cloud mirror is not configured")
		return
	}

	if err := h.flusher.Flush(r.Context()); err != nil {
		writeDomainError(w, h.log, err, "Mirror upload failed")
		return
	}

	l, err := h.store.Current()
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to load ledger")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "synced",
		"url":    l.GoogleFileURL,
	})
}
