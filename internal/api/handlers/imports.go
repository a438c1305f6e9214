package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/api/middleware"
	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/jobs"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/pipeline"
)

// maxUploadBytes caps a spreadsheet upload. Real sales reports are a few
// hundred KB; 32MB leaves room for bloated xlsx exports.
const maxUploadBytes = 32 << 20

// SalesImporter runs the import pipeline synchronously.
type SalesImporter interface {
	Run(ctx context.Context, filePath, sourceName string, explicit *domain.MappingSchema) (*pipeline.Report, error)
}

// ImportsHandler handles spreadsheet upload and import job endpoints.
type ImportsHandler struct {
	store     *ledger.Store
	importer  SalesImporter
	publisher jobs.Publisher
	jobStore  jobs.JobStore
	uploadDir string
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(store *ledger.Store, importer SalesImporter, publisher jobs.Publisher, jobStore jobs.JobStore, uploadDir string, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		store:     store,
		importer:  importer,
		publisher: publisher,
		jobStore:  jobStore,
		uploadDir: uploadDir,
		log:       log,
	}
}

// CreateImport handles POST /api/v1/imports
//
// Expects a multipart form with a "file" part and an optional "mapping"
// part holding an explicit column mapping as JSON. The duplicate-file
// check runs before the upload is spooled so re-sent reports are rejected
// without touching disk. By default the import runs as a background job
// (202 + job id); with ?wait=true the pipeline runs inline and the
// response carries the import report.
func (h *ImportsHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A spreadsheet file is required")
		return
	}
	defer file.Close()

	sourceName := filepath.Base(header.Filename)
	if sourceName == "" || sourceName == "." || sourceName == string(filepath.Separator) {
		middleware.WriteError(w, http.StatusBadRequest, "Uploaded file has no usable name")
		return
	}

	var mapping *domain.MappingSchema
	if raw := r.FormValue("mapping"); raw != "" {
		var m domain.MappingSchema
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid mapping JSON")
			return
		}
		if err := m.Validate(); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		mapping = &m
	}

	// Fast duplicate check before spooling anything to disk.
	seen, err := h.store.HasFile(sourceName)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to check for duplicate file")
		return
	}
	if seen {
		writeDomainError(w, h.log, fmt.Errorf("%q: %w", sourceName, ledger.ErrDuplicateFile), "")
		return
	}

	spooled, err := h.spool(file, sourceName)
	if err != nil {
		h.log.Error().Err(err).Str("source", sourceName).Msg("Failed to spool upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		defer os.Remove(spooled)

		report, err := h.importer.Run(ctx, spooled, sourceName, mapping)
		if err != nil {
			writeDomainError(w, h.log, err, "Import failed")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, report)
		return
	}

	job := &jobs.ImportSalesJob{
		FilePath:   spooled,
		SourceName: sourceName,
		Mapping:    mapping,
	}

	if err := h.publisher.PublishImportSales(ctx, job); err != nil {
		os.Remove(spooled)
		h.log.Error().Err(err).Str("source", sourceName).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", sourceName).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"source_name": sourceName,
		"status":      string(job.Status),
	})
}

// spool writes the uploaded part to the upload directory under a unique
// name and returns the path.
func (h *ImportsHandler) spool(file io.Reader, sourceName string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+"-"+sanitizeName(sourceName))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write spool file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close spool file: %w", err)
	}
	return path, nil
}

// sanitizeName keeps spool file names shell- and path-safe.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// GetImport handles GET /api/v1/imports/{id}
func (h *ImportsHandler) GetImport(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, h.log, err, "Failed to get import job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListImports handles GET /api/v1/imports
func (h *ImportsHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SourceName: query.Get("source_name"),
		Status:     jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.jobStore.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list import jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list import jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
