package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dvloznov/sales-ledger/internal/api/handlers"
	"github.com/dvloznov/sales-ledger/internal/api/middleware"
	"github.com/dvloznov/sales-ledger/internal/assistant"
	"github.com/dvloznov/sales-ledger/internal/config"
	"github.com/dvloznov/sales-ledger/internal/insight"
	"github.com/dvloznov/sales-ledger/internal/jobs"
	"github.com/dvloznov/sales-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/mirror"
	"github.com/dvloznov/sales-ledger/internal/pipeline"
	"github.com/dvloznov/sales-ledger/internal/warehouse"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)

	ctx := context.Background()

	// Open the ledger store
	store, err := ledger.Open(cfg.LedgerPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.LedgerPath).Msg("Failed to open ledger store")
	}

	// Wire the Gemini assistant when a key is configured. The pipeline and
	// insight service both accept a nil assistant and degrade gracefully.
	var ai pipeline.Assistant
	var gen insight.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := assistant.NewClient(ctx, assistant.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		ai = client
		gen = client
	} else {
		log.Warn().Msg("No Gemini API key configured - mapping suggestions, enrichment and insights are disabled")
	}

	importer := pipeline.NewImporter(store, ai, log)
	insightSvc := insight.NewService(store, gen, log)

	// Wire the cloud mirror when a bucket is configured
	var syncer *mirror.Syncer
	var flusher handlers.MirrorFlusher
	if cfg.MirrorBucket != "" {
		uploader := mirror.NewUploader(cfg.MirrorBucket, cfg.MirrorObject)
		syncer = mirror.NewSyncer(store, uploader.Upload, cfg.MirrorDelay, log)
		store.OnSave(syncer.Notify)
		flusher = syncer
		log.Info().Str("bucket", cfg.MirrorBucket).Str("object", cfg.MirrorObject).Msg("Cloud mirror enabled")
	} else {
		log.Warn().Msg("No mirror bucket configured - cloud mirroring is disabled")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.ImportWorkers, jobStore)

	// Start worker pool in background to process import jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportSalesJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", importJob.JobID).
			Str("source_name", importJob.SourceName).
			Msg("Processing import job")

		report, err := importer.Run(ctx, importJob.FilePath, importJob.SourceName, importJob.Mapping)
		if err != nil {
			// Keep the spooled file around for retries; drop it once the
			// last attempt failed.
			if importJob.RetryCount >= importJob.MaxRetries {
				_ = os.Remove(importJob.FilePath)
			}
			log.Error().
				Err(err).
				Str("job_id", importJob.JobID).
				Str("source_name", importJob.SourceName).
				Msg("Import pipeline failed")
			return err
		}

		importJob.Report = report
		_ = os.Remove(importJob.FilePath)

		log.Info().
			Str("job_id", importJob.JobID).
			Str("source_name", importJob.SourceName).
			Int("records_added", report.RecordsAdded).
			Msg("Import pipeline completed successfully")

		return nil
	}

	go func() {
		log.Info().Int("workers", cfg.ImportWorkers).Msg("Starting import workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Import workers stopped with error")
		}
	}()

	// Schedule warehouse exports when configured
	var exporter *warehouse.Exporter
	var schedule *cron.Cron
	if cfg.ExportSchedule != "" {
		exporter, err = warehouse.Connect(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to BigQuery")
		}
		if err := exporter.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure warehouse table")
		}

		schedule = cron.New()
		_, err = schedule.AddFunc(cfg.ExportSchedule, func() {
			l, err := store.Current()
			if err != nil {
				log.Debug().Msg("Skipping warehouse export - no ledger yet")
				return
			}
			n, err := exporter.ExportSales(context.Background(), l, time.Now())
			if err != nil {
				log.Error().Err(err).Msg("Warehouse export failed")
				return
			}
			log.Info().Int("rows", n).Str("business", l.Name).Msg("Warehouse export completed")
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ExportSchedule).Msg("Invalid warehouse export schedule")
		}
		schedule.Start()
		log.Info().Str("schedule", cfg.ExportSchedule).Msg("Warehouse export scheduled")
	}

	// Initialize handlers
	ledgerHandler := handlers.NewLedgerHandler(store, log)
	statsHandler := handlers.NewStatsHandler(store, log)
	importsHandler := handlers.NewImportsHandler(store, importer, jobQueue, jobStore, cfg.UploadDir, log)
	insightHandler := handlers.NewInsightHandler(insightSvc, log)
	mirrorHandler := handlers.NewMirrorHandler(flusher, store, log)

	// Create router
	mux := http.NewServeMux()

	// Ledger endpoints
	mux.HandleFunc("/api/v1/ledger", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ledgerHandler.GetLedger(w, r)
		case http.MethodPost:
			ledgerHandler.CreateLedger(w, r)
		case http.MethodDelete:
			ledgerHandler.ResetLedger(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/ledger/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.ExportLedger(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/ledger/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ledgerHandler.ImportLedger(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/ledger/mapping", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			ledgerHandler.SetMapping(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Import endpoints
	mux.HandleFunc("/api/v1/imports", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			importsHandler.CreateImport(w, r)
		case http.MethodGet:
			importsHandler.ListImports(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/imports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/imports/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			importsHandler.GetImport(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Stats endpoint
	mux.HandleFunc("/api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.GetStats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Insight endpoints
	mux.HandleFunc("/api/v1/insight", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			insightHandler.GetInsight(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/insight/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			insightHandler.RefreshInsight(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Mirror endpoint
	mux.HandleFunc("/api/v1/mirror/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mirrorHandler.SyncMirror(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(cfg.APIKey)(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight imports
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	if schedule != nil {
		<-schedule.Stop().Done()
	}
	if exporter != nil {
		if err := exporter.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close BigQuery client")
		}
	}

	// Close the mirror last so an in-flight upload can finish
	if syncer != nil {
		syncer.Close()
	}

	log.Info().Msg("Server exited")
}
