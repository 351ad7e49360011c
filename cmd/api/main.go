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

	"github.com/mgouveia/pantry-ledger/internal/api/handlers"
	"github.com/mgouveia/pantry-ledger/internal/api/middleware"
	"github.com/mgouveia/pantry-ledger/internal/config"
	"github.com/mgouveia/pantry-ledger/internal/extract"
	"github.com/mgouveia/pantry-ledger/internal/imagestore"
	"github.com/mgouveia/pantry-ledger/internal/jobs"
	"github.com/mgouveia/pantry-ledger/internal/jobs/inmemory"
	"github.com/mgouveia/pantry-ledger/internal/ledger"
	"github.com/mgouveia/pantry-ledger/internal/logger"
	"github.com/mgouveia/pantry-ledger/internal/pipeline"
	"github.com/mgouveia/pantry-ledger/internal/runlog"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Sheets.SpreadsheetID == "" {
		log.Fatal().Msg("SHEET_ID is required")
	}

	ctx := context.Background()

	// Wire the pipeline collaborators.
	extractor := extract.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.Model)
	sheetLedger := ledger.NewSheetsLedger(cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName)
	writer := ledger.NewWriter(sheetLedger)

	var images imagestore.Store = imagestore.Disabled{}
	if cfg.GCS.Bucket != "" {
		images = imagestore.NewGCSStore(cfg.GCS.Bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - receipt images will not be archived")
	}

	var runs runlog.RunLog = runlog.Noop{}
	if cfg.BigQuery.Project != "" {
		runs = runlog.NewBigQueryRunLog(cfg.BigQuery.Project, cfg.BigQuery.Dataset)
	}

	pipe := pipeline.New(extractor, writer, images, runs, log)
	registry := handlers.NewSessionRegistry()

	// Job infrastructure: extraction runs off the request path.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.ExtractReceiptJob) error {
		session, ok := registry.Get(job.SessionID)
		if !ok {
			return fmt.Errorf("unknown session: %s", job.SessionID)
		}

		log.Info().
			Str("job_id", job.JobID).
			Str("session_id", job.SessionID).
			Msg("Processing extraction job")

		if err := pipe.Extract(ctx, session); err != nil {
			log.Error().
				Err(err).
				Str("job_id", job.JobID).
				Str("session_id", job.SessionID).
				Msg("Extraction failed")
			return err
		}
		return nil
	}

	go func() {
		log.Info().Msg("Starting extraction worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Extraction worker stopped with error")
		}
	}()

	// Handlers.
	sessionsHandler := handlers.NewSessionsHandler(pipe, registry, jobQueue, log)
	reportHandler := handlers.NewReportHandler(sheetLedger, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sessionsHandler.Create(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
		sessionID, action, _ := strings.Cut(rest, "/")
		if sessionID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			sessionsHandler.Get(w, r, sessionID)
		case action == "rows" && r.Method == http.MethodPut:
			sessionsHandler.UpdateRows(w, r, sessionID)
		case action == "commit" && r.Method == http.MethodPost:
			sessionsHandler.Commit(w, r, sessionID)
		case action == "cancel" && r.Method == http.MethodPost:
			sessionsHandler.Cancel(w, r, sessionID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportHandler.Summary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.App.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
