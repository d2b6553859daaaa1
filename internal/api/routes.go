package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

// Pipeline is the intake surface the HTTP boundary drives. The coordinator
// satisfies it.
type Pipeline interface {
	ProcessNow(path string, force bool)
	TriggerSweep(force bool)
	PendingCount() int
	QueueSize() int
	IsRunning() bool
	IsPaused() bool
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Get("/stats", statsHandler(cfg))
	r.Post("/process", processHandler(cfg))
	r.Post("/upload", uploadHandler(cfg))
	r.Get("/results", listResultsHandler(cfg))
	r.Get("/results/{id}", getResultHandler(cfg))
	r.Delete("/results/{id}", deleteResultHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthData{
			Service: "invoice-agent",
			Version: cfg.Version,
			Status:  "healthy",
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, http.StatusOK, "System status retrieved", StatusData{
			Running:          cfg.Pipeline.IsRunning(),
			Paused:           cfg.Pipeline.IsPaused(),
			QueueSize:        cfg.Pipeline.QueueSize(),
			PendingFiles:     cfg.Pipeline.PendingCount(),
			IncomingDir:      cfg.IncomingDir,
			OutputDir:        cfg.OutputDir,
			SupportedFormats: cfg.SupportedFormats,
			MaxFileSizeMB:    float64(cfg.MaxFileSize) / (1024 * 1024),
		})
	}
}

func statsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := cfg.Store.Stats(cfg.Pipeline.PendingCount())
		stats.Uptime = invoice.FormatDuration(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, stats)
	}
}

// processHandler triggers processing on demand. With a file_path it runs
// that one file; without one it sweeps the whole intake folder. Work
// happens in the background, so acceptance is all this reports.
func processHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProcessRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		if !cfg.Pipeline.IsRunning() {
			WriteError(w, http.StatusServiceUnavailable, "processing pipeline is not running")
			return
		}

		if req.FilePath == "" {
			cfg.Pipeline.TriggerSweep(req.ForceReprocess)
			WriteSuccess(w, http.StatusAccepted, "Folder sweep triggered", nil)
			return
		}

		cfg.Pipeline.ProcessNow(req.FilePath, req.ForceReprocess)
		WriteSuccess(w, http.StatusAccepted, "File processing triggered", map[string]string{
			"file_path": req.FilePath,
		})
	}
}

// uploadHandler accepts a multipart file, stores it in the intake folder
// under a collision-safe name and queues it for processing.
func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxFileSize+1024*1024)

		file, header, err := r.FormFile("file")
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				WriteError(w, http.StatusRequestEntityTooLarge, "uploaded file exceeds maximum allowed size")
				return
			}
			WriteError(w, http.StatusBadRequest, "missing file field in multipart form")
			return
		}
		defer file.Close()

		name := invoice.SafeFilename(filepath.Base(header.Filename))
		if !invoice.IsSupportedFormat(name, cfg.SupportedFormats) {
			WriteError(w, http.StatusBadRequest, "unsupported file format: "+invoice.FileExtension(name))
			return
		}

		target := invoice.EnsureUniqueFilename(filepath.Join(cfg.IncomingDir, name))
		dst, err := os.Create(target)
		if err != nil {
			cfg.Logger.Error("failed to create upload target", "error", err)
			WriteError(w, http.StatusInternalServerError, "cannot store uploaded file")
			return
		}

		size, err := io.Copy(dst, file)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(target)
			cfg.Logger.Error("failed to write uploaded file", "error", err)
			WriteError(w, http.StatusInternalServerError, "cannot store uploaded file")
			return
		}

		cfg.Pipeline.ProcessNow(target, false)

		WriteSuccess(w, http.StatusAccepted, "File uploaded and queued for processing", UploadData{
			Filename: filepath.Base(target),
			Size:     size,
		})
	}
}

func listResultsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}

		WriteJSON(w, http.StatusOK, cfg.Store.ListRecent(limit))
	}
}

func getResultHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		result := cfg.Store.Get(id)
		if result == nil {
			WriteError(w, http.StatusNotFound, "result not found: "+id)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func deleteResultHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !cfg.Store.Delete(id) {
			WriteError(w, http.StatusNotFound, "result not found: "+id)
			return
		}

		if cfg.Archive != nil {
			if err := cfg.Archive.Delete(r.Context(), id); err != nil {
				cfg.Logger.Warn("failed to delete archived result", "file_id", id, "error", err)
			}
		}

		WriteSuccess(w, http.StatusOK, "Processing result deleted", map[string]string{
			"file_id": id,
		})
	}
}
