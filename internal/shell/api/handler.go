// Package api provides HTTP handlers for the invoice extraction API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/invoicemill/internal/core/job"
	"github.com/artpar/invoicemill/internal/shell/store"
)

// MaxUploadBytes caps the size of one uploaded document.
const MaxUploadBytes = 500 << 20 // 500 MiB

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store     store.Store
	logger    *slog.Logger
	uploadDir string
}

// NewHandler creates a new API handler. uploadDir is where uploaded
// documents are stored until processing deletes them.
func NewHandler(s store.Store, l *slog.Logger, uploadDir string) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if uploadDir == "" {
		uploadDir = "/var/lib/invoicemill/uploads"
	}
	return &Handler{
		store:     s,
		logger:    l,
		uploadDir: uploadDir,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.handleCreateJob)
			r.Get("/", h.handleListJobs)
			r.Get("/{id}", h.handleGetJob)
			r.Delete("/{id}", h.handleDeleteJob)
			r.Get("/{id}/download", h.handleDownload)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := h.store.ListJobs(r.Context(), store.ListOptions{Limit: 1}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		checks["upload_dir"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["upload_dir"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Job Handlers
// =============================================================================

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "uploaded file exceeds 500 MiB", "file_too_large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field", "validation_error")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		h.writeError(w, http.StatusBadRequest, "missing filename", "validation_error")
		return
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		h.writeError(w, http.StatusBadRequest, "only PDF uploads are accepted", "validation_error")
		return
	}

	format, err := job.ParseFormat(r.FormValue("format"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	j := job.New(filename, format)

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("failed to create upload dir", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store upload", "internal_error")
		return
	}
	dstPath := filepath.Join(h.uploadDir, j.StoredName)
	dst, err := os.Create(dstPath)
	if err != nil {
		h.logger.Error("failed to create upload file", "path", dstPath, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store upload", "internal_error")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dstPath)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "uploaded file exceeds 500 MiB", "file_too_large")
			return
		}
		h.logger.Error("failed to write upload", "path", dstPath, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store upload", "internal_error")
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		h.logger.Error("failed to close upload", "path", dstPath, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store upload", "internal_error")
		return
	}

	if err := h.store.CreateJob(r.Context(), j); err != nil {
		os.Remove(dstPath)
		h.logger.Error("failed to create job", "job_id", j.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create job", "internal_error")
		return
	}

	h.logger.Info("job created", "job_id", j.ID, "filename", filename, "format", format)
	h.writeJSON(w, http.StatusAccepted, jobToResponse(j))
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	opts = opts.Normalize()

	jobs, err := h.store.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list jobs", "internal_error")
		return
	}

	total, err := h.store.CountJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to count jobs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list jobs", "internal_error")
		return
	}

	resp := ListJobsResponse{
		Jobs:   make([]JobResponse, 0, len(jobs)),
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, jobToResponse(&jobs[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "job not found", "not_found")
			return
		}
		h.logger.Error("failed to get job", "job_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get job", "internal_error")
		return
	}

	resp := jobToResponse(j)
	if j.Status == job.StatusCompleted && j.OutputPath != "" {
		resp.Statistics = h.loadStatistics(j)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// loadStatistics reads the statistics sidecar for a completed job. A
// missing or corrupt sidecar just leaves the field empty.
func (h *Handler) loadStatistics(j *job.Job) json.RawMessage {
	data, err := os.ReadFile(statsPath(j.OutputPath))
	if err != nil {
		return nil
	}
	if !json.Valid(data) {
		h.logger.Warn("statistics sidecar is not valid JSON", "job_id", j.ID)
		return nil
	}
	return json.RawMessage(data)
}

func (h *Handler) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "job not found", "not_found")
			return
		}
		h.logger.Error("failed to get job", "job_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete job", "internal_error")
		return
	}

	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "job not found", "not_found")
			return
		}
		h.logger.Error("failed to delete job", "job_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete job", "internal_error")
		return
	}

	// Artifacts go with the record.
	if j.OutputPath != "" {
		os.Remove(j.OutputPath)
		os.Remove(statsPath(j.OutputPath))
	}
	os.Remove(filepath.Join(h.uploadDir, j.StoredName))

	h.logger.Info("job deleted", "job_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "job not found", "not_found")
			return
		}
		h.logger.Error("failed to get job", "job_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get job", "internal_error")
		return
	}

	if !j.Terminal() {
		h.writeError(w, http.StatusConflict, "job is still running", "not_completed")
		return
	}
	if j.Status != job.StatusCompleted {
		h.writeError(w, http.StatusConflict, "job failed, no report", "not_completed")
		return
	}

	f, err := os.Open(j.OutputPath)
	if err != nil {
		h.logger.Error("report file missing", "job_id", id, "path", j.OutputPath, "error", err)
		h.writeError(w, http.StatusNotFound, "report file not found", "not_found")
		return
	}
	defer f.Close()

	downloadName := strings.TrimSuffix(j.Filename, filepath.Ext(j.Filename)) + j.Format.Extension()
	w.Header().Set("Content-Type", contentTypeFor(j.Format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	if stat, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Error("failed to stream report", "job_id", id, "error", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func jobToResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:            j.ID,
		Filename:      j.Filename,
		Format:        string(j.Format),
		Status:        string(j.Status),
		PagesTotal:    j.PagesTotal,
		PagesDone:     j.PagesDone,
		ShipmentCount: j.ShipmentCount,
		InvoiceCount:  j.InvoiceCount,
		ErrorMessage:  j.Error,
		CreatedAt:     j.CreatedAt,
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt
		resp.StartedAt = &t
	}
	if !j.FinishedAt.IsZero() {
		t := j.FinishedAt
		resp.FinishedAt = &t
	}
	return resp
}

func contentTypeFor(f job.Format) string {
	if f == job.FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// statsPath is the statistics JSON written next to a report file.
func statsPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_stats.json"
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return false
}
