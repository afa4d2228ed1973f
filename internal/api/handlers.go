package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reelworks/newsreel/internal/config"
	"github.com/reelworks/newsreel/internal/db"
	"github.com/reelworks/newsreel/internal/models"
	"github.com/reelworks/newsreel/internal/queue"
)

// Handlers wires HTTP requests to job storage and the render queue.
type Handlers struct {
	db       *db.DB
	queue    *queue.Queue
	cfg      *config.Config
	validate *validator.Validate
}

func NewHandlers(database *db.DB, q *queue.Queue, cfg *config.Config) *Handlers {
	return &Handlers{
		db:       database,
		queue:    q,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// CreateJob is the idempotent intake endpoint. Re-submitting a source_url
// returns the existing job instead of creating a duplicate, and stale news
// (pub_date beyond the freshness window) is skipped without storing anything.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}
	if req.Script.Narration() == "" {
		writeError(w, http.StatusBadRequest, "script has no narration text")
		return
	}

	if req.PubDate != nil && time.Since(*req.PubDate) > h.cfg.MaxContentAge {
		log.Printf("[API] Skipping stale content (%s): %s", req.PubDate.Format(time.RFC3339), req.Title)
		writeJSON(w, http.StatusOK, models.CreateJobResponse{
			Status: "skipped",
			Reason: "content older than freshness window",
		})
		return
	}

	job := jobFromRequest(&req)
	created, existing, err := h.db.CreateJob(r.Context(), job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "creating job: "+err.Error())
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, models.CreateJobResponse{
			Status:    "existing",
			JobID:     &existing.ID,
			JobStatus: existing.Status,
		})
		return
	}

	if err := h.queue.EnqueueRender(r.Context(), job.ID, req); err != nil {
		// The row exists but the queue write failed; the reaper will
		// eventually flag it. Report the job anyway.
		log.Printf("[API] Enqueue failed for job %s: %v", job.ID, err)
	}

	log.Printf("[API] Created job %s: %s", job.ID, job.Title)
	writeJSON(w, http.StatusCreated, models.CreateJobResponse{
		Status:    "created",
		JobID:     &job.ID,
		JobStatus: job.Status,
	})
}

// GetJob returns a single job by id.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.db.GetJob(r.Context(), id)
	if err == db.ErrJobNotFound {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns recent jobs, optionally filtered by status.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(r.URL.Query().Get("status"))
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	jobs, err := h.db.ListJobs(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.ListJobsResponse{Jobs: jobs, Total: len(jobs)})
}

// PatchJob applies a partial update; JSONB fields merge key-wise.
func (h *Handlers) PatchJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	var patch models.PatchJobRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	if err := h.db.PatchJob(r.Context(), id, &patch); err == db.ErrJobNotFound {
		writeError(w, http.StatusNotFound, "job not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, err := h.db.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CheckURL reports whether a source_url is already tracked, so crawlers can
// skip re-submitting content.
func (h *Handlers) CheckURL(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("url")
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	job, err := h.db.GetJobBySourceURL(r.Context(), sourceURL)
	if err == db.ErrJobNotFound {
		writeJSON(w, http.StatusOK, models.CheckURLResponse{Exists: false})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.CheckURLResponse{Exists: true, Job: job})
}

// ReapStuckJobs forces stalled pending/processing jobs into error. Called by
// an external scheduler.
func (h *Handlers) ReapStuckJobs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.db.ReapStuckJobs(r.Context(), h.cfg.StuckJobAge)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(ids) > 0 {
		log.Printf("[API] Reaped %d stuck jobs", len(ids))
	}
	writeJSON(w, http.StatusOK, models.ReapResponse{Reaped: len(ids), IDs: ids})
}

// Health is the unauthenticated liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jobFromRequest maps the intake payload onto a job row. The full request is
// preserved in metadata so the worker-side payload can be reconstructed.
func jobFromRequest(req *models.CreateJobRequest) *models.Job {
	id := uuid.New()

	// Idempotency applies only to declared source URLs; jobs submitted
	// without one get a synthetic unique key so they never collide.
	sourceURL := "job:" + id.String()
	if req.SourceURL != nil && *req.SourceURL != "" {
		sourceURL = *req.SourceURL
	}

	metadata := models.JSONB{
		"title":  req.Title,
		"type":   string(req.Type),
		"script": req.Script,
		"assets": req.Assets,
		"config": req.Config,
	}

	return &models.Job{
		ID:          id,
		SourceURL:   sourceURL,
		Title:       req.Title,
		Status:      models.JobStatusProcessing,
		Priority:    "normal",
		Metadata:    metadata,
		Format:      req.Format,
		Region:      req.Region,
		Aggregation: req.Aggregation,
		PubDate:     req.PubDate,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
