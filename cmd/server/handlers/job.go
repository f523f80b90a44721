package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/probelab/uitester/jobs"
	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
)

// JobHandler handles job-related requests.
type JobHandler struct {
	store      jobs.Store
	dispatcher *jobs.Dispatcher
	logger     logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(store jobs.Store, dispatcher *jobs.Dispatcher, log logger.Logger) *JobHandler {
	return &JobHandler{
		store:      store,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// CreateJobRequest represents a job submission.
type CreateJobRequest struct {
	Request plan.Request `json:"request"`
	Plan    plan.Plan    `json:"plan"`
}

// Create handles submitting a new test job.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Request.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, err := h.dispatcher.Submit(r.Context(), req.Request, req.Plan)
	if err != nil {
		h.logger.Error(r.Context(), "failed to submit job", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	j, err := h.store.GetByID(r.Context(), handle.JobID)
	if err != nil {
		h.logger.Error(r.Context(), "failed to load submitted job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": handle.JobID,
		})
		respondError(w, http.StatusInternalServerError, "failed to load submitted job")
		return
	}

	respondJSON(w, http.StatusCreated, j)
}

// List handles listing jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	limit := 20
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	offset := 0
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "failed to count jobs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to count jobs")
		return
	}

	list, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list jobs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(list, total, limit, offset))
}

// GetByID handles getting a single job by ID.
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	j, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error(r.Context(), "failed to get job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	respondJSON(w, http.StatusOK, j)
}

// GetResult handles returning the final result of a finished job.
func (h *JobHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	j, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error(r.Context(), "failed to get job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	if !j.Status.Terminal() {
		respondError(w, http.StatusConflict, "job has not finished")
		return
	}

	if j.Result == nil {
		respondError(w, http.StatusNotFound, "job has no recorded result")
		return
	}

	respondJSON(w, http.StatusOK, j.Result)
}

// Stop handles cancelling a queued job. Jobs already claimed by a worker
// cannot be stopped.
func (h *JobHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	if err := h.dispatcher.Stop(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			respondError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, jobs.ErrJobAlreadyStarted):
			respondError(w, http.StatusConflict, "job is already running")
		case errors.Is(err, jobs.ErrJobFinished):
			respondError(w, http.StatusConflict, "job already finished")
		default:
			h.logger.Error(r.Context(), "failed to stop job", map[string]interface{}{
				"error":  err.Error(),
				"job_id": id,
			})
			respondError(w, http.StatusInternalServerError, "failed to stop job")
		}
		return
	}

	respondSuccess(w, "job stopped")
}

// Stats handles returning dispatcher completion counters.
func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.dispatcher.Stats())
}
