package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Safi643133/ai-immigration-services-sub003/id"
	"github.com/Safi643133/ai-immigration-services-sub003/job"
	"github.com/Safi643133/ai-immigration-services-sub003/orchestrator"
)

// createJobRequest is the body of POST /v1/jobs.
type createJobRequest struct {
	SubmissionRef string            `json:"submission_ref"`
	Embassy       string            `json:"embassy,omitempty"`
	Priority      int               `json:"priority,omitempty"`
	FieldMap      map[string]string `json:"field_map"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type createJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	owner := ownerRef(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header required")
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := s.svc.Submit(r.Context(), orchestrator.SubmitInput{
		SubmissionRef: req.SubmissionRef,
		OwnerRef:      owner,
		Embassy:       req.Embassy,
		Priority:      req.Priority,
		FieldMap:      job.FieldMap(req.FieldMap),
		Metadata:      req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createJobResponse{
		JobID:  j.ID.String(),
		Status: string(j.Status),
	})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	owner := ownerRef(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "X-Owner-ID header required")
		return
	}

	opts := job.ListOpts{
		Status:  job.Status(r.URL.Query().Get("status")),
		Embassy: r.URL.Query().Get("embassy"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = n
	}

	jobs, err := s.svc.List(r.Context(), owner, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobIDParam(w, r)
	if !ok {
		return
	}

	snap, err := s.svc.Get(r.Context(), jobID, ownerRef(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.jobIDParam(w, r)
	if !ok {
		return
	}

	res, err := s.svc.Cancel(r.Context(), jobID, ownerRef(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// workerUpdateRequest is the trust-boundary payload workers push back.
type workerUpdateRequest struct {
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) workerUpdate(w http.ResponseWriter, r *http.Request) {
	if s.workerSecret == "" || r.Header.Get(HeaderWorkerSecret) != s.workerSecret {
		writeError(w, http.StatusUnauthorized, "invalid worker secret")
		return
	}

	jobID, ok := s.jobIDParam(w, r)
	if !ok {
		return
	}

	var req workerUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Metadata) == 0 {
		writeError(w, http.StatusBadRequest, "metadata required")
		return
	}

	j, err := s.svc.ApplyWorkerUpdate(r.Context(), jobID, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// jobIDParam parses the {jobID} route parameter. A malformed ID reads
// as not found, same as an unknown one.
func (s *Server) jobIDParam(w http.ResponseWriter, r *http.Request) (id.JobID, bool) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return id.Nil, false
	}
	return jobID, true
}
