package handlers

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/shipyardlabs/cargohold/internal/errors"
	"github.com/shipyardlabs/cargohold/pkg/authz"
	"github.com/shipyardlabs/cargohold/pkg/jobstore"
	"github.com/shipyardlabs/cargohold/pkg/worker"
)

// Dispatcher signals a detached worker process into existence.
type Dispatcher interface {
	Signal() (int, error)
}

// JobsConfig carries the submission policy.
type JobsConfig struct {
	// SpoolDir receives inline upload payloads.
	SpoolDir string

	// MaxPayloadBytes caps inline upload payloads. Zero means no payload
	// uploads are accepted.
	MaxPayloadBytes int64

	// SyncActions are executed inline instead of dispatched to a worker.
	SyncActions []string

	// AllowedTargetPatterns restricts target paths to these doublestar
	// globs. Empty allows any target.
	AllowedTargetPatterns []string
}

// Jobs serves the job lifecycle endpoints.
type Jobs struct {
	db         *sql.DB
	exec       *worker.Executor
	dispatcher Dispatcher
	cfg        JobsConfig
	logger     *zap.Logger
}

func NewJobs(db *sql.DB, exec *worker.Executor, dispatcher Dispatcher, cfg JobsConfig, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{db: db, exec: exec, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// SubmitRequest is the job submission payload. Payload carries inline file
// content (base64) for uploads submitted without a server-visible source.
type SubmitRequest struct {
	Action     string `json:"action"`
	TargetPath string `json:"target_path"`
	SourceRef  string `json:"source_ref,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StatusRequest asks for the state of one job.
type StatusRequest struct {
	JobID string `json:"job_id"`
}

// StatusResponse is the polling contract: status plus a derived progress
// view. Progress is a presentation detail; the store records only counters.
type StatusResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
	TimeElapsed     float64 `json:"time_elapsed"`
	ProgressPercent int     `json:"progress_percent"`
}

// DispatchResponse acknowledges a worker dispatch.
type DispatchResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Submit validates and enqueues a distribution job. Asynchronous actions
// return 202 immediately; configured synchronous actions run inline and
// return their terminal status.
func (h *Jobs) Submit(w http.ResponseWriter, r *http.Request) {
	principal, ok := authz.CurrentPrincipal(r.Context())
	if !ok {
		apperrors.RespondWithError(w, r, authz.ErrUnauthenticated)
		return
	}
	if err := authz.RequireAdmin(principal); err != nil {
		apperrors.RespondWithError(w, r, fmt.Errorf("job submission requires admin: %w", err))
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, fmt.Errorf("malformed request body: %w", jobstore.ErrValidation))
		return
	}

	action, err := jobstore.ParseAction(req.Action)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if err := h.checkTargetPath(req.TargetPath); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	sourceRef := req.SourceRef
	if req.Payload != "" {
		sourceRef, err = h.spoolPayload(action, req)
		if err != nil {
			apperrors.RespondWithError(w, r, err)
			return
		}
	}

	job := &jobstore.JobRecord{
		Action:     action,
		TargetPath: req.TargetPath,
		SourceRef:  sourceRef,
		OwnerID:    principal.ID,
	}
	jobID, err := jobstore.Insert(r.Context(), h.db, job)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	if h.synchronous(action) {
		h.runInline(w, r, jobID)
		return
	}

	if _, err := h.dispatcher.Signal(); err != nil {
		// The job row is durable; a later dispatch will pick it up. The
		// caller still needs to know the worker did not start.
		h.logger.Warn("Worker dispatch failed, job remains queued",
			zap.String("job_id", jobID), zap.Error(err))
		apperrors.RespondWithError(w, r,
			fmt.Errorf("job %s queued but worker dispatch failed: %w", jobID, err))
		return
	}

	h.logger.Info("Job accepted",
		zap.String("job_id", jobID),
		zap.String("action", string(action)),
		zap.String("target_path", req.TargetPath),
		zap.String("owner_id", principal.ID))
	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: jobID, Status: string(jobstore.StatusPending)})
}

// Status reports the state of a job. Callers see only their own jobs unless
// they hold the admin capability.
func (h *Jobs) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := authz.CurrentPrincipal(r.Context())
	if !ok {
		apperrors.RespondWithError(w, r, authz.ErrUnauthenticated)
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, fmt.Errorf("malformed request body: %w", jobstore.ErrValidation))
		return
	}
	if strings.TrimSpace(req.JobID) == "" {
		apperrors.RespondWithError(w, r, fmt.Errorf("job_id is required: %w", jobstore.ErrValidation))
		return
	}

	job, err := jobstore.Get(r.Context(), h.db, req.JobID)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if job.OwnerID != principal.ID && !principal.Admin {
		apperrors.RespondWithError(w, r, fmt.Errorf("job %s: %w", req.JobID, authz.ErrForbidden))
		return
	}

	writeJSON(w, http.StatusOK, statusView(job, time.Now().UTC()))
}

// Dispatch signals the worker without submitting a job. Used by operators
// after a dispatch failure left work queued.
func (h *Jobs) Dispatch(w http.ResponseWriter, r *http.Request) {
	principal, ok := authz.CurrentPrincipal(r.Context())
	if !ok {
		apperrors.RespondWithError(w, r, authz.ErrUnauthenticated)
		return
	}
	if err := authz.RequireAdmin(principal); err != nil {
		apperrors.RespondWithError(w, r, fmt.Errorf("worker dispatch requires admin: %w", err))
		return
	}

	pid, err := h.dispatcher.Signal()
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, DispatchResponse{
		Status:  "accepted",
		Message: fmt.Sprintf("worker running (pid %d)", pid),
	})
}

func (h *Jobs) checkTargetPath(target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("target_path is required: %w", jobstore.ErrValidation)
	}
	if len(h.cfg.AllowedTargetPatterns) == 0 {
		return nil
	}

	for _, pattern := range h.cfg.AllowedTargetPatterns {
		ok, err := doublestar.Match(pattern, target)
		if err != nil {
			return fmt.Errorf("bad target pattern %q: %w", pattern, err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("target_path %q is not an allowed target: %w", target, jobstore.ErrValidation)
}

// spoolPayload decodes an inline payload into the spool directory and
// returns its path as the job's source_ref.
func (h *Jobs) spoolPayload(action jobstore.Action, req SubmitRequest) (string, error) {
	if action != jobstore.ActionUpload {
		return "", fmt.Errorf("payload is only valid for upload: %w", jobstore.ErrValidation)
	}
	if h.cfg.MaxPayloadBytes <= 0 {
		return "", fmt.Errorf("inline payloads are disabled: %w", jobstore.ErrValidation)
	}

	data, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		return "", fmt.Errorf("payload is not valid base64: %w", jobstore.ErrValidation)
	}
	if int64(len(data)) > h.cfg.MaxPayloadBytes {
		return "", fmt.Errorf("payload exceeds %d bytes: %w", h.cfg.MaxPayloadBytes, jobstore.ErrValidation)
	}

	if err := os.MkdirAll(h.cfg.SpoolDir, 0755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}

	// Temp-write then rename so the worker never opens a partial payload.
	path := filepath.Join(h.cfg.SpoolDir, uuid.New().String()+".payload")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("spool payload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize payload: %w", err)
	}
	return path, nil
}

func (h *Jobs) synchronous(action jobstore.Action) bool {
	for _, a := range h.cfg.SyncActions {
		if strings.EqualFold(a, string(action)) {
			return true
		}
	}
	return false
}

// runInline claims and executes a just-inserted job on the request path,
// returning its terminal status.
func (h *Jobs) runInline(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := jobstore.Claim(r.Context(), h.db, jobID)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	h.exec.Process(r.Context(), job)

	done, err := jobstore.Get(r.Context(), h.db, jobID)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView(done, time.Now().UTC()))
}

// statusView derives the polling response from a job record.
func statusView(job *jobstore.JobRecord, now time.Time) StatusResponse {
	resp := StatusResponse{
		JobID:           job.JobID,
		Status:          string(job.Status),
		ProgressPercent: progressPercent(job),
	}
	if job.ErrorMessage != nil {
		resp.Error = *job.ErrorMessage
	}

	end := now
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	resp.TimeElapsed = end.Sub(job.CreatedAt).Seconds()
	return resp
}

// progressPercent maps chunk counters onto a monotonic percentage: a pending
// job is 0, a processing job is at least 50, terminal jobs are 100.
func progressPercent(job *jobstore.JobRecord) int {
	switch job.Status {
	case jobstore.StatusPending:
		return 0
	case jobstore.StatusComplete, jobstore.StatusFailed:
		return 100
	}

	derived := 0
	if job.ChunksTotal > 0 {
		derived = job.ChunksDone * 100 / job.ChunksTotal
	}
	if derived < 50 {
		return 50
	}
	if derived > 99 {
		return 99
	}
	return derived
}
