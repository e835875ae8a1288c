package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/llm-observatory/observatory/internal/execution"
	"github.com/llm-observatory/observatory/internal/integrity"
	"github.com/llm-observatory/observatory/internal/model"
	"github.com/llm-observatory/observatory/internal/storage"
)

// ResultHook is invoked after a submitted execution result has been
// validated. Hooks run synchronously before the response is written and
// must not block for long.
type ResultHook func(ctx context.Context, result *execution.Result)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB // nil = result sink disabled
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	resultHooks         []ResultHook
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): DB, ResultHooks, OpenAPISpec.
type HandlersDeps struct {
	DB                  *storage.DB
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	ResultHooks         []ResultHook
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		resultHooks:         d.ResultHooks,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Postgres: "disabled",
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}
	if h.db != nil {
		resp.Postgres = "ok"
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Postgres = "unreachable"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// HandleObservation handles POST /api/v1/observations: normalized telemetry
// events from upstream subsystems, acknowledged and logged. The upstream
// adapters that produce these events run out of process.
func (h *Handlers) HandleObservation(w http.ResponseWriter, r *http.Request) {
	var event model.ObservationEvent
	if err := decodeJSON(r, &event, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if event.Source == "" || event.EventType == "" || event.ExecutionID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			"source, event_type and execution_id are required")
		return
	}

	h.logger.Info("observation received",
		"source", event.Source,
		"event_type", event.EventType,
		"execution_id", event.ExecutionID,
		"timestamp", event.Timestamp,
		"request_id", RequestIDFromContext(r.Context()),
	)

	writeJSON(w, r, http.StatusAccepted, model.ObservationResponse{
		Status:      "accepted",
		ExecutionID: event.ExecutionID,
	})
}

// HandleSubmitResult handles POST /v1/executions/results. The spans are
// assembled into an execution result and validated; an invalid result is
// still accepted and persisted; the verdict is telemetry, not a request
// error.
func (h *Handlers) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	ec, ok := RequireExecutionContext(w, r)
	if !ok {
		return
	}

	var req model.SubmitResultRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.RepoSpan.SpanID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "repo_span is required")
		return
	}
	if req.RepoSpan.Kind != execution.SpanKindRepo {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "repo_span must have kind \"repo\"")
		return
	}

	result := execution.NewResult(req.RepoSpan, req.AgentSpans).Validate()

	// Inline artifacts carry their own content hash; a mismatch means the
	// content was altered after hashing. Logged, not rejected.
	for _, span := range result.AgentSpans {
		for _, a := range span.Artifacts {
			if !integrity.VerifyInlineArtifact(a) {
				h.logger.Warn("artifact content hash mismatch",
					"execution_id", result.ExecutionID,
					"agent_span_id", span.SpanID,
					"artifact_id", a.ArtifactID,
				)
			}
		}
	}

	h.logger.Info("execution result validated",
		"execution_id", result.ExecutionID,
		"valid", result.Valid,
		"agent_spans", len(result.AgentSpans),
		"total_artifacts", result.TotalArtifacts,
		"validation_errors", len(result.ValidationErrors),
		"artifact_digest", integrity.ExecutionDigest(result),
		"caller_execution_id", ec.ExecutionID,
	)

	for _, hook := range h.resultHooks {
		hook(r.Context(), result)
	}

	if h.db != nil {
		if err := h.db.InsertResult(r.Context(), result); err != nil {
			h.logger.Error("failed to persist execution result",
				"error", err,
				"execution_id", result.ExecutionID,
				"request_id", RequestIDFromContext(r.Context()),
			)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError,
				"failed to persist execution result")
			return
		}
	}

	writeJSON(w, r, http.StatusCreated, result)
}

// HandleGetResult handles GET /v1/executions/{execution_id}/result.
func (h *Handlers) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "result sink disabled")
		return
	}
	executionID := r.PathValue("execution_id")
	if executionID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "execution_id is required")
		return
	}

	result, err := h.db.GetLatestResult(r.Context(), executionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
				"no result recorded for execution "+executionID)
			return
		}
		h.logger.Error("failed to load execution result", "error", err, "execution_id", executionID)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError,
			"failed to load execution result")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleRecentResults handles GET /v1/executions/recent.
func (h *Handlers) HandleRecentResults(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	if h.db == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "result sink disabled")
		return
	}

	verdicts, err := h.db.ListRecentVerdicts(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list execution verdicts", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError,
			"failed to list execution verdicts")
		return
	}
	writeJSON(w, r, http.StatusOK, verdicts)
}
