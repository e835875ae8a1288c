package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/llm-observatory/observatory/internal/execution"
	"github.com/llm-observatory/observatory/internal/model"
)

const (
	contextKeyExecution contextKey = "execution_context"
	contextKeyRepoSpan  contextKey = "execution_repo_span"
)

// ExecutionConfig configures the execution context middleware.
type ExecutionConfig struct {
	// RepoName is used for repo-level spans unless overridden per request
	// via the x-execution-repo-name header.
	RepoName string
	// Enforce rejects requests missing execution headers. Set false for
	// gradual rollout: requests without headers then proceed untracked.
	Enforce bool
}

// ExecutionContextFromContext extracts the execution context injected by the
// execution middleware. ok is false when the request carried no execution
// headers (permissive mode) or the middleware is not installed.
func ExecutionContextFromContext(ctx context.Context) (execution.Context, bool) {
	v, ok := ctx.Value(contextKeyExecution).(execution.Context)
	return v, ok
}

// RepoSpanFromContext extracts the repo-level execution span created by the
// execution middleware for this request.
func RepoSpanFromContext(ctx context.Context) (*execution.Span, bool) {
	v, ok := ctx.Value(contextKeyRepoSpan).(*execution.Span)
	return v, ok
}

// RequireExecutionContext extracts the execution context or writes a
// MISSING_EXECUTION_CONTEXT error. This is the enforcement boundary for
// handlers that need execution context regardless of the global Enforce
// setting; such handlers must return immediately when ok is false.
func RequireExecutionContext(w http.ResponseWriter, r *http.Request) (execution.Context, bool) {
	ec, ok := ExecutionContextFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingExecutionContext,
			"Execution context not found. Ensure execution middleware is applied and "+
				execution.HeaderExecutionID+" / "+execution.HeaderParentSpanID+" headers are provided.")
		return execution.Context{}, false
	}
	return ec, true
}

// executionContextMiddleware extracts agentic execution context from HTTP
// headers, creates the repo-level execution span, and injects both into the
// request context.
//
// Headers:
//   - x-execution-id (required in enforce mode): top-level execution ID
//   - x-execution-parent-span-id (required in enforce mode): caller's span ID
//   - x-execution-repo-name (optional): overrides the configured repo name
//
// In enforce mode a missing header short-circuits the request with a 400
// naming the header; the inner handler is never invoked. In permissive mode
// requests without headers pass through untracked, and a span construction
// failure is logged and tolerated rather than failing the request.
func executionContextMiddleware(cfg ExecutionConfig, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health checks and static docs are not operations and carry no
		// execution context.
		if r.URL.Path == "/health" || r.URL.Path == "/openapi.yaml" {
			next.ServeHTTP(w, r)
			return
		}

		executionID := r.Header.Get(execution.HeaderExecutionID)
		parentSpanID := r.Header.Get(execution.HeaderParentSpanID)
		repoName := r.Header.Get(execution.HeaderRepoNameOverride)
		if repoName == "" {
			repoName = cfg.RepoName
		}

		if cfg.Enforce {
			if executionID == "" {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingExecutionID,
					fmt.Sprintf("Header '%s' is required for all operations", execution.HeaderExecutionID))
				return
			}
			if parentSpanID == "" {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingParentSpanID,
					fmt.Sprintf("Header '%s' is required for all operations", execution.HeaderParentSpanID))
				return
			}

			repoSpan, ec, err := establishContext(executionID, parentSpanID, repoName)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, model.ErrCodeSpanCreationFailed,
					fmt.Sprintf("Failed to create repo span: %v", err))
				return
			}

			logger.Info("execution context established (enforced)",
				"execution_id", ec.ExecutionID,
				"repo_span_id", *ec.RepoSpanID,
				"request_id", RequestIDFromContext(r.Context()),
			)
			next.ServeHTTP(w, r.WithContext(injectExecution(r.Context(), repoSpan, ec)))
			return
		}

		// Permissive mode: establish context only when both headers are present.
		if executionID != "" && parentSpanID != "" {
			repoSpan, ec, err := establishContext(executionID, parentSpanID, repoName)
			if err != nil {
				logger.Warn("execution span creation failed, proceeding without context",
					"error", err,
					"execution_id", executionID,
				)
				next.ServeHTTP(w, r)
				return
			}

			logger.Info("execution context established (permissive)",
				"execution_id", ec.ExecutionID,
				"request_id", RequestIDFromContext(r.Context()),
			)
			next.ServeHTTP(w, r.WithContext(injectExecution(r.Context(), repoSpan, ec)))
			return
		}

		logger.Warn("no execution context headers found, proceeding without context",
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		)
		next.ServeHTTP(w, r)
	})
}

// establishContext builds the repo-level span and its matching execution
// context for one request.
func establishContext(executionID, parentSpanID, repoName string) (*execution.Span, execution.Context, error) {
	repoSpanID := uuid.NewString()

	repoSpan, err := execution.NewSpan().
		SpanID(repoSpanID).
		ExecutionID(executionID).
		ParentSpanID(parentSpanID).
		Kind(execution.SpanKindRepo).
		RepoName(repoName).
		Build()
	if err != nil {
		return nil, execution.Context{}, err
	}

	ec := execution.Context{
		ExecutionID:  executionID,
		ParentSpanID: parentSpanID,
		RepoSpanID:   &repoSpanID,
		RepoName:     repoName,
	}
	return repoSpan, ec, nil
}

func injectExecution(ctx context.Context, repoSpan *execution.Span, ec execution.Context) context.Context {
	ctx = context.WithValue(ctx, contextKeyExecution, ec)
	ctx = context.WithValue(ctx, contextKeyRepoSpan, repoSpan)
	return ctx
}
