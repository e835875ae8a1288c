package observatory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// mockServer creates an httptest server that mimics the Observatory API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: serverURL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func testExec() Execution {
	return Execution{ID: "exec-123", ParentSpanID: "caller-span-1"}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty BaseURL")
	}

	c, err := NewClient(Config{BaseURL: "http://localhost:8080/"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("trailing slash not trimmed: %q", c.baseURL)
	}
}

func TestHealth(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"data": HealthResponse{Status: "ok", Version: "1.2.3", Postgres: "ok", Uptime: 42},
			})
		},
	})

	c := newTestClient(t, srv.URL)
	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != "ok" || health.Version != "1.2.3" {
		t.Errorf("unexpected health: %+v", health)
	}
}

func TestSubmitResultSendsExecutionHeaders(t *testing.T) {
	var gotExecID, gotParent string
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/executions/results": func(w http.ResponseWriter, r *http.Request) {
			gotExecID = r.Header.Get(HeaderExecutionID)
			gotParent = r.Header.Get(HeaderParentSpanID)

			var req SubmitResultRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error": map[string]any{"code": "INVALID_INPUT", "message": "bad body"},
				})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"data": ExecutionResult{
					ExecutionID:      req.RepoSpan.ExecutionID,
					RepoSpan:         req.RepoSpan,
					AgentSpans:       req.AgentSpans,
					Valid:            true,
					ValidationErrors: []string{},
					TotalArtifacts:   1,
				},
			})
		},
	})

	agent := NewAgentSpan("exec-123", "repo-span-1", "demo", "coder")
	agent.AddInlineArtifact("patch.diff", "text/x-diff", []byte("--- a\n+++ b\n"))
	agent.Complete()

	repo := Span{
		SpanID:       "repo-span-1",
		ExecutionID:  "exec-123",
		ParentSpanID: "caller-span-1",
		Kind:         SpanKindRepo,
		RepoName:     "demo",
		Status:       SpanStatusCompleted,
		StartTime:    time.Now().UTC(),
		Artifacts:    []Artifact{},
		Events:       []Event{},
		Attributes:   map[string]any{},
	}

	c := newTestClient(t, srv.URL)
	result, err := c.SubmitResult(context.Background(), testExec(), SubmitResultRequest{
		RepoSpan:   repo,
		AgentSpans: []Span{*agent},
	})
	if err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}

	if gotExecID != "exec-123" {
		t.Errorf("execution id header = %q, want exec-123", gotExecID)
	}
	if gotParent != "caller-span-1" {
		t.Errorf("parent span header = %q, want caller-span-1", gotParent)
	}
	if !result.Valid {
		t.Error("expected valid result")
	}
	if result.TotalArtifacts != 1 {
		t.Errorf("TotalArtifacts = %d, want 1", result.TotalArtifacts)
	}
}

func TestSubmitResultInvalidVerdict(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/executions/results": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]any{
				"data": ExecutionResult{
					ExecutionID:      "exec-123",
					Valid:            false,
					ValidationErrors: []string{"No agent spans emitted -- execution has no evidence of agent work"},
				},
			})
		},
	})

	c := newTestClient(t, srv.URL)
	result, err := c.SubmitResult(context.Background(), testExec(), SubmitResultRequest{})
	if err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid verdict")
	}
	if len(result.ValidationErrors) != 1 {
		t.Errorf("ValidationErrors = %v", result.ValidationErrors)
	}
}

func TestGetResult(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/executions/exec-123/result": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"data": ExecutionResult{ExecutionID: "exec-123", Valid: true},
			})
		},
	})

	c := newTestClient(t, srv.URL)
	result, err := c.GetResult(context.Background(), testExec(), "exec-123")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if result.ExecutionID != "exec-123" {
		t.Errorf("ExecutionID = %q", result.ExecutionID)
	}

	if _, err := c.GetResult(context.Background(), testExec(), ""); err == nil {
		t.Error("expected error for empty executionID")
	}
}

func TestGetResultNotFound(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/executions/missing/result": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]any{"code": "NOT_FOUND", "message": "no result for execution"},
			})
		},
	})

	c := newTestClient(t, srv.URL)
	_, err := c.GetResult(context.Background(), testExec(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false for %v", err)
	}
}

func TestRecent(t *testing.T) {
	var gotLimit string
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/executions/recent": func(w http.ResponseWriter, r *http.Request) {
			gotLimit = r.URL.Query().Get("limit")
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []ResultSummary{
					{ExecutionID: "exec-1", RepoName: "demo", Valid: true, AgentSpanCount: 2},
					{ExecutionID: "exec-2", RepoName: "demo", Valid: false, AgentSpanCount: 0},
				},
			})
		},
	})

	c := newTestClient(t, srv.URL)
	summaries, err := c.Recent(context.Background(), testExec(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if gotLimit != "10" {
		t.Errorf("limit query = %q, want 10", gotLimit)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].ExecutionID != "exec-1" || summaries[1].Valid {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
}

func TestObserve(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/observations": func(w http.ResponseWriter, r *http.Request) {
			var ev ObservationEvent
			if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.Source == "" {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error": map[string]any{"code": "INVALID_INPUT", "message": "source is required"},
				})
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{
				"data": ObservationResponse{Status: "accepted", ExecutionID: ev.ExecutionID},
			})
		},
	})

	c := newTestClient(t, srv.URL)
	ack, err := c.Observe(context.Background(), testExec(), ObservationEvent{
		Source:      "inference-gateway",
		EventType:   "model_call",
		ExecutionID: "exec-123",
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if ack.Status != "accepted" || ack.ExecutionID != "exec-123" {
		t.Errorf("unexpected ack: %+v", ack)
	}
}

func TestMissingExecutionHeaderError(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/executions/results": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(HeaderExecutionID) == "" {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error": map[string]any{
						"code":    CodeMissingExecutionID,
						"message": "Header 'x-execution-id' is required for all operations",
					},
				})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"data": ExecutionResult{}})
		},
	})

	c := newTestClient(t, srv.URL)
	_, err := c.SubmitResult(context.Background(), Execution{}, SubmitResultRequest{})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Code != CodeMissingExecutionID {
		t.Errorf("Code = %q, want %s", apiErr.Code, CodeMissingExecutionID)
	}
	if !IsMissingExecutionContext(err) {
		t.Error("IsMissingExecutionContext = false")
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream unavailable"))
		},
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "upstream unavailable") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}
