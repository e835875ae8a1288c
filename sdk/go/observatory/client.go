package observatory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config holds client configuration.
type Config struct {
	// BaseURL is the server's base URL, e.g. "http://localhost:8080".
	BaseURL string

	// HTTPClient is the underlying HTTP client. When nil a client with
	// Timeout is used.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil. Defaults to 30 seconds.
	Timeout time.Duration
}

// Execution identifies the caller's execution context. Clients talking to an
// enforcing server must pass a non-zero Execution on every call; the zero
// value sends no context headers.
type Execution struct {
	// ID is the execution id shared by every span in the causal chain.
	ID string

	// ParentSpanID is the caller's span id, recorded as the parent of the
	// repo span the server creates.
	ParentSpanID string
}

// Client is an HTTP client for the Observatory API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("observatory: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("observatory: invalid BaseURL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Health reports the server's health. Health is exempt from execution
// context enforcement.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.get(ctx, "/health", Execution{}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Observe submits a normalized telemetry event.
func (c *Client) Observe(ctx context.Context, exec Execution, event ObservationEvent) (*ObservationResponse, error) {
	var out ObservationResponse
	if err := c.post(ctx, "/api/v1/observations", exec, event, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitResult submits a completed execution for validation. The returned
// result carries the verdict; an invalid execution is still accepted, with
// Valid false and ValidationErrors populated.
func (c *Client) SubmitResult(ctx context.Context, exec Execution, req SubmitResultRequest) (*ExecutionResult, error) {
	var out ExecutionResult
	if err := c.post(ctx, "/v1/executions/results", exec, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult fetches the latest validated result for an execution.
func (c *Client) GetResult(ctx context.Context, exec Execution, executionID string) (*ExecutionResult, error) {
	if executionID == "" {
		return nil, fmt.Errorf("observatory: executionID is required")
	}
	path := "/v1/executions/" + url.PathEscape(executionID) + "/result"
	var out ExecutionResult
	if err := c.get(ctx, path, exec, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recent lists summaries of recently validated executions, newest first.
// limit 0 uses the server default.
func (c *Client) Recent(ctx context.Context, exec Execution, limit int) ([]ResultSummary, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out []ResultSummary
	if err := c.get(ctx, "/v1/executions/recent", exec, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// apiEnvelope matches the server's response envelope.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope matches the server's error envelope.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, exec Execution, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("observatory: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("observatory: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setExecutionHeaders(req, exec)

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, exec Execution, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("observatory: create request: %w", err)
	}
	c.setExecutionHeaders(req, exec)

	return c.do(req, out)
}

func (c *Client) setExecutionHeaders(req *http.Request, exec Execution) {
	if exec.ID != "" {
		req.Header.Set(HeaderExecutionID, exec.ID)
	}
	if exec.ParentSpanID != "" {
		req.Header.Set(HeaderParentSpanID, exec.ParentSpanID)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("observatory: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("observatory: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("observatory: decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("observatory: decode response data: %w", err)
	}
	return nil
}

func parseError(statusCode int, body []byte) error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return &Error{
			StatusCode: statusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return &Error{
		StatusCode: statusCode,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
}
