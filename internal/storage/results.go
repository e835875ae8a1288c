package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/llm-observatory/observatory/internal/execution"
	"github.com/llm-observatory/observatory/internal/integrity"
	"github.com/llm-observatory/observatory/internal/model"
)

// InsertResult persists a validated execution result. The full result
// document is stored as JSONB; the verdict columns are extracted for
// listing without deserializing the document.
func (db *DB) InsertResult(ctx context.Context, result *execution.Result) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("storage: marshal result: %w", err)
	}

	validationErrors := result.ValidationErrors
	if validationErrors == nil {
		validationErrors = []string{}
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO execution_results
		 (id, execution_id, repo_name, valid, agent_span_count, total_artifacts, total_duration_ms, validation_errors, artifact_digest, document, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), result.ExecutionID, result.RepoSpan.RepoName, result.Valid,
		len(result.AgentSpans), result.TotalArtifacts, result.TotalDurationMs,
		validationErrors, integrity.ExecutionDigest(result), doc, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: insert result: %w", err)
	}
	return nil
}

// GetLatestResult retrieves the most recently persisted result for an
// execution. Returns ErrNotFound when no result has been recorded.
func (db *DB) GetLatestResult(ctx context.Context, executionID string) (*execution.Result, error) {
	var doc []byte
	err := db.pool.QueryRow(ctx,
		`SELECT document FROM execution_results
		 WHERE execution_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, executionID,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: get result: %w", err)
	}

	var result execution.Result
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("storage: unmarshal result: %w", err)
	}
	return &result, nil
}

// ListRecentVerdicts returns summaries of the most recently persisted
// results, ordered by created_at DESC.
func (db *DB) ListRecentVerdicts(ctx context.Context, limit int) ([]model.ResultSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT execution_id, repo_name, valid, agent_span_count, total_artifacts, total_duration_ms, validation_errors, created_at
		 FROM execution_results
		 ORDER BY created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list verdicts: %w", err)
	}
	defer rows.Close()

	summaries := []model.ResultSummary{}
	for rows.Next() {
		var s model.ResultSummary
		if err := rows.Scan(
			&s.ExecutionID, &s.RepoName, &s.Valid, &s.AgentSpanCount,
			&s.TotalArtifacts, &s.TotalDurationMs, &s.ValidationErrors, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan verdict: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
