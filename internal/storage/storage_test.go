package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-observatory/observatory/internal/execution"
	"github.com/llm-observatory/observatory/internal/storage"
	"github.com/llm-observatory/observatory/internal/testutil"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}

	code := m.Run()
	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func buildSpan(t *testing.T, b *execution.Builder) *execution.Span {
	t.Helper()
	span, err := b.Build()
	require.NoError(t, err)
	return span
}

func makeResult(t *testing.T, executionID string) *execution.Result {
	t.Helper()
	repoSpan := buildSpan(t, execution.NewSpan().
		SpanID("repo-"+executionID).
		ExecutionID(executionID).
		ParentSpanID("caller-1").
		Kind(execution.SpanKindRepo).
		RepoName("observatory"))
	agentSpan := buildSpan(t, execution.NewSpan().
		ExecutionID(executionID).
		ParentSpanID(repoSpan.SpanID).
		Kind(execution.SpanKindAgent).
		RepoName("observatory").
		AgentName("planner"))
	return execution.NewResult(*repoSpan, []execution.Span{*agentSpan}).Validate()
}

func TestInsertAndGetLatestResult(t *testing.T) {
	ctx := context.Background()

	want := makeResult(t, "exec-insert-1")
	require.True(t, want.Valid)
	require.NoError(t, testDB.InsertResult(ctx, want))

	got, err := testDB.GetLatestResult(ctx, "exec-insert-1")
	require.NoError(t, err)
	assert.Equal(t, want.ExecutionID, got.ExecutionID)
	assert.Equal(t, want.Valid, got.Valid)
	assert.Equal(t, want.RepoSpan.SpanID, got.RepoSpan.SpanID)
	require.Len(t, got.AgentSpans, 1)
	assert.Equal(t, want.AgentSpans[0].SpanID, got.AgentSpans[0].SpanID)
}

func TestGetLatestResult_NotFound(t *testing.T) {
	_, err := testDB.GetLatestResult(context.Background(), "exec-nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetLatestResult_PicksNewest(t *testing.T) {
	ctx := context.Background()

	// Two results for the same execution: first invalid, then a valid resubmission.
	repoSpan := buildSpan(t, execution.NewSpan().
		SpanID("repo-resubmit").
		ExecutionID("exec-resubmit").
		ParentSpanID("caller-1").
		Kind(execution.SpanKindRepo).
		RepoName("observatory"))
	invalid := execution.NewResult(*repoSpan, nil).Validate()
	require.False(t, invalid.Valid)
	require.NoError(t, testDB.InsertResult(ctx, invalid))

	valid := makeResult(t, "exec-resubmit")
	require.NoError(t, testDB.InsertResult(ctx, valid))

	got, err := testDB.GetLatestResult(ctx, "exec-resubmit")
	require.NoError(t, err)
	assert.True(t, got.Valid)
}

func TestListRecentVerdicts(t *testing.T) {
	ctx := context.Background()

	invalidRepo := buildSpan(t, execution.NewSpan().
		SpanID("repo-recent-bad").
		ExecutionID("exec-recent-bad").
		ParentSpanID("caller-1").
		Kind(execution.SpanKindRepo).
		RepoName("observatory"))
	require.NoError(t, testDB.InsertResult(ctx, execution.NewResult(*invalidRepo, nil).Validate()))
	require.NoError(t, testDB.InsertResult(ctx, makeResult(t, "exec-recent-good")))

	verdicts, err := testDB.ListRecentVerdicts(ctx, 100)
	require.NoError(t, err)

	byID := map[string]bool{}
	for _, v := range verdicts {
		byID[v.ExecutionID] = v.Valid
		assert.Equal(t, "observatory", v.RepoName)
		assert.NotNil(t, v.ValidationErrors)
	}
	valid, ok := byID["exec-recent-good"]
	require.True(t, ok)
	assert.True(t, valid)
	valid, ok = byID["exec-recent-bad"]
	require.True(t, ok)
	assert.False(t, valid)
}
