package execution_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-observatory/observatory/internal/execution"
)

func TestCollector_ConcurrentAdds(t *testing.T) {
	repo := makeRepoSpan(t, "caller-span-1")
	collector := execution.NewCollector()

	const agents = 16
	var wg sync.WaitGroup
	for i := range agents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			span, err := execution.NewSpan().
				ExecutionID("exec-1").
				ParentSpanID(repo.SpanID).
				Kind(execution.SpanKindAgent).
				RepoName("observatory").
				AgentName(fmt.Sprintf("agent-%d", i)).
				Build()
			if err != nil {
				t.Error(err)
				return
			}
			span.Complete()
			collector.Add(*span)
		}()
	}
	wg.Wait()

	require.Equal(t, agents, collector.Len())

	repo.Complete()
	result := collector.Finish(*repo)
	assert.True(t, result.Valid)
	assert.Len(t, result.AgentSpans, agents)
}

func TestCollector_SpansReturnsCopy(t *testing.T) {
	repo := makeRepoSpan(t, "caller-span-1")
	agent := makeAgentSpan(t, repo.SpanID)

	collector := execution.NewCollector()
	collector.Add(*agent)

	spans := collector.Spans()
	spans[0].SpanID = "mutated"

	assert.Equal(t, agent.SpanID, collector.Spans()[0].SpanID)
}

func TestCollector_FinishWithNoAgents(t *testing.T) {
	repo := makeRepoSpan(t, "caller-span-1")
	result := execution.NewCollector().Finish(*repo)

	assert.False(t, result.Valid)
	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "No agent spans")
}
