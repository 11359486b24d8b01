package llm_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/llmclient/llm"
)

func TestCollectorRecordsRequests(t *testing.T) {
	c := llm.NewCollector()

	c.OnRequest(llm.ProviderOpenAI, "gpt-4o", 120*time.Millisecond)
	c.OnRequest(llm.ProviderOpenAI, "gpt-4o", 80*time.Millisecond)
	c.OnRequest(llm.ProviderAnthropic, "claude-haiku-4-5", 50*time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 250*time.Millisecond, stats.TotalDuration)
	assert.Equal(t, 2, stats.ByProvider[llm.ProviderOpenAI].Requests)
	assert.Equal(t, 1, stats.ByProvider[llm.ProviderAnthropic].Requests)
}

func TestCollectorRecordsCostAndTokens(t *testing.T) {
	c := llm.NewCollector()

	c.OnCost(0.01, "gpt-4o", llm.ProviderOpenAI)
	c.OnCost(0.02, "gpt-4o", llm.ProviderOpenAI)
	c.RecordTokens(llm.ProviderOpenAI, 100, 40)

	stats := c.Stats()
	assert.InDelta(t, 0.03, stats.TotalCost, 0.0001)
	assert.Equal(t, 100, stats.TotalTokensIn)
	assert.Equal(t, 40, stats.TotalTokensOut)
	assert.InDelta(t, 0.03, stats.ByProvider[llm.ProviderOpenAI].Cost, 0.0001)
}

func TestCollectorRecordsErrors(t *testing.T) {
	c := llm.NewCollector()

	c.RecordError(llm.ProviderGemini, llm.KindTimeout)
	c.RecordError(llm.ProviderGemini, llm.KindProvider)

	stats := c.Stats()
	assert.Equal(t, 2, stats.ErrorCount)
	assert.Equal(t, 2, stats.ByProvider[llm.ProviderGemini].Errors)
}

func TestCollectorStatsReturnsCopy(t *testing.T) {
	c := llm.NewCollector()
	c.OnRequest(llm.ProviderOpenAI, "gpt-4o", time.Millisecond)

	stats := c.Stats()
	stats.ByProvider[llm.ProviderOpenAI] = llm.ProviderStats{Requests: 99}

	require.Equal(t, 1, c.Stats().ByProvider[llm.ProviderOpenAI].Requests)
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := llm.NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.OnRequest(llm.ProviderOpenAI, "gpt-4o", time.Millisecond)
				c.OnCost(0.001, "gpt-4o", llm.ProviderOpenAI)
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, 1000, stats.TotalRequests)
	assert.InDelta(t, 1.0, stats.TotalCost, 0.0001)
}
