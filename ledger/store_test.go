package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/llmclient/ledger"
	"github.com/bkyoung/llmclient/llm"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	s, err := ledger.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndTotals(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, ledger.Entry{
		Provider:         llm.ProviderOpenAI,
		Model:            "gpt-4o",
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
		CostUSD:          0.00075,
		LatencyMs:        420,
	}))
	require.NoError(t, s.Record(ctx, ledger.Entry{
		Provider:    llm.ProviderOpenAI,
		Model:       "gpt-4o",
		TotalTokens: 50,
		CostUSD:     0.00025,
		LatencyMs:   380,
	}))
	require.NoError(t, s.Record(ctx, ledger.Entry{
		Provider:    llm.ProviderAnthropic,
		Model:       "claude-sonnet-4-5",
		TotalTokens: 300,
		CostUSD:     0.003,
		LatencyMs:   900,
	}))

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	// Ordered by provider name.
	assert.Equal(t, llm.ProviderAnthropic, totals[0].Provider)
	assert.Equal(t, 1, totals[0].Requests)
	assert.Equal(t, 300, totals[0].TotalTokens)

	assert.Equal(t, llm.ProviderOpenAI, totals[1].Provider)
	assert.Equal(t, 2, totals[1].Requests)
	assert.Equal(t, 200, totals[1].TotalTokens)
	assert.InDelta(t, 0.001, totals[1].CostUSD, 0.000001)
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, ledger.Entry{
		Provider: llm.ProviderOpenAI,
		Model:    "gpt-4o",
	}))
	require.NoError(t, s.Record(ctx, ledger.Entry{
		Provider: llm.ProviderOpenAI,
		Model:    "gpt-4o",
	}))

	// Generated IDs must be unique: both inserts succeeded against the
	// primary key.
	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 2, totals[0].Requests)
}

func TestRecordRejectsDuplicateID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entry := ledger.Entry{
		ID:       "fixed-id",
		Provider: llm.ProviderOpenAI,
		Model:    "gpt-4o",
	}
	require.NoError(t, s.Record(ctx, entry))
	assert.Error(t, s.Record(ctx, entry))
}

func TestRecordResponse(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	resp := &llm.Response{
		Provider: llm.ProviderGemini,
		Model:    "gemini-2.0-flash",
		Usage: llm.Usage{
			PromptTokens:     20,
			CompletionTokens: 10,
			TotalTokens:      30,
		},
		CostUSD: 0.0001,
		Latency: 250 * time.Millisecond,
	}
	require.NoError(t, s.RecordResponse(ctx, resp))

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, llm.ProviderGemini, totals[0].Provider)
	assert.Equal(t, 30, totals[0].TotalTokens)
}

func TestTotalsSince(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, s.Record(ctx, ledger.Entry{
		Provider:    llm.ProviderOpenAI,
		Model:       "gpt-4o",
		TotalTokens: 100,
		CreatedAt:   old,
	}))
	require.NoError(t, s.Record(ctx, ledger.Entry{
		Provider:    llm.ProviderOpenAI,
		Model:       "gpt-4o",
		TotalTokens: 50,
	}))

	totals, err := s.TotalsSince(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 1, totals[0].Requests)
	assert.Equal(t, 50, totals[0].TotalTokens)
}

func TestTotalsEmptyLedger(t *testing.T) {
	s := openStore(t)

	totals, err := s.Totals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, totals)
}
