// Package ledger records per-request usage in SQLite so cost and token
// consumption can be audited after the fact. It journals requests only;
// circuit breaker and budget state are deliberately never persisted.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bkyoung/llmclient/llm"
)

// Entry is one recorded request.
type Entry struct {
	ID               string
	Provider         llm.ProviderID
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	LatencyMs        int64
	CreatedAt        time.Time
}

// ProviderTotals aggregates usage for one provider.
type ProviderTotals struct {
	Provider    llm.ProviderID
	Requests    int
	TotalTokens int
	CostUSD     float64
}

// Store implements the usage ledger backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a ledger store at the given path.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
	-- One row per completed generation request
	CREATE TABLE IF NOT EXISTS requests (
		request_id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		total_tokens INTEGER NOT NULL,
		cost_usd REAL DEFAULT 0.0,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_provider ON requests(provider);
	CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Record inserts an entry. A missing ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
			(request_id, provider, model, prompt_tokens, completion_tokens,
			 total_tokens, cost_usd, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Provider), e.Model, e.PromptTokens, e.CompletionTokens,
		e.TotalTokens, e.CostUSD, e.LatencyMs, e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// RecordResponse journals a provider response.
func (s *Store) RecordResponse(ctx context.Context, resp *llm.Response) error {
	return s.Record(ctx, Entry{
		Provider:         resp.Provider,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostUSD:          resp.CostUSD,
		LatencyMs:        resp.Latency.Milliseconds(),
	})
}

// Totals aggregates recorded usage per provider.
func (s *Store) Totals(ctx context.Context) ([]ProviderTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM requests
		GROUP BY provider
		ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []ProviderTotals
	for rows.Next() {
		var t ProviderTotals
		var provider string
		if err := rows.Scan(&provider, &t.Requests, &t.TotalTokens, &t.CostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		t.Provider = llm.ProviderID(provider)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TotalsSince aggregates usage recorded at or after the given time.
func (s *Store) TotalsSince(ctx context.Context, since time.Time) ([]ProviderTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM requests
		WHERE created_at >= ?
		GROUP BY provider
		ORDER BY provider`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []ProviderTotals
	for rows.Next() {
		var t ProviderTotals
		var provider string
		if err := rows.Scan(&provider, &t.Requests, &t.TotalTokens, &t.CostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		t.Provider = llm.ProviderID(provider)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
