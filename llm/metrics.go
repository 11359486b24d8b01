package llm

import (
	"sync"
	"time"
)

// Stats contains aggregate statistics for client requests.
type Stats struct {
	TotalRequests  int
	TotalTokensIn  int
	TotalTokensOut int
	TotalCost      float64
	TotalDuration  time.Duration
	ErrorCount     int
	ByProvider     map[ProviderID]ProviderStats
}

// ProviderStats contains per-provider statistics.
type ProviderStats struct {
	Requests  int
	TokensIn  int
	TokensOut int
	Cost      float64
	Duration  time.Duration
	Errors    int
}

// Collector provides in-memory metrics tracking. OnRequest, OnCost,
// RecordTokens and RecordError match the orchestrator's callback signatures
// so a Collector can be plugged directly into a service configuration.
type Collector struct {
	mu    sync.RWMutex
	stats Stats
}

// NewCollector creates a metrics collector.
func NewCollector() *Collector {
	return &Collector{
		stats: Stats{
			ByProvider: make(map[ProviderID]ProviderStats),
		},
	}
}

// OnRequest records a completed request and its duration.
func (c *Collector) OnRequest(provider ProviderID, model string, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalRequests++
	c.stats.TotalDuration += elapsed

	ps := c.stats.ByProvider[provider]
	ps.Requests++
	ps.Duration += elapsed
	c.stats.ByProvider[provider] = ps
}

// OnCost records the cost of a completed request.
func (c *Collector) OnCost(cost float64, model string, provider ProviderID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalCost += cost

	ps := c.stats.ByProvider[provider]
	ps.Cost += cost
	c.stats.ByProvider[provider] = ps
}

// RecordTokens records token usage.
func (c *Collector) RecordTokens(provider ProviderID, tokensIn, tokensOut int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalTokensIn += tokensIn
	c.stats.TotalTokensOut += tokensOut

	ps := c.stats.ByProvider[provider]
	ps.TokensIn += tokensIn
	ps.TokensOut += tokensOut
	c.stats.ByProvider[provider] = ps
}

// RecordError records a failed request.
func (c *Collector) RecordError(provider ProviderID, kind ErrorKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.ErrorCount++

	ps := c.stats.ByProvider[provider]
	ps.Errors++
	c.stats.ByProvider[provider] = ps
}

// Stats returns a copy of current statistics.
func (c *Collector) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statsCopy := c.stats
	statsCopy.ByProvider = make(map[ProviderID]ProviderStats, len(c.stats.ByProvider))
	for k, v := range c.stats.ByProvider {
		statsCopy.ByProvider[k] = v
	}
	return statsCopy
}
