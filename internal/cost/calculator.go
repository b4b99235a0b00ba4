// Package cost estimates what each generation call costs. The streaming API
// reports no token usage, so token counts are approximated from text length;
// the estimate feeds the daily budget monitor and usage events.
package cost

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"
)

type ModelPricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

var defaultPricing = map[string]ModelPricing{
	"anthropic.claude-3-haiku-20240307-v1:0":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},
	"anthropic.claude-3-sonnet-20240229-v1:0":   {InputPer1K: 0.003, OutputPer1K: 0.015},
	"anthropic.claude-3-5-haiku-20241022-v1:0":  {InputPer1K: 0.001, OutputPer1K: 0.005},
	"anthropic.claude-3-5-sonnet-20241022-v2:0": {InputPer1K: 0.003, OutputPer1K: 0.015},
}

type Calculator struct {
	pricing map[string]ModelPricing
}

func NewCalculator() *Calculator {
	return &Calculator{pricing: defaultPricing}
}

// EstimateTokens approximates the token count of a text. Four characters per
// token is the usual rule of thumb for English-like text.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Calculate returns the estimated USD cost of one generation. Unknown models
// (local backends) cost zero.
func (c *Calculator) Calculate(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := c.pricing[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1000 * pricing.InputPer1K
	outputCost := float64(outputTokens) / 1000 * pricing.OutputPer1K

	return inputCost + outputCost
}

func (c *Calculator) SetPricing(model string, pricing ModelPricing) {
	c.pricing[model] = pricing
}

// UsageRecord captures one generation for budget accounting.
type UsageRecord struct {
	RequestID   string
	ProductCode string
	Model       string
	Provider    string
	CostUSD     float64
	Cached      bool
	LatencyMs   int64
	Timestamp   time.Time
}

// Tracker accumulates usage records and answers total-cost queries.
type Tracker interface {
	Record(ctx context.Context, record UsageRecord) error
	TotalCost(ctx context.Context, since time.Time) (float64, error)
}

type InMemoryTracker struct {
	mu      sync.RWMutex
	records []UsageRecord
}

func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{}
}

func (t *InMemoryTracker) Record(ctx context.Context, record UsageRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, record)
	return nil
}

func (t *InMemoryTracker) TotalCost(ctx context.Context, since time.Time) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total float64
	for _, r := range t.records {
		if r.Timestamp.Before(since) {
			continue
		}
		total += r.CostUSD
	}
	return total, nil
}
