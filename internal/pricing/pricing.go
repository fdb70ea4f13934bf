// Package pricing maps model names to per-token prices and computes
// API-equivalent cost estimates for usage entries.
package pricing

import (
	"strings"

	"github.com/howmuchclaude/claudeusage/internal/usage"
)

// ModelPricing holds per-million-token unit prices (USD) for the four
// token categories.
type ModelPricing struct {
	InputPerMillion      float64
	OutputPerMillion     float64
	CacheWritePerMillion float64
	CacheReadPerMillion  float64
}

const perMillion = 1_000_000

var (
	opusPricing = ModelPricing{
		InputPerMillion:      15.0,
		OutputPerMillion:     75.0,
		CacheWritePerMillion: 18.75,
		CacheReadPerMillion:  1.50,
	}
	sonnetPricing = ModelPricing{
		InputPerMillion:      3.0,
		OutputPerMillion:     15.0,
		CacheWritePerMillion: 3.75,
		CacheReadPerMillion:  0.30,
	}
	haikuPricing = ModelPricing{
		InputPerMillion:      0.80,
		OutputPerMillion:     4.0,
		CacheWritePerMillion: 1.0,
		CacheReadPerMillion:  0.08,
	}
)

// Lookup resolves a raw model name to its pricing tier by
// case-insensitive substring match. Unknown models bill at the sonnet
// tier.
func Lookup(model string) ModelPricing {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "opus"):
		return opusPricing
	case strings.Contains(lower, "haiku"):
		return haikuPricing
	default:
		return sonnetPricing
	}
}

// Calculator computes costs from the static pricing table. Pure
// arithmetic; no I/O, no failure modes.
type Calculator struct{}

func NewCalculator() Calculator { return Calculator{} }

// Cost returns the estimated USD cost of one entry. Negative token
// counts are clamped to zero before use.
func (Calculator) Cost(e usage.Entry) float64 {
	p := Lookup(e.Model)
	cost := float64(clamp(e.InputTokens)) * p.InputPerMillion / perMillion
	cost += float64(clamp(e.OutputTokens)) * p.OutputPerMillion / perMillion
	cost += float64(clamp(e.CacheCreationTokens)) * p.CacheWritePerMillion / perMillion
	cost += float64(clamp(e.CacheReadTokens)) * p.CacheReadPerMillion / perMillion
	return cost
}

// AddCost folds one entry into a period accumulator: clamped token
// counts, message count, estimated cost.
func (c Calculator) AddCost(stats *usage.PeriodStats, e usage.Entry) {
	stats.InputTokens += clamp(e.InputTokens)
	stats.OutputTokens += clamp(e.OutputTokens)
	stats.CacheReadTokens += clamp(e.CacheReadTokens)
	stats.CacheCreationTokens += clamp(e.CacheCreationTokens)
	stats.MessageCount++
	stats.EstimatedCostUSD += c.Cost(e)
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
