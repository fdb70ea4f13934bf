package pricing

import (
	"math"
	"testing"

	"github.com/howmuchclaude/claudeusage/internal/usage"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCostPerMillionInputTokens(t *testing.T) {
	calc := NewCalculator()

	cases := []struct {
		model string
		want  float64
	}{
		{"claude-sonnet-4-5-20250929", 3.00},
		{"claude-opus-4-5-20250929", 15.00},
		{"claude-haiku-3-5-20241022", 0.80},
		{"totally-unknown-model", 3.00}, // sonnet tier is the default
	}

	for _, tc := range cases {
		e := usage.Entry{Model: tc.model, InputTokens: 1_000_000}
		if got := calc.Cost(e); !approx(got, tc.want) {
			t.Errorf("Cost(%s, 1M input) = %v, want %v", tc.model, got, tc.want)
		}
	}
}

func TestCostSumsAllCategories(t *testing.T) {
	calc := NewCalculator()
	e := usage.Entry{
		Model:               "claude-sonnet-4-5",
		InputTokens:         1_000_000,
		OutputTokens:        1_000_000,
		CacheCreationTokens: 1_000_000,
		CacheReadTokens:     1_000_000,
	}
	// 3.00 + 15.00 + 3.75 + 0.30
	if got := calc.Cost(e); !approx(got, 22.05) {
		t.Errorf("Cost = %v, want 22.05", got)
	}
}

func TestCostClampsNegativeTokens(t *testing.T) {
	calc := NewCalculator()
	e := usage.Entry{Model: "claude-opus-4-5", InputTokens: -500, OutputTokens: 1_000_000}
	if got := calc.Cost(e); !approx(got, 75.00) {
		t.Errorf("Cost = %v, want 75.00 (negative input clamped)", got)
	}
}

func TestAddCostAccumulates(t *testing.T) {
	calc := NewCalculator()
	var stats usage.PeriodStats

	e := usage.Entry{Model: "claude-sonnet-4-5", InputTokens: 1000, OutputTokens: 200, CacheReadTokens: -5}
	calc.AddCost(&stats, e)
	calc.AddCost(&stats, e)

	if stats.InputTokens != 2000 || stats.OutputTokens != 400 {
		t.Errorf("token totals = %+v", stats)
	}
	if stats.CacheReadTokens != 0 {
		t.Errorf("negative cache reads not clamped: %d", stats.CacheReadTokens)
	}
	if stats.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", stats.MessageCount)
	}
	if !approx(stats.EstimatedCostUSD, 2*calc.Cost(e)) {
		t.Errorf("EstimatedCostUSD = %v", stats.EstimatedCostUSD)
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	if Lookup("Claude-OPUS-4") != opusPricing {
		t.Error("expected opus tier for mixed-case model name")
	}
}
