package usage

import (
	"time"

	"github.com/howmuchclaude/claudeusage/internal/quota"
)

// PeriodStats accumulates token counts, cost and message/session counts
// for one aggregation window. The zero value is the additive identity.
type PeriodStats struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	EstimatedCostUSD    float64 `json:"estimated_cost_usd"`
	MessageCount        int     `json:"message_count"`
	SessionCount        int     `json:"session_count"`
}

func (p PeriodStats) TotalTokens() int {
	return p.InputTokens + p.OutputTokens
}

// SessionStats summarizes the session containing the chronologically
// latest entry.
type SessionStats struct {
	SessionID        string        `json:"session_id"`
	StartTime        time.Time     `json:"start_time"`
	Duration         time.Duration `json:"duration"`
	TotalTokens      int           `json:"total_tokens"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	Model            string        `json:"model"`
	MessageCount     int           `json:"message_count"`
}

// Stats is one immutable aggregation snapshot. Each refresh produces a
// whole new value that atomically replaces the previous one; nothing
// mutates a published snapshot in place.
type Stats struct {
	Today          PeriodStats            `json:"today"`
	ThisHour       PeriodStats            `json:"this_hour"`
	Last5h         PeriodStats            `json:"last_5h"`
	Last24h        PeriodStats            `json:"last_24h"`
	ThisWeek       PeriodStats            `json:"this_week"`
	ThisMonth      PeriodStats            `json:"this_month"`
	AllTime        PeriodStats            `json:"all_time"`
	CurrentSession *SessionStats          `json:"current_session,omitempty"`
	ByModel        map[string]PeriodStats `json:"by_model"`
	Quotas         quota.Quotas           `json:"quotas"`
}

func EmptyStats() Stats {
	return Stats{
		ByModel: map[string]PeriodStats{},
		Quotas:  quota.Empty(),
	}
}

// WithQuotas returns a copy of the snapshot with the quota data swapped
// in. Used by the orchestrator to merge the quota fetch at publish time.
func (s Stats) WithQuotas(q quota.Quotas) Stats {
	s.Quotas = q
	return s
}
