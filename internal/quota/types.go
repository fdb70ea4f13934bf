package quota

import (
	"math"
	"time"
)

// ParsedQuota is one remote rate-limit window: percent of quota
// consumed (0-100) and the instant it resets, when reported.
type ParsedQuota struct {
	Utilization float64    `json:"utilization"`
	ResetsAt    *time.Time `json:"resets_at,omitempty"`
}

func (q ParsedQuota) PercentUsed() float64 { return q.Utilization }

func (q ParsedQuota) PercentRemaining() float64 {
	return math.Max(0, 100-q.Utilization)
}

// Quotas is the parsed result of one usage-API fetch. The zero-ish
// Empty value stands in whenever a fetch fails or credentials are
// missing: no windows, distant-past fetch time.
type Quotas struct {
	FiveHour         *ParsedQuota `json:"five_hour,omitempty"`
	SevenDay         *ParsedQuota `json:"seven_day,omitempty"`
	SevenDayOpus     *ParsedQuota `json:"seven_day_opus,omitempty"`
	SevenDaySonnet   *ParsedQuota `json:"seven_day_sonnet,omitempty"`
	SubscriptionType string       `json:"subscription_type,omitempty"`
	FetchedAt        time.Time    `json:"fetched_at"`
}

func Empty() Quotas {
	return Quotas{FetchedAt: time.Unix(0, 0).UTC()}
}

// IsValid reports whether at least one primary window carries data.
func (q Quotas) IsValid() bool {
	return q.FiveHour != nil || q.SevenDay != nil
}
