package stats

import (
	"time"

	"github.com/samber/lo"

	"github.com/howmuchclaude/claudeusage/internal/pricing"
	"github.com/howmuchclaude/claudeusage/internal/quota"
	"github.com/howmuchclaude/claudeusage/internal/usage"
)

// futureSkew is how far past "now" an entry timestamp may point before
// it is clamped. Defends the windows against clock-skewed records.
const futureSkew = 60 * time.Second

// Aggregator folds deduplicated entries into a windowed snapshot. It is
// a pure function of its inputs: safe to re-run on every refresh, no
// state carried across calls.
type Aggregator struct {
	calc pricing.Calculator
}

func NewAggregator() Aggregator {
	return Aggregator{calc: pricing.NewCalculator()}
}

type windowBucket struct {
	start    time.Time
	stats    usage.PeriodStats
	sessions map[string]struct{}
}

func newWindowBucket(start time.Time) *windowBucket {
	return &windowBucket{start: start, sessions: make(map[string]struct{})}
}

func (b *windowBucket) add(calc pricing.Calculator, e usage.Entry) {
	calc.AddCost(&b.stats, e)
	b.sessions[e.SessionID] = struct{}{}
}

func (b *windowBucket) finish() usage.PeriodStats {
	b.stats.SessionCount = len(b.sessions)
	return b.stats
}

// Aggregate computes the full snapshot for the given entries relative
// to now. Quotas are left empty; the orchestrator merges them at
// publish time. Empty input yields the empty snapshot.
func (a Aggregator) Aggregate(entries []usage.Entry, now time.Time) usage.Stats {
	if len(entries) == 0 {
		return usage.EmptyStats()
	}

	year, month, day := now.Date()
	startOfToday := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	var (
		today     = newWindowBucket(startOfToday)
		thisHour  = newWindowBucket(now.Add(-time.Hour))
		last5h    = newWindowBucket(now.Add(-5 * time.Hour))
		last24h   = newWindowBucket(now.Add(-24 * time.Hour))
		thisWeek  = newWindowBucket(startOfWeek(now))
		thisMonth = newWindowBucket(time.Date(year, month, 1, 0, 0, 0, 0, now.Location()))
	)
	windows := []*windowBucket{today, thisHour, last5h, last24h, thisWeek, thisMonth}

	allTime := newWindowBucket(time.Time{})
	byModel := make(map[string]*windowBucket)

	futureThreshold := now.Add(futureSkew)

	for _, e := range entries {
		ts := e.Timestamp
		if ts.After(futureThreshold) {
			ts = futureThreshold
		}

		allTime.add(a.calc, e)

		for _, w := range windows {
			if !ts.Before(w.start) {
				w.add(a.calc, e)
			}
		}

		modelKey := e.ModelShortName()
		bucket, ok := byModel[modelKey]
		if !ok {
			bucket = newWindowBucket(time.Time{})
			byModel[modelKey] = bucket
		}
		bucket.add(a.calc, e)
	}

	modelStats := make(map[string]usage.PeriodStats, len(byModel))
	for key, bucket := range byModel {
		modelStats[key] = bucket.finish()
	}

	return usage.Stats{
		Today:          today.finish(),
		ThisHour:       thisHour.finish(),
		Last5h:         last5h.finish(),
		Last24h:        last24h.finish(),
		ThisWeek:       thisWeek.finish(),
		ThisMonth:      thisMonth.finish(),
		AllTime:        allTime.finish(),
		CurrentSession: a.currentSession(entries),
		ByModel:        modelStats,
		Quotas:         quota.Empty(),
	}
}

// currentSession summarizes the session containing the chronologically
// latest entry.
func (a Aggregator) currentSession(entries []usage.Entry) *usage.SessionStats {
	if len(entries) == 0 {
		return nil
	}

	latest := lo.MaxBy(entries, func(a, b usage.Entry) bool {
		return a.Timestamp.After(b.Timestamp)
	})

	sessionEntries := lo.Filter(entries, func(e usage.Entry, _ int) bool {
		return e.SessionID == latest.SessionID
	})
	if len(sessionEntries) == 0 {
		return nil
	}

	earliest := lo.MinBy(sessionEntries, func(a, b usage.Entry) bool {
		return a.Timestamp.Before(b.Timestamp)
	})

	totalTokens := 0
	totalCost := 0.0
	for _, e := range sessionEntries {
		totalTokens += e.TotalTokens()
		totalCost += a.calc.Cost(e)
	}

	return &usage.SessionStats{
		SessionID:        latest.SessionID,
		StartTime:        earliest.Timestamp,
		Duration:         latest.Timestamp.Sub(earliest.Timestamp),
		TotalTokens:      totalTokens,
		EstimatedCostUSD: totalCost,
		Model:            latest.ModelShortName(),
		MessageCount:     len(sessionEntries),
	}
}

// startOfWeek returns midnight of the Monday beginning the ISO week
// containing now.
func startOfWeek(now time.Time) time.Time {
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	weekday := int(now.Weekday())
	daysSinceMonday := (weekday + 6) % 7
	return midnight.AddDate(0, 0, -daysSinceMonday)
}
