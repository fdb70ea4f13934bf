// Package stats aggregates usage entries into windowed snapshots and
// coordinates the discover → read → parse → dedup → aggregate → quota
// → publish cycle.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/howmuchclaude/claudeusage/internal/discovery"
	"github.com/howmuchclaude/claudeusage/internal/history"
	"github.com/howmuchclaude/claudeusage/internal/pricing"
	"github.com/howmuchclaude/claudeusage/internal/quota"
	"github.com/howmuchclaude/claudeusage/internal/reader"
	"github.com/howmuchclaude/claudeusage/internal/usage"
)

// QuotaFetcher is what the manager needs from the quota client.
type QuotaFetcher interface {
	FetchQuotas(ctx context.Context) quota.Quotas
}

// Manager owns the authoritative snapshot and enforces the single
// in-flight cycle invariant: a second load or refresh while one runs is
// a silent no-op, never queued. The published snapshot is replaced
// atomically; readers always see either the previous or the next
// complete snapshot, never a partial one.
type Manager struct {
	disc    discovery.Discovery
	reader  *reader.IncrementalReader
	dedup   *usage.DedupStore
	agg     Aggregator
	calc    pricing.Calculator
	quotas  QuotaFetcher
	history *history.Store
	log     zerolog.Logger
	now     func() time.Time

	mu          sync.Mutex
	loading     bool
	initialDone bool
	cancel      context.CancelFunc
	done        chan struct{}
	entries     []usage.Entry

	snapMu     sync.RWMutex
	snapshot   usage.Stats
	lastUpdate time.Time
	lastErr    string
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	History *history.Store
}

func NewManager(disc discovery.Discovery, quotas QuotaFetcher, log zerolog.Logger, opts Options) *Manager {
	return &Manager{
		disc:     disc,
		reader:   reader.New(log),
		dedup:    usage.NewDedupStore(),
		agg:      NewAggregator(),
		calc:     pricing.NewCalculator(),
		quotas:   quotas,
		history:  opts.History,
		log:      log,
		now:      time.Now,
		snapshot: usage.EmptyStats(),
	}
}

// Snapshot returns the current aggregated snapshot.
func (m *Manager) Snapshot() usage.Stats {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapshot
}

func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

func (m *Manager) LastUpdate() time.Time {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.lastUpdate
}

func (m *Manager) LastError() string {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.lastErr
}

// PerformInitialLoad runs one full cycle over the complete content of
// every discovered log file. No-op when a cycle is already running.
func (m *Manager) PerformInitialLoad(ctx context.Context) {
	m.runCycle(ctx, true)
}

// Refresh runs one incremental cycle: only bytes appended since the
// previous cycle are read. No-op until the initial load has completed,
// and while any cycle is running.
func (m *Manager) Refresh(ctx context.Context) {
	m.runCycle(ctx, false)
}

// Reload cancels any in-flight cycle, discards all accumulated state
// (offsets, dedup set, entries) and restarts the initial load. The
// previously published snapshot stays visible until the new cycle
// publishes.
func (m *Manager) Reload(ctx context.Context) {
	m.log.Info().Msg("full reload requested")

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	done := m.done
	m.initialDone = false
	m.mu.Unlock()

	if done != nil {
		<-done
	}

	m.reader.ResetAllOffsets()
	m.dedup.Reset()

	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()

	m.PerformInitialLoad(ctx)
}

func (m *Manager) runCycle(ctx context.Context, initial bool) {
	m.mu.Lock()
	if m.loading || (!initial && !m.initialDone) {
		m.mu.Unlock()
		return
	}
	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.loading = true
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	completed := m.cycle(cctx, initial)

	m.mu.Lock()
	m.loading = false
	m.cancel = nil
	m.done = nil
	if completed && initial {
		m.initialDone = true
	}
	m.mu.Unlock()

	cancel()
	close(done)
}

// cycle is one discover→read→parse→dedup→aggregate→quota→publish pass.
// Cancellation is checked at each phase boundary so a superseding
// reload never races a stale publish.
func (m *Manager) cycle(ctx context.Context, initial bool) bool {
	started := m.now()

	files := m.disc.FindAllLogFiles()
	if ctx.Err() != nil {
		m.log.Debug().Msg("cycle cancelled after discovery")
		return false
	}

	var fresh []usage.Entry
	for _, file := range files {
		if ctx.Err() != nil {
			m.log.Debug().Msg("cycle cancelled during read")
			return false
		}
		lines := m.reader.ReadNewLines(file)
		if len(lines) == 0 {
			continue
		}
		fresh = append(fresh, usage.ParseLines(lines, m.now())...)
	}

	if ctx.Err() != nil {
		m.log.Debug().Msg("cycle cancelled after parse")
		return false
	}

	accepted := m.dedup.FilterNew(fresh)
	m.entries = append(m.entries, accepted...)

	m.recordHistory(ctx, accepted)

	aggregated := m.agg.Aggregate(m.entries, m.now())
	quotas := m.quotas.FetchQuotas(ctx)

	if ctx.Err() != nil {
		m.log.Debug().Msg("cycle cancelled before publish")
		return false
	}

	m.publish(aggregated.WithQuotas(quotas))

	m.log.Info().
		Bool("initial", initial).
		Int("files", len(files)).
		Int("new_entries", len(accepted)).
		Int("total_entries", len(m.entries)).
		Dur("took", m.now().Sub(started)).
		Msg("cycle complete")
	return true
}

func (m *Manager) publish(s usage.Stats) {
	m.snapMu.Lock()
	defer m.snapMu.Unlock()
	m.snapshot = s
	m.lastUpdate = m.now()
	m.lastErr = ""
}

func (m *Manager) recordHistory(ctx context.Context, accepted []usage.Entry) {
	if m.history == nil || len(accepted) == 0 {
		return
	}
	costs := make([]float64, len(accepted))
	for i, e := range accepted {
		costs[i] = m.calc.Cost(e)
	}
	if _, err := m.history.Ingest(ctx, accepted, costs); err != nil {
		m.log.Warn().Err(err).Msg("history ingest failed")
		m.snapMu.Lock()
		m.lastErr = err.Error()
		m.snapMu.Unlock()
	}
}
