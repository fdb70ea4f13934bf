// Package watcher turns OS filesystem notifications into debounced
// batches of created/modified log file events.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits after the last
// notification before delivering a batch.
const DefaultDebounce = 300 * time.Millisecond

type Op int

const (
	OpCreated Op = iota
	OpModified
)

func (o Op) String() string {
	if o == OpCreated {
		return "created"
	}
	return "modified"
}

// Event is one coalesced change to a log file.
type Event struct {
	Path string
	Op   Op
}

// Watcher subscribes to change notifications for a directory set and
// emits deduplicated event batches on a channel. Batches are delivered
// from a single goroutine, at most one entry per path per batch.
type Watcher struct {
	debounce time.Duration
	log      zerolog.Logger
	events   chan []Event

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	known   map[string]struct{}
	pending map[string]Event
	timer   *time.Timer
	done    chan struct{}
}

func New(debounce time.Duration, log zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce: debounce,
		log:      log,
		events:   make(chan []Event, 16),
	}
}

// Events is the batch delivery channel. Consume it from one goroutine.
func (w *Watcher) Events() <-chan []Event {
	return w.events
}

// Start establishes one notification stream per directory, replacing
// any prior subscription. Existing log files are cataloged as known so
// later writes to them classify as modifications, not creations.
func (w *Watcher) Start(dirs []string) error {
	w.Stop()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.known = make(map[string]struct{})
	w.pending = make(map[string]Event)
	w.done = make(chan struct{})
	done := w.done

	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if entry.IsDir() {
				_ = fsw.Add(path)
				return nil
			}
			if isLogFile(path) {
				w.known[path] = struct{}{}
			}
			return nil
		})
	}
	w.mu.Unlock()

	go w.loop(fsw, done)

	w.log.Info().Int("dirs", len(dirs)).Msg("watching for log changes")
	return nil
}

// Stop tears down all streams and clears internal state. Safe to call
// repeatedly and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		_ = w.fsw.Close()
		w.fsw = nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	w.known = nil
	w.pending = nil
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		case <-done:
			return
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	// New directories join the watch so nested session files are seen.
	if event.Op&fsnotify.Create != 0 && !isLogFile(event.Name) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = fsw.Add(event.Name)
			return
		}
	}

	if !isLogFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return // stopped
	}

	_, knownFile := w.known[event.Name]
	var op Op
	if !knownFile {
		op = OpCreated
		w.known[event.Name] = struct{}{}
	} else {
		if event.Op&fsnotify.Write == 0 && event.Op&fsnotify.Create == 0 {
			return
		}
		op = OpModified
	}

	// Last event per path wins; the batch carries one entry per path.
	w.pending[event.Name] = Event{Path: event.Name, Op: op}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(w.pending))
	for _, e := range w.pending {
		batch = append(batch, e)
	}
	w.pending = make(map[string]Event)
	w.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case w.events <- batch:
		w.log.Debug().Int("events", len(batch)).Msg("dispatching file events")
	default:
		w.log.Warn().Int("events", len(batch)).Msg("event channel full, dropping batch")
	}
}

func isLogFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}
