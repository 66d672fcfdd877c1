package monitor

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"huddle/pkg/event"
)

// TrackerSource is the narrow contract a backlog tracker adapter
// implements: a point-in-time snapshot of tracked items keyed by item
// key, sufficient for diffing.
type TrackerSource interface {
	FetchItems(ctx context.Context) (map[string]event.Item, error)
}

// TrackerMonitor polls a TrackerSource, diffs each snapshot against the
// previous one, and emits a single backlog_change event per poll cycle
// carrying every change record found in that cycle.
type TrackerMonitor struct {
	runner

	source   TrackerSource
	queue    *event.Queue
	recorder Recorder
	timeout  time.Duration

	// watchPath, when set, is watched with fsnotify to trigger an
	// immediate poll on file change. The ticker remains the safety net.
	watchPath string
	wake      chan struct{}
	watcher   *fsnotify.Watcher

	// known is the last snapshot, replaced wholesale each cycle. primed
	// is false until the first successful fetch; the priming fetch only
	// seeds the snapshot and emits nothing.
	known  map[string]event.Item
	primed bool
}

// TrackerOption customizes a TrackerMonitor.
type TrackerOption func(*TrackerMonitor)

// WithWatchPath enables an fsnotify watch on path so file changes
// trigger an immediate poll instead of waiting out the interval.
func WithWatchPath(path string) TrackerOption {
	return func(m *TrackerMonitor) { m.watchPath = path }
}

// WithTrackerRecorder routes operational conditions to rec.
func WithTrackerRecorder(rec Recorder) TrackerOption {
	return func(m *TrackerMonitor) {
		if rec != nil {
			m.recorder = rec
		}
	}
}

// NewTrackerMonitor creates a tracker monitor polling source every
// interval and pushing events into queue.
func NewTrackerMonitor(source TrackerSource, queue *event.Queue, interval, fetchTimeout time.Duration, opts ...TrackerOption) *TrackerMonitor {
	m := &TrackerMonitor{
		runner:   newRunner("tracker", interval),
		source:   source,
		queue:    queue,
		recorder: nopRecorder{},
		timeout:  fetchTimeout,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins polling. If a watch path is configured the monitor also
// reacts to file change notifications; watcher setup failure degrades
// silently to interval-only polling.
func (m *TrackerMonitor) Start(ctx context.Context) {
	if m.watchPath != "" {
		if watcher, err := fsnotify.NewWatcher(); err == nil {
			if err := watcher.Add(m.watchPath); err == nil {
				m.watcher = watcher
				go m.forwardWatchEvents(ctx, watcher)
			} else {
				_ = watcher.Close()
			}
		}
	}
	m.start(ctx, m.pollOnce, m.wake)
}

// Stop halts the loop and releases the watcher.
func (m *TrackerMonitor) Stop() {
	m.runner.Stop()
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
}

// forwardWatchEvents coalesces fsnotify events into wake pulses.
func (m *TrackerMonitor) forwardWatchEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case _, ok := <-watcher.Events:
			if !ok {
				return
			}
			select {
			case m.wake <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				m.recorder.Record(ctx, "watcher_error", m.name, err.Error())
			}
		}
	}
}

// pollOnce runs one fetch-diff-emit-replace cycle. Fetch errors are
// recorded and the previous snapshot is kept untouched; a failed poll
// never emits a partial event and never stops the loop.
func (m *TrackerMonitor) pollOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	items, err := m.source.FetchItems(fetchCtx)
	if err != nil {
		m.recorder.Record(ctx, "fetch_error", m.name, err.Error())
		return
	}

	if !m.primed {
		m.known = items
		m.primed = true
		return
	}

	changes := Diff(m.known, items)
	m.known = items

	if len(changes) == 0 {
		return
	}

	ev := event.New(event.TypeBacklogChange, m.name, map[string]any{"changes": changes})
	if !m.queue.Add(ev, event.DefaultPriority(ev.Type)) {
		m.recorder.Record(ctx, "queue_full", m.name, "dropped backlog_change event")
	}
}

// Diff computes the change records between two snapshots of the same
// keyed collection. Keys only in newItems are added; keys only in old
// are removed; keys in both contribute one record per differing field
// (status, assignee). Record order is unspecified.
func Diff(old, newItems map[string]event.Item) []event.ChangeRecord {
	var out []event.ChangeRecord

	for key, item := range newItems {
		prev, ok := old[key]
		if !ok {
			out = append(out, event.ChangeRecord{
				Kind:      event.ChangeAdded,
				ItemKey:   key,
				ItemTitle: item.Title,
				NewValue:  item.Status,
			})
			continue
		}
		if prev.Status != item.Status {
			out = append(out, event.ChangeRecord{
				Kind:      event.ChangeStatusChanged,
				ItemKey:   key,
				ItemTitle: item.Title,
				OldValue:  prev.Status,
				NewValue:  item.Status,
			})
		}
		if prev.Assignee != item.Assignee {
			out = append(out, event.ChangeRecord{
				Kind:      event.ChangeAssigneeChanged,
				ItemKey:   key,
				ItemTitle: item.Title,
				OldValue:  prev.Assignee,
				NewValue:  item.Assignee,
			})
		}
	}

	for key, item := range old {
		if _, ok := newItems[key]; !ok {
			out = append(out, event.ChangeRecord{
				Kind:      event.ChangeRemoved,
				ItemKey:   key,
				ItemTitle: item.Title,
				OldValue:  item.Status,
			})
		}
	}

	return out
}
