package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"huddle/pkg/event"
)

// mockTracker serves canned snapshots, one per FetchItems call.
type mockTracker struct {
	mu        sync.Mutex
	snapshots []map[string]event.Item
	errs      []error
	calls     int
}

func (m *mockTracker) FetchItems(_ context.Context) (map[string]event.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.snapshots) {
		return m.snapshots[len(m.snapshots)-1], nil
	}
	return m.snapshots[i], nil
}

// recordingRecorder captures Record calls.
type recordingRecorder struct {
	mu      sync.Mutex
	records []string
}

func (r *recordingRecorder) Record(_ context.Context, typ, source, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, typ+"/"+source+": "+detail)
}

func (r *recordingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func TestDiffCorrectness(t *testing.T) {
	old := map[string]event.Item{
		"A": {Key: "A", Title: "story A", Status: "open"},
		"B": {Key: "B", Title: "story B", Status: "open"},
	}
	updated := map[string]event.Item{
		"A": {Key: "A", Title: "story A", Status: "done"},
		"C": {Key: "C", Title: "story C", Status: "open"},
	}

	changes := Diff(old, updated)
	if len(changes) != 3 {
		t.Fatalf("Diff returned %d records, want 3: %+v", len(changes), changes)
	}

	byKey := map[string]event.ChangeRecord{}
	for _, c := range changes {
		byKey[c.ItemKey] = c
	}

	if c := byKey["A"]; c.Kind != event.ChangeStatusChanged || c.OldValue != "open" || c.NewValue != "done" {
		t.Errorf("A = %+v, want status_changed open->done", c)
	}
	if c := byKey["B"]; c.Kind != event.ChangeRemoved {
		t.Errorf("B = %+v, want removed", c)
	}
	if c := byKey["C"]; c.Kind != event.ChangeAdded {
		t.Errorf("C = %+v, want added", c)
	}
}

func TestDiffMultipleFieldsSameKey(t *testing.T) {
	old := map[string]event.Item{
		"A": {Key: "A", Status: "open", Assignee: "dana"},
	}
	updated := map[string]event.Item{
		"A": {Key: "A", Status: "in_progress", Assignee: "mo"},
	}

	changes := Diff(old, updated)
	if len(changes) != 2 {
		t.Fatalf("Diff returned %d records, want 2 (status + assignee): %+v", len(changes), changes)
	}
	kinds := map[event.ChangeKind]bool{}
	for _, c := range changes {
		kinds[c.Kind] = true
	}
	if !kinds[event.ChangeStatusChanged] || !kinds[event.ChangeAssigneeChanged] {
		t.Errorf("kinds = %v, want status_changed and assignee_changed", kinds)
	}
}

func TestDiffIdenticalSnapshotsEmpty(t *testing.T) {
	snap := map[string]event.Item{"A": {Key: "A", Status: "open"}}
	if changes := Diff(snap, snap); len(changes) != 0 {
		t.Errorf("Diff of identical snapshots = %+v, want none", changes)
	}
}

func TestTrackerSinglePollEmitsOneEventWithAllRecords(t *testing.T) {
	q := event.NewQueue(16)
	src := &mockTracker{snapshots: []map[string]event.Item{
		{"A": {Key: "A", Status: "open"}, "B": {Key: "B", Status: "open"}},
		{"A": {Key: "A", Status: "done"}, "C": {Key: "C", Status: "open"}},
	}}
	m := NewTrackerMonitor(src, q, time.Hour, time.Second)

	ctx := context.Background()
	m.pollOnce(ctx) // priming fetch, no events
	m.pollOnce(ctx) // diff fetch

	if got := q.Size(); got != 1 {
		t.Fatalf("queue size = %d, want exactly 1 event for the whole cycle", got)
	}
	ev, _ := q.TryGet(time.Second)
	if ev.Type != event.TypeBacklogChange {
		t.Fatalf("Type = %q, want backlog_change", ev.Type)
	}
	if got := len(ev.Changes()); got != 3 {
		t.Errorf("event carries %d records, want 3", got)
	}
}

func TestTrackerIdempotentSnapshotReplace(t *testing.T) {
	snap := map[string]event.Item{"A": {Key: "A", Status: "open"}}
	q := event.NewQueue(16)
	src := &mockTracker{snapshots: []map[string]event.Item{snap, snap, snap}}
	m := NewTrackerMonitor(src, q, time.Hour, time.Second)

	ctx := context.Background()
	m.pollOnce(ctx)
	m.pollOnce(ctx)
	m.pollOnce(ctx)

	if got := q.Size(); got != 0 {
		t.Errorf("queue size = %d, want 0 for unchanged snapshots", got)
	}
}

func TestTrackerFetchErrorKeepsPollingAndSnapshot(t *testing.T) {
	q := event.NewQueue(16)
	rec := &recordingRecorder{}
	src := &mockTracker{
		snapshots: []map[string]event.Item{
			{"A": {Key: "A", Status: "open"}},
			nil, // consumed by the error slot below
			{"A": {Key: "A", Status: "done"}},
		},
		errs: []error{nil, errors.New("tracker unreachable"), nil},
	}
	m := NewTrackerMonitor(src, q, time.Hour, time.Second, WithTrackerRecorder(rec))

	ctx := context.Background()
	m.pollOnce(ctx) // prime
	m.pollOnce(ctx) // fails; snapshot untouched, nothing emitted
	if q.Size() != 0 {
		t.Fatal("failed poll must not emit events")
	}
	if rec.count() != 1 {
		t.Fatalf("records = %d, want 1 fetch_error", rec.count())
	}

	m.pollOnce(ctx) // recovers; diff against pre-error snapshot
	ev, ok := q.TryGet(time.Second)
	if !ok {
		t.Fatal("expected backlog_change after recovery")
	}
	changes := ev.Changes()
	if len(changes) != 1 || changes[0].Kind != event.ChangeStatusChanged {
		t.Errorf("changes = %+v, want one status_changed", changes)
	}
}

func TestTrackerLoopStartStop(t *testing.T) {
	q := event.NewQueue(16)
	src := &mockTracker{snapshots: []map[string]event.Item{{}}}
	m := NewTrackerMonitor(src, q, 10*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	if !m.Running() {
		t.Fatal("monitor should be running after Start")
	}

	time.Sleep(35 * time.Millisecond)
	m.Stop()
	if m.Running() {
		t.Error("monitor still running after Stop")
	}

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	if calls == 0 {
		t.Error("loop never polled")
	}
}
