package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"huddle/pkg/agent"
	"huddle/pkg/event"
	"huddle/pkg/monitor"
)

// testRecorder captures Record calls for assertions.
type testRecorder struct {
	mu      sync.Mutex
	records [][3]string // typ, source, detail
}

func (r *testRecorder) Record(_ context.Context, typ, source, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, [3]string{typ, source, detail})
}

func (r *testRecorder) byType(typ string) [][3]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][3]string
	for _, rec := range r.records {
		if rec[0] == typ {
			out = append(out, rec)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T, rec *testRecorder) (*Dispatcher, *event.Queue) {
	t.Helper()
	machine, err := agent.NewMachine("agent-1", agent.StateMonitoring, agent.DefaultStates(nil))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	q := event.NewQueue(64)
	var recorder monitor.Recorder
	if rec != nil {
		recorder = rec
	}
	d := NewDispatcher(q, NewRegistry(), machine, agent.NewContext("agent-1", "proj-1"), 0, recorder)
	return d, q
}

func TestHandlerIsolation(t *testing.T) {
	rec := &testRecorder{}
	d, q := newTestDispatcher(t, rec)

	var order []string
	var mu sync.Mutex
	note := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	d.registry.Register(event.TypeChatMessage, 1, "fails", func(event.Event) (string, error) {
		note("fails")
		return "", errors.New("boom")
	})
	d.registry.Register(event.TypeChatMessage, 2, "panics", func(event.Event) (string, error) {
		note("panics")
		panic("kaboom")
	})
	d.registry.Register(event.TypeChatMessage, 3, "succeeds", func(event.Event) (string, error) {
		note("succeeds")
		return "ok", nil
	})

	ctx := context.Background()
	ev := event.New(event.TypeChatMessage, "chat", map[string]any{"text": "hi"})
	if err := d.dispatch(ctx, ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	mu.Lock()
	got := append([]string(nil), order...)
	mu.Unlock()
	want := []string{"fails", "panics", "succeeds"}
	if len(got) != 3 {
		t.Fatalf("handlers run = %v, want all three", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i], want[i])
		}
	}

	if fails := rec.byType("handler_error"); len(fails) != 2 {
		t.Errorf("handler_error records = %d, want 2 (error + panic)", len(fails))
	}

	// The loop is still alive: a subsequent event dispatches cleanly.
	if err := d.dispatch(ctx, event.New(event.TypeTimeTrigger, "health", nil)); err != nil {
		t.Fatalf("dispatch after failures: %v", err)
	}
	_ = q
}

func TestDispatchOffersEventToStateMachine(t *testing.T) {
	rec := &testRecorder{}
	d, _ := newTestDispatcher(t, rec)

	ev := event.New(event.TypeChatMessage, "chat",
		map[string]any{"text": "please create stories", "user": "dana"})
	if err := d.dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	state, _, _, seen, _ := d.StatusSnapshot()
	if state != agent.StateAnalyzing {
		t.Errorf("state = %q, want analyzing after actionable chat", state)
	}
	if seen != 1 {
		t.Errorf("eventsSeen = %d, want 1", seen)
	}
	if transitions := rec.byType("state_transition"); len(transitions) != 1 {
		t.Errorf("state_transition records = %d, want 1", len(transitions))
	}
}

func TestUnclaimedEventIsLoggedNotFatal(t *testing.T) {
	rec := &testRecorder{}
	d, _ := newTestDispatcher(t, rec)

	// Monitoring declines user_response and no handlers exist for it.
	ev := event.New(event.TypeUserResponse, "api", nil)
	if err := d.dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if unclaimed := rec.byType("event_unclaimed"); len(unclaimed) != 1 {
		t.Errorf("event_unclaimed records = %d, want 1", len(unclaimed))
	}
}

// brokenState requests an undefined transition target.
type brokenState struct{}

func (brokenState) Name() agent.StateName                            { return "broken" }
func (brokenState) CanHandle(event.Event, *agent.Context) bool       { return true }
func (brokenState) Handle(event.Event, *agent.Context) agent.Result  { return agent.Result{} }
func (brokenState) Next(event.Event, *agent.Context) agent.StateName { return "missing" }
func (brokenState) IdleTimeout() time.Duration                       { return time.Minute }

func TestStateTableDefectStopsRun(t *testing.T) {
	machine, err := agent.NewMachine("agent-1", "broken",
		map[agent.StateName]agent.State{"broken": brokenState{}})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	q := event.NewQueue(16)
	d := NewDispatcher(q, NewRegistry(), machine, agent.NewContext("agent-1", "proj-1"), 0, nil)

	q.Add(event.New(event.TypeTimeTrigger, "health", nil), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = d.Run(ctx)
	if !errors.Is(err, agent.ErrUnknownState) {
		t.Fatalf("Run error = %v, want ErrUnknownState", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop within the poll timeout after cancel")
	}
}

func TestIdleTriggerInjection(t *testing.T) {
	d, q := newTestDispatcher(t, nil)

	// Pretend the agent has been quiet far longer than the monitoring
	// idle timeout.
	past := time.Now().Add(-time.Hour)
	d.agentCtx.LastActivity = past
	d.maybeInjectIdleTrigger()

	ev, ok := q.TryGet(time.Second)
	if !ok {
		t.Fatal("expected a synthetic time trigger")
	}
	if ev.Type != event.TypeTimeTrigger || ev.Source != "scheduler" {
		t.Errorf("event = %+v, want scheduler time_trigger", ev)
	}
	if ev.Text("reason") != "idle_timeout" {
		t.Errorf("reason = %q, want idle_timeout", ev.Text("reason"))
	}

	// A second check immediately after must not double-inject.
	d.maybeInjectIdleTrigger()
	if q.Size() != 0 {
		t.Error("idle trigger re-injected before the window elapsed again")
	}
}

func TestIdleTriggerNotInjectedWhileActive(t *testing.T) {
	d, q := newTestDispatcher(t, nil)
	d.agentCtx.LastActivity = time.Now()
	d.maybeInjectIdleTrigger()
	if q.Size() != 0 {
		t.Error("trigger injected despite recent activity")
	}
}

func TestConfiguredIdleTimeoutShortensWindow(t *testing.T) {
	machine, err := agent.NewMachine("agent-1", agent.StateMonitoring, agent.DefaultStates(nil))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	q := event.NewQueue(16)
	d := NewDispatcher(q, NewRegistry(), machine, agent.NewContext("agent-1", "proj-1"),
		50*time.Millisecond, nil)

	// One second of quiet is nowhere near the monitoring state's default
	// window, but far past the configured 50ms base.
	d.agentCtx.LastActivity = time.Now().Add(-time.Second)
	d.maybeInjectIdleTrigger()

	ev, ok := q.TryGet(time.Second)
	if !ok {
		t.Fatal("expected a synthetic time trigger under the configured idle timeout")
	}
	if ev.Type != event.TypeTimeTrigger || ev.Text("reason") != "idle_timeout" {
		t.Errorf("event = %+v, want idle_timeout time_trigger", ev)
	}
}

func TestDefaultIdleTimeoutKeepsStateWindow(t *testing.T) {
	d, q := newTestDispatcher(t, nil)

	// With the default base, one quiet second is well inside the
	// monitoring state's window: nothing should be injected.
	d.agentCtx.LastActivity = time.Now().Add(-time.Second)
	d.maybeInjectIdleTrigger()
	if q.Size() != 0 {
		t.Error("trigger injected before the monitoring window elapsed")
	}
}
