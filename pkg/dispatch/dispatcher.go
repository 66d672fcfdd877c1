package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"huddle/pkg/agent"
	"huddle/pkg/event"
	"huddle/pkg/monitor"
)

// pollTimeout bounds one TryGet wait; it also bounds how quickly the
// loop notices cancellation.
const pollTimeout = time.Second

// Dispatcher is the single consumer of the event queue. One goroutine
// runs the loop; because of that, the agent context and state machine
// are effectively single-writer and need no locking of their own. The
// small status snapshot below is the only dispatcher state other
// goroutines may read.
type Dispatcher struct {
	queue    *event.Queue
	registry *Registry
	machine  *agent.Machine
	agentCtx *agent.Context
	recorder monitor.Recorder

	// idleTimeout is the configured base idle window. Per-state
	// timeouts scale relative to monitor.DefaultIdleTimeout, so the
	// default configuration keeps each state's own window while a
	// shorter base shortens all of them proportionally.
	idleTimeout time.Duration

	// lastIdleInject prevents re-injecting a synthetic trigger every
	// poll timeout once the idle window has elapsed.
	lastIdleInject time.Time

	// nowFunc allows tests to control time.
	nowFunc func() time.Time

	// statusMu guards the snapshot fields read by GetStatus callers on
	// other goroutines.
	statusMu     sync.Mutex
	statusState  agent.StateName
	statusMode   agent.Mode
	statusTouch  time.Time
	eventsSeen   uint64
	handlerFails uint64
}

// NewDispatcher wires the loop's collaborators together. idleTimeout is
// the configured base idle window; zero or negative means
// monitor.DefaultIdleTimeout. rec may be nil.
func NewDispatcher(queue *event.Queue, registry *Registry, machine *agent.Machine, agentCtx *agent.Context, idleTimeout time.Duration, rec monitor.Recorder) *Dispatcher {
	if rec == nil {
		rec = noopRecorder{}
	}
	if idleTimeout <= 0 {
		idleTimeout = monitor.DefaultIdleTimeout
	}
	d := &Dispatcher{
		queue:       queue,
		registry:    registry,
		machine:     machine,
		agentCtx:    agentCtx,
		recorder:    rec,
		idleTimeout: idleTimeout,
		nowFunc:     time.Now,
	}
	d.publishStatus()
	return d
}

// Run drains the queue until ctx is cancelled. It returns nil on
// cancellation and an error only for a state-table configuration
// defect, which is fatal by design: a machine with an undefined
// transition target would otherwise be silently wrong forever.
//
// Events still queued when Run returns are discarded, not drained.
// Callers that need drain-on-shutdown must stop the producers first
// and let the loop idle before cancelling.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		ev, ok := d.queue.TryGet(pollTimeout)
		if !ok {
			d.maybeInjectIdleTrigger()
			continue
		}

		if err := d.dispatch(ctx, ev); err != nil {
			return err
		}
	}
}

// dispatch runs all matching handlers in priority order, then offers
// the event to the state machine.
func (d *Dispatcher) dispatch(ctx context.Context, ev event.Event) error {
	handlers := d.registry.handlersFor(ev.Type)
	for _, reg := range handlers {
		d.invoke(ctx, reg, ev)
	}

	result, err := d.machine.Process(ev, d.agentCtx)
	if err != nil {
		d.recorder.Record(ctx, "state_machine_fatal", string(ev.Type), err.Error())
		return fmt.Errorf("state machine: %w", err)
	}

	switch {
	case result.Transitioned:
		d.recorder.Record(ctx, "state_transition", string(ev.Type),
			fmt.Sprintf("%s -> %s: %s", result.From, result.State, result.Summary))
	case result.Handled:
		d.recorder.Record(ctx, "event_handled", string(ev.Type), result.Summary)
	case len(handlers) == 0:
		// No handlers and the state declined it: the event is dropped.
		// Debug-level condition, not an error.
		d.recorder.Record(ctx, "event_unclaimed", string(ev.Type), "no handler, state declined")
	}

	d.statusMu.Lock()
	d.eventsSeen++
	d.statusMu.Unlock()
	d.publishStatus()
	return nil
}

// invoke runs one handler, isolating both error returns and panics so
// a failing handler cannot take down the loop or its peers.
func (d *Dispatcher) invoke(ctx context.Context, reg registration, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.recordHandlerFailure(ctx, reg, ev, fmt.Sprintf("panic: %v", r))
		}
	}()

	if _, err := reg.fn(ev); err != nil {
		d.recordHandlerFailure(ctx, reg, ev, err.Error())
	}
}

func (d *Dispatcher) recordHandlerFailure(ctx context.Context, reg registration, ev event.Event, detail string) {
	d.statusMu.Lock()
	d.handlerFails++
	d.statusMu.Unlock()
	d.recorder.Record(ctx, "handler_error", string(ev.Type),
		fmt.Sprintf("handler %q: %s", reg.name, detail))
}

// maybeInjectIdleTrigger queues a synthetic time trigger when the
// current state's idle timeout has elapsed without activity. The state
// machine is passive; this is the scheduler it relies on.
func (d *Dispatcher) maybeInjectIdleTrigger() {
	now := d.nowFunc()
	timeout := d.idleWindow()
	if timeout <= 0 {
		return
	}
	since := d.agentCtx.LastActivity
	if d.lastIdleInject.After(since) {
		since = d.lastIdleInject
	}
	if now.Sub(since) < timeout {
		return
	}
	d.lastIdleInject = now
	ev := event.New(event.TypeTimeTrigger, "scheduler", map[string]any{
		"reason": "idle_timeout",
		"state":  string(d.machine.Current()),
	})
	d.queue.Add(ev, event.DefaultPriority(ev.Type))
}

// idleWindow is the effective idle window for the current state: the
// configured base, scaled by the state's own patience relative to the
// default base. With the default base this is exactly the state's
// IdleTimeout.
func (d *Dispatcher) idleWindow() time.Duration {
	stateWindow := d.machine.IdleTimeout()
	if stateWindow <= 0 {
		return 0
	}
	if d.idleTimeout == monitor.DefaultIdleTimeout {
		return stateWindow
	}
	return time.Duration(float64(stateWindow) * float64(d.idleTimeout) / float64(monitor.DefaultIdleTimeout))
}

// publishStatus copies the dispatcher-owned fields into the snapshot
// readable by other goroutines.
func (d *Dispatcher) publishStatus() {
	snap := d.agentCtx.Snapshot()
	d.statusMu.Lock()
	d.statusState = d.machine.Current()
	d.statusMode = snap.Mode
	d.statusTouch = snap.LastActivity
	d.statusMu.Unlock()
}

// StatusSnapshot returns the dispatcher's view for status surfaces.
// Safe to call from any goroutine.
func (d *Dispatcher) StatusSnapshot() (state agent.StateName, mode agent.Mode, lastActivity time.Time, eventsSeen, handlerFails uint64) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.statusState, d.statusMode, d.statusTouch, d.eventsSeen, d.handlerFails
}

// noopRecorder discards every record.
type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string, string, string) {}
