package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"huddle/pkg/agent"
	"huddle/pkg/event"
	"huddle/pkg/monitor"
)

// SourceMonitor is what the Runtime needs from a monitor: a name for
// the status surface and a cooperative lifecycle.
type SourceMonitor interface {
	Start(ctx context.Context)
	Stop()
	Name() string
	Running() bool
}

// Status is the introspection snapshot served to operators and tests.
type Status struct {
	Running       bool      `json:"running"`
	QueueSize     int       `json:"queue_size"`
	DroppedEvents uint64    `json:"dropped_events"`
	ActiveSources []string  `json:"active_sources"`
	HandlerCount  int       `json:"handler_count"`
	CurrentState  string    `json:"current_state"`
	Mode          string    `json:"mode"`
	LastActivity  time.Time `json:"last_activity"`
	EventsSeen    uint64    `json:"events_seen"`
	HandlerErrors uint64    `json:"handler_errors"`
}

// Runtime composes the event queue, source monitors, dispatcher, and
// status socket into one agent process.
//
// Shutdown is cooperative: cancelling the context passed to Run stops
// the monitors and lets the current dispatcher iteration finish.
// Events still queued at that point are DISCARDED — callers that care
// must stop feeding sources and let the queue drain before cancelling.
type Runtime struct {
	cfg        monitor.Config
	queue      *event.Queue
	registry   *Registry
	dispatcher *Dispatcher
	recorder   monitor.Recorder

	mu       sync.Mutex
	monitors []SourceMonitor
	running  bool
	listener net.Listener

	socketPath string
}

// RuntimeOption customizes a Runtime.
type RuntimeOption func(*Runtime)

// WithSocketPath serves the status surface on a unix socket at path.
func WithSocketPath(path string) RuntimeOption {
	return func(r *Runtime) { r.socketPath = path }
}

// WithRecorder routes operational events (dispatches, drops, handler
// errors) to rec, typically an eventlog.Log.
func WithRecorder(rec monitor.Recorder) RuntimeOption {
	return func(r *Runtime) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRuntime validates cfg and assembles a runtime for one agent. The
// state machine starts in monitoring with the default state table
// wired to notifier (nil means notifications are discarded).
func NewRuntime(agentID, projectID string, cfg monitor.Config, notifier agent.Notifier, opts ...RuntimeOption) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("monitor config: %w", err)
	}
	cfg = cfg.WithDefaults()

	machine, err := agent.NewMachine(agentID, agent.StateMonitoring, agent.DefaultStates(notifier))
	if err != nil {
		return nil, fmt.Errorf("state machine: %w", err)
	}

	r := &Runtime{
		cfg:      cfg,
		queue:    event.NewQueue(cfg.MaxQueueSize),
		registry: NewRegistry(),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dispatcher = NewDispatcher(r.queue, r.registry, machine,
		agent.NewContext(agentID, projectID), cfg.IdleTimeout, r.recorder)
	return r, nil
}

// Config returns the resolved monitor configuration.
func (r *Runtime) Config() monitor.Config { return r.cfg }

// Queue returns the runtime's event queue for monitor construction.
func (r *Runtime) Queue() *event.Queue { return r.queue }

// Recorder returns the runtime's operational recorder.
func (r *Runtime) Recorder() monitor.Recorder { return r.recorder }

// AttachMonitor adds a source monitor to be started with the runtime.
func (r *Runtime) AttachMonitor(m SourceMonitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitors = append(r.monitors, m)
}

// Register adds a handler callback for typ; see Registry.Register.
func (r *Runtime) Register(typ event.Type, priority int, name string, fn Handler) {
	r.registry.Register(typ, priority, name, fn)
}

// Inject queues an externally produced event (user responses, project
// starts, agent-to-agent messages) at the type's default priority.
// Returns false if the queue was full and the event was dropped.
func (r *Runtime) Inject(typ event.Type, source string, payload map[string]any) bool {
	ev := event.New(typ, source, payload)
	ok := r.queue.Add(ev, event.DefaultPriority(typ))
	if !ok {
		r.recorder.Record(context.Background(), "queue_full", source, "dropped injected "+string(typ))
	}
	return ok
}

// Run starts the monitors and the status socket, then blocks in the
// dispatcher loop until ctx is cancelled or a state-table defect is
// detected.
func (r *Runtime) Run(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	monitors := make([]SourceMonitor, len(r.monitors))
	copy(monitors, r.monitors)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for _, m := range monitors {
		m.Start(ctx)
	}
	defer func() {
		for _, m := range monitors {
			m.Stop()
		}
	}()

	if r.socketPath != "" {
		if err := r.serveStatus(ctx); err != nil {
			return err
		}
		defer r.closeStatus()
	}

	return r.dispatcher.Run(ctx)
}

// GetStatus returns a defensive snapshot of the runtime's state. Safe
// to call from any goroutine.
func (r *Runtime) GetStatus() Status {
	state, mode, lastActivity, seen, fails := r.dispatcher.StatusSnapshot()

	r.mu.Lock()
	running := r.running
	sources := make([]string, 0, len(r.monitors))
	for _, m := range r.monitors {
		if m.Running() {
			sources = append(sources, m.Name())
		}
	}
	r.mu.Unlock()

	return Status{
		Running:       running,
		QueueSize:     r.queue.Size(),
		DroppedEvents: r.queue.Dropped(),
		ActiveSources: sources,
		HandlerCount:  r.registry.Count(),
		CurrentState:  string(state),
		Mode:          string(mode),
		LastActivity:  lastActivity,
		EventsSeen:    seen,
		HandlerErrors: fails,
	}
}

// --- status socket ---

// statusRequest is the single request shape the status socket accepts.
type statusRequest struct {
	Type string `json:"type"`
}

// serveStatus binds the unix socket and starts the accept loop.
func (r *Runtime) serveStatus(ctx context.Context) error {
	// A stale socket from a previous run would fail the bind.
	_ = os.Remove(r.socketPath)

	ln, err := net.Listen("unix", r.socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", r.socketPath, err)
	}
	r.mu.Lock()
	r.listener = ln
	r.mu.Unlock()

	go r.acceptLoop(ctx, ln)
	return nil
}

func (r *Runtime) closeStatus() {
	r.mu.Lock()
	ln := r.listener
	r.listener = nil
	r.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
		_ = os.Remove(r.socketPath)
	}
}

// acceptLoop accepts status connections until the listener closes.
func (r *Runtime) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Listener closed or transient failure; either way the
			// runtime decides lifecycle, not this loop.
			return
		}
		go r.handleStatusConn(conn)
	}
}

// handleStatusConn answers line-delimited JSON status requests on one
// short-lived connection.
func (r *Runtime) handleStatusConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	var req statusRequest
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || req.Type != "status" {
		return
	}

	data, err := json.Marshal(r.GetStatus())
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

// QueryStatus dials a runtime's status socket and returns its Status.
// Used by the CLI and dashboard.
func QueryStatus(ctx context.Context, socketPath string) (Status, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return Status{}, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(`{"type":"status"}` + "\n")); err != nil {
		return Status{}, fmt.Errorf("write status request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		// Scan returns false with a nil Err when the server hangs up
		// without writing, e.g. on a malformed request.
		if err := scanner.Err(); err != nil {
			return Status{}, fmt.Errorf("read status response: %w", err)
		}
		return Status{}, errors.New("status connection closed before a response")
	}
	var status Status
	if err := json.Unmarshal(scanner.Bytes(), &status); err != nil {
		return Status{}, fmt.Errorf("parse status response: %w", err)
	}
	return status, nil
}
