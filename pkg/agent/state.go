package agent

import (
	"time"

	"huddle/pkg/event"
)

// StateName identifies a state in the machine's table.
type StateName string

// State name constants.
const (
	StateMonitoring        StateName = "monitoring"
	StateAnalyzing         StateName = "analyzing"
	StateClarifying        StateName = "clarifying"
	StateCreatingArtifacts StateName = "creating_artifacts"
	StateReviewingChanges  StateName = "reviewing_changes"
	StateIdle              StateName = "idle"
)

// State is one mode of behavior in the agent's finite state machine.
// Implementations are selected from a fixed, enum-keyed table rather
// than looked up dynamically, so an undefined state is a construction
// error instead of a runtime surprise.
type State interface {
	// Name returns the table key for this state.
	Name() StateName

	// CanHandle reports whether this state processes ev at all. A false
	// return leaves the machine untouched.
	CanHandle(ev event.Event, ctx *Context) bool

	// Handle performs the state's action for ev, mutating ctx as needed.
	// It runs on the dispatcher goroutine.
	Handle(ev event.Event, ctx *Context) Result

	// Next computes the state to transition to after Handle. Returning
	// the current name (or "") means no transition.
	Next(ev event.Event, ctx *Context) StateName

	// IdleTimeout is how long the agent may sit in this state without
	// external input before a synthetic time trigger is warranted. The
	// machine itself never self-schedules; the dispatcher injects the
	// trigger.
	IdleTimeout() time.Duration
}

// Result is the outcome of offering one event to the machine.
type Result struct {
	AgentID string
	Handled bool
	Summary string
	// State is the machine's state after any transition.
	State StateName
	// Transitioned is set when Process moved to a new state.
	Transitioned bool
	From         StateName
}

// Notifier reports outcomes to users or operators. Delivery and
// formatting belong to the implementation; failures are logged by the
// caller, never fatal.
type Notifier interface {
	Notify(text string) error
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string) error { return nil }
