package agent

import (
	"errors"
	"fmt"
	"time"

	"huddle/pkg/event"
)

// ErrUnknownState indicates a state table defect: a transition target
// (or the configured initial state) is not present in the table. This
// is a programming error, not a runtime condition — the machine fails
// fast rather than drifting into an undefined state unnoticed.
var ErrUnknownState = errors.New("unknown state")

// Machine drives one agent through its state table. It is touched only
// by the dispatcher goroutine and needs no internal locking.
type Machine struct {
	agentID string
	current StateName
	states  map[StateName]State

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewMachine creates a Machine starting in initial. Every machine is
// created with its full state table up front; an initial state missing
// from the table is rejected immediately.
func NewMachine(agentID string, initial StateName, states map[StateName]State) (*Machine, error) {
	if _, ok := states[initial]; !ok {
		return nil, fmt.Errorf("initial state %q: %w", initial, ErrUnknownState)
	}
	return &Machine{
		agentID: agentID,
		current: initial,
		states:  states,
		nowFunc: time.Now,
	}, nil
}

// Current returns the machine's current state name.
func (m *Machine) Current() StateName {
	return m.current
}

// IdleTimeout returns how long the agent may remain in the current
// state without input before a synthetic time trigger is warranted.
func (m *Machine) IdleTimeout() time.Duration {
	return m.states[m.current].IdleTimeout()
}

// Process offers ev to the current state. If the state declines the
// event the machine is untouched and a not-handled result is returned.
// Otherwise the state's action runs, the context's activity clock is
// touched, and any transition the state requests is applied.
//
// A transition target absent from the state table returns an error
// wrapping ErrUnknownState with the current state unchanged.
func (m *Machine) Process(ev event.Event, ctx *Context) (Result, error) {
	state := m.states[m.current]

	if !state.CanHandle(ev, ctx) {
		return Result{AgentID: m.agentID, Handled: false, State: m.current}, nil
	}

	result := state.Handle(ev, ctx)
	result.AgentID = m.agentID
	result.Handled = true
	ctx.Touch(m.nowFunc())

	next := state.Next(ev, ctx)
	if next != "" && next != m.current {
		if _, ok := m.states[next]; !ok {
			return result, fmt.Errorf("state %q requested transition to %q: %w",
				m.current, next, ErrUnknownState)
		}
		result.Transitioned = true
		result.From = m.current
		m.current = next
	}
	result.State = m.current
	return result, nil
}
