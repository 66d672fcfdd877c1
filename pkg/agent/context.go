// Package agent implements the per-agent finite state machine and the
// mutable situational context it operates on. The machine is passive:
// it never schedules its own work, it only reacts to events offered by
// the dispatcher, which is the sole goroutine allowed to mutate Context
// or transition the machine.
package agent

import (
	"time"

	"huddle/pkg/event"
)

// Mode describes the agent's overall posture, orthogonal to the
// fine-grained state machine state.
type Mode string

// Agent mode constants.
const (
	ModeReactive      Mode = "reactive"
	ModeMonitoring    Mode = "monitoring"
	ModeIdle          Mode = "idle"
	ModeCollaborating Mode = "collaborating"
)

// Context is the agent's current situational awareness: the items it is
// tracking, the changes it has recently seen, and when it last did
// anything. It is created once at agent start-up and lives for the
// process lifetime.
//
// Context is single-writer: only the dispatcher goroutine (including
// state Handle implementations running on it) may mutate fields.
// Concurrent readers must go through Snapshot.
type Context struct {
	AgentID          string
	TrackedProjectID string
	CurrentItems     []event.Item
	RecentChanges    []event.ChangeRecord
	LastActivity     time.Time
	Mode             Mode
}

// NewContext creates a Context in monitoring mode.
func NewContext(agentID, projectID string) *Context {
	return &Context{
		AgentID:          agentID,
		TrackedProjectID: projectID,
		LastActivity:     time.Now(),
		Mode:             ModeMonitoring,
	}
}

// Touch records activity at t.
func (c *Context) Touch(t time.Time) {
	c.LastActivity = t
}

// Snapshot returns a defensive copy safe for use outside the dispatcher
// goroutine (status endpoints, dashboards). Slices are copied so later
// mutation by the dispatcher cannot race a reader.
func (c *Context) Snapshot() Context {
	out := *c
	out.CurrentItems = make([]event.Item, len(c.CurrentItems))
	copy(out.CurrentItems, c.CurrentItems)
	out.RecentChanges = make([]event.ChangeRecord, len(c.RecentChanges))
	copy(out.RecentChanges, c.RecentChanges)
	return out
}
