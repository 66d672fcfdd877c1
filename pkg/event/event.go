// Package event defines the shared event model for the huddle runtime:
// the closed set of event types, the payload element types carried by
// backlog and chat events, and the bounded priority queue that connects
// source monitors to the dispatcher.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies an event. The set is closed: adding a type means
// updating state tables and handler registrations to give it a home.
type Type string

// Event type constants.
const (
	TypeChatMessage   Type = "chat_message"
	TypeBacklogChange Type = "backlog_change"
	TypeTimeTrigger   Type = "time_trigger"
	TypeAgentMessage  Type = "agent_message"
	TypeUserResponse  Type = "user_response"
	TypeProjectStart  Type = "project_start"
)

// Valid reports whether t is one of the recognized event types.
func (t Type) Valid() bool {
	switch t {
	case TypeChatMessage, TypeBacklogChange, TypeTimeTrigger,
		TypeAgentMessage, TypeUserResponse, TypeProjectStart:
		return true
	default:
		return false
	}
}

// Default dispatch priorities per event type; lower is served first.
// Direct user input outranks ambient observation, and heartbeats come
// last.
const (
	PriorityUserResponse  = 1
	PriorityChatMessage   = 2
	PriorityProjectStart  = 2
	PriorityBacklogChange = 3
	PriorityAgentMessage  = 4
	PriorityTimeTrigger   = 5
)

// DefaultPriority returns the queue priority for an event type.
func DefaultPriority(t Type) int {
	switch t {
	case TypeUserResponse:
		return PriorityUserResponse
	case TypeChatMessage:
		return PriorityChatMessage
	case TypeProjectStart:
		return PriorityProjectStart
	case TypeBacklogChange:
		return PriorityBacklogChange
	case TypeAgentMessage:
		return PriorityAgentMessage
	default:
		return PriorityTimeTrigger
	}
}

// Event is a typed, timestamped notification of something that happened.
// Events are immutable once constructed: monitors create them, the
// dispatcher consumes each exactly once, and they are then discarded.
type Event struct {
	ID        string
	Type      Type
	Source    string
	Payload   map[string]any
	Timestamp time.Time
}

// New constructs an Event with a fresh ID and the current time.
func New(typ Type, source string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Text returns the string payload field under key, or "" if absent.
func (e Event) Text(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// Changes returns the change records carried by a backlog_change event,
// or nil for other payloads.
func (e Event) Changes() []ChangeRecord {
	if e.Payload == nil {
		return nil
	}
	recs, _ := e.Payload["changes"].([]ChangeRecord)
	return recs
}

// ChangeKind classifies a single backlog change record.
type ChangeKind string

// Change kind constants.
const (
	ChangeAdded           ChangeKind = "added"
	ChangeStatusChanged   ChangeKind = "status_changed"
	ChangeAssigneeChanged ChangeKind = "assignee_changed"
	ChangeRemoved         ChangeKind = "removed"
)

// ChangeRecord describes one difference between two backlog snapshots
// of the same collection keyed by item key. A single poll cycle that
// finds N differences yields one backlog_change event carrying all N.
type ChangeRecord struct {
	Kind      ChangeKind `json:"kind"`
	ItemKey   string     `json:"item_key"`
	ItemTitle string     `json:"item_title"`
	OldValue  string     `json:"old_value,omitempty"`
	NewValue  string     `json:"new_value,omitempty"`
}

// Item is a tracked backlog item as seen in one snapshot.
type Item struct {
	Key      string `json:"key" yaml:"key"`
	Title    string `json:"title" yaml:"title"`
	Status   string `json:"status" yaml:"status"`
	Assignee string `json:"assignee,omitempty" yaml:"assignee,omitempty"`
}

// AuthorKind classifies who wrote a chat message. The chat monitor uses
// it to drop the agent's own messages and automated posters.
type AuthorKind string

// Author kind constants.
const (
	AuthorHuman AuthorKind = "human"
	AuthorAgent AuthorKind = "agent"
	AuthorBot   AuthorKind = "bot"
)

// Message is a chat message as seen in one poll of the chat source.
type Message struct {
	Text       string     `json:"text"`
	User       string     `json:"user"`
	Channel    string     `json:"channel"`
	AuthorKind AuthorKind `json:"author_kind"`
	SentAt     time.Time  `json:"sent_at"`
}
