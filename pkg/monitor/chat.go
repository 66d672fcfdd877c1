package monitor

import (
	"context"
	"strings"
	"time"

	"huddle/pkg/event"
)

// ChatSource is the narrow contract a chat adapter implements: the
// messages posted since a given time.
type ChatSource interface {
	FetchMessages(ctx context.Context, since time.Time) ([]event.Message, error)
}

// ChatMonitor polls a ChatSource and emits one chat_message event per
// surviving message. Messages written by the agent itself or by any
// automated poster are dropped (deny-list on author kind), as are
// empty-text messages.
type ChatMonitor struct {
	runner

	source   ChatSource
	queue    *event.Queue
	recorder Recorder
	timeout  time.Duration

	// denyAuthors lists author kinds whose messages are ignored.
	denyAuthors map[event.AuthorKind]bool

	// lastPoll is the high-water mark handed to FetchMessages; replaced
	// each successful cycle, never mutated incrementally.
	lastPoll time.Time

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// ChatOption customizes a ChatMonitor.
type ChatOption func(*ChatMonitor)

// WithDenyAuthors replaces the default deny-list (agent, bot).
func WithDenyAuthors(kinds ...event.AuthorKind) ChatOption {
	return func(m *ChatMonitor) {
		m.denyAuthors = make(map[event.AuthorKind]bool, len(kinds))
		for _, k := range kinds {
			m.denyAuthors[k] = true
		}
	}
}

// WithChatRecorder routes operational conditions to rec.
func WithChatRecorder(rec Recorder) ChatOption {
	return func(m *ChatMonitor) {
		if rec != nil {
			m.recorder = rec
		}
	}
}

// NewChatMonitor creates a chat monitor polling source every interval.
func NewChatMonitor(source ChatSource, queue *event.Queue, interval, fetchTimeout time.Duration, opts ...ChatOption) *ChatMonitor {
	m := &ChatMonitor{
		runner:      newRunner("chat", interval),
		source:      source,
		queue:       queue,
		recorder:    nopRecorder{},
		timeout:     fetchTimeout,
		denyAuthors: map[event.AuthorKind]bool{event.AuthorAgent: true, event.AuthorBot: true},
		lastPoll:    time.Now(),
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins polling.
func (m *ChatMonitor) Start(ctx context.Context) {
	m.start(ctx, m.pollOnce, nil)
}

// pollOnce fetches messages since the last successful poll and emits
// events for the ones that pass the author and empty-text filters. A
// fetch error keeps the high-water mark so the next cycle retries the
// same window.
func (m *ChatMonitor) pollOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	polledAt := m.nowFunc()
	messages, err := m.source.FetchMessages(fetchCtx, m.lastPoll)
	if err != nil {
		m.recorder.Record(ctx, "fetch_error", m.name, err.Error())
		return
	}
	m.lastPoll = polledAt

	for _, msg := range messages {
		if m.denyAuthors[msg.AuthorKind] {
			continue
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		ev := event.New(event.TypeChatMessage, m.name, map[string]any{
			"text":        msg.Text,
			"user":        msg.User,
			"channel":     msg.Channel,
			"author_kind": string(msg.AuthorKind),
		})
		if !m.queue.Add(ev, event.DefaultPriority(ev.Type)) {
			m.recorder.Record(ctx, "queue_full", m.name, "dropped chat_message event")
		}
	}
}
