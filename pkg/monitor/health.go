package monitor

import (
	"context"
	"time"

	"huddle/pkg/event"
)

// HealthMonitor emits a time_trigger event every health-check interval,
// unconditionally. There is no snapshot and no diff; the event carries
// the current queue size for observability.
type HealthMonitor struct {
	runner

	queue    *event.Queue
	recorder Recorder
}

// NewHealthMonitor creates a health monitor ticking at the given
// interval.
func NewHealthMonitor(queue *event.Queue, interval time.Duration, rec Recorder) *HealthMonitor {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &HealthMonitor{
		runner:   newRunner("health", interval),
		queue:    queue,
		recorder: rec,
	}
}

// Start begins ticking.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.start(ctx, m.pollOnce, nil)
}

func (m *HealthMonitor) pollOnce(ctx context.Context) {
	ev := event.New(event.TypeTimeTrigger, m.name, map[string]any{
		"reason":     "health_check",
		"queue_size": m.queue.Size(),
	})
	if !m.queue.Add(ev, event.DefaultPriority(ev.Type)) {
		m.recorder.Record(ctx, "queue_full", m.name, "dropped time_trigger event")
	}
}
