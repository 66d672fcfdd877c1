package agent

import (
	"fmt"
	"strings"
	"time"

	"huddle/pkg/event"
)

// Default idle timeouts per state. Monitoring is minutes-scale so a
// quiet backlog still gets periodic attention; Idle is tens of minutes.
const (
	monitoringIdleTimeout = 5 * time.Minute
	analyzingIdleTimeout  = 2 * time.Minute
	clarifyingIdleTimeout = 10 * time.Minute
	creatingIdleTimeout   = 2 * time.Minute
	reviewingIdleTimeout  = 1 * time.Minute
	idleIdleTimeout       = 30 * time.Minute
)

// recentChangesCap bounds how many change records the context retains.
const recentChangesCap = 50

// actionableKeywords are the chat phrases that pull the agent out of
// monitoring and into analysis.
var actionableKeywords = []string{"create", "build", "implement", "new project", "plan"} //nolint:gochecknoglobals // fixed keyword table

// DefaultStates returns the full state table wired to the given
// notifier. The table is closed: the machine only ever transitions
// between these six states.
func DefaultStates(notifier Notifier) map[StateName]State {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return map[StateName]State{
		StateMonitoring:        &monitoringState{notifier: notifier},
		StateAnalyzing:         &analyzingState{notifier: notifier},
		StateClarifying:        &clarifyingState{notifier: notifier},
		StateCreatingArtifacts: &creatingState{notifier: notifier},
		StateReviewingChanges:  &reviewingState{notifier: notifier},
		StateIdle:              &idleState{},
	}
}

// actionable reports whether chat text contains a keyword that warrants
// analysis.
func actionable(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range actionableKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// recordChanges appends recs to the context's recent-changes list,
// keeping only the newest recentChangesCap entries.
func recordChanges(ctx *Context, recs []event.ChangeRecord) {
	ctx.RecentChanges = append(ctx.RecentChanges, recs...)
	if n := len(ctx.RecentChanges); n > recentChangesCap {
		ctx.RecentChanges = ctx.RecentChanges[n-recentChangesCap:]
	}
}

// summarizeChanges renders a one-line count-by-kind summary.
func summarizeChanges(recs []event.ChangeRecord) string {
	counts := map[event.ChangeKind]int{}
	for _, r := range recs {
		counts[r.Kind]++
	}
	parts := make([]string, 0, 4)
	for _, kind := range []event.ChangeKind{
		event.ChangeAdded, event.ChangeStatusChanged,
		event.ChangeAssigneeChanged, event.ChangeRemoved,
	} {
		if counts[kind] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[kind], kind))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// --- Monitoring ---

// monitoringState is the agent's resting posture: watch chat and the
// backlog, escalate when something actionable shows up.
type monitoringState struct {
	notifier Notifier
}

func (s *monitoringState) Name() StateName { return StateMonitoring }

func (s *monitoringState) CanHandle(ev event.Event, _ *Context) bool {
	switch ev.Type {
	case event.TypeTimeTrigger, event.TypeBacklogChange, event.TypeChatMessage:
		return true
	default:
		return false
	}
}

func (s *monitoringState) Handle(ev event.Event, ctx *Context) Result {
	ctx.Mode = ModeMonitoring
	switch ev.Type {
	case event.TypeBacklogChange:
		recs := ev.Changes()
		recordChanges(ctx, recs)
		return Result{Summary: fmt.Sprintf("observed backlog changes: %s", summarizeChanges(recs))}
	case event.TypeChatMessage:
		if actionable(ev.Text("text")) {
			ctx.Mode = ModeReactive
			return Result{Summary: fmt.Sprintf("actionable request from %s", ev.Text("user"))}
		}
		return Result{Summary: "chat noted"}
	default:
		return Result{Summary: "heartbeat"}
	}
}

func (s *monitoringState) Next(ev event.Event, _ *Context) StateName {
	switch ev.Type {
	case event.TypeBacklogChange:
		return StateReviewingChanges
	case event.TypeChatMessage:
		if actionable(ev.Text("text")) {
			return StateAnalyzing
		}
	}
	return StateMonitoring
}

func (s *monitoringState) IdleTimeout() time.Duration { return monitoringIdleTimeout }

// --- Analyzing ---

// analyzingState classifies an incoming request and decides whether the
// agent knows enough to produce artifacts or has to ask first.
type analyzingState struct {
	notifier Notifier
}

func (s *analyzingState) Name() StateName { return StateAnalyzing }

func (s *analyzingState) CanHandle(ev event.Event, _ *Context) bool {
	switch ev.Type {
	case event.TypeProjectStart, event.TypeChatMessage, event.TypeUserResponse:
		return true
	default:
		return false
	}
}

func (s *analyzingState) Handle(ev event.Event, ctx *Context) Result {
	ctx.Mode = ModeReactive
	if ev.Type == event.TypeProjectStart {
		if id := ev.Text("project_id"); id != "" {
			ctx.TrackedProjectID = id
		}
	}
	if err := s.notifier.Notify(fmt.Sprintf("analyzing request from %s", ev.Source)); err != nil {
		return Result{Summary: fmt.Sprintf("analysis started (notify failed: %v)", err)}
	}
	return Result{Summary: "analysis started"}
}

func (s *analyzingState) Next(_ event.Event, ctx *Context) StateName {
	if len(ctx.CurrentItems) == 0 {
		return StateClarifying
	}
	return StateCreatingArtifacts
}

func (s *analyzingState) IdleTimeout() time.Duration { return analyzingIdleTimeout }

// --- Clarifying ---

// clarifyingState waits for the user to answer an open question. Time
// triggers re-surface the question instead of giving up.
type clarifyingState struct {
	notifier Notifier
}

func (s *clarifyingState) Name() StateName { return StateClarifying }

func (s *clarifyingState) CanHandle(ev event.Event, _ *Context) bool {
	return ev.Type == event.TypeUserResponse || ev.Type == event.TypeTimeTrigger
}

func (s *clarifyingState) Handle(ev event.Event, ctx *Context) Result {
	ctx.Mode = ModeCollaborating
	if ev.Type == event.TypeUserResponse {
		return Result{Summary: fmt.Sprintf("clarification received from %s", ev.Text("user"))}
	}
	if err := s.notifier.Notify("still waiting on clarification"); err != nil {
		return Result{Summary: fmt.Sprintf("reminder failed: %v", err)}
	}
	return Result{Summary: "clarification reminder sent"}
}

func (s *clarifyingState) Next(ev event.Event, _ *Context) StateName {
	if ev.Type == event.TypeUserResponse {
		return StateCreatingArtifacts
	}
	return StateClarifying
}

func (s *clarifyingState) IdleTimeout() time.Duration { return clarifyingIdleTimeout }

// --- CreatingArtifacts ---

// creatingState produces the agent's work product (story drafts and the
// like) and always returns to monitoring afterwards.
type creatingState struct {
	notifier Notifier
}

func (s *creatingState) Name() StateName { return StateCreatingArtifacts }

func (s *creatingState) CanHandle(event.Event, *Context) bool { return true }

func (s *creatingState) Handle(ev event.Event, ctx *Context) Result {
	ctx.Mode = ModeCollaborating
	items, _ := ev.Payload["items"].([]event.Item)
	if len(items) > 0 {
		ctx.CurrentItems = append(ctx.CurrentItems, items...)
	}
	text := fmt.Sprintf("drafted %d artifacts (%d tracked)", len(items), len(ctx.CurrentItems))
	if err := s.notifier.Notify(text); err != nil {
		return Result{Summary: fmt.Sprintf("%s (notify failed: %v)", text, err)}
	}
	return Result{Summary: text}
}

func (s *creatingState) Next(event.Event, *Context) StateName { return StateMonitoring }

func (s *creatingState) IdleTimeout() time.Duration { return creatingIdleTimeout }

// --- ReviewingChanges ---

// reviewingState summarizes a batch of backlog changes for the humans
// and returns to monitoring.
type reviewingState struct {
	notifier Notifier
}

func (s *reviewingState) Name() StateName { return StateReviewingChanges }

func (s *reviewingState) CanHandle(ev event.Event, _ *Context) bool {
	return ev.Type == event.TypeBacklogChange
}

func (s *reviewingState) Handle(ev event.Event, ctx *Context) Result {
	recs := ev.Changes()
	recordChanges(ctx, recs)
	summary := summarizeChanges(recs)
	if err := s.notifier.Notify("backlog update: " + summary); err != nil {
		return Result{Summary: fmt.Sprintf("reviewed changes (%s); notify failed: %v", summary, err)}
	}
	return Result{Summary: "reviewed changes: " + summary}
}

func (s *reviewingState) Next(event.Event, *Context) StateName { return StateMonitoring }

func (s *reviewingState) IdleTimeout() time.Duration { return reviewingIdleTimeout }

// --- Idle ---

// idleState parks the agent; the next time trigger wakes it back into
// monitoring.
type idleState struct{}

func (s *idleState) Name() StateName { return StateIdle }

func (s *idleState) CanHandle(ev event.Event, _ *Context) bool {
	return ev.Type == event.TypeTimeTrigger
}

func (s *idleState) Handle(_ event.Event, ctx *Context) Result {
	ctx.Mode = ModeMonitoring
	return Result{Summary: "waking from idle"}
}

func (s *idleState) Next(event.Event, *Context) StateName { return StateMonitoring }

func (s *idleState) IdleTimeout() time.Duration { return idleIdleTimeout }
