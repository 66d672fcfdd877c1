package agent

import (
	"errors"
	"strings"
	"testing"

	"huddle/pkg/event"
)

func TestActionableKeywordDetection(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"please create stories for checkout", true},
		{"let's BUILD the search page", true},
		{"we should implement retries", true},
		{"kicking off a new project tomorrow", true},
		{"lunch anyone?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := actionable(tt.text); got != tt.want {
			t.Errorf("actionable(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSummarizeChangesCountsByKind(t *testing.T) {
	recs := []event.ChangeRecord{
		{Kind: event.ChangeAdded, ItemKey: "ST-1"},
		{Kind: event.ChangeAdded, ItemKey: "ST-2"},
		{Kind: event.ChangeStatusChanged, ItemKey: "ST-3"},
		{Kind: event.ChangeRemoved, ItemKey: "ST-4"},
	}
	got := summarizeChanges(recs)
	for _, want := range []string{"2 added", "1 status_changed", "1 removed"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}

	if got := summarizeChanges(nil); got != "no changes" {
		t.Errorf("summarizeChanges(nil) = %q, want %q", got, "no changes")
	}
}

func TestRecordChangesCapsHistory(t *testing.T) {
	ctx := NewContext("agent-1", "proj-1")
	recs := make([]event.ChangeRecord, recentChangesCap+10)
	for i := range recs {
		recs[i] = event.ChangeRecord{Kind: event.ChangeAdded}
	}
	recordChanges(ctx, recs)
	if got := len(ctx.RecentChanges); got != recentChangesCap {
		t.Errorf("RecentChanges length = %d, want %d", got, recentChangesCap)
	}
}

func TestReviewingNotifiesSummary(t *testing.T) {
	notifier := &recordingNotifier{}
	m, err := NewMachine("agent-1", StateReviewingChanges, DefaultStates(notifier))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	ev := event.New(event.TypeBacklogChange, "tracker", map[string]any{
		"changes": []event.ChangeRecord{
			{Kind: event.ChangeStatusChanged, ItemKey: "ST-1", OldValue: "open", NewValue: "done"},
		},
	})
	if _, err := m.Process(ev, NewContext("agent-1", "proj-1")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.texts) != 1 || !strings.Contains(notifier.texts[0], "1 status_changed") {
		t.Errorf("notifications = %v, want one backlog summary", notifier.texts)
	}
}

func TestNotifyFailureIsNotFatal(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("chat is down")}
	m, err := NewMachine("agent-1", StateReviewingChanges, DefaultStates(notifier))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	ev := event.New(event.TypeBacklogChange, "tracker", map[string]any{
		"changes": []event.ChangeRecord{{Kind: event.ChangeAdded, ItemKey: "ST-1"}},
	})

	result, err := m.Process(ev, NewContext("agent-1", "proj-1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(result.Summary, "notify failed") {
		t.Errorf("Summary = %q, want notify failure noted", result.Summary)
	}
	if m.Current() != StateMonitoring {
		t.Errorf("Current() = %q, want monitoring despite notify failure", m.Current())
	}
}

func TestCreatingAppendsItemsFromPayload(t *testing.T) {
	m, err := NewMachine("agent-1", StateCreatingArtifacts, DefaultStates(nil))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	ctx := NewContext("agent-1", "proj-1")
	ev := event.New(event.TypeUserResponse, "chat", map[string]any{
		"items": []event.Item{{Key: "ST-1", Title: "login page", Status: "open"}},
	})
	if _, err := m.Process(ev, ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(ctx.CurrentItems) != 1 || ctx.CurrentItems[0].Key != "ST-1" {
		t.Errorf("CurrentItems = %+v, want ST-1 tracked", ctx.CurrentItems)
	}
}

func TestProjectStartAdoptsProjectID(t *testing.T) {
	m, err := NewMachine("agent-1", StateAnalyzing, DefaultStates(nil))
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	ctx := NewContext("agent-1", "")

	ev := event.New(event.TypeProjectStart, "api", map[string]any{"project_id": "proj-42"})
	if _, err := m.Process(ev, ctx); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ctx.TrackedProjectID != "proj-42" {
		t.Errorf("TrackedProjectID = %q, want %q", ctx.TrackedProjectID, "proj-42")
	}
}
