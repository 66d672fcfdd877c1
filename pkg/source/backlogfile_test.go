package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeBacklog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backlog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write backlog: %v", err)
	}
	return path
}

func TestBacklogFileFetchItems(t *testing.T) {
	path := writeBacklog(t, `
project: website-redesign
items:
  - key: ST-1
    title: login page
    status: open
    assignee: dana
  - key: ST-2
    title: signup flow
    status: in_progress
`)
	b := NewBacklogFile(path)

	items, err := b.FetchItems(context.Background())
	if err != nil {
		t.Fatalf("FetchItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("FetchItems returned %d items, want 2", len(items))
	}
	if items["ST-1"].Assignee != "dana" {
		t.Errorf("ST-1 assignee = %q, want dana", items["ST-1"].Assignee)
	}
	if items["ST-2"].Status != "in_progress" {
		t.Errorf("ST-2 status = %q, want in_progress", items["ST-2"].Status)
	}

	project, err := b.Project()
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if project != "website-redesign" {
		t.Errorf("Project = %q, want website-redesign", project)
	}
}

func TestBacklogFileRejectsKeylessItem(t *testing.T) {
	path := writeBacklog(t, `
project: p
items:
  - title: orphan
    status: open
`)
	if _, err := NewBacklogFile(path).FetchItems(context.Background()); err == nil {
		t.Fatal("expected error for item without key")
	}
}

func TestBacklogFileMissingFile(t *testing.T) {
	b := NewBacklogFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := b.FetchItems(context.Background()); err == nil {
		t.Fatal("expected error for missing backlog file")
	}
}

func TestBacklogFileMalformedYAML(t *testing.T) {
	path := writeBacklog(t, "items: [not, a, mapping")
	if _, err := NewBacklogFile(path).FetchItems(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
