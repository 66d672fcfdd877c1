// Package source provides file-backed source adapters: a YAML backlog
// file serving tracker snapshots and a JSONL chat transcript serving
// message batches. They exist so a huddle runtime can be exercised
// end-to-end (and tested) without any external tracker or chat API;
// real API adapters implement the same two interfaces in pkg/monitor.
package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"huddle/pkg/event"
)

// backlogDoc is the on-disk shape of a backlog file.
type backlogDoc struct {
	Project string       `yaml:"project"`
	Items   []event.Item `yaml:"items"`
}

// BacklogFile is a monitor.TrackerSource backed by a YAML file.
type BacklogFile struct {
	path string
}

// NewBacklogFile creates an adapter reading the backlog at path.
func NewBacklogFile(path string) *BacklogFile {
	return &BacklogFile{path: path}
}

// Path returns the watched file path, for fsnotify wiring.
func (b *BacklogFile) Path() string { return b.path }

// FetchItems reads and parses the backlog file into a keyed snapshot.
// Items without a key are rejected: a keyless item cannot be diffed.
func (b *BacklogFile) FetchItems(_ context.Context) (map[string]event.Item, error) {
	doc, err := b.read()
	if err != nil {
		return nil, err
	}

	items := make(map[string]event.Item, len(doc.Items))
	for _, item := range doc.Items {
		if item.Key == "" {
			return nil, fmt.Errorf("backlog %s: item %q has no key", b.path, item.Title)
		}
		items[item.Key] = item
	}
	return items, nil
}

// Project returns the project ID declared in the backlog file.
func (b *BacklogFile) Project() (string, error) {
	doc, err := b.read()
	if err != nil {
		return "", err
	}
	return doc.Project, nil
}

func (b *BacklogFile) read() (backlogDoc, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return backlogDoc{}, fmt.Errorf("read backlog %s: %w", b.path, err)
	}
	var doc backlogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return backlogDoc{}, fmt.Errorf("parse backlog %s: %w", b.path, err)
	}
	return doc, nil
}
