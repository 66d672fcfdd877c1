package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"huddle/pkg/dispatch"
	"huddle/pkg/eventlog"
)

// fetchTimeout bounds one status query or event log read.
const fetchTimeout = time.Second

// recentEventLimit is how many event log rows the dashboard shows.
const recentEventLimit = 50

// defaultSocketPath returns the agent status socket path from env or default.
func defaultSocketPath() string {
	if v := os.Getenv("HUDDLE_SOCKET_PATH"); v != "" {
		return v
	}
	return filepath.Join(huddleHome(), "huddle.sock")
}

// defaultDBPath returns the event log database path from env or default.
func defaultDBPath() string {
	if v := os.Getenv("HUDDLE_DB_PATH"); v != "" {
		return v
	}
	return filepath.Join(huddleHome(), "events.db")
}

// huddleHome returns HUDDLE_HOME or ~/.huddle.
func huddleHome() string {
	if v := os.Getenv("HUDDLE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".huddle")
}

// fetchStatus queries a running agent's status socket.
// A nil error with ok=false never happens; offline agents return an error.
func fetchStatus(ctx context.Context, socketPath string) (dispatch.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	return dispatch.QueryStatus(ctx, socketPath)
}

// fetchEntries reads the most recent event log rows, newest first.
// The reader is opened per fetch so the dashboard tolerates the
// database appearing after startup.
func fetchEntries(ctx context.Context, dbPath string) ([]eventlog.Entry, error) {
	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	return reader.Query(ctx, eventlog.QueryOpts{Limit: recentEventLimit})
}
