package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// huddleDir is the default state directory under the user's home.
const huddleDir = ".huddle"

// Paths holds all resolved huddle state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home        string // ~/.huddle or HUDDLE_HOME
	SocketPath  string // huddle.sock or HUDDLE_SOCKET_PATH
	DBPath      string // events.db or HUDDLE_DB_PATH
	ConfigPath  string // config.toml (respects HUDDLE_HOME)
	BacklogPath string // backlog.yaml (respects HUDDLE_HOME)
	ChatPath    string // chat.jsonl (respects HUDDLE_HOME)
}

// ResolvePaths returns all huddle paths, respecting env var overrides.
// Environment variables:
//   - HUDDLE_HOME: base directory for all huddle state (default: ~/.huddle)
//   - HUDDLE_SOCKET_PATH: status socket (default: $HUDDLE_HOME/huddle.sock)
//   - HUDDLE_DB_PATH: event log database (default: $HUDDLE_HOME/events.db)
//
// If HUDDLE_HOME is set, it becomes the base for all default paths.
// Specific env vars override both the default and the HUDDLE_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveHuddleHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		Home:        home,
		SocketPath:  resolvePathWithEnv("HUDDLE_SOCKET_PATH", home, "huddle.sock"),
		DBPath:      resolvePathWithEnv("HUDDLE_DB_PATH", home, "events.db"),
		ConfigPath:  filepath.Join(home, "config.toml"),
		BacklogPath: filepath.Join(home, "backlog.yaml"),
		ChatPath:    filepath.Join(home, "chat.jsonl"),
	}, nil
}

// resolveHuddleHome returns the huddle home directory from HUDDLE_HOME or ~/.huddle.
func resolveHuddleHome() (string, error) {
	if v := os.Getenv("HUDDLE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, huddleDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
