package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"huddle/pkg/monitor"
)

// fileConfig is the on-disk shape of $HUDDLE_HOME/config.toml. All
// fields are optional; the zero config yields the built-in defaults.
type fileConfig struct {
	Agent     string            `toml:"agent"`
	Project   string            `toml:"project"`
	Backlog   string            `toml:"backlog"`
	Chat      string            `toml:"chat"`
	QueueSize int               `toml:"queue_size"`
	Intervals map[string]string `toml:"intervals"`
}

// Interval keys recognized in the [intervals] table. "tracker" and
// "chat" set per-source poll intervals; the rest map to the runtime's
// global timers.
const (
	intervalTracker = "tracker"
	intervalChat    = "chat"
	intervalHealth  = "health"
	intervalIdle    = "idle"
	intervalFetch   = "fetch"
)

// loadConfig reads the config file at path. A missing file is not an
// error: it yields the zero config, and defaults apply downstream.
func loadConfig(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// monitorConfig translates the file config into a monitor.Config.
// Durations are TOML strings in time.ParseDuration syntax ("30s", "5m").
func (c fileConfig) monitorConfig() (monitor.Config, error) {
	out := monitor.Config{MaxQueueSize: c.QueueSize}

	for key, raw := range c.Intervals {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return monitor.Config{}, fmt.Errorf("interval %q: %w", key, err)
		}
		switch key {
		case intervalTracker, intervalChat:
			if out.PollIntervals == nil {
				out.PollIntervals = make(map[string]time.Duration)
			}
			out.PollIntervals[key] = d
		case intervalHealth:
			out.HealthCheckInterval = d
		case intervalIdle:
			out.IdleTimeout = d
		case intervalFetch:
			out.FetchTimeout = d
		default:
			return monitor.Config{}, fmt.Errorf("unknown interval key %q", key)
		}
	}

	return out, nil
}
