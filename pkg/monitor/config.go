// Package monitor implements the source monitors that convert external
// state changes into events: a backlog tracker monitor (snapshot diff),
// a chat monitor (message filter), and a health monitor (unconditional
// time trigger). All three share one poll-loop template: sleep the
// interval, fetch a snapshot from the external collaborator, translate
// it into events, replace the stored snapshot wholesale.
package monitor

import (
	"fmt"
	"time"

	"huddle/pkg/event"
)

// Default intervals applied when Config fields are left zero.
const (
	DefaultPollInterval        = 30 * time.Second
	DefaultHealthCheckInterval = 60 * time.Second
	DefaultIdleTimeout         = 5 * time.Minute
	DefaultFetchTimeout        = 10 * time.Second
)

// Config is the immutable monitor configuration. Zero fields take the
// defaults above; explicitly negative values are a configuration error,
// never silently clamped.
type Config struct {
	// PollIntervals maps a source name ("tracker", "chat") to its poll
	// interval. Sources not listed use DefaultPollInterval.
	PollIntervals map[string]time.Duration

	// HealthCheckInterval is how often the health monitor emits a
	// time trigger regardless of external activity.
	HealthCheckInterval time.Duration

	// IdleTimeout is the base idle window before the dispatcher injects
	// a synthetic time trigger (individual states may extend it).
	IdleTimeout time.Duration

	// FetchTimeout bounds a single FetchItems/FetchMessages call so a
	// stalled source delays at most its own current cycle.
	FetchTimeout time.Duration

	// MaxQueueSize bounds the event queue.
	MaxQueueSize int
}

// Validate rejects explicitly invalid values. Zero means "use default"
// and is fine; negative intervals or sizes are defects in the caller's
// configuration and are reported, not repaired.
func (c Config) Validate() error {
	for source, iv := range c.PollIntervals {
		if iv < 0 {
			return fmt.Errorf("poll interval for %q is negative: %v", source, iv)
		}
		if iv > 0 && iv < time.Millisecond {
			return fmt.Errorf("poll interval for %q is below 1ms: %v", source, iv)
		}
	}
	if c.HealthCheckInterval < 0 {
		return fmt.Errorf("health check interval is negative: %v", c.HealthCheckInterval)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout is negative: %v", c.IdleTimeout)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout is negative: %v", c.FetchTimeout)
	}
	if c.MaxQueueSize < 0 {
		return fmt.Errorf("max queue size is negative: %d", c.MaxQueueSize)
	}
	return nil
}

// WithDefaults returns a copy with zero fields filled in.
func (c Config) WithDefaults() Config {
	out := c
	if out.HealthCheckInterval == 0 {
		out.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.FetchTimeout == 0 {
		out.FetchTimeout = DefaultFetchTimeout
	}
	if out.MaxQueueSize == 0 {
		out.MaxQueueSize = event.DefaultMaxQueueSize
	}
	return out
}

// PollInterval returns the configured interval for source, or
// DefaultPollInterval when unset.
func (c Config) PollInterval(source string) time.Duration {
	if iv, ok := c.PollIntervals[source]; ok && iv > 0 {
		return iv
	}
	return DefaultPollInterval
}
