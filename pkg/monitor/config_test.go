package monitor

import (
	"testing"
	"time"

	"huddle/pkg/event"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero config is valid", Config{}, false},
		{"positive values are valid", Config{
			PollIntervals:       map[string]time.Duration{"tracker": 10 * time.Second},
			HealthCheckInterval: time.Minute,
			IdleTimeout:         5 * time.Minute,
			MaxQueueSize:        100,
		}, false},
		{"negative poll interval rejected", Config{
			PollIntervals: map[string]time.Duration{"chat": -time.Second},
		}, true},
		{"negative health interval rejected", Config{HealthCheckInterval: -1}, true},
		{"negative idle timeout rejected", Config{IdleTimeout: -time.Minute}, true},
		{"negative fetch timeout rejected", Config{FetchTimeout: -time.Second}, true},
		{"negative queue size rejected", Config{MaxQueueSize: -5}, true},
		{"sub-millisecond poll interval rejected", Config{
			PollIntervals: map[string]time.Duration{"tracker": time.Microsecond},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.HealthCheckInterval != DefaultHealthCheckInterval {
		t.Errorf("HealthCheckInterval = %v, want default", cfg.HealthCheckInterval)
	}
	if cfg.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want default", cfg.IdleTimeout)
	}
	if cfg.FetchTimeout != DefaultFetchTimeout {
		t.Errorf("FetchTimeout = %v, want default", cfg.FetchTimeout)
	}
	if cfg.MaxQueueSize != event.DefaultMaxQueueSize {
		t.Errorf("MaxQueueSize = %d, want default", cfg.MaxQueueSize)
	}
}

func TestConfigWithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{HealthCheckInterval: time.Second, MaxQueueSize: 7}.WithDefaults()
	if cfg.HealthCheckInterval != time.Second {
		t.Errorf("HealthCheckInterval = %v, want 1s", cfg.HealthCheckInterval)
	}
	if cfg.MaxQueueSize != 7 {
		t.Errorf("MaxQueueSize = %d, want 7", cfg.MaxQueueSize)
	}
}

func TestPollIntervalFallback(t *testing.T) {
	cfg := Config{PollIntervals: map[string]time.Duration{"tracker": 10 * time.Second}}
	if got := cfg.PollInterval("tracker"); got != 10*time.Second {
		t.Errorf("PollInterval(tracker) = %v, want 10s", got)
	}
	if got := cfg.PollInterval("chat"); got != DefaultPollInterval {
		t.Errorf("PollInterval(chat) = %v, want default", got)
	}
}
