package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder receives operational conditions from monitors (fetch
// failures, watcher errors) for the event log. Implementations must be
// safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, typ, source, detail string)
}

// nopRecorder discards every record.
type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string) {}

// runner is the loop template shared by all monitor variants: a ticker
// drives poll cycles, an optional wake channel triggers an immediate
// extra cycle, and Stop is cooperative — the current cycle finishes,
// then the goroutine exits.
type runner struct {
	name     string
	interval time.Duration

	running  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newRunner(name string, interval time.Duration) runner {
	return runner{
		name:     name,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Name returns the monitor's source name.
func (r *runner) Name() string { return r.name }

// Running reports whether the loop goroutine is alive.
func (r *runner) Running() bool { return r.running.Load() }

// start spawns the loop goroutine. poll runs once per cycle; wake, when
// non-nil, forces an immediate cycle (used by the fsnotify safety net —
// the ticker remains the contract, the watcher only cuts latency).
func (r *runner) start(ctx context.Context, poll func(ctx context.Context), wake <-chan struct{}) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)
		defer r.running.Store(false)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				poll(ctx)
			case <-wake:
				poll(ctx)
			}
		}
	}()
}

// Stop asks the loop to exit and waits for the current cycle to finish.
// Safe to call multiple times and before start.
func (r *runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.running.Load() {
		<-r.done
	}
}
