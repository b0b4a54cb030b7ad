package timesys

import "sync"

// RealtimeMode is the conductor mode served by TelemetryFeed.
const RealtimeMode = "realtime"

// TelemetryFeed is a TickSource driven by the telemetry ingest: every
// observed frame timestamp becomes a tick, so the visible window tracks the
// freshest data rather than the host clock. With no listeners registered,
// Observe is a no-op.
type TelemetryFeed struct {
	mu        sync.Mutex
	listeners map[int]func(int64)
	nextID    int
}

// NewTelemetryFeed constructs an empty feed.
func NewTelemetryFeed() *TelemetryFeed {
	return &TelemetryFeed{listeners: make(map[int]func(int64))}
}

// Key implements TickSource.
func (f *TelemetryFeed) Key() string { return "telemetry" }

// Mode implements TickSource.
func (f *TelemetryFeed) Mode() string { return RealtimeMode }

// Listen implements TickSource.
func (f *TelemetryFeed) Listen(fn func(int64)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Observe delivers a telemetry timestamp to all registered listeners.
func (f *TelemetryFeed) Observe(t int64) {
	f.mu.Lock()
	fns := make([]func(int64), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}
