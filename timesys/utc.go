package timesys

import (
	"time"

	"github.com/signalsfoundry/time-conductor/model"
)

// utcDefaultLookback is the default backward window for the UTC system.
const utcDefaultLookback = 30 * time.Minute

// UTCSystem is the primary time system of the dashboard: epoch milliseconds
// on the UTC wall clock. Its default window covers the last thirty minutes.
type UTCSystem struct {
	sources []TickSource

	// now is swapped in tests.
	now func() int64
}

// NewUTCSystem constructs the UTC time system with the given tick sources,
// in preference order.
func NewUTCSystem(sources ...TickSource) *UTCSystem {
	return &UTCSystem{
		sources: sources,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Key implements TimeSystem.
func (s *UTCSystem) Key() string { return "utc" }

// Name implements TimeSystem.
func (s *UTCSystem) Name() string { return "UTC" }

// TickSources implements TimeSystem.
func (s *UTCSystem) TickSources() []TickSource {
	out := make([]TickSource, len(s.sources))
	copy(out, s.sources)
	return out
}

// Defaults implements TimeSystem. The suggested window ends at the current
// wall-clock time and extends thirty minutes back.
func (s *UTCSystem) Defaults() (Defaults, bool) {
	now := s.now()
	lookback := utcDefaultLookback.Milliseconds()
	return Defaults{
		Bounds: model.Bounds{Start: now - lookback, End: now},
		Deltas: model.Deltas{Start: lookback, End: 0},
	}, true
}
