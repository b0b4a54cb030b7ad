package timesys

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/time-conductor/model"
)

// siderealDayMillis is the length of one mean sidereal day.
const siderealDayMillis = 86164090.5

// siderealDefaultLookback is the default backward window, ten sidereal minutes.
const siderealDefaultLookback = int64(10 * 60 * 1000)

// SiderealSystem presents time as milliseconds of Greenwich mean sidereal
// day, the axis ground-station operators use for antenna-pointing views.
// Tick sources wrap a wall-clock source and convert each tick through the
// GMST rotation angle.
type SiderealSystem struct {
	sources []TickSource

	now func() time.Time
}

// NewSiderealSystem constructs the sidereal time system. Each given source
// must emit UTC epoch milliseconds; it is wrapped so listeners receive
// sidereal milliseconds instead.
func NewSiderealSystem(sources ...TickSource) *SiderealSystem {
	wrapped := make([]TickSource, len(sources))
	for i, src := range sources {
		wrapped[i] = &siderealTick{inner: src}
	}
	return &SiderealSystem{
		sources: wrapped,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Key implements TimeSystem.
func (s *SiderealSystem) Key() string { return "gmst" }

// Name implements TimeSystem.
func (s *SiderealSystem) Name() string { return "Sidereal (GMST)" }

// TickSources implements TimeSystem.
func (s *SiderealSystem) TickSources() []TickSource {
	out := make([]TickSource, len(s.sources))
	copy(out, s.sources)
	return out
}

// Defaults implements TimeSystem.
func (s *SiderealSystem) Defaults() (Defaults, bool) {
	now := SiderealMillis(s.now())
	return Defaults{
		Bounds: model.Bounds{Start: now - siderealDefaultLookback, End: now},
		Deltas: model.Deltas{Start: siderealDefaultLookback, End: 0},
	}, true
}

// SiderealMillis converts a UTC instant to milliseconds of Greenwich mean
// sidereal day. Sub-second precision is dropped; the GMST angle itself is
// only meaningful to whole seconds on a dashboard axis.
func SiderealMillis(t time.Time) int64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	theta := satellite.ThetaG_JD(jd)

	frac := theta / (2 * math.Pi)
	frac -= math.Floor(frac)
	return int64(frac * siderealDayMillis)
}

// siderealTick converts a wall-clock tick source to sidereal milliseconds.
type siderealTick struct {
	inner TickSource
}

func (s *siderealTick) Key() string { return "gmst-" + s.inner.Key() }

func (s *siderealTick) Mode() string { return s.inner.Mode() }

func (s *siderealTick) Listen(fn func(int64)) func() {
	return s.inner.Listen(func(epochMillis int64) {
		fn(SiderealMillis(time.UnixMilli(epochMillis)))
	})
}
