// Package timesys defines the time-system and tick-source abstractions the
// conductor operates over, together with the concrete implementations used
// by the dashboard: a wall-clock ticker, an externally driven telemetry
// feed, and the UTC and sidereal time systems built on top of them.
package timesys

import "github.com/signalsfoundry/time-conductor/model"

// Defaults is the window a time system suggests when it becomes active.
type Defaults struct {
	Bounds model.Bounds
	Deltas model.Deltas
}

// TimeSystem is a unit/epoch definition for time values. It exposes the
// tick sources able to produce values in its unit, and an optional default
// window. Implementations are read-only from the conductor's perspective.
type TimeSystem interface {
	// Key uniquely identifies the time system.
	Key() string
	// Name is a human-readable label.
	Name() string
	// TickSources returns the sources able to drive this time system,
	// in preference order. May be empty.
	TickSources() []TickSource
	// Defaults returns the suggested initial window, if the time system
	// defines one.
	Defaults() (Defaults, bool)
}

// TickSource is a live feed of time values in some time system's unit.
type TickSource interface {
	// Key uniquely identifies the source.
	Key() string
	// Mode is the conductor mode this source supports. A source is only
	// usable by a controller whose mode key matches.
	Mode() string
	// Listen registers fn to receive ticks and returns a cancel function
	// that stops delivery to fn. Cancel is safe to call more than once.
	Listen(fn func(int64)) (cancel func())
}
