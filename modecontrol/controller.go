// Package modecontrol implements the mode controller of the time conductor:
// for one operating mode it decides which time systems and tick sources are
// valid, translates ticks and delta changes into the visible window, and
// manages the single live tick-source subscription.
package modecontrol

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/time-conductor/conductor"
	"github.com/signalsfoundry/time-conductor/internal/logging"
	"github.com/signalsfoundry/time-conductor/internal/observability"
	"github.com/signalsfoundry/time-conductor/model"
	"github.com/signalsfoundry/time-conductor/timesys"
)

// Conductor is the view of the time conductor the controller drives. The
// controller is the sole mutator of bounds and follow state in this scope;
// time-system changes arrive from the outside via OnTimeSystemChange.
type Conductor interface {
	Bounds() model.Bounds
	SetBounds(model.Bounds)
	TimeSystem() timesys.TimeSystem
	SetFollow(bool)
	OnTimeSystemChange(func(timesys.TimeSystem)) *conductor.Subscription
}

// Zoom is the result of a zoom calculation. Deltas is nil when no tick
// source is active (fixed-style zoom produces only bounds). The caller
// applies the result via SetDeltas or Conductor.SetBounds; CalculateZoom
// itself mutates nothing.
type Zoom struct {
	Bounds model.Bounds
	Deltas *model.Deltas
}

// Controller binds one mode to a conductor and a catalog of time systems.
//
// The valid-system set is computed once at construction and never changes;
// the valid-source set is recomputed on every time-system change. At most
// one live tick-source subscription exists at any time.
type Controller struct {
	mode      model.Mode
	cond      Conductor
	log       logging.Logger
	collector *observability.ConductorCollector

	mu         sync.Mutex
	systems    []timesys.TimeSystem
	sources    []timesys.TickSource
	deltas     *model.Deltas
	source     timesys.TickSource
	cancelTick func()
	sub        *conductor.Subscription
}

// New constructs a controller for mode over the given time-system catalog.
// If the conductor already has a time system selected, the controller
// configures itself for it immediately; either way it stays registered for
// future time-system changes until Destroy. log and collector may be nil.
func New(mode model.Mode, cond Conductor, systems []timesys.TimeSystem, log logging.Logger, collector *observability.ConductorCollector) *Controller {
	c := &Controller{
		mode:      mode,
		cond:      cond,
		log:       logging.OrNoop(log).With(logging.String("mode", mode.Key)),
		collector: collector,
		systems:   filterSystems(mode, systems),
	}

	if ts := cond.TimeSystem(); ts != nil {
		c.changeTimeSystem(ts)
	}
	c.sub = cond.OnTimeSystemChange(c.changeTimeSystem)

	return c
}

// Metadata returns the controller's mode descriptor.
func (c *Controller) Metadata() model.Mode {
	return c.mode
}

// AvailableTimeSystems returns the time systems valid for this mode. The
// set is fixed at construction.
func (c *Controller) AvailableTimeSystems() []timesys.TimeSystem {
	out := make([]timesys.TimeSystem, len(c.systems))
	copy(out, c.systems)
	return out
}

// AvailableTickSources returns the tick sources valid for the currently
// selected time system. The argument is accepted for interface symmetry
// but ignored: callers get sources for ts only after the conductor has
// switched to it.
func (c *Controller) AvailableTickSources(ts timesys.TimeSystem) []timesys.TickSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]timesys.TickSource, len(c.sources))
	copy(out, c.sources)
	return out
}

// TickSource returns the currently active tick source, or nil.
func (c *Controller) TickSource() timesys.TickSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// SetTickSource swaps the active tick source. Any previous subscription is
// released before the new one is established, so at most one tick callback
// is ever registered. A nil source takes the conductor out of follow state.
func (c *Controller) SetTickSource(src timesys.TickSource) {
	c.mu.Lock()
	prevCancel := c.cancelTick
	c.cancelTick = nil
	c.source = src
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	if src == nil {
		c.cond.SetFollow(false)
		c.log.Debug(context.Background(), "tick source cleared")
		return
	}

	cancel := src.Listen(c.tick)
	c.mu.Lock()
	c.cancelTick = cancel
	c.mu.Unlock()

	c.cond.SetFollow(true)
	c.log.Debug(context.Background(), "tick source set",
		logging.String("source", src.Key()),
	)
}

// Deltas returns the current deltas; ok is false when none are set.
func (c *Controller) Deltas() (d model.Deltas, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deltas == nil {
		return model.Deltas{}, false
	}
	return *c.deltas, true
}

// SetDeltas stores new deltas and, outside fixed mode, pushes the
// recomputed window to the conductor. The window is computed before the
// stored deltas are overwritten: the old forward delta is needed to recover
// the pivot from the current end bound. In fixed mode bounds are left
// untouched; fixed windows are set by explicit bounds edits.
func (c *Controller) SetDeltas(d model.Deltas) {
	c.mu.Lock()
	previous := model.Deltas{}
	if c.deltas != nil {
		previous = *c.deltas
	}
	bounds := BoundsFromDeltas(c.cond.Bounds(), previous, d)
	stored := d
	c.deltas = &stored
	c.mu.Unlock()

	if !c.mode.IsFixed() {
		c.cond.SetBounds(bounds)
	}

	c.log.Debug(context.Background(), "deltas updated",
		logging.Int64("delta_start", d.Start),
		logging.Int64("delta_end", d.End),
	)
}

// CalculateZoom computes the deltas and bounds for a target total window
// duration. With an active tick source only the backward delta changes;
// the forward delta (usually zero) is preserved and the window stays
// anchored to the pivot. Without a tick source the current window is
// resized around its center. State is not mutated.
func (c *Controller) CalculateZoom(timeSpan int64) Zoom {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != nil {
		current := model.Deltas{}
		if c.deltas != nil {
			current = *c.deltas
		}
		next := model.Deltas{Start: timeSpan, End: current.End}
		return Zoom{
			Bounds: BoundsFromDeltas(c.cond.Bounds(), current, next),
			Deltas: &next,
		}
	}

	center := c.cond.Bounds().Center()
	return Zoom{
		Bounds: model.Bounds{
			Start: center - timeSpan/2,
			End:   center + timeSpan/2,
		},
	}
}

// Destroy unregisters the controller from the conductor and releases any
// live tick subscription. Behaviour of other methods after Destroy is
// unspecified.
func (c *Controller) Destroy() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	cancel := c.cancelTick
	c.cancelTick = nil
	c.source = nil
	c.mu.Unlock()

	sub.Cancel()
	if cancel != nil {
		cancel()
	}
}

// changeTimeSystem reconfigures the controller for a newly selected time
// system: push its default window, reset deltas (which recomputes bounds
// outside fixed mode), rebuild the valid-source set for this mode, and
// activate the first valid source. Deltas and tick sources never carry
// across time systems; units and epoch semantics differ.
func (c *Controller) changeTimeSystem(ts timesys.TimeSystem) {
	defaults := timesys.Defaults{}
	if ts != nil {
		if d, ok := ts.Defaults(); ok {
			defaults = d
		}
	}

	c.cond.SetBounds(defaults.Bounds)
	c.SetDeltas(defaults.Deltas)

	var sources []timesys.TickSource
	if ts != nil {
		sources = filterSources(ts.TickSources(), c.mode.Key)
	}

	c.mu.Lock()
	c.sources = sources
	c.mu.Unlock()

	var next timesys.TickSource
	if len(sources) > 0 {
		next = sources[0]
	}
	c.SetTickSource(next)

	c.collector.SetActiveTickSources(len(sources))

	key := ""
	if ts != nil {
		key = ts.Key()
	}
	c.log.Info(context.Background(), "controller reconfigured for time system",
		logging.String("time_system", key),
		logging.Int("tick_sources", len(sources)),
	)
}

// tick converts a tick value into new bounds around the current deltas and
// pushes them to the conductor. This is the only path by which live modes
// advance the window; it runs in O(1) and never triggers a time-system
// change. The method value used in SetTickSource keeps the handler's
// identity fixed for the controller's life.
func (c *Controller) tick(t int64) {
	started := time.Now()

	c.mu.Lock()
	bounds := model.Bounds{Start: t, End: t}
	if c.deltas != nil {
		bounds = model.Bounds{Start: t - c.deltas.Start, End: t + c.deltas.End}
	}
	sourceKey := ""
	if c.source != nil {
		sourceKey = c.source.Key()
	}
	c.mu.Unlock()

	c.cond.SetBounds(bounds)
	c.collector.ObserveTick(c.mode.Key, sourceKey, time.Since(started))
}

// filterSystems computes the time systems valid for mode. Fixed mode is
// universally compatible and keeps the whole catalog; any other mode keeps
// the systems having at least one tick source tagged with the mode's key.
func filterSystems(mode model.Mode, catalog []timesys.TimeSystem) []timesys.TimeSystem {
	if mode.IsFixed() {
		out := make([]timesys.TimeSystem, len(catalog))
		copy(out, catalog)
		return out
	}

	out := make([]timesys.TimeSystem, 0, len(catalog))
	for _, ts := range catalog {
		if len(filterSources(ts.TickSources(), mode.Key)) > 0 {
			out = append(out, ts)
		}
	}
	return out
}

// filterSources keeps the tick sources tagged with the given mode key.
func filterSources(sources []timesys.TickSource, modeKey string) []timesys.TickSource {
	out := make([]timesys.TickSource, 0, len(sources))
	for _, src := range sources {
		if src != nil && src.Mode() == modeKey {
			out = append(out, src)
		}
	}
	return out
}
