// Package conductor holds the time conductor: the shared state describing
// what slice of time the dashboard is looking at (bounds), in which unit
// (time system), and whether that slice is pinned by the user or following
// a live tick source.
package conductor

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/time-conductor/internal/logging"
	"github.com/signalsfoundry/time-conductor/internal/observability"
	"github.com/signalsfoundry/time-conductor/model"
	"github.com/signalsfoundry/time-conductor/timesys"
)

const tracerName = "github.com/signalsfoundry/time-conductor/conductor"

// TimeConductor is the concrete conductor. Mode controllers mutate it
// through bounds and follow updates; application code switches its time
// system, which is dispatched synchronously to registered handlers.
type TimeConductor struct {
	mu      sync.Mutex
	bounds  model.Bounds
	system  timesys.TimeSystem
	follow  bool
	nextSub int
	subs    map[int]func(timesys.TimeSystem)

	log       logging.Logger
	collector *observability.ConductorCollector
}

// New constructs an empty conductor: zero bounds, no time system, not
// following. Both log and collector may be nil.
func New(log logging.Logger, collector *observability.ConductorCollector) *TimeConductor {
	return &TimeConductor{
		subs:      make(map[int]func(timesys.TimeSystem)),
		log:       logging.OrNoop(log),
		collector: collector,
	}
}

// Bounds returns the current visible window.
func (c *TimeConductor) Bounds() model.Bounds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bounds
}

// SetBounds replaces the current visible window.
func (c *TimeConductor) SetBounds(b model.Bounds) {
	c.mu.Lock()
	c.bounds = b
	c.mu.Unlock()

	c.collector.ObserveBoundsUpdate()
	c.log.Debug(context.Background(), "bounds updated",
		logging.Int64("start", b.Start),
		logging.Int64("end", b.End),
	)
}

// TimeSystem returns the currently selected time system, or nil when none
// has been selected yet.
func (c *TimeConductor) TimeSystem() timesys.TimeSystem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.system
}

// SetTimeSystem selects a new time system and synchronously dispatches it
// to every live subscription. Handlers may call back into the conductor
// (e.g. SetBounds); dispatch happens outside the conductor's lock.
func (c *TimeConductor) SetTimeSystem(ctx context.Context, ts timesys.TimeSystem) {
	key := ""
	if ts != nil {
		key = ts.Key()
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Conductor/SetTimeSystem")
	span.SetAttributes(attribute.String("time_system", key))
	defer span.End()

	c.mu.Lock()
	c.system = ts
	handlers := make([]func(timesys.TimeSystem), 0, len(c.subs))
	for _, fn := range c.subs {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	c.collector.ObserveTimeSystemChange(key)
	c.log.Info(ctx, "time system changed",
		logging.String("time_system", key),
		logging.Int("handlers", len(handlers)),
	)

	for _, fn := range handlers {
		fn(ts)
	}
}

// Follow reports whether the window is currently driven by a live tick
// source.
func (c *TimeConductor) Follow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.follow
}

// SetFollow records whether the window is being driven by a live tick
// source.
func (c *TimeConductor) SetFollow(following bool) {
	c.mu.Lock()
	c.follow = following
	c.mu.Unlock()

	c.collector.SetFollow(following)
	c.log.Debug(context.Background(), "follow state changed",
		logging.Bool("follow", following),
	)
}

// OnTimeSystemChange registers fn to run on every SetTimeSystem call and
// returns a handle that removes the registration when canceled.
func (c *TimeConductor) OnTimeSystemChange(fn func(timesys.TimeSystem)) *Subscription {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return NewSubscription(func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	})
}
