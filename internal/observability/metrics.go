package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConductorCollector bundles Prometheus metrics for the time conductor and
// its mode controllers. All observation methods tolerate a nil receiver so
// instrumented components can treat metrics as optional.
type ConductorCollector struct {
	gatherer prometheus.Gatherer

	TicksDelivered    *prometheus.CounterVec
	TickDurations     *prometheus.HistogramVec
	BoundsUpdates     prometheus.Counter
	TimeSystemChanges *prometheus.CounterVec
	FollowState       prometheus.Gauge
	ActiveTickSources prometheus.Gauge
}

// NewConductorCollector registers conductor Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewConductorCollector(reg prometheus.Registerer) (*ConductorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_ticks_total",
		Help: "Total ticks delivered to mode controllers, labeled by mode and tick source.",
	}, []string{"mode", "source"})
	ticks, err := registerCounterVec(reg, ticks, "conductor_ticks_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conductor_tick_handling_duration_seconds",
		Help:    "Time spent converting a tick into new bounds.",
		Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
	}, []string{"mode"})
	durations, err = registerHistogramVec(reg, durations, "conductor_tick_handling_duration_seconds")
	if err != nil {
		return nil, err
	}

	bounds, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conductor_bounds_updates_total",
		Help: "Total bounds updates pushed to the conductor.",
	}), "conductor_bounds_updates_total")
	if err != nil {
		return nil, err
	}

	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conductor_time_system_changes_total",
		Help: "Total time-system changes dispatched by the conductor, labeled by time system.",
	}, []string{"system"})
	changes, err = registerCounterVec(reg, changes, "conductor_time_system_changes_total")
	if err != nil {
		return nil, err
	}

	follow, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conductor_follow",
		Help: "Whether the conductor is currently following a live tick source (1) or fixed (0).",
	}), "conductor_follow")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conductor_available_tick_sources",
		Help: "Number of tick sources valid for the current time system and mode.",
	}), "conductor_available_tick_sources")
	if err != nil {
		return nil, err
	}

	return &ConductorCollector{
		gatherer:          gatherer,
		TicksDelivered:    ticks,
		TickDurations:     durations,
		BoundsUpdates:     bounds,
		TimeSystemChanges: changes,
		FollowState:       follow,
		ActiveTickSources: active,
	}, nil
}

// Handler returns an HTTP handler exposing the collector's registry.
func (c *ConductorCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records one tick delivery and the time taken to turn it into
// a bounds update.
func (c *ConductorCollector) ObserveTick(mode, source string, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.TicksDelivered != nil {
		c.TicksDelivered.WithLabelValues(mode, source).Inc()
	}
	if c.TickDurations != nil {
		c.TickDurations.WithLabelValues(mode).Observe(elapsed.Seconds())
	}
}

// ObserveBoundsUpdate records one bounds push to the conductor.
func (c *ConductorCollector) ObserveBoundsUpdate() {
	if c == nil || c.BoundsUpdates == nil {
		return
	}
	c.BoundsUpdates.Inc()
}

// ObserveTimeSystemChange records one time-system change dispatch.
func (c *ConductorCollector) ObserveTimeSystemChange(system string) {
	if c == nil || c.TimeSystemChanges == nil {
		return
	}
	c.TimeSystemChanges.WithLabelValues(system).Inc()
}

// SetFollow reflects the conductor's follow flag.
func (c *ConductorCollector) SetFollow(following bool) {
	if c == nil || c.FollowState == nil {
		return
	}
	if following {
		c.FollowState.Set(1)
	} else {
		c.FollowState.Set(0)
	}
}

// SetActiveTickSources reflects the size of the current valid-source set.
func (c *ConductorCollector) SetActiveTickSources(n int) {
	if c == nil || c.ActiveTickSources == nil {
		return
	}
	c.ActiveTickSources.Set(float64(n))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
