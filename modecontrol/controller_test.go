package modecontrol

import (
	"sync"
	"testing"

	"github.com/signalsfoundry/time-conductor/conductor"
	"github.com/signalsfoundry/time-conductor/model"
	"github.com/signalsfoundry/time-conductor/timesys"
)

// fakeConductor is a single-threaded conductor double recording every
// mutation the controller performs.
type fakeConductor struct {
	bounds      model.Bounds
	system      timesys.TimeSystem
	follow      bool
	boundsSets  []model.Bounds
	followCalls []bool
	handlers    map[int]func(timesys.TimeSystem)
	nextID      int
	cancels     int
}

func newFakeConductor() *fakeConductor {
	return &fakeConductor{handlers: make(map[int]func(timesys.TimeSystem))}
}

func (f *fakeConductor) Bounds() model.Bounds { return f.bounds }

func (f *fakeConductor) SetBounds(b model.Bounds) {
	f.bounds = b
	f.boundsSets = append(f.boundsSets, b)
}

func (f *fakeConductor) TimeSystem() timesys.TimeSystem { return f.system }

func (f *fakeConductor) SetFollow(v bool) {
	f.follow = v
	f.followCalls = append(f.followCalls, v)
}

func (f *fakeConductor) OnTimeSystemChange(fn func(timesys.TimeSystem)) *conductor.Subscription {
	id := f.nextID
	f.nextID++
	f.handlers[id] = fn
	return conductor.NewSubscription(func() {
		delete(f.handlers, id)
		f.cancels++
	})
}

// changeSystem mimics an external time-system switch on the conductor.
func (f *fakeConductor) changeSystem(ts timesys.TimeSystem) {
	f.system = ts
	for _, fn := range f.handlers {
		fn(ts)
	}
}

// fakeTickSource is a scripted tick source tracking live subscriptions.
type fakeTickSource struct {
	key     string
	mode    string
	fn      func(int64)
	live    int
	cancels int
}

func (s *fakeTickSource) Key() string  { return s.key }
func (s *fakeTickSource) Mode() string { return s.mode }

func (s *fakeTickSource) Listen(fn func(int64)) func() {
	s.fn = fn
	s.live++
	var once sync.Once
	return func() {
		once.Do(func() {
			s.live--
			s.cancels++
		})
	}
}

func (s *fakeTickSource) emit(t int64) {
	if s.live > 0 && s.fn != nil {
		s.fn(t)
	}
}

type fakeTimeSystem struct {
	key      string
	sources  []timesys.TickSource
	defaults *timesys.Defaults
}

func (ts *fakeTimeSystem) Key() string  { return ts.key }
func (ts *fakeTimeSystem) Name() string { return ts.key }

func (ts *fakeTimeSystem) TickSources() []timesys.TickSource { return ts.sources }

func (ts *fakeTimeSystem) Defaults() (timesys.Defaults, bool) {
	if ts.defaults == nil {
		return timesys.Defaults{}, false
	}
	return *ts.defaults, true
}

func realtimeMode() model.Mode {
	return model.Mode{Key: "realtime", Name: "Real-time"}
}

func fixedMode() model.Mode {
	return model.Mode{Key: model.FixedModeKey, Name: "Fixed Timespan"}
}

func TestAvailableTimeSystemsFixedModeKeepsWholeCatalog(t *testing.T) {
	withSource := &fakeTimeSystem{key: "utc", sources: []timesys.TickSource{
		&fakeTickSource{key: "telemetry", mode: "realtime"},
	}}
	otherSource := &fakeTimeSystem{key: "gmst", sources: []timesys.TickSource{
		&fakeTickSource{key: "clock", mode: "local-clock"},
	}}
	noSources := &fakeTimeSystem{key: "met"}
	catalog := []timesys.TimeSystem{withSource, otherSource, noSources}

	c := New(fixedMode(), newFakeConductor(), catalog, nil, nil)
	defer c.Destroy()

	got := c.AvailableTimeSystems()
	if len(got) != 3 {
		t.Fatalf("AvailableTimeSystems() len = %d, want 3", len(got))
	}
}

func TestAvailableTimeSystemsFiltersByTickSourceMode(t *testing.T) {
	matching := &fakeTimeSystem{key: "utc", sources: []timesys.TickSource{
		&fakeTickSource{key: "clock", mode: "local-clock"},
		&fakeTickSource{key: "telemetry", mode: "realtime"},
	}}
	nonMatching := &fakeTimeSystem{key: "gmst", sources: []timesys.TickSource{
		&fakeTickSource{key: "clock", mode: "local-clock"},
	}}
	noSources := &fakeTimeSystem{key: "met"}

	c := New(realtimeMode(), newFakeConductor(), []timesys.TimeSystem{matching, nonMatching, noSources}, nil, nil)
	defer c.Destroy()

	got := c.AvailableTimeSystems()
	if len(got) != 1 {
		t.Fatalf("AvailableTimeSystems() len = %d, want 1", len(got))
	}
	if got[0].Key() != "utc" {
		t.Fatalf("AvailableTimeSystems()[0].Key() = %q, want %q", got[0].Key(), "utc")
	}
}

func TestConstructorConfiguresForCurrentTimeSystem(t *testing.T) {
	src := &fakeTickSource{key: "telemetry", mode: "realtime"}
	ts := &fakeTimeSystem{
		key:     "utc",
		sources: []timesys.TickSource{src},
		defaults: &timesys.Defaults{
			Bounds: model.Bounds{Start: 900, End: 1000},
			Deltas: model.Deltas{Start: 100, End: 0},
		},
	}
	cond := newFakeConductor()
	cond.system = ts

	c := New(realtimeMode(), cond, []timesys.TimeSystem{ts}, nil, nil)
	defer c.Destroy()

	if got := c.TickSource(); got != src {
		t.Fatalf("TickSource() = %v, want the catalog source", got)
	}
	if src.live != 1 {
		t.Fatalf("live subscriptions on source = %d, want 1", src.live)
	}
	if !cond.follow {
		t.Fatal("conductor should be following after a live source is selected")
	}
	// Defaults bounds pushed first, then recomputed from deltas around the
	// pivot (end bound 1000).
	want := model.Bounds{Start: 900, End: 1000}
	if cond.bounds != want {
		t.Fatalf("bounds = %+v, want %+v", cond.bounds, want)
	}
	if d, ok := c.Deltas(); !ok || d != (model.Deltas{Start: 100, End: 0}) {
		t.Fatalf("Deltas() = %+v/%v, want {100 0}/true", d, ok)
	}
}

func TestChangeTimeSystemWithoutDefaultsSynthesizesZeros(t *testing.T) {
	ts := &fakeTimeSystem{key: "met"}
	cond := newFakeConductor()
	cond.bounds = model.Bounds{Start: 5, End: 50}

	c := New(realtimeMode(), cond, []timesys.TimeSystem{ts}, nil, nil)
	defer c.Destroy()

	cond.changeSystem(ts)

	if cond.bounds != (model.Bounds{}) {
		t.Fatalf("bounds = %+v, want zero bounds", cond.bounds)
	}
	if d, ok := c.Deltas(); !ok || !d.IsZero() {
		t.Fatalf("Deltas() = %+v/%v, want zero/true", d, ok)
	}
	if c.TickSource() != nil {
		t.Fatalf("TickSource() = %v, want nil for a system without sources", c.TickSource())
	}
	if cond.follow {
		t.Fatal("conductor must not follow when no tick source is available")
	}
}

func TestChangeTimeSystemRecomputesAvailableSources(t *testing.T) {
	first := &fakeTickSource{key: "telemetry", mode: "realtime"}
	foreign := &fakeTickSource{key: "clock", mode: "local-clock"}
	sysA := &fakeTimeSystem{key: "utc", sources: []timesys.TickSource{foreign, first}}
	sysB := &fakeTimeSystem{key: "met", sources: []timesys.TickSource{
		&fakeTickSource{key: "sim", mode: "realtime"},
	}}

	cond := newFakeConductor()
	c := New(realtimeMode(), cond, []timesys.TimeSystem{sysA, sysB}, nil, nil)
	defer c.Destroy()

	cond.changeSystem(sysA)

	got := c.AvailableTickSources(sysA)
	if len(got) != 1 || got[0] != timesys.TickSource(first) {
		t.Fatalf("AvailableTickSources() = %v, want only the realtime source", got)
	}
	if c.TickSource() != timesys.TickSource(first) {
		t.Fatalf("TickSource() = %v, want first valid source", c.TickSource())
	}

	// The argument is ignored: sources still reflect the current system.
	if gotB := c.AvailableTickSources(sysB); len(gotB) != 1 || gotB[0] != timesys.TickSource(first) {
		t.Fatalf("AvailableTickSources(other) = %v, want current system's sources", gotB)
	}

	cond.changeSystem(sysB)
	if gotB := c.AvailableTickSources(sysB); len(gotB) != 1 || gotB[0].Key() != "sim" {
		t.Fatalf("AvailableTickSources() after switch = %v, want met system's source", gotB)
	}
	if first.live != 0 {
		t.Fatalf("previous source still has %d live subscriptions, want 0", first.live)
	}
}

func TestSetTickSourceKeepsSingleLiveSubscription(t *testing.T) {
	a := &fakeTickSource{key: "a", mode: "realtime"}
	b := &fakeTickSource{key: "b", mode: "realtime"}
	cond := newFakeConductor()

	c := New(realtimeMode(), cond, nil, nil, nil)
	defer c.Destroy()

	c.SetTickSource(a)
	c.SetTickSource(b)

	if a.live != 0 || a.cancels != 1 {
		t.Fatalf("source a: live = %d cancels = %d, want 0/1", a.live, a.cancels)
	}
	if b.live != 1 {
		t.Fatalf("source b: live = %d, want 1", b.live)
	}
	if !cond.follow {
		t.Fatal("conductor should follow while a source is set")
	}

	c.SetTickSource(nil)
	if b.live != 0 || b.cancels != 1 {
		t.Fatalf("source b after clear: live = %d cancels = %d, want 0/1", b.live, b.cancels)
	}
	if cond.follow {
		t.Fatal("conductor must stop following when the source is cleared")
	}
}

func TestTickComputesBoundsAroundDeltas(t *testing.T) {
	src := &fakeTickSource{key: "telemetry", mode: "realtime"}
	cond := newFakeConductor()

	c := New(realtimeMode(), cond, nil, nil, nil)
	defer c.Destroy()

	c.SetTickSource(src)
	c.SetDeltas(model.Deltas{Start: 30, End: 5})

	src.emit(1000)
	want := model.Bounds{Start: 970, End: 1005}
	if cond.bounds != want {
		t.Fatalf("bounds after tick = %+v, want %+v", cond.bounds, want)
	}
}

func TestTickWithoutDeltasCollapsesToTickValue(t *testing.T) {
	src := &fakeTickSource{key: "telemetry", mode: "realtime"}
	cond := newFakeConductor()

	c := New(realtimeMode(), cond, nil, nil, nil)
	defer c.Destroy()

	c.SetTickSource(src)
	src.emit(4242)

	want := model.Bounds{Start: 4242, End: 4242}
	if cond.bounds != want {
		t.Fatalf("bounds after tick = %+v, want %+v", cond.bounds, want)
	}
}

func TestRepeatedDeltaChangesShareOnePivot(t *testing.T) {
	cond := newFakeConductor()
	cond.bounds = model.Bounds{Start: 1500, End: 2000}

	c := New(realtimeMode(), cond, nil, nil, nil)
	defer c.Destroy()

	c.SetDeltas(model.Deltas{Start: 300, End: 40})
	first := cond.bounds
	if first != (model.Bounds{Start: 1700, End: 2040}) {
		t.Fatalf("bounds after first deltas = %+v, want {1700 2040}", first)
	}

	c.SetDeltas(model.Deltas{Start: 100, End: 10})
	second := cond.bounds
	// Pivot stays 2000 regardless of the first application: no drift.
	if second != (model.Bounds{Start: 1900, End: 2010}) {
		t.Fatalf("bounds after second deltas = %+v, want {1900 2010}", second)
	}
}

func TestFixedModeDeltasNeverTouchBounds(t *testing.T) {
	cond := newFakeConductor()
	cond.bounds = model.Bounds{Start: 10, End: 20}

	c := New(fixedMode(), cond, nil, nil, nil)
	defer c.Destroy()

	c.SetDeltas(model.Deltas{Start: 500, End: 500})

	if cond.bounds != (model.Bounds{Start: 10, End: 20}) {
		t.Fatalf("bounds = %+v, want untouched {10 20}", cond.bounds)
	}
	if len(cond.boundsSets) != 0 {
		t.Fatalf("conductor received %d bounds updates, want 0", len(cond.boundsSets))
	}
	if d, ok := c.Deltas(); !ok || d != (model.Deltas{Start: 500, End: 500}) {
		t.Fatalf("Deltas() = %+v/%v, want stored deltas", d, ok)
	}
}

func TestCalculateZoomWithTickSource(t *testing.T) {
	src := &fakeTickSource{key: "telemetry", mode: "realtime"}
	cond := newFakeConductor()

	c := New(realtimeMode(), cond, nil, nil, nil)
	defer c.Destroy()

	c.SetTickSource(src)
	c.SetDeltas(model.Deltas{Start: 100, End: 0})
	src.emit(1000) // bounds now {900, 1000}

	zoom := c.CalculateZoom(50)
	if zoom.Deltas == nil {
		t.Fatal("zoom with a live source must produce deltas")
	}
	if *zoom.Deltas != (model.Deltas{Start: 50, End: 0}) {
		t.Fatalf("zoom deltas = %+v, want {50 0}", *zoom.Deltas)
	}
	if zoom.Bounds != (model.Bounds{Start: 950, End: 1000}) {
		t.Fatalf("zoom bounds = %+v, want {950 1000}", zoom.Bounds)
	}

	// CalculateZoom must not mutate state; only applying it does.
	if cond.bounds != (model.Bounds{Start: 900, End: 1000}) {
		t.Fatalf("bounds mutated by CalculateZoom: %+v", cond.bounds)
	}
	if d, _ := c.Deltas(); d != (model.Deltas{Start: 100, End: 0}) {
		t.Fatalf("deltas mutated by CalculateZoom: %+v", d)
	}

	c.SetDeltas(*zoom.Deltas)
	if cond.bounds != zoom.Bounds {
		t.Fatalf("applying zoom deltas gave %+v, want %+v", cond.bounds, zoom.Bounds)
	}
}

func TestCalculateZoomWithoutTickSourcePreservesCenter(t *testing.T) {
	cond := newFakeConductor()
	cond.bounds = model.Bounds{Start: 0, End: 100}

	c := New(fixedMode(), cond, nil, nil, nil)
	defer c.Destroy()

	zoom := c.CalculateZoom(40)
	if zoom.Deltas != nil {
		t.Fatalf("zoom without a source produced deltas %+v, want none", *zoom.Deltas)
	}
	if zoom.Bounds != (model.Bounds{Start: 30, End: 70}) {
		t.Fatalf("zoom bounds = %+v, want {30 70}", zoom.Bounds)
	}
}

func TestDestroyReleasesListenerAndTickSubscriptionOnce(t *testing.T) {
	src := &fakeTickSource{key: "telemetry", mode: "realtime"}
	cond := newFakeConductor()

	c := New(realtimeMode(), cond, nil, nil, nil)
	c.SetTickSource(src)

	c.Destroy()
	if cond.cancels != 1 {
		t.Fatalf("conductor subscription cancels = %d, want 1", cond.cancels)
	}
	if src.cancels != 1 || src.live != 0 {
		t.Fatalf("source cancels = %d live = %d, want 1/0", src.cancels, src.live)
	}

	c.Destroy()
	if cond.cancels != 1 || src.cancels != 1 {
		t.Fatalf("second Destroy released again: cond = %d src = %d", cond.cancels, src.cancels)
	}
}

func TestDestroyedControllerIgnoresLaterTimeSystemChanges(t *testing.T) {
	ts := &fakeTimeSystem{key: "utc", defaults: &timesys.Defaults{
		Bounds: model.Bounds{Start: 1, End: 2},
	}}
	cond := newFakeConductor()

	c := New(realtimeMode(), cond, []timesys.TimeSystem{ts}, nil, nil)
	c.Destroy()

	cond.changeSystem(ts)
	if len(cond.boundsSets) != 0 {
		t.Fatalf("destroyed controller pushed %d bounds updates, want 0", len(cond.boundsSets))
	}
}
