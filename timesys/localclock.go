package timesys

import (
	"sync"
	"time"
)

// LocalClockMode is the conductor mode served by LocalClock.
const LocalClockMode = "local-clock"

// LocalClock is a TickSource that emits the host wall-clock time as epoch
// milliseconds at a fixed period. The underlying ticker runs only while at
// least one listener is registered.
type LocalClock struct {
	mu        sync.Mutex
	period    time.Duration
	listeners map[int]func(int64)
	nextID    int
	stop      chan struct{}

	// now is swapped in tests to make tick values deterministic.
	now func() int64
}

// NewLocalClock constructs a clock ticking at the given period. A
// non-positive period defaults to one second.
func NewLocalClock(period time.Duration) *LocalClock {
	if period <= 0 {
		period = time.Second
	}
	return &LocalClock{
		period:    period,
		listeners: make(map[int]func(int64)),
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Key implements TickSource.
func (c *LocalClock) Key() string { return "local-clock" }

// Mode implements TickSource.
func (c *LocalClock) Mode() string { return LocalClockMode }

// Listen implements TickSource. The first listener starts the ticker
// goroutine; removing the last one stops it.
func (c *LocalClock) Listen(fn func(int64)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	if c.stop == nil {
		c.stop = make(chan struct{})
		go c.run(c.stop)
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			if len(c.listeners) == 0 && c.stop != nil {
				close(c.stop)
				c.stop = nil
			}
			c.mu.Unlock()
		})
	}
}

func (c *LocalClock) run(stop chan struct{}) {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.emit(c.now())
		}
	}
}

func (c *LocalClock) emit(t int64) {
	c.mu.Lock()
	fns := make([]func(int64), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}
