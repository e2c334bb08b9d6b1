package timing

import (
	"sync"

	"github.com/sarchlab/fabricsim/sim/hooking"
)

// TickEvent asks a ticking component to run one cycle of work.
type TickEvent struct{}

// A Ticker is an object that updates states with ticks. Tick reports whether
// any progress was made.
type Ticker interface {
	Tick() bool
}

// TickScheduler schedules at most one tick event per cycle for a handler.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	scheduler EventScheduler

	hasScheduled bool
	nextTickTime VTimeInCycle
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	scheduler EventScheduler,
) *TickScheduler {
	return &TickScheduler{
		handler:   handler,
		scheduler: scheduler,
	}
}

// TickNow schedules a tick in the current cycle.
func (t *TickScheduler) TickNow() {
	t.tickAt(0)
}

// TickLater schedules a tick in the next cycle.
func (t *TickScheduler) TickLater() {
	t.tickAt(1)
}

func (t *TickScheduler) tickAt(delay int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	time := t.scheduler.CurrentCycle() + VTimeInCycle(delay)
	if t.hasScheduled && t.nextTickTime >= time {
		return
	}

	t.hasScheduled = true
	t.nextTickTime = time
	t.scheduler.Schedule(t.handler, TickEvent{}, delay)
}

// CurrentCycle returns the cycle of the underlying scheduler.
func (t *TickScheduler) CurrentCycle() VTimeInCycle {
	return t.scheduler.CurrentCycle()
}

// TickingComponent is a component that ticks itself every cycle while it
// keeps making progress and goes to sleep once it stalls. Port activity
// wakes it up again.
type TickingComponent struct {
	*hooking.HookableBase
	*TickScheduler

	name   string
	ticker Ticker
}

// NewTickingComponent creates a TickingComponent. The ticker is usually the
// struct that embeds the TickingComponent.
func NewTickingComponent(
	name string,
	scheduler EventScheduler,
	ticker Ticker,
) *TickingComponent {
	tc := &TickingComponent{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		ticker:       ticker,
	}
	tc.TickScheduler = NewTickScheduler(tc, scheduler)

	return tc
}

// Name returns the component name.
func (c *TickingComponent) Name() string {
	return c.name
}

// Handle runs one tick.
func (c *TickingComponent) Handle(event any) error {
	if _, ok := event.(TickEvent); !ok {
		return nil
	}

	if c.ticker.Tick() {
		c.TickLater()
	}

	return nil
}

// NotifyRecv wakes the component after a packet arrives.
func (c *TickingComponent) NotifyRecv() {
	c.TickLater()
}

// NotifyPortFree wakes the component after a port frees buffer space.
func (c *TickingComponent) NotifyPortFree() {
	c.TickLater()
}
