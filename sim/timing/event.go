// Package timing provides the cycle-driven event queue that advances a
// fabric simulation, plus the ticking helpers components use to run once per
// cycle while they have work.
package timing

import "github.com/sarchlab/fabricsim/sim/hooking"

// VTimeInCycle is a point in simulated time, counted in cycles.
type VTimeInCycle uint64

// Handler processes events. Events are plain data values and handlers select
// on their type:
//
//	func (c *Comp) Handle(event any) error {
//	    switch e := event.(type) {
//	    case *respondEvent:
//	        return c.respond(e)
//	    case TickEvent:
//	        return c.TickingComponent.Handle(e)
//	    default:
//	        return fmt.Errorf("unknown event type: %T", event)
//	    }
//	}
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current cycle.
type TimeTeller interface {
	CurrentCycle() VTimeInCycle
}

// EventScheduler schedules events relative to the current cycle.
type EventScheduler interface {
	TimeTeller

	// Schedule makes handler receive event delay cycles from now. A zero
	// delay runs the event later in the current cycle, after every event
	// that is already queued for this cycle.
	Schedule(handler Handler, event any, delay int)
}

// ScheduledEvent is what the queue stores for each pending event.
type ScheduledEvent struct {
	// Event is the payload delivered to the handler.
	Event any

	// Time is the cycle at which the event fires.
	Time VTimeInCycle

	// Handler receives the event.
	Handler Handler

	seq uint64
}

// HookPosBeforeEvent fires right before an event is handled.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent fires right after an event is handled.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
