package timing

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/fabricsim/sim/hooking"
)

// EventQueue owns the current cycle and every pending event. It drains all
// events due at a cycle, in the order they were scheduled, before it moves
// on to a later cycle.
type EventQueue struct {
	*hooking.HookableBase

	timeLock sync.RWMutex
	now      VTimeInCycle

	queueLock sync.Mutex
	events    eventHeap
	nextSeq   uint64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

var _ EventScheduler = (*EventQueue)(nil)

// NewEventQueue creates an empty EventQueue at cycle 0.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		HookableBase: hooking.NewHookableBase(),
		events:       make(eventHeap, 0),
	}
}

// Schedule enqueues event for handler at CurrentCycle()+delay. A negative
// delay is a caller bug and panics.
func (q *EventQueue) Schedule(handler Handler, event any, delay int) {
	if delay < 0 {
		panic(fmt.Sprintf(
			"timing: negative delay %d for event %s", delay, reflect.TypeOf(event)))
	}

	q.ScheduleAt(handler, event, q.readNow()+VTimeInCycle(delay))
}

// ScheduleAt enqueues event for handler at an absolute cycle. Scheduling in
// the past panics.
func (q *EventQueue) ScheduleAt(handler Handler, event any, t VTimeInCycle) {
	if handler == nil {
		panic("timing: scheduling an event without a handler")
	}

	now := q.readNow()
	if t < now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(event), t, now,
		))
	}

	q.queueLock.Lock()
	q.nextSeq++
	q.events.push(&ScheduledEvent{
		Event:   event,
		Time:    t,
		Handler: handler,
		seq:     q.nextSeq,
	})
	q.queueLock.Unlock()
}

// CurrentCycle returns the last cycle the queue reached.
func (q *EventQueue) CurrentCycle() VTimeInCycle {
	return q.readNow()
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.queueLock.Lock()
	defer q.queueLock.Unlock()

	return q.events.Len()
}

func (q *EventQueue) readNow() VTimeInCycle {
	q.timeLock.RLock()
	t := q.now
	q.timeLock.RUnlock()

	return t
}

func (q *EventQueue) writeNow(t VTimeInCycle) {
	q.timeLock.Lock()
	q.now = t
	q.timeLock.Unlock()
}

// Run executes every event due at or before until and then leaves the
// current cycle at until. Running to a cycle that has already passed does
// nothing.
func (q *EventQueue) Run(until VTimeInCycle) error {
	q.singleRunLock.Lock()
	defer q.singleRunLock.Unlock()

	if until < q.readNow() {
		return nil
	}

	for {
		evt := q.nextEventDueBy(until)
		if evt == nil {
			break
		}

		if err := q.dispatch(evt); err != nil {
			return err
		}
	}

	q.writeNow(until)

	return nil
}

// Drain executes events until none is left. The current cycle stays at the
// time of the last event.
func (q *EventQueue) Drain() error {
	q.singleRunLock.Lock()
	defer q.singleRunLock.Unlock()

	for {
		q.queueLock.Lock()
		evt := q.events.pop()
		q.queueLock.Unlock()

		if evt == nil {
			return nil
		}

		if err := q.dispatch(evt); err != nil {
			return err
		}
	}
}

func (q *EventQueue) nextEventDueBy(until VTimeInCycle) *ScheduledEvent {
	q.queueLock.Lock()
	defer q.queueLock.Unlock()

	head := q.events.peek()
	if head == nil || head.Time > until {
		return nil
	}

	return q.events.pop()
}

func (q *EventQueue) dispatch(evt *ScheduledEvent) error {
	q.pauseLock.Lock()
	defer q.pauseLock.Unlock()

	now := q.readNow()
	if evt.Time < now {
		panic(fmt.Sprintf(
			"timing: cannot run event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt.Event), evt.Time, now,
		))
	}

	q.writeNow(evt.Time)

	hookCtx := hooking.HookCtx{
		Domain: q,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
		Now:    uint64(evt.Time),
	}
	q.InvokeHook(hookCtx)

	err := evt.Handler.Handle(evt.Event)

	hookCtx.Pos = HookPosAfterEvent
	q.InvokeHook(hookCtx)

	if err != nil {
		return errors.Wrapf(err,
			"handling %s at cycle %d", reflect.TypeOf(evt.Event), evt.Time)
	}

	return nil
}

// Pause stops the queue from dispatching more events until Continue is
// called.
func (q *EventQueue) Pause() {
	q.isPausedLock.Lock()
	defer q.isPausedLock.Unlock()

	if q.isPaused {
		return
	}

	q.pauseLock.Lock()
	q.isPaused = true
}

// Continue resumes dispatching after a Pause.
func (q *EventQueue) Continue() {
	q.isPausedLock.Lock()
	defer q.isPausedLock.Unlock()

	if !q.isPaused {
		return
	}

	q.pauseLock.Unlock()
	q.isPaused = false
}
