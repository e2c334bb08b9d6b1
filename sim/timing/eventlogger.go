package timing

import (
	"reflect"

	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sirupsen/logrus"
)

// EventLogger is a hook that logs every event before it is handled.
type EventLogger struct {
	logger logrus.FieldLogger
}

// NewEventLogger returns a new EventLogger that writes to logger.
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	return &EventLogger{logger: logger}
}

type named interface {
	Name() string
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*ScheduledEvent)
	if !ok {
		return
	}

	handlerName := reflect.TypeOf(evt.Handler).String()
	if n, ok := evt.Handler.(named); ok {
		handlerName = n.Name()
	}

	h.logger.WithFields(logrus.Fields{
		"cycle":   evt.Time,
		"event":   reflect.TypeOf(evt.Event).String(),
		"handler": handlerName,
	}).Debug("event")
}
