package tracing

import (
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sirupsen/logrus"
)

// LogTracer writes task events into a logger at debug level.
type LogTracer struct {
	timeTeller timing.TimeTeller
	logger     logrus.FieldLogger
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(
	timeTeller timing.TimeTeller,
	logger logrus.FieldLogger,
) *LogTracer {
	return &LogTracer{timeTeller: timeTeller, logger: logger}
}

func (t *LogTracer) entry(task Task) *logrus.Entry {
	return t.logger.WithFields(logrus.Fields{
		"cycle": t.timeTeller.CurrentCycle(),
		"task":  task.ID,
		"where": task.Where,
	})
}

// StartTask logs the start of a task.
func (t *LogTracer) StartTask(task Task) {
	t.entry(task).
		WithField("kind", task.Kind).
		WithField("what", task.What).
		Debug("task start")
}

// StepTask logs a step of a task.
func (t *LogTracer) StepTask(task Task) {
	e := t.entry(task)
	for _, s := range task.Steps {
		e = e.WithField("step", s.What)
	}

	e.Debug("task step")
}

// EndTask logs the end of a task.
func (t *LogTracer) EndTask(task Task) {
	t.entry(task).Debug("task end")
}
