package tracing

import (
	"sync"

	"github.com/sarchlab/fabricsim/datarecording"
	"github.com/sarchlab/fabricsim/sim/timing"
)

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime uint64
	EndTime   uint64
}

type stepTableEntry struct {
	TaskID   string
	Location string
	What     string
	Time     uint64
}

// DBTracer stores completed tasks and their steps into a DataRecorder.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime timing.VTimeInCycle

	tracingTasks map[string]Task
}

// NewDBTracer creates a DBTracer writing into the tables trace and
// trace_steps.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	backend datarecording.DataRecorder,
) *DBTracer {
	backend.CreateTable("trace", taskTableEntry{})
	backend.CreateTable("trace_steps", stepTableEntry{})

	return &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}
}

// SetTimeRange limits tracing to tasks that overlap [startTime, endTime].
// An endTime of 0 means no upper bound.
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTimeInCycle) {
	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task.StartTime = t.timeTeller.CurrentCycle()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask records a step of a traced task.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tracingTasks[task.ID]; !ok {
		return
	}

	now := t.timeTeller.CurrentCycle()
	for _, s := range task.Steps {
		t.backend.InsertData("trace_steps", stepTableEntry{
			TaskID:   task.ID,
			Location: task.Where,
			What:     s.What,
			Time:     uint64(now),
		})
	}
}

// EndTask writes the task.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	original, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	end := t.timeTeller.CurrentCycle()
	if end < t.startTime {
		return
	}

	t.backend.InsertData("trace", taskTableEntry{
		ID:        original.ID,
		ParentID:  original.ParentID,
		Kind:      original.Kind,
		What:      original.What,
		Location:  original.Where,
		StartTime: uint64(original.StartTime),
		EndTime:   uint64(end),
	})
}

// Terminate drops unfinished tasks and flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}
