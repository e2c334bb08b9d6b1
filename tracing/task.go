package tracing

import "github.com/sarchlab/fabricsim/sim/timing"

// A TaskStep represents a milestone in the processing of a task.
type TaskStep struct {
	Time timing.VTimeInCycle `json:"time"`
	What string              `json:"what"`
}

// A Task is a piece of work tracked from start to end, such as one
// transaction crossing the fabric.
type Task struct {
	ID        string              `json:"id"`
	ParentID  string              `json:"parent_id"`
	Kind      string              `json:"kind"`
	What      string              `json:"what"`
	Where     string              `json:"where"`
	StartTime timing.VTimeInCycle `json:"start_time"`
	EndTime   timing.VTimeInCycle `json:"end_time"`
	Steps     []TaskStep          `json:"steps"`
	Detail    any                 `json:"-"`
}

// TaskFilter selects interesting tasks.
type TaskFilter func(t Task) bool
