// Package tracing reports the lifecycle of transactions to tracers through
// the hooks of the components that handle them.
package tracing

import (
	"fmt"

	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
)

// NamedHookable represents something that has a name and can be hooked.
type NamedHookable interface {
	hooking.Hookable
	Name() string
	Hooks() []hooking.Hook
}

// Hook positions for task events.
var (
	HookPosTaskStart = &hooking.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "HookPosTaskEnd"}
)

// Steps recorded along the path of a transaction.
const (
	StepRouted    = "routed"
	StepHit       = "hit"
	StepMiss      = "miss"
	StepForwarded = "forwarded"
	StepServed    = "served"
	StepRelayed   = "relayed"
	StepDropped   = "dropped"
)

// PacketTaskID names the transaction a packet belongs to. Requests and the
// responses answering them share the ID.
func PacketTaskID(pkt *packet.Packet) string {
	return fmt.Sprintf("txn-%d-%d", pkt.StreamID, pkt.SeqNum)
}

// StartTask notifies the hooks of domain that a task started.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	detail any,
) {
	if domain.NumHooks() == 0 {
		return
	}

	if id == "" || kind == "" || what == "" {
		panic("tracing: task id, kind and what must not be empty")
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStart,
		Item: Task{
			ID:       id,
			ParentID: parentID,
			Kind:     kind,
			What:     what,
			Where:    domain.Name(),
			Detail:   detail,
		},
	})
}

// AddTaskStep marks that a milestone has been reached in a task.
func AddTaskStep(id string, domain NamedHookable, what string) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStep,
		Item: Task{
			ID:    id,
			Where: domain.Name(),
			Steps: []TaskStep{{What: what}},
		},
	})
}

// EndTask notifies the hooks about the end of a task.
func EndTask(id string, domain NamedHookable) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskEnd,
		Item:   Task{ID: id, Where: domain.Name()},
	})
}
