package mem

import (
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
)

// RespondEvent asks an endpoint to send a prepared response out of one of
// its upstream ports.
type RespondEvent struct {
	Rsp    *packet.Packet
	PortID int

	// Attempts counts the sends refused by backpressure so far.
	Attempts int
}

// SendOutcome tells what SendResponse did with a response.
type SendOutcome int

// Send outcomes.
const (
	Sent SendOutcome = iota
	Retrying
	Dropped
)

// SendResponse tries to send evt.Rsp. On backpressure the event is
// rescheduled to handler for the next cycle. A response that can never be
// sent, because the port does not exist or the channel id is out of range,
// is released.
func SendResponse(
	pm *port.PortManager,
	sched timing.EventScheduler,
	handler timing.Handler,
	evt RespondEvent,
) SendOutcome {
	up := pm.UpstreamPort(evt.PortID)
	if up == nil || !up.ValidVC(evt.Rsp.VCID) {
		pm.Pool().Release(evt.Rsp)
		return Dropped
	}

	if up.SendResp(evt.Rsp) {
		return Sent
	}

	evt.Attempts++
	sched.Schedule(handler, evt, 1)

	return Retrying
}
