package port

import (
	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sirupsen/logrus"
)

// PortMsgLogger is a hook that logs the packets passing through a port.
type PortMsgLogger struct {
	logger logrus.FieldLogger
}

// NewPortMsgLogger returns a new PortMsgLogger.
func NewPortMsgLogger(logger logrus.FieldLogger) *PortMsgLogger {
	return &PortMsgLogger{logger: logger}
}

type labeled interface {
	Label() string
}

// Func writes the packet information into the logger.
func (h *PortMsgLogger) Func(ctx hooking.HookCtx) {
	pkt, ok := ctx.Item.(*packet.Packet)
	if !ok {
		return
	}

	fields := logrus.Fields{
		"cycle":  ctx.Now,
		"pos":    ctx.Pos.Name,
		"packet": pkt.String(),
	}

	if p, ok := ctx.Domain.(labeled); ok {
		fields["port"] = p.Label()
	}

	h.logger.WithFields(fields).Debug("port msg")
}
