package crossbar

import (
	"github.com/sarchlab/fabricsim/noc/routing"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sirupsen/logrus"
)

// Builder builds crossbars.
type Builder struct {
	sched      timing.EventScheduler
	pool       *packet.Pool
	logger     logrus.FieldLogger
	bufferSize int
	mapper     routing.AddressMapper
}

// MakeBuilder returns a Builder for a crossbar with 64 pending slots.
func MakeBuilder() Builder {
	return Builder{
		logger:     logrus.StandardLogger(),
		bufferSize: 64,
	}
}

// WithEventScheduler sets the scheduler the crossbar runs on.
func (b Builder) WithEventScheduler(sched timing.EventScheduler) Builder {
	b.sched = sched
	return b
}

// WithPool sets the packet pool.
func (b Builder) WithPool(pool *packet.Pool) Builder {
	b.pool = pool
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithBufferSize sets how many requests may wait in the crossbar.
func (b Builder) WithBufferSize(n int) Builder {
	b.bufferSize = n
	return b
}

// WithAddressMapper replaces the address modulo port count routing.
func (b Builder) WithAddressMapper(m routing.AddressMapper) Builder {
	b.mapper = m
	return b
}

// Build creates a crossbar.
func (b Builder) Build(name string) *Comp {
	if b.sched == nil {
		panic("crossbar requires an event scheduler")
	}

	if b.bufferSize <= 0 {
		panic("crossbar buffer size must be positive")
	}

	pool := b.pool
	if pool == nil {
		pool = packet.DefaultPool()
	}

	c := &Comp{
		pool:       pool,
		logger:     b.logger.WithField("component", name),
		bufferSize: b.bufferSize,
		mapper:     b.mapper,
		returnPath: routing.NewReturnPath(),
	}
	c.TickingComponent = timing.NewTickingComponent(name, b.sched, c)
	c.ports = port.NewPortManager(c, b.sched, pool)

	return c
}
