package trafficgen

import (
	"github.com/iti/rngstream"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sirupsen/logrus"
)

// Builder builds traffic generators.
type Builder struct {
	sched          timing.EventScheduler
	pool           *packet.Pool
	logger         logrus.FieldLogger
	numRequests    int
	startCycle     timing.VTimeInCycle
	interval       int
	readRatio      float64
	addrLow        uint64
	addrHigh       uint64
	alignment      uint64
	size           uint32
	maxOutstanding int
	streamID       uint64
	streamSet      bool
	rngName        string
}

// MakeBuilder returns a Builder for a generator that sends 100 reads, one
// per cycle, to 64-byte aligned addresses in the first MB.
func MakeBuilder() Builder {
	return Builder{
		logger:      logrus.StandardLogger(),
		numRequests: 100,
		interval:    1,
		readRatio:   1,
		addrHigh:    1 << 20,
		alignment:   64,
		size:        4,
	}
}

// WithEventScheduler sets the scheduler the generator runs on.
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

// WithNumRequests sets how many requests are injected.
func (b Builder) WithNumRequests(n int) Builder {
	b.numRequests = n
	return b
}

// WithStartCycle sets the cycle of the first injection.
func (b Builder) WithStartCycle(cycle timing.VTimeInCycle) Builder {
	b.startCycle = cycle
	return b
}

// WithInterval sets the cycles between two injections.
func (b Builder) WithInterval(cycles int) Builder {
	b.interval = cycles
	return b
}

// WithReadRatio sets the probability that a request is a read.
func (b Builder) WithReadRatio(r float64) Builder {
	b.readRatio = r
	return b
}

// WithAddressRange sets the [low, high) range addresses are drawn from.
func (b Builder) WithAddressRange(low, high uint64) Builder {
	b.addrLow = low
	b.addrHigh = high

	return b
}

// WithAlignment sets the alignment of generated addresses.
func (b Builder) WithAlignment(alignment uint64) Builder {
	b.alignment = alignment
	return b
}

// WithRequestSize sets the number of bytes each request accesses.
func (b Builder) WithRequestSize(size uint32) Builder {
	b.size = size
	return b
}

// WithMaxOutstanding limits the number of requests waiting for a response.
// Zero means no limit.
func (b Builder) WithMaxOutstanding(n int) Builder {
	b.maxOutstanding = n
	return b
}

// WithStreamID sets the stream id stamped on every request. Generators
// without one get a free id when a topology is built.
func (b Builder) WithStreamID(id uint64) Builder {
	b.streamID = id
	b.streamSet = true

	return b
}

// WithRandomStream names the random number stream. The component name is
// used by default.
func (b Builder) WithRandomStream(name string) Builder {
	b.rngName = name
	return b
}

// Build creates a traffic generator.
func (b Builder) Build(name string) *Comp {
	if b.sched == nil {
		panic("traffic generator requires an event scheduler")
	}

	if b.interval <= 0 {
		panic("traffic generator interval must be positive")
	}

	if b.alignment == 0 {
		b.alignment = 1
	}

	if b.addrHigh < b.addrLow+b.alignment {
		panic("traffic generator address range is smaller than one block")
	}

	if b.size > packet.PayloadCapacity {
		panic("traffic generator request size exceeds the payload capacity")
	}

	pool := b.pool
	if pool == nil {
		pool = packet.DefaultPool()
	}

	rngName := b.rngName
	if rngName == "" {
		rngName = name
	}

	c := &Comp{
		sched:          b.sched,
		pool:           pool,
		logger:         b.logger.WithField("component", name),
		rng:            rngstream.New(rngName),
		NumRequests:    b.numRequests,
		StartCycle:     b.startCycle,
		Interval:       b.interval,
		ReadRatio:      b.readRatio,
		AddrLow:        b.addrLow,
		AddrHigh:       b.addrHigh,
		Alignment:      b.alignment,
		RequestSize:    b.size,
		MaxOutstanding: b.maxOutstanding,
		StreamID:       b.streamID,
		streamSet:      b.streamSet,
	}
	c.TickingComponent = timing.NewTickingComponent(name, b.sched, c)
	c.ports = port.NewPortManager(c, b.sched, pool)

	return c
}
