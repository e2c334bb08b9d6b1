package cache

import (
	"github.com/sarchlab/fabricsim/noc/routing"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sirupsen/logrus"
)

// Builder builds cache endpoints.
type Builder struct {
	sched            timing.EventScheduler
	pool             *packet.Pool
	logger           logrus.FieldLogger
	hitMask          uint64
	hitLatency       int
	relayLatency     int
	bufferSize       int
	interleavingSize uint64
	mapper           routing.AddressMapper
	nodeID           int
}

// MakeBuilder returns a Builder with the default cache parameters.
func MakeBuilder() Builder {
	return Builder{
		logger:           logrus.StandardLogger(),
		hitMask:          0x7,
		hitLatency:       1,
		relayLatency:     1,
		bufferSize:       4,
		interleavingSize: 256,
	}
}

// WithEventScheduler sets the scheduler the cache runs on.
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

// WithHitMask sets the address bits that must all be zero for a hit.
func (b Builder) WithHitMask(mask uint64) Builder {
	b.hitMask = mask
	return b
}

// WithHitLatency sets the cycles between a hit and its response.
func (b Builder) WithHitLatency(cycles int) Builder {
	b.hitLatency = cycles
	return b
}

// WithRelayLatency sets the cycles between a downstream response and the
// upstream response it produces.
func (b Builder) WithRelayLatency(cycles int) Builder {
	b.relayLatency = cycles
	return b
}

// WithBufferSize sets how many misses may wait to be forwarded.
func (b Builder) WithBufferSize(n int) Builder {
	b.bufferSize = n
	return b
}

// WithInterleavingSize sets the block size used to spread misses over the
// downstream ports.
func (b Builder) WithInterleavingSize(size uint64) Builder {
	b.interleavingSize = size
	return b
}

// WithAddressMapper replaces the interleaved downstream port selection.
func (b Builder) WithAddressMapper(m routing.AddressMapper) Builder {
	b.mapper = m
	return b
}

// WithNodeID sets the id stamped as the source of forwarded misses.
func (b Builder) WithNodeID(id int) Builder {
	b.nodeID = id
	return b
}

// Build creates a cache endpoint.
func (b Builder) Build(name string) *Comp {
	if b.sched == nil {
		panic("cache requires an event scheduler")
	}

	if b.bufferSize <= 0 {
		panic("cache buffer size must be positive")
	}

	if b.hitLatency < 0 || b.relayLatency < 0 {
		panic("cache latency cannot be negative")
	}

	pool := b.pool
	if pool == nil {
		pool = packet.DefaultPool()
	}

	c := &Comp{
		sched:            b.sched,
		pool:             pool,
		logger:           b.logger.WithField("component", name),
		HitMask:          b.hitMask,
		HitLatency:       b.hitLatency,
		RelayLatency:     b.relayLatency,
		bufferSize:       b.bufferSize,
		interleavingSize: b.interleavingSize,
		mapper:           b.mapper,
		NodeID:           b.nodeID,
		inflight:         make(map[packet.Ref]missEntry),
	}
	c.TickingComponent = timing.NewTickingComponent(name, b.sched, c)
	c.ports = port.NewPortManager(c, b.sched, pool)

	return c
}
