package memory

import (
	"github.com/sarchlab/fabricsim/mem/mem"
	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sirupsen/logrus"
)

// Builder builds memory endpoints.
type Builder struct {
	sched    timing.EventScheduler
	pool     *packet.Pool
	logger   logrus.FieldLogger
	latency  int
	capacity uint64
	storage  *mem.Storage
}

// MakeBuilder returns a Builder with a 100-cycle latency and 4 GB of
// storage.
func MakeBuilder() Builder {
	return Builder{
		latency:  100,
		capacity: 4 * mem.GB,
		logger:   logrus.StandardLogger(),
	}
}

// WithEventScheduler sets the scheduler the memory runs on.
func (b Builder) WithEventScheduler(sched timing.EventScheduler) Builder {
	b.sched = sched
	return b
}

// WithPool sets the packet pool.
func (b Builder) WithPool(pool *packet.Pool) Builder {
	b.pool = pool
	return b
}

// WithLatency sets the service latency in cycles.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithNewStorage makes the memory allocate its own storage of the given
// capacity.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage makes the memory use an existing storage.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// Build creates a memory endpoint.
func (b Builder) Build(name string) *Comp {
	if b.sched == nil {
		panic("memory requires an event scheduler")
	}

	if b.latency < 0 {
		panic("memory latency cannot be negative")
	}

	pool := b.pool
	if pool == nil {
		pool = packet.DefaultPool()
	}

	c := &Comp{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		sched:        b.sched,
		pool:         pool,
		Latency:      b.latency,
		Storage:      b.storage,
		logger:       b.logger.WithField("component", name),
	}

	if c.Storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	}

	c.ports = port.NewPortManager(c, b.sched, pool)

	return c
}
