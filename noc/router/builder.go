package router

import (
	"github.com/sarchlab/fabricsim/noc/routing"
	"github.com/sarchlab/fabricsim/sim/hooking"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sirupsen/logrus"
)

// Builder builds routers.
type Builder struct {
	sched       timing.EventScheduler
	pool        *packet.Pool
	logger      logrus.FieldLogger
	windows     []routing.Window
	defaultPort int
}

// MakeBuilder returns a Builder for a router without windows or a default
// port.
func MakeBuilder() Builder {
	return Builder{
		logger:      logrus.StandardLogger(),
		defaultPort: routing.NoPort,
	}
}

// WithEventScheduler sets the scheduler the ports of the router use.
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

// WithWindow routes [low, high) to downstream port portID.
func (b Builder) WithWindow(low, high uint64, portID int) Builder {
	b.windows = append(append([]routing.Window(nil), b.windows...),
		routing.Window{Low: low, High: high, Port: portID})

	return b
}

// WithWindows adds a list of windows.
func (b Builder) WithWindows(windows []routing.Window) Builder {
	b.windows = append(append([]routing.Window(nil), b.windows...),
		windows...)

	return b
}

// WithDefaultPort routes addresses outside every window to portID.
func (b Builder) WithDefaultPort(portID int) Builder {
	b.defaultPort = portID
	return b
}

// Build creates a router. Invalid windows are reported as an error.
func (b Builder) Build(name string) (*Comp, error) {
	if b.sched == nil {
		panic("router requires an event scheduler")
	}

	table := routing.NewWindowTable()
	for _, w := range b.windows {
		if err := table.AddWindow(w.Low, w.High, w.Port); err != nil {
			return nil, err
		}
	}

	table.SetDefault(b.defaultPort)

	pool := b.pool
	if pool == nil {
		pool = packet.DefaultPool()
	}

	c := &Comp{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		pool:         pool,
		logger:       b.logger.WithField("component", name),
		table:        table,
		returnPath:   routing.NewReturnPath(),
	}
	c.ports = port.NewPortManager(c, b.sched, pool)

	return c, nil
}
