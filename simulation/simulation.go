// Package simulation holds the services shared by every component of a
// simulation: the event queue, the packet pool, result recording, tracing
// and monitoring.
package simulation

import (
	"github.com/sarchlab/fabricsim/datarecording"
	"github.com/sarchlab/fabricsim/monitoring"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
)

// Component is a named simulation element that owns ports.
type Component interface {
	Name() string
	PortManager() *port.PortManager
}

// NodeIDSetter is a component that stamps its node id on the packets it
// creates.
type NodeIDSetter interface {
	SetNodeID(id int)
}

// A Simulation provides the services required to define a simulation.
type Simulation struct {
	id     string
	queue  *timing.EventQueue
	pool   *packet.Pool
	logger logrus.FieldLogger

	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	visTracer    *tracing.DBTracer
	traceOn      bool

	components    []Component
	compNameIndex map[string]int
	pairs         []*port.PortPair
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// EventQueue returns the event queue that drives the simulation.
func (s *Simulation) EventQueue() *timing.EventQueue {
	return s.queue
}

// Pool returns the packet pool of the simulation.
func (s *Simulation) Pool() *packet.Pool {
	return s.pool
}

// Logger returns the logger of the simulation.
func (s *Simulation) Logger() logrus.FieldLogger {
	return s.logger
}

// GetDataRecorder returns the data recorder used in the simulation.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetVisTracer returns the tracer that records transactions into the
// database.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// RegisterComponent registers a component with the simulation. Registering
// two components with the same name panics. Components get node ids in
// registration order, starting from 1.
func (s *Simulation) RegisterComponent(c Component) {
	compName := c.Name()
	if _, exists := s.compNameIndex[compName]; exists {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	if n, ok := c.(NodeIDSetter); ok {
		n.SetNodeID(len(s.components))
	}

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}

	if h, ok := c.(tracing.NamedHookable); ok && s.traceOn {
		tracing.CollectTrace(h, s.visTracer)
	}
}

// Components returns the registered components in registration order.
func (s *Simulation) Components() []Component {
	return s.components
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) Component {
	i, ok := s.compNameIndex[name]
	if !ok {
		return nil
	}

	return s.components[i]
}

// NodeID returns the node id of a registered component, or 0 if there is
// no component with that name.
func (s *Simulation) NodeID(name string) int {
	i, ok := s.compNameIndex[name]
	if !ok {
		return 0
	}

	return i + 1
}

// RegisterPortPair keeps track of a link.
func (s *Simulation) RegisterPortPair(pp *port.PortPair) {
	s.pairs = append(s.pairs, pp)
}

// PortPairs returns the registered links.
func (s *Simulation) PortPairs() []*port.PortPair {
	return s.pairs
}

// Run advances the simulation to cycle until.
func (s *Simulation) Run(until timing.VTimeInCycle) error {
	return s.queue.Run(until)
}

// Drain runs until no event is left.
func (s *Simulation) Drain() error {
	return s.queue.Drain()
}

// Terminate flushes the trace and closes the data recorder.
func (s *Simulation) Terminate() {
	s.visTracer.Terminate()

	if err := s.dataRecorder.Close(); err != nil {
		s.logger.WithError(err).Error("closing data recorder")
	}

	if s.monitor != nil {
		s.monitor.StopServer()
	}
}
