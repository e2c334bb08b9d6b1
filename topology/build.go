package topology

import (
	"github.com/pkg/errors"
	"github.com/sarchlab/fabricsim/config"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/simulation"
)

// Starter is a component that injects work once the simulation starts.
type Starter interface {
	Start()
}

// Build creates the components of cfg and links them. Each connection adds
// a downstream port to its source and an upstream port to its destination,
// so port ids follow the order of the connections.
func Build(
	cfg *config.Config,
	s *simulation.Simulation,
	r *simulation.Registry,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, cc := range cfg.Components {
		ctor, ok := r.Lookup(cc.Type)
		if !ok {
			return errors.Errorf("component %s has unknown type %q",
				cc.Name, cc.Type)
		}

		comp, err := ctor(s, cc.Name, simulation.Params(cc.Params))
		if err != nil {
			return errors.Wrapf(err, "creating %s", cc.Name)
		}

		s.RegisterComponent(comp)
	}

	if err := assignStreams(s.Components()); err != nil {
		return err
	}

	for _, conn := range cfg.Connections {
		s.RegisterPortPair(connect(s, conn))
	}

	return nil
}

func connect(s *simulation.Simulation, conn config.Connection) *port.PortPair {
	src := s.GetComponentByName(conn.Src)
	dst := s.GetComponentByName(conn.Dst)

	down := src.PortManager().AddDownstreamPort(conn.ResponseCapacities(), nil)
	down.SetDelay(conn.Latency)

	up := dst.PortManager().AddUpstreamPort(conn.VCs, conn.Priorities)

	if conn.CreditBased {
		return port.NewCreditPortPair(down, up, conn.Credits)
	}

	return port.NewPortPair(down, up)
}

// StreamOwner is a component that stamps a stream id on the requests it
// injects. Stream ids must be unique so that (stream id, sequence number)
// identifies a request in flight.
type StreamOwner interface {
	Name() string
	HasStreamID() bool
	AssignStreamID(id uint64)
	Stream() uint64
}

// assignStreams rejects duplicated explicit stream ids and gives every
// other stream owner the smallest id not taken yet.
func assignStreams(comps []simulation.Component) error {
	taken := make(map[uint64]string)

	var unassigned []StreamOwner

	for _, c := range comps {
		o, ok := c.(StreamOwner)
		if !ok {
			continue
		}

		if !o.HasStreamID() {
			unassigned = append(unassigned, o)
			continue
		}

		id := o.Stream()
		if other, dup := taken[id]; dup {
			return errors.Errorf("%s and %s share stream id %d",
				other, o.Name(), id)
		}

		taken[id] = o.Name()
	}

	next := uint64(0)

	for _, o := range unassigned {
		for {
			if _, used := taken[next]; !used {
				break
			}

			next++
		}

		o.AssignStreamID(next)
		taken[next] = o.Name()
	}

	return nil
}

// Start starts every component that injects work.
func Start(s *simulation.Simulation) {
	for _, c := range s.Components() {
		if st, ok := c.(Starter); ok {
			st.Start()
		}
	}
}
