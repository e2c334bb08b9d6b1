package simulation

import (
	"github.com/rs/xid"
	"github.com/sarchlab/fabricsim/datarecording"
	"github.com/sarchlab/fabricsim/monitoring"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	traceOn        bool
	outputFileName string
	pool           *packet.Pool
	logger         logrus.FieldLogger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn: true,
		logger:    logrus.StandardLogger(),
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithTracing records the transactions of every registered component into
// the database.
func (b Builder) WithTracing() Builder {
	b.traceOn = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithPool sets the packet pool. The process-wide pool is used by default.
func (b Builder) WithPool(pool *packet.Pool) Builder {
	b.pool = pool
	return b
}

// WithLogger sets the logger handed to the components.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:            xid.New().String(),
		queue:         timing.NewEventQueue(),
		pool:          b.pool,
		logger:        b.logger,
		traceOn:       b.traceOn,
		compNameIndex: make(map[string]int),
	}

	if s.pool == nil {
		s.pool = packet.DefaultPool()
	}

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "fabricsim_" + s.id
	}

	recorder, err := datarecording.New(outputPath)
	if err != nil {
		return nil, err
	}

	s.dataRecorder = recorder
	s.visTracer = tracing.NewDBTracer(s.queue, s.dataRecorder)

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithLogger(b.logger)
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterEngine(s.queue)
		s.monitor.RegisterPool(s.pool)

		if _, err := s.monitor.StartServer(); err != nil {
			recorder.Close()
			return nil, err
		}
	}

	return s, nil
}
