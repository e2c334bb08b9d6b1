package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sarchlab/fabricsim/config"
	"github.com/sarchlab/fabricsim/noc/trafficgen"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/simulation"
	"github.com/sarchlab/fabricsim/topology"
	"github.com/sarchlab/fabricsim/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runOptions struct {
	cycles      uint64
	output      string
	monitor     bool
	monitorPort int
	openBrowser bool
	trace       bool
	logEvents   bool
	logTasks    bool
	logPorts    bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run <topology.yaml>",
	Short: "Run a simulation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSimulation(args[0], runOpts, os.Stdout)
	},
}

func init() {
	f := runCmd.Flags()
	f.Uint64Var(&runOpts.cycles, "cycles", 0,
		"cycles to simulate; overrides the topology, 0 runs until idle")
	f.StringVar(&runOpts.output, "output", envOr("FABRICSIM_OUTPUT", ""),
		"result database name without the .sqlite3 suffix")
	f.BoolVar(&runOpts.monitor, "monitor", false, "serve the live monitor")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"port of the live monitor")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"open the live monitor in a browser")
	f.BoolVar(&runOpts.trace, "trace", false,
		"record every transaction into the result database")
	f.BoolVar(&runOpts.logEvents, "log-events", false,
		"log every event at debug level")
	f.BoolVar(&runOpts.logTasks, "log-tasks", false,
		"log the steps of every transaction")
	f.BoolVar(&runOpts.logPorts, "log-ports", false,
		"log every packet crossing a port")
}

func runSimulation(path string, opts runOptions, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	b := simulation.MakeBuilder().WithOutputFileName(opts.output)
	if opts.monitor || opts.openBrowser {
		b = b.WithMonitorPort(opts.monitorPort)
	} else {
		b = b.WithoutMonitoring()
	}

	if opts.trace || cfg.Trace {
		b = b.WithTracing()
	}

	s, err := b.Build()
	if err != nil {
		return err
	}
	defer s.Terminate()

	if err := topology.Build(cfg, s, topology.DefaultRegistry()); err != nil {
		return err
	}

	attachLoggers(s, opts)

	attachProgressBars(s)

	if opts.openBrowser {
		if err := s.GetMonitor().OpenInBrowser(); err != nil {
			logrus.WithError(err).Warn("cannot open browser")
		}
	}

	topology.Start(s)

	cycles := cfg.Cycles
	if opts.cycles > 0 {
		cycles = opts.cycles
	}

	if cycles > 0 {
		err = s.Run(timing.VTimeInCycle(cycles))
	} else {
		err = s.Drain()
	}

	if err != nil {
		return err
	}

	topology.RecordResults(s)
	printSummaries(out, s.EventQueue().CurrentCycle(), topology.Summaries(s))

	return nil
}

func attachLoggers(s *simulation.Simulation, opts runOptions) {
	if opts.logEvents {
		s.EventQueue().AcceptHook(timing.NewEventLogger(s.Logger()))
	}

	for _, c := range s.Components() {
		if h, ok := c.(tracing.NamedHookable); ok && opts.logTasks {
			tracing.CollectTrace(h,
				tracing.NewLogTracer(s.EventQueue(), s.Logger()))
		}

		if !opts.logPorts {
			continue
		}

		for _, p := range c.PortManager().AllPorts() {
			p.AcceptHook(port.NewPortMsgLogger(s.Logger()))
		}
	}
}

func attachProgressBars(s *simulation.Simulation) {
	m := s.GetMonitor()
	if m == nil {
		return
	}

	for _, c := range s.Components() {
		if g, ok := c.(*trafficgen.Comp); ok {
			g.SetProgressTracker(
				m.CreateProgressBar(g.Name(), uint64(g.NumRequests)))
		}
	}
}

func printSummaries(
	out io.Writer,
	now timing.VTimeInCycle,
	summaries []trafficgen.Summary,
) {
	fmt.Fprintf(out, "Simulated %d cycles\n", now)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GENERATOR\tSENT\tRECEIVED\tERRORS\tMEAN\tSTDDEV\tP50\tP99")

	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.2f\t%.2f\t%.0f\t%.0f\n",
			s.Name, s.Sent, s.Received, s.Errors,
			s.Mean, s.StdDev, s.P50, s.P99)
	}

	w.Flush()
}
