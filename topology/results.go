package topology

import (
	"github.com/sarchlab/fabricsim/noc/trafficgen"
	"github.com/sarchlab/fabricsim/sim/port"
	"github.com/sarchlab/fabricsim/simulation"
)

// PortStatsEntry is a row of the port_stats table.
type PortStatsEntry struct {
	Component  string
	Port       string
	Direction  string
	ReqCount   uint64
	RespCount  uint64
	Dropped    uint64
	TotalDelay uint64
	MinDelay   uint64
	MaxDelay   uint64
	AvgDelay   float64
}

// PoolEntry is a row of the pool table.
type PoolEntry struct {
	Cycle        uint64
	CurrentUsage uint64
	PeakUsage    uint64
	Acquired     uint64
	Released     uint64
}

// Summaries returns the summaries of every traffic generator.
func Summaries(s *simulation.Simulation) []trafficgen.Summary {
	var summaries []trafficgen.Summary

	for _, c := range s.Components() {
		if g, ok := c.(*trafficgen.Comp); ok {
			summaries = append(summaries, g.Summary())
		}
	}

	return summaries
}

// RecordResults writes port statistics, traffic summaries and pool usage
// into the data recorder of the simulation.
func RecordResults(s *simulation.Simulation) {
	rec := s.GetDataRecorder()

	rec.CreateTable("port_stats", PortStatsEntry{})

	for _, c := range s.Components() {
		for _, p := range c.PortManager().AllPorts() {
			rec.InsertData("port_stats", newPortStatsEntry(c.Name(), p))
		}
	}

	rec.CreateTable("traffic", trafficgen.Summary{})

	for _, summary := range Summaries(s) {
		rec.InsertData("traffic", summary)
	}

	stats := s.Pool().Stats()

	rec.CreateTable("pool", PoolEntry{})
	rec.InsertData("pool", PoolEntry{
		Cycle:        uint64(s.EventQueue().CurrentCycle()),
		CurrentUsage: stats.CurrentUsage,
		PeakUsage:    stats.PeakUsage,
		Acquired:     stats.Acquired,
		Released:     stats.Released,
	})

	rec.Flush()
}

func newPortStatsEntry(component string, p port.Port) PortStatsEntry {
	direction := "upstream"
	if _, ok := p.(*port.DownstreamPort); ok {
		direction = "downstream"
	}

	stats := p.Stats()

	return PortStatsEntry{
		Component:  component,
		Port:       p.Label(),
		Direction:  direction,
		ReqCount:   stats.ReqCount,
		RespCount:  stats.RespCount,
		Dropped:    stats.Dropped,
		TotalDelay: stats.TotalDelay,
		MinDelay:   stats.MinDelay,
		MaxDelay:   stats.MaxDelay,
		AvgDelay:   stats.AvgDelay(),
	}
}
