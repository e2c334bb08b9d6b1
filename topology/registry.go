// Package topology turns a configuration into a wired simulation.
package topology

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sarchlab/fabricsim/mem/cache"
	"github.com/sarchlab/fabricsim/mem/memory"
	"github.com/sarchlab/fabricsim/noc/crossbar"
	"github.com/sarchlab/fabricsim/noc/router"
	"github.com/sarchlab/fabricsim/noc/routing"
	"github.com/sarchlab/fabricsim/noc/trafficgen"
	"github.com/sarchlab/fabricsim/sim/packet"
	"github.com/sarchlab/fabricsim/sim/timing"
	"github.com/sarchlab/fabricsim/simulation"
)

// DefaultRegistry returns a registry with every built-in component type.
func DefaultRegistry() *simulation.Registry {
	r := simulation.NewRegistry()

	r.Register("memory", newMemory)
	r.Register("cache", newCache)
	r.Register("router", newRouter)
	r.Register("crossbar", newCrossbar)
	r.Register("trafficgen", newTrafficGen)

	return r
}

func allowOnly(p simulation.Params, keys ...string) error {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}

	var unknown []string

	for k := range p {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Errorf("unknown parameters %v", unknown)
	}

	return nil
}

// paramReader collects the first error met while reading parameters.
type paramReader struct {
	p   simulation.Params
	err error
}

func (r *paramReader) int(key string, def int) int {
	v, err := r.p.Int(key, def)
	r.keep(err)

	return v
}

func (r *paramReader) uint64(key string, def uint64) uint64 {
	v, err := r.p.Uint64(key, def)
	r.keep(err)

	return v
}

func (r *paramReader) float(key string, def float64) float64 {
	v, err := r.p.Float(key, def)
	r.keep(err)

	return v
}

func (r *paramReader) string(key string, def string) string {
	v, err := r.p.String(key, def)
	r.keep(err)

	return v
}

func (r *paramReader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

func newMemory(
	s *simulation.Simulation,
	name string,
	p simulation.Params,
) (simulation.Component, error) {
	if err := allowOnly(p, "latency", "capacity"); err != nil {
		return nil, err
	}

	r := &paramReader{p: p}
	latency := r.int("latency", 100)
	capacity := r.uint64("capacity", 4<<30)

	if r.err != nil {
		return nil, r.err
	}

	if latency < 0 {
		return nil, errors.Errorf("negative latency %d", latency)
	}

	return memory.MakeBuilder().
		WithEventScheduler(s.EventQueue()).
		WithPool(s.Pool()).
		WithLogger(s.Logger()).
		WithLatency(latency).
		WithNewStorage(capacity).
		Build(name), nil
}

func newCache(
	s *simulation.Simulation,
	name string,
	p simulation.Params,
) (simulation.Component, error) {
	if err := allowOnly(p, "hit_mask", "hit_latency", "relay_latency",
		"buffer_size", "interleaving"); err != nil {
		return nil, err
	}

	r := &paramReader{p: p}
	hitMask := r.uint64("hit_mask", 0x7)
	hitLatency := r.int("hit_latency", 1)
	relayLatency := r.int("relay_latency", 1)
	bufferSize := r.int("buffer_size", 4)
	interleaving := r.uint64("interleaving", 256)

	if r.err != nil {
		return nil, r.err
	}

	if hitLatency < 0 || relayLatency < 0 || bufferSize <= 0 {
		return nil, errors.New("cache latencies must be non-negative " +
			"and the buffer size positive")
	}

	return cache.MakeBuilder().
		WithEventScheduler(s.EventQueue()).
		WithPool(s.Pool()).
		WithLogger(s.Logger()).
		WithHitMask(hitMask).
		WithHitLatency(hitLatency).
		WithRelayLatency(relayLatency).
		WithBufferSize(bufferSize).
		WithInterleavingSize(interleaving).
		Build(name), nil
}

func newRouter(
	s *simulation.Simulation,
	name string,
	p simulation.Params,
) (simulation.Component, error) {
	if err := allowOnly(p, "windows", "default_port"); err != nil {
		return nil, err
	}

	r := &paramReader{p: p}
	defaultPort := r.int("default_port", routing.NoPort)

	windows, err := readWindows(p)
	r.keep(err)

	if r.err != nil {
		return nil, r.err
	}

	c, err := router.MakeBuilder().
		WithEventScheduler(s.EventQueue()).
		WithPool(s.Pool()).
		WithLogger(s.Logger()).
		WithWindows(windows).
		WithDefaultPort(defaultPort).
		Build(name)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func readWindows(p simulation.Params) ([]routing.Window, error) {
	items, err := p.List("windows")
	if err != nil {
		return nil, err
	}

	windows := make([]routing.Window, 0, len(items))

	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Errorf("window %d must be a mapping", i)
		}

		wp := simulation.Params(m)
		if err := allowOnly(wp, "low", "high", "port"); err != nil {
			return nil, errors.Wrapf(err, "window %d", i)
		}

		r := &paramReader{p: wp}
		w := routing.Window{
			Low:  r.uint64("low", 0),
			High: r.uint64("high", 0),
			Port: r.int("port", routing.NoPort),
		}

		if r.err != nil {
			return nil, errors.Wrapf(r.err, "window %d", i)
		}

		windows = append(windows, w)
	}

	return windows, nil
}

func newCrossbar(
	s *simulation.Simulation,
	name string,
	p simulation.Params,
) (simulation.Component, error) {
	if err := allowOnly(p, "buffer_size"); err != nil {
		return nil, err
	}

	r := &paramReader{p: p}
	bufferSize := r.int("buffer_size", 64)

	if r.err != nil {
		return nil, r.err
	}

	if bufferSize <= 0 {
		return nil, errors.Errorf("buffer size must be positive, got %d",
			bufferSize)
	}

	return crossbar.MakeBuilder().
		WithEventScheduler(s.EventQueue()).
		WithPool(s.Pool()).
		WithLogger(s.Logger()).
		WithBufferSize(bufferSize).
		Build(name), nil
}

func newTrafficGen(
	s *simulation.Simulation,
	name string,
	p simulation.Params,
) (simulation.Component, error) {
	if err := allowOnly(p, "num_requests", "start_cycle", "interval",
		"read_ratio", "addr_low", "addr_high", "alignment", "request_size",
		"max_outstanding", "stream_id", "rng_stream"); err != nil {
		return nil, err
	}

	r := &paramReader{p: p}
	numRequests := r.int("num_requests", 100)
	startCycle := r.uint64("start_cycle", 0)
	interval := r.int("interval", 1)
	readRatio := r.float("read_ratio", 1)
	addrLow := r.uint64("addr_low", 0)
	addrHigh := r.uint64("addr_high", 1<<20)
	alignment := r.uint64("alignment", 64)
	size := r.uint64("request_size", 4)
	maxOutstanding := r.int("max_outstanding", 0)
	streamID := r.uint64("stream_id", 0)
	rngStream := r.string("rng_stream", name)

	if r.err != nil {
		return nil, r.err
	}

	switch {
	case interval <= 0:
		return nil, errors.Errorf("interval must be positive, got %d", interval)
	case readRatio < 0 || readRatio > 1:
		return nil, errors.Errorf("read ratio %g is outside [0, 1]", readRatio)
	case alignment == 0 || addrHigh < addrLow+alignment:
		return nil, errors.Errorf("address range [0x%x, 0x%x) holds no block",
			addrLow, addrHigh)
	case size > packet.PayloadCapacity:
		return nil, errors.Errorf("request size %d exceeds %d bytes",
			size, packet.PayloadCapacity)
	}

	b := trafficgen.MakeBuilder().
		WithEventScheduler(s.EventQueue()).
		WithPool(s.Pool()).
		WithLogger(s.Logger()).
		WithNumRequests(numRequests).
		WithStartCycle(timing.VTimeInCycle(startCycle)).
		WithInterval(interval).
		WithReadRatio(readRatio).
		WithAddressRange(addrLow, addrHigh).
		WithAlignment(alignment).
		WithRequestSize(uint32(size)).
		WithMaxOutstanding(maxOutstanding).
		WithRandomStream(rngStream)

	if p.Has("stream_id") {
		b = b.WithStreamID(streamID)
	}

	return b.Build(name), nil
}

var (
	_ StreamOwner             = (*trafficgen.Comp)(nil)
	_ simulation.NodeIDSetter = (*trafficgen.Comp)(nil)
	_ simulation.NodeIDSetter = (*cache.Comp)(nil)
)
