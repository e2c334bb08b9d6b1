// Package routing decides which downstream port a packet leaves on and
// remembers how to send the answer back.
package routing

import (
	"sort"

	"github.com/pkg/errors"
)

// NoPort is returned by an AddressMapper that cannot route an address.
const NoPort = -1

// AddressMapper finds the downstream port index for an address.
type AddressMapper interface {
	Find(addr uint64) int
}

// Window maps the address range [Low, High) to a port.
type Window struct {
	Low  uint64 `yaml:"low"`
	High uint64 `yaml:"high"`
	Port int    `yaml:"port"`
}

// WindowTable routes addresses by disjoint address windows.
type WindowTable struct {
	windows     []Window
	defaultPort int
}

// NewWindowTable creates an empty table that routes nothing.
func NewWindowTable() *WindowTable {
	return &WindowTable{defaultPort: NoPort}
}

// AddWindow adds [low, high) -> port. Empty or overlapping windows are
// rejected.
func (t *WindowTable) AddWindow(low, high uint64, port int) error {
	if low >= high {
		return errors.Errorf("empty address window [0x%x, 0x%x)", low, high)
	}

	if port < 0 {
		return errors.Errorf("invalid port %d for window [0x%x, 0x%x)",
			port, low, high)
	}

	for _, w := range t.windows {
		if low < w.High && w.Low < high {
			return errors.Errorf(
				"window [0x%x, 0x%x) overlaps [0x%x, 0x%x)",
				low, high, w.Low, w.High)
		}
	}

	t.windows = append(t.windows, Window{Low: low, High: high, Port: port})
	sort.Slice(t.windows, func(i, j int) bool {
		return t.windows[i].Low < t.windows[j].Low
	})

	return nil
}

// SetDefault routes addresses outside every window to port. NoPort disables
// the default.
func (t *WindowTable) SetDefault(port int) {
	t.defaultPort = port
}

// Windows returns the windows ordered by their low address.
func (t *WindowTable) Windows() []Window {
	return t.windows
}

// Find returns the port of the window holding addr, the default port, or
// NoPort.
func (t *WindowTable) Find(addr uint64) int {
	i := sort.Search(len(t.windows), func(i int) bool {
		return t.windows[i].High > addr
	})

	if i < len(t.windows) && t.windows[i].Low <= addr {
		return t.windows[i].Port
	}

	return t.defaultPort
}

// InterleavedMapper spreads consecutive blocks of InterleavingSize bytes
// over NumPorts ports.
type InterleavedMapper struct {
	InterleavingSize uint64
	NumPorts         int
}

// NewInterleavedMapper creates an InterleavedMapper.
func NewInterleavedMapper(interleavingSize uint64, numPorts int) *InterleavedMapper {
	if interleavingSize == 0 {
		interleavingSize = 1
	}

	return &InterleavedMapper{
		InterleavingSize: interleavingSize,
		NumPorts:         numPorts,
	}
}

// Find returns addr / InterleavingSize % NumPorts, or NoPort when there are
// no ports.
func (m *InterleavedMapper) Find(addr uint64) int {
	if m.NumPorts <= 0 {
		return NoPort
	}

	return int(addr / m.InterleavingSize % uint64(m.NumPorts))
}
