// Package mem holds what terminal endpoints share: the backing storage and
// the logic that sends prepared responses back upstream.
package mem

import "github.com/pkg/errors"

// Byte size units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// A Storage keeps the data of the simulated address space.
//
// The storage is managed in units of unitSize bytes. Units that are never
// touched are never allocated.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage with the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4 * KB,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the capacity in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) unit(addr uint64) ([]byte, error) {
	if addr >= s.capacity {
		return nil, errors.Errorf(
			"address 0x%x beyond storage capacity 0x%x", addr, s.capacity)
	}

	base := addr - addr%s.unitSize

	u, ok := s.data[base]
	if !ok {
		u = make([]byte, s.unitSize)
		s.data[base] = u
	}

	return u, nil
}

// Read returns n bytes starting at addr.
func (s *Storage) Read(addr, n uint64) ([]byte, error) {
	res := make([]byte, n)

	for done := uint64(0); done < n; {
		cur := addr + done

		u, err := s.unit(cur)
		if err != nil {
			return nil, err
		}

		offset := cur % s.unitSize
		done += uint64(copy(res[done:], u[offset:]))
	}

	return res, nil
}

// Write stores data starting at addr.
func (s *Storage) Write(addr uint64, data []byte) error {
	for done := 0; done < len(data); {
		cur := addr + uint64(done)

		u, err := s.unit(cur)
		if err != nil {
			return err
		}

		offset := cur % s.unitSize
		done += copy(u[offset:], data[done:])
	}

	return nil
}
