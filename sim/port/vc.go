package port

import (
	"fmt"

	"github.com/sarchlab/fabricsim/sim/packet"
)

// VirtualChannel is a bounded FIFO of packets on one port.
type VirtualChannel struct {
	capacity int
	priority int
	packets  []*packet.Packet
}

// NewVirtualChannel creates a VirtualChannel. The capacity must be positive.
func NewVirtualChannel(capacity, priority int) *VirtualChannel {
	if capacity <= 0 {
		panic(fmt.Sprintf("port: virtual channel capacity %d", capacity))
	}

	return &VirtualChannel{
		capacity: capacity,
		priority: priority,
		packets:  make([]*packet.Packet, 0, capacity),
	}
}

// Capacity returns the maximum number of packets.
func (vc *VirtualChannel) Capacity() int {
	return vc.capacity
}

// Priority returns the arbitration priority.
func (vc *VirtualChannel) Priority() int {
	return vc.priority
}

// Len returns the number of buffered packets.
func (vc *VirtualChannel) Len() int {
	return len(vc.packets)
}

// CanPush tells if one more packet fits.
func (vc *VirtualChannel) CanPush() bool {
	return len(vc.packets) < vc.capacity
}

// Push appends a packet. Pushing into a full channel panics.
func (vc *VirtualChannel) Push(pkt *packet.Packet) {
	if !vc.CanPush() {
		panic("port: virtual channel overflow")
	}

	vc.packets = append(vc.packets, pkt)
}

// Peek returns the head packet, or nil.
func (vc *VirtualChannel) Peek() *packet.Packet {
	if len(vc.packets) == 0 {
		return nil
	}

	return vc.packets[0]
}

// Pop removes and returns the head packet, or nil.
func (vc *VirtualChannel) Pop() *packet.Packet {
	if len(vc.packets) == 0 {
		return nil
	}

	pkt := vc.packets[0]
	vc.packets[0] = nil
	vc.packets = vc.packets[1:]

	return pkt
}

// CreditCounter tracks the credits a sender holds for one virtual channel.
type CreditCounter struct {
	initial int
	credits int
}

// NewCreditCounter creates a counter holding initial credits.
func NewCreditCounter(initial int) *CreditCounter {
	if initial < 0 {
		panic(fmt.Sprintf("port: negative initial credits %d", initial))
	}

	return &CreditCounter{initial: initial, credits: initial}
}

// Credits returns the spendable credits.
func (c *CreditCounter) Credits() int {
	return c.credits
}

// Initial returns the credit ceiling.
func (c *CreditCounter) Initial() int {
	return c.initial
}

// TryConsume spends one credit if available.
func (c *CreditCounter) TryConsume() bool {
	if c.credits == 0 {
		return false
	}

	c.credits--

	return true
}

// Return restores n credits, discarding any excess over the ceiling.
func (c *CreditCounter) Return(n int) {
	if n <= 0 {
		return
	}

	c.credits += n
	if c.credits > c.initial {
		c.credits = c.initial
	}
}
