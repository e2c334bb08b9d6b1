package timing

import "container/heap"

// eventHeap orders events by cycle, then by the order they were scheduled.
type eventHeap []*ScheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*ScheduledEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}

func (h *eventHeap) push(evt *ScheduledEvent) {
	heap.Push(h, evt)
}

func (h *eventHeap) pop() *ScheduledEvent {
	if h.Len() == 0 {
		return nil
	}

	return heap.Pop(h).(*ScheduledEvent)
}

func (h eventHeap) peek() *ScheduledEvent {
	if len(h) == 0 {
		return nil
	}

	return h[0]
}
