// Implements the per-server FIFO that holds requests waiting for the processor.

package sim

import (
	"fmt"
	"strings"
)

// WaitQueue is a FIFO of request ids waiting behind a server's current request.
// Capacity is enforced by the owning Server, not by the queue.
type WaitQueue struct {
	queue []RequestID
}

// Enqueue adds a request to the back of the queue.
func (wq *WaitQueue) Enqueue(id RequestID) {
	wq.queue = append(wq.queue, id)
}

// String renders the queue front to back, e.g. "[3 1 2]".
func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range wq.queue {
		sb.WriteString(fmt.Sprint(val))
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of waiting requests.
func (wq *WaitQueue) Len() int {
	return len(wq.queue)
}

// Items returns a copy of the queue contents in FIFO order.
func (wq *WaitQueue) Items() []RequestID {
	out := make([]RequestID, len(wq.queue))
	copy(out, wq.queue)
	return out
}

// Dequeue removes and returns the request at the front.
// The boolean is false if the queue is empty.
func (wq *WaitQueue) Dequeue() (RequestID, bool) {
	if len(wq.queue) == 0 {
		return 0, false
	}
	head := wq.queue[0]
	wq.queue = wq.queue[1:]
	return head, true
}

// Clear drops every waiting request.
func (wq *WaitQueue) Clear() {
	wq.queue = nil
}
