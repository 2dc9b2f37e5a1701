// File: core/bufferqueue/core.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BufferQueue core: the slot table, the queued-frame FIFO and the monitor
// (one mutex, one condition variable) every operation runs under. The
// producer and consumer halves of the protocol live in producer.go and
// consumer.go.

package bufferqueue

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-gfx/api"
)

// queueIDCounter feeds process-unique default consumer names.
var queueIDCounter int32

func nextQueueID() int32 {
	return atomic.AddInt32(&queueIDCounter, 1)
}

// Stats is a snapshot of queue counters for the control plane.
type Stats struct {
	FramesQueued       uint64
	FramesDropped      uint64
	BuffersReallocated uint64
	FenceWaitTimeouts  uint64
	PendingBuffers     int
	FrameCounter       uint64
}

// BufferQueue mediates slot ownership between a single producer and a
// single consumer. All state below mu is guarded by it; dequeueCond is
// broadcast after every change that could unblock a waiting producer.
type BufferQueue struct {
	mu          sync.Mutex
	dequeueCond *sync.Cond

	slots [api.NumBufferSlots]bufferSlot

	// fifo holds *api.BufferItem in queue order. Membership mirrors the
	// set of QUEUED slots; the drop-front rule rewrites the head item in
	// place through its pointer.
	fifo *queue.Queue

	allocator        api.Allocator
	consumerListener api.ConsumerListener

	defaultWidth            uint32
	defaultHeight           uint32
	defaultBufferFormat     api.PixelFormat
	maxAcquiredBufferCount  int
	defaultMaxBufferCount   int
	overrideMaxBufferCount  int
	consumerControlledByApp bool
	dequeueCannotBlock      bool
	useAsyncBuffer          bool
	connectedAPI            api.ConnectionAPI
	abandoned               bool
	frameCounter            uint64
	bufferHasBeenQueued     bool
	consumerUsageBits       uint32
	transformHint           uint32
	consumerName            string

	dirtyRegions       [api.NumBufferSlots]api.Rect
	currentDirtyRegion api.Rect

	framesQueued       uint64
	framesDropped      uint64
	buffersReallocated uint64
	fenceWaitTimeouts  uint64
}

var (
	_ api.Producer = (*BufferQueue)(nil)
	_ api.Consumer = (*BufferQueue)(nil)
)

// New creates an empty queue bound to the given allocator.
func New(allocator api.Allocator) (*BufferQueue, error) {
	if allocator == nil {
		return nil, api.NewError(api.ErrCodeBadValue, "allocator must not be nil")
	}
	q := &BufferQueue{
		fifo:                   queue.New(),
		allocator:              allocator,
		defaultWidth:           1,
		defaultHeight:          1,
		defaultBufferFormat:    api.PixelFormatRGBA8888,
		maxAcquiredBufferCount: 1,
		defaultMaxBufferCount:  2,
		useAsyncBuffer:         true,
		connectedAPI:           api.NoConnectedAPI,
		consumerName:           fmt.Sprintf("unnamed-%d-%d", os.Getpid(), nextQueueID()),
	}
	q.dequeueCond = sync.NewCond(&q.mu)
	for i := range q.slots {
		q.slots[i].reset()
	}
	return q, nil
}

// minUndequeuedBufferCountLocked is the number of slots that must stay
// non-DEQUEUED so the consumer can hold in-flight buffers without starving
// the producer.
func (q *BufferQueue) minUndequeuedBufferCountLocked(async bool) int {
	if q.useAsyncBuffer || async {
		return 2
	}
	return 1
}

// minMaxBufferCountLocked is the smallest legal max buffer count.
func (q *BufferQueue) minMaxBufferCountLocked(async bool) int {
	return q.minUndequeuedBufferCountLocked(async) + 1
}

// maxBufferCountLocked derives the effective slot budget. An explicit
// override from SetBufferCount wins over the default.
func (q *BufferQueue) maxBufferCountLocked(async bool) int {
	if q.overrideMaxBufferCount != 0 {
		return q.overrideMaxBufferCount
	}
	count := q.defaultMaxBufferCount
	if minMax := q.minMaxBufferCountLocked(async); count < minMax {
		count = minMax
	}
	if count > api.NumBufferSlots {
		count = api.NumBufferSlots
	}
	return count
}

// freeBufferLocked drops the slot's allocation and returns it to FREE.
// A slot the consumer currently holds may still be sampled: its storage
// must not be unmapped here. The buffer is parked on the slot instead and
// the real free happens in ReleaseBuffer's cleanup branch.
func (q *BufferQueue) freeBufferLocked(slot int) {
	s := &q.slots[slot]
	if s.state == StateAcquired {
		s.needsCleanupOnRelease = true
		s.cleanupBuffer = s.buffer
	} else if s.buffer != nil {
		s.buffer.Release()
	}
	s.buffer = nil
	s.state = StateFree
	s.frameNumber = 0
	s.fence = api.NoFence
	s.requestBufferCalled = false
	s.acquireCalled = false
}

// freeAllBuffersLocked empties every slot and resets the queued marker.
func (q *BufferQueue) freeAllBuffersLocked() {
	q.bufferHasBeenQueued = false
	for i := range q.slots {
		q.freeBufferLocked(i)
	}
}

// clearFIFOLocked drops all pending items.
func (q *BufferQueue) clearFIFOLocked() {
	for q.fifo.Length() > 0 {
		q.fifo.Remove()
	}
}

// stillTracking reports whether a FIFO item still refers to the slot's
// current buffer. A slot freed out from under the FIFO (count change,
// disconnect) stops being tracked.
func (q *BufferQueue) stillTracking(item *api.BufferItem) bool {
	if item.Slot < 0 || item.Slot >= api.NumBufferSlots {
		return false
	}
	s := &q.slots[item.Slot]
	if s.buffer == nil || item.Buffer == nil {
		return false
	}
	return s.buffer.Handle() == item.Buffer.Handle()
}

// countsLocked tallies slots per state below limit.
func (q *BufferQueue) countsLocked(limit int) (dequeued, queued, acquired int) {
	for i := 0; i < limit; i++ {
		switch q.slots[i].state {
		case StateDequeued:
			dequeued++
		case StateQueued:
			queued++
		case StateAcquired:
			acquired++
		}
	}
	return
}

// Stats returns a snapshot of the queue counters.
func (q *BufferQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		FramesQueued:       q.framesQueued,
		FramesDropped:      q.framesDropped,
		BuffersReallocated: q.buffersReallocated,
		FenceWaitTimeouts:  q.fenceWaitTimeouts,
		PendingBuffers:     q.fifo.Length(),
		FrameCounter:       q.frameCounter,
	}
}

// DumpState emits a diagnostic snapshot for debug probes.
func (q *BufferQueue) DumpState() map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()
	states := make([]string, 0, api.NumBufferSlots)
	limit := q.maxBufferCountLocked(false)
	for i := 0; i < limit; i++ {
		states = append(states, q.slots[i].state.String())
	}
	return map[string]any{
		"name":           q.consumerName,
		"abandoned":      q.abandoned,
		"connected_api":  q.connectedAPI.String(),
		"slot_states":    states,
		"fifo_length":    q.fifo.Length(),
		"frame_counter":  q.frameCounter,
		"frames_dropped": q.framesDropped,
		"override_max":   q.overrideMaxBufferCount,
	}
}

// ConsumerName returns the current queue name for log prefixes.
func (q *BufferQueue) ConsumerName() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consumerName
}
