// File: core/bufferqueue/slot.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Slot table for the buffer queue. Each slot tracks one potential graphic
// buffer allocation through the FREE -> DEQUEUED -> QUEUED -> ACQUIRED
// lifecycle. All fields are guarded by the queue mutex.

package bufferqueue

import "github.com/momentics/hioload-gfx/api"

// BufferState is the lifecycle state of a slot.
type BufferState int

const (
	// StateFree: owned by the queue, dequeueable.
	StateFree BufferState = iota

	// StateDequeued: owned by the producer, being filled.
	StateDequeued

	// StateQueued: in the FIFO, awaiting acquire.
	StateQueued

	// StateAcquired: owned by the consumer, being sampled.
	StateAcquired
)

func (s BufferState) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateDequeued:
		return "DEQUEUED"
	case StateQueued:
		return "QUEUED"
	case StateAcquired:
		return "ACQUIRED"
	default:
		return "Unknown"
	}
}

// reallocFrameNumber marks a slot whose buffer was just reallocated and has
// not been queued yet. It sorts last in the LRU free-slot scan.
const reallocFrameNumber = ^uint64(0)

// bufferSlot is one entry of the slot table.
type bufferSlot struct {
	state BufferState

	// buffer is nil until the first dequeue allocates it, and again after
	// the slot is freed.
	buffer api.GraphicBuffer

	// frameNumber is assigned from the global counter at queue time. Zero
	// for never-queued or canceled slots, reallocFrameNumber right after a
	// reallocation.
	frameNumber uint64

	// fence is owned by whoever owns the slot: the producer while
	// DEQUEUED, the consumer while ACQUIRED.
	fence api.Fence

	// displayHandle is the opaque output handle stored on release.
	displayHandle any

	// requestBufferCalled records that the producer fetched the handle
	// since the last reallocation. A slot may only be queued after that.
	requestBufferCalled bool

	// acquireCalled records that the consumer has observed this slot's
	// current buffer, letting acquire elide the handle.
	acquireCalled bool

	// needsCleanupOnRelease is set when the slot is freed while the
	// consumer holds it; the eventual release then discards instead of
	// resurrecting the buffer.
	needsCleanupOnRelease bool

	// cleanupBuffer parks the allocation of a freed-while-acquired slot.
	// The consumer may still be reading the mapping, so it is released
	// only when the cleanup release arrives.
	cleanupBuffer api.GraphicBuffer
}

// reset returns a slot to its never-used shape. The buffer, if any, is the
// caller's to release first.
func (s *bufferSlot) reset() {
	*s = bufferSlot{state: StateFree, fence: api.NoFence}
}
