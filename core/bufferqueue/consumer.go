// File: core/bufferqueue/consumer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Consumer half of the buffer queue protocol: acquire from the FIFO,
// release back to FREE, connection management, and the guarded queue-wide
// setters including dirty region tracking.

package bufferqueue

import (
	"log"

	"github.com/momentics/hioload-gfx/api"
)

// AcquireBuffer extracts the FIFO head into item. When presentWhen is
// non-zero, only items whose timestamp is not later are admitted. The
// buffer handle is elided when the consumer has already seen it.
func (q *BufferQueue) AcquireBuffer(presentWhen int64) (api.BufferItem, error) {
	var out api.BufferItem

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.fifo.Length() == 0 {
		return out, api.ErrNoBufferAvailable
	}
	front := q.fifo.Peek().(*api.BufferItem)
	if presentWhen != 0 && front.Timestamp > presentWhen {
		return out, api.ErrNoBufferAvailable
	}

	_, _, acquiredCount := q.countsLocked(api.NumBufferSlots)
	if acquiredCount >= q.maxAcquiredBufferCount {
		return out, api.NewError(api.ErrCodeInvalidState, "max acquired buffer count reached").
			WithContext("max", q.maxAcquiredBufferCount)
	}

	out = *front
	if q.stillTracking(front) {
		s := &q.slots[front.Slot]
		s.state = StateAcquired
		s.fence = front.Fence
		if s.acquireCalled {
			// The consumer already holds this allocation's handle.
			out.Buffer = nil
		}
		s.acquireCalled = true
	}
	q.fifo.Remove()
	return out, nil
}

// ReleaseBuffer returns an acquired slot to FREE. A release whose frame
// number no longer matches is stale and rejected; a slot freed while the
// consumer held it is quietly discarded instead of resurrected.
//
// No abandonment check here: a late release racing a disconnect must land
// in the cleanup path without surfacing an error to the consumer.
func (q *BufferQueue) ReleaseBuffer(slot int, frameNumber uint64, display any, releaseFence api.Fence) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if slot < 0 || slot >= api.NumBufferSlots {
		return api.NewError(api.ErrCodeBadValue, "slot index out of range").
			WithContext("slot", slot)
	}
	if releaseFence == nil {
		return api.NewError(api.ErrCodeBadValue, "fence is nil")
	}

	s := &q.slots[slot]
	if s.needsCleanupOnRelease {
		s.needsCleanupOnRelease = false
		if s.cleanupBuffer != nil {
			s.cleanupBuffer.Release()
			s.cleanupBuffer = nil
		}
		s.displayHandle = nil
		q.dequeueCond.Broadcast()
		return nil
	}
	if s.frameNumber != frameNumber {
		return api.NewError(api.ErrCodeInvalidState, "stale release").
			WithContext("slot", slot).
			WithContext("frame", frameNumber).
			WithContext("current", s.frameNumber)
	}
	if s.state != StateAcquired {
		return api.NewError(api.ErrCodeInvalidState, "slot is not acquired").
			WithContext("slot", slot).
			WithContext("state", s.state.String())
	}

	s.displayHandle = display
	s.fence = releaseFence
	s.state = StateFree
	q.dequeueCond.Broadcast()
	return nil
}

// ConsumerConnect attaches the consumer listener. Must happen before the
// producer connects.
func (q *BufferQueue) ConsumerConnect(listener api.ConsumerListener, controlledByApp bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return api.ErrNoInit
	}
	if listener == nil {
		return api.NewError(api.ErrCodeBadValue, "listener is nil")
	}
	q.consumerListener = listener
	q.consumerControlledByApp = controlledByApp
	return nil
}

// ConsumerDisconnect detaches the consumer and abandons the queue.
func (q *BufferQueue) ConsumerDisconnect() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumerListener == nil {
		return api.NewError(api.ErrCodeBadValue, "no consumer is connected")
	}
	log.Printf("[bufferqueue] %s: consumer disconnecting, abandoning queue", q.consumerName)
	q.abandoned = true
	q.consumerListener = nil
	q.clearFIFOLocked()
	q.freeAllBuffersLocked()
	q.dequeueCond.Broadcast()
	return nil
}

// SetConsumerListener swaps the callback target of a connected consumer.
func (q *BufferQueue) SetConsumerListener(listener api.ConsumerListener) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return api.ErrNoInit
	}
	if q.consumerListener == nil {
		return api.NewError(api.ErrCodeInvalidState, "no consumer is connected")
	}
	if listener == nil {
		return api.NewError(api.ErrCodeBadValue, "listener is nil")
	}
	q.consumerListener = listener
	return nil
}

// SetDefaultBufferSize sets the geometry used when the producer dequeues
// with zero width and height.
func (q *BufferQueue) SetDefaultBufferSize(width, height uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if width == 0 || height == 0 {
		return api.NewError(api.ErrCodeBadValue, "zero default size").
			WithContext("width", width).
			WithContext("height", height)
	}
	q.defaultWidth = width
	q.defaultHeight = height
	return nil
}

// SetDefaultBufferFormat sets the format substituted for format zero.
func (q *BufferQueue) SetDefaultBufferFormat(format api.PixelFormat) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.defaultBufferFormat = format
	return nil
}

// SetConsumerUsageBits sets usage bits or-ed into every dequeue request.
func (q *BufferQueue) SetConsumerUsageBits(usage uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumerUsageBits = usage
	return nil
}

// SetMaxAcquiredBufferCount bounds how many buffers the consumer may hold
// at once. Only legal while no producer is connected.
func (q *BufferQueue) SetMaxAcquiredBufferCount(count int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return api.ErrNoInit
	}
	if q.connectedAPI != api.NoConnectedAPI {
		return api.NewError(api.ErrCodeInvalidState, "producer is connected")
	}
	if count < 1 || count > api.NumBufferSlots-1 {
		return api.NewError(api.ErrCodeBadValue, "max acquired buffer count out of range").
			WithContext("count", count)
	}
	q.maxAcquiredBufferCount = count
	return nil
}

// SetDefaultMaxBufferCount sets the buffer budget used while no override
// is in place.
func (q *BufferQueue) SetDefaultMaxBufferCount(count int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	min := 1
	if q.useAsyncBuffer {
		min = 2
	}
	if count < min || count > api.NumBufferSlots {
		return api.NewError(api.ErrCodeBadValue, "default max buffer count out of range").
			WithContext("count", count).
			WithContext("min", min)
	}
	q.defaultMaxBufferCount = count
	q.dequeueCond.Broadcast()
	return nil
}

// SetConsumerName renames the queue for logs and probes.
func (q *BufferQueue) SetConsumerName(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumerName = name
}

// SetTransformHint publishes the transform the producer should pre-apply.
func (q *BufferQueue) SetTransformHint(hint uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transformHint = hint
	return nil
}

// DisableAsyncBuffer drops the extra undequeued buffer guarantee. Only
// legal before the consumer connects.
func (q *BufferQueue) DisableAsyncBuffer() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumerListener != nil {
		return api.NewError(api.ErrCodeInvalidState, "consumer is already connected")
	}
	q.useAsyncBuffer = false
	return nil
}

// UpdateDirtyRegion records the dirty rectangle for a slot. A side channel
// for partial updates; no queue invariant depends on it.
func (q *BufferQueue) UpdateDirtyRegion(slot int, left, top, right, bottom int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if slot < 0 || slot >= api.NumBufferSlots {
		return api.NewError(api.ErrCodeBadValue, "slot index out of range").
			WithContext("slot", slot)
	}
	q.dirtyRegions[slot] = api.Rect{Left: left, Top: top, Right: right, Bottom: bottom}
	return nil
}

// SetCurrentDirtyRegion latches a slot's dirty rectangle as the current
// region and clears the per-slot entry.
func (q *BufferQueue) SetCurrentDirtyRegion(slot int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if slot < 0 || slot >= api.NumBufferSlots {
		return api.NewError(api.ErrCodeBadValue, "slot index out of range").
			WithContext("slot", slot)
	}
	q.currentDirtyRegion = q.dirtyRegions[slot]
	if q.currentDirtyRegion.IsEmpty() {
		q.currentDirtyRegion = api.Rect{}
	}
	q.dirtyRegions[slot] = api.Rect{}
	return nil
}

// GetCurrentDirtyRegion reads the latched dirty region.
func (q *BufferQueue) GetCurrentDirtyRegion() (api.Rect, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentDirtyRegion, nil
}
