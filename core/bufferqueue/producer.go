// File: core/bufferqueue/producer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Producer half of the buffer queue protocol: dequeue, request, queue,
// cancel, plus buffer count override and connection management.
//
// DequeueBuffer is the only operation that may block: it waits on the
// queue condition variable until a slot frees up, and it runs the
// allocator call and the inherited fence wait with the mutex released.

package bufferqueue

import (
	"log"
	"time"

	"github.com/momentics/hioload-gfx/api"
)

// fenceWaitTimeout bounds the wait on a buffer's previous-cycle fence in
// DequeueBuffer. Expiry is logged, not fatal: ownership has already
// transferred by then.
const fenceWaitTimeout = time.Second

// RequestBuffer fetches the buffer handle of a dequeued slot.
func (q *BufferQueue) RequestBuffer(slot int) (api.GraphicBuffer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return nil, api.ErrNoInit
	}
	if slot < 0 || slot >= api.NumBufferSlots {
		return nil, api.NewError(api.ErrCodeBadValue, "slot index out of range").
			WithContext("slot", slot)
	}
	if q.slots[slot].state != StateDequeued {
		return nil, api.NewError(api.ErrCodeInvalidState, "slot is not owned by the producer").
			WithContext("slot", slot).
			WithContext("state", q.slots[slot].state.String())
	}
	q.slots[slot].requestBufferCalled = true
	return q.slots[slot].buffer, nil
}

// DequeueBuffer transfers ownership of a free slot to the producer. The
// returned fence guards the previous owner's pending reads; the returned
// flags tell the producer whether the buffer was reallocated and whether
// slots above the max were dropped.
func (q *BufferQueue) DequeueBuffer(async bool, width, height uint32, format api.PixelFormat, usage uint32) (int, api.Fence, api.DequeueFlags, error) {
	if (width == 0) != (height == 0) {
		return api.InvalidBufferSlot, nil, 0,
			api.NewError(api.ErrCodeBadValue, "invalid size").
				WithContext("width", width).
				WithContext("height", height)
	}

	var flags api.DequeueFlags
	var outFence api.Fence
	found := api.InvalidBufferSlot

	q.mu.Lock()
	if format == 0 {
		format = q.defaultBufferFormat
	}
	// turn on usage bits the consumer requested
	usage |= q.consumerUsageBits

	for tryAgain := true; tryAgain; {
		if q.abandoned {
			q.mu.Unlock()
			return api.InvalidBufferSlot, nil, 0, api.ErrNoInit
		}

		maxBufferCount := q.maxBufferCountLocked(async)
		if async && q.overrideMaxBufferCount != 0 && q.overrideMaxBufferCount < maxBufferCount {
			// legacy guard: an explicit count below the async-adjusted
			// max cannot satisfy an async dequeue
			q.mu.Unlock()
			return api.InvalidBufferSlot, nil, 0,
				api.NewError(api.ErrCodeBadValue, "async mode is invalid with buffer count override")
		}

		// Drop any buffers that sit in slots beyond the max buffer count.
		for i := maxBufferCount; i < api.NumBufferSlots; i++ {
			if q.slots[i].buffer != nil {
				q.freeBufferLocked(i)
				flags |= api.FlagReleaseAllBuffers
			}
		}

		// Look for a free slot to hand to the producer. Among free slots
		// the oldest frame wins: the consumer is least likely to still be
		// reading it, so the fence wait below stays short.
		found = api.InvalidBufferSlot
		dequeuedCount := 0
		acquiredCount := 0
		for i := 0; i < maxBufferCount; i++ {
			switch q.slots[i].state {
			case StateDequeued:
				dequeuedCount++
			case StateAcquired:
				acquiredCount++
			case StateFree:
				if found < 0 || q.slots[i].frameNumber < q.slots[found].frameNumber {
					found = i
				}
			}
		}

		// Without an explicit buffer count only one outstanding dequeue
		// is permitted.
		if q.overrideMaxBufferCount == 0 && dequeuedCount > 0 {
			q.mu.Unlock()
			return api.InvalidBufferSlot, nil, 0,
				api.NewError(api.ErrCodeInvalidState,
					"cannot dequeue multiple buffers without setting the buffer count")
		}

		if q.bufferHasBeenQueued {
			newUndequeued := maxBufferCount - (dequeuedCount + 1)
			minUndequeued := q.minUndequeuedBufferCountLocked(async)
			if newUndequeued < minUndequeued {
				q.mu.Unlock()
				return api.InvalidBufferSlot, nil, 0,
					api.NewError(api.ErrCodeBusy, "min undequeued buffer count exceeded").
						WithContext("min", minUndequeued).
						WithContext("dequeued", dequeuedCount)
			}
		}

		tryAgain = found == api.InvalidBufferSlot
		if tryAgain {
			// The consumer may briefly hold one extra acquired buffer; a
			// wait caused by that resolves quickly even in cannot-block
			// mode, so only fail fast while the consumer is within its
			// cap.
			if q.dequeueCannotBlock && acquiredCount <= q.maxAcquiredBufferCount {
				q.mu.Unlock()
				return api.InvalidBufferSlot, nil, 0, api.ErrWouldBlock
			}
			q.dequeueCond.Wait()
		}
	}

	slot := &q.slots[found]
	useDefaultSize := width == 0 && height == 0
	if useDefaultSize {
		width = q.defaultWidth
		height = q.defaultHeight
	}

	slot.state = StateDequeued

	buf := slot.buffer
	if buf == nil ||
		buf.Width() != width ||
		buf.Height() != height ||
		buf.Format() != format ||
		buf.Usage()&usage != usage {
		if buf != nil {
			buf.Release()
		}
		slot.buffer = nil
		slot.acquireCalled = false
		slot.requestBufferCalled = false
		slot.fence = api.NoFence
		flags |= api.FlagBufferNeedsReallocation
	}

	outFence = slot.fence
	slot.fence = api.NoFence
	q.mu.Unlock()

	if flags&api.FlagBufferNeedsReallocation != 0 {
		// Allocation runs without the lock held; it may take tens of
		// milliseconds and must not stall the consumer. The slot stays
		// DEQUEUED meanwhile, which no other operation may touch.
		newBuf, err := q.allocator.CreateGraphicBuffer(width, height, format, usage)
		if err != nil {
			log.Printf("[bufferqueue] %s: createGraphicBuffer failed: %v", q.ConsumerName(), err)
			return api.InvalidBufferSlot, nil, 0, err
		}

		q.mu.Lock()
		if q.abandoned {
			q.mu.Unlock()
			newBuf.Release()
			return api.InvalidBufferSlot, nil, 0, api.ErrNoInit
		}
		q.slots[found].frameNumber = reallocFrameNumber
		q.slots[found].buffer = newBuf
		q.buffersReallocated++
		q.mu.Unlock()
	}

	if outFence != nil && !outFence.Signaled() {
		if err := outFence.Wait(fenceWaitTimeout); err != nil {
			// Too late to abort the dequeue: ownership has transferred.
			log.Printf("[bufferqueue] %s: timeout waiting for fence on slot %d: %v",
				q.ConsumerName(), found, err)
			q.mu.Lock()
			q.fenceWaitTimeouts++
			q.mu.Unlock()
		}
	}
	if outFence == nil {
		outFence = api.NoFence
	}

	return found, outFence, flags, nil
}

// QueueBuffer hands a filled, previously requested slot to the consumer
// side. When the FIFO head is droppable it is replaced in place and its
// slot returns to FREE as the first pick of the next dequeue.
func (q *BufferQueue) QueueBuffer(slot int, input api.QueueInput) (api.QueueOutput, error) {
	var out api.QueueOutput

	if !input.ScalingMode.Valid() {
		return out, api.NewError(api.ErrCodeBadValue, "unknown scaling mode").
			WithContext("mode", int(input.ScalingMode))
	}
	if input.Fence == nil {
		return out, api.NewError(api.ErrCodeBadValue, "fence is nil")
	}

	var listener api.ConsumerListener

	q.mu.Lock()
	if q.abandoned {
		q.mu.Unlock()
		return out, api.ErrNoInit
	}

	maxBufferCount := q.maxBufferCountLocked(input.Async)
	if input.Async && q.overrideMaxBufferCount != 0 && q.overrideMaxBufferCount < maxBufferCount {
		q.mu.Unlock()
		return out, api.NewError(api.ErrCodeBadValue, "async mode is invalid with buffer count override")
	}
	if slot < 0 || slot >= maxBufferCount {
		q.mu.Unlock()
		return out, api.NewError(api.ErrCodeInvalidState, "slot index out of range").
			WithContext("slot", slot).
			WithContext("max", maxBufferCount)
	}
	s := &q.slots[slot]
	if s.state != StateDequeued {
		q.mu.Unlock()
		return out, api.NewError(api.ErrCodeInvalidState, "slot is not owned by the producer").
			WithContext("slot", slot).
			WithContext("state", s.state.String())
	}
	if !s.requestBufferCalled {
		q.mu.Unlock()
		return out, api.NewError(api.ErrCodeInvalidState, "slot was queued without requesting a buffer").
			WithContext("slot", slot)
	}

	crop := input.Crop
	if !crop.IsEmpty() {
		cropped, ok := crop.Intersect(api.Bounds(s.buffer))
		if !ok || cropped != crop {
			q.mu.Unlock()
			return out, api.NewError(api.ErrCodeInvalidState, "crop rect is not contained within the buffer").
				WithContext("slot", slot)
		}
	}

	q.frameCounter++
	s.frameNumber = q.frameCounter
	s.fence = input.Fence
	s.state = StateQueued
	q.framesQueued++

	item := &api.BufferItem{
		Buffer:                    s.buffer,
		Fence:                     input.Fence,
		Crop:                      crop,
		Transform:                 input.Transform &^ api.TransformInverseDisplay,
		TransformToDisplayInverse: input.Transform&api.TransformInverseDisplay != 0,
		ScalingMode:               input.ScalingMode,
		Timestamp:                 input.Timestamp,
		IsAutoTimestamp:           input.IsAutoTimestamp,
		FrameNumber:               q.frameCounter,
		Slot:                      slot,
		IsDroppable:               q.dequeueCannotBlock || input.Async,
		AcquireCalled:             s.acquireCalled,
	}

	if q.fifo.Length() == 0 {
		// An empty queue ignores droppability: just append.
		q.fifo.Add(item)
		listener = q.consumerListener
	} else {
		front := q.fifo.Peek().(*api.BufferItem)
		if front.IsDroppable {
			// The consumer is behind; trade the stale head for the fresh
			// frame. The replaced slot goes first in line at the next
			// dequeue.
			if q.stillTracking(front) {
				q.slots[front.Slot].state = StateFree
				q.slots[front.Slot].frameNumber = 0
			}
			q.framesDropped++
			*front = *item
		} else {
			q.fifo.Add(item)
			listener = q.consumerListener
		}
	}

	q.bufferHasBeenQueued = true
	q.dequeueCond.Broadcast()

	out = api.QueueOutput{
		Width:             q.defaultWidth,
		Height:            q.defaultHeight,
		TransformHint:     q.transformHint,
		NumPendingBuffers: q.fifo.Length(),
	}
	q.mu.Unlock()

	if listener != nil {
		listener.OnFrameAvailable()
	}
	return out, nil
}

// CancelBuffer returns a dequeued slot to FREE without queueing it. The
// slot's frame number resets to zero so it is the first choice of the next
// dequeue.
func (q *BufferQueue) CancelBuffer(slot int, fence api.Fence) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return api.ErrNoInit
	}
	if slot < 0 || slot >= api.NumBufferSlots {
		return api.NewError(api.ErrCodeBadValue, "slot index out of range").
			WithContext("slot", slot)
	}
	if q.slots[slot].state != StateDequeued {
		return api.NewError(api.ErrCodeInvalidState, "slot is not owned by the producer").
			WithContext("slot", slot).
			WithContext("state", q.slots[slot].state.String())
	}
	if fence == nil {
		return api.NewError(api.ErrCodeBadValue, "fence is nil")
	}
	q.slots[slot].state = StateFree
	q.slots[slot].frameNumber = 0
	q.slots[slot].fence = fence
	q.dequeueCond.Broadcast()
	return nil
}

// SetBufferCount overrides the max buffer count. Zero clears the override.
// All held buffers are dropped, so the producer must expect reallocation
// on the next dequeue.
func (q *BufferQueue) SetBufferCount(count int) error {
	var listener api.ConsumerListener

	q.mu.Lock()
	if q.abandoned {
		q.mu.Unlock()
		return api.ErrNoInit
	}
	if count < 0 || count > api.NumBufferSlots {
		q.mu.Unlock()
		return api.NewError(api.ErrCodeBadValue, "buffer count out of range").
			WithContext("count", count)
	}
	for i := range q.slots {
		if q.slots[i].state == StateDequeued {
			q.mu.Unlock()
			return api.NewError(api.ErrCodeInvalidState, "producer owns dequeued buffers")
		}
	}

	if count == 0 {
		q.overrideMaxBufferCount = 0
		q.dequeueCond.Broadcast()
		q.mu.Unlock()
		return nil
	}

	// async is irrelevant until something is queued again
	if minCount := q.minMaxBufferCountLocked(false); count < minCount {
		q.mu.Unlock()
		return api.NewError(api.ErrCodeBadValue, "buffer count below minimum").
			WithContext("count", count).
			WithContext("min", minCount)
	}

	freed := false
	for i := range q.slots {
		if q.slots[i].buffer != nil {
			freed = true
			break
		}
	}
	q.clearFIFOLocked()
	q.freeAllBuffersLocked()
	q.overrideMaxBufferCount = count
	q.dequeueCond.Broadcast()
	if freed {
		listener = q.consumerListener
	}
	q.mu.Unlock()

	if listener != nil {
		listener.OnBuffersReleased()
	}
	return nil
}

// Query reads one of the queue-wide values.
func (q *BufferQueue) Query(what api.QueryKey) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return 0, api.ErrNoInit
	}
	switch what {
	case api.QueryDefaultWidth:
		return int(q.defaultWidth), nil
	case api.QueryDefaultHeight:
		return int(q.defaultHeight), nil
	case api.QueryDefaultFormat:
		return int(q.defaultBufferFormat), nil
	case api.QueryMinUndequeuedBuffers:
		return q.minUndequeuedBufferCountLocked(false), nil
	case api.QueryConsumerRunningBehind:
		if q.fifo.Length() >= 2 {
			return 1, nil
		}
		return 0, nil
	case api.QueryConsumerUsageBits:
		return int(q.consumerUsageBits), nil
	default:
		return 0, api.NewError(api.ErrCodeBadValue, "unknown query key").
			WithContext("what", int(what))
	}
}

// Connect attaches the producer under the given API kind. The consumer
// must already be connected. Cannot-block mode engages when both sides are
// application controlled.
func (q *BufferQueue) Connect(apiKind api.ConnectionAPI, producerControlledByApp bool) (api.QueueOutput, error) {
	var out api.QueueOutput
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return out, api.ErrNoInit
	}
	if q.consumerListener == nil {
		return out, api.NewError(api.ErrCodeNoInit, "no consumer is connected")
	}
	switch apiKind {
	case api.ConnectionAPIEGL, api.ConnectionAPICPU, api.ConnectionAPIMedia, api.ConnectionAPICamera:
	default:
		return out, api.NewError(api.ErrCodeBadValue, "unknown connection api").
			WithContext("api", apiKind.String())
	}
	if q.connectedAPI != api.NoConnectedAPI {
		return out, api.NewError(api.ErrCodeBadValue, "already connected").
			WithContext("api", q.connectedAPI.String())
	}

	q.connectedAPI = apiKind
	q.dequeueCannotBlock = producerControlledByApp && q.consumerControlledByApp
	return api.QueueOutput{
		Width:             q.defaultWidth,
		Height:            q.defaultHeight,
		TransformHint:     q.transformHint,
		NumPendingBuffers: q.fifo.Length(),
	}, nil
}

// Disconnect detaches the producer and abandons the queue: later producer
// operations fail with ErrNoInit, waiting dequeues wake up, buffers the
// consumer holds are flagged for cleanup on release.
func (q *BufferQueue) Disconnect(apiKind api.ConnectionAPI) error {
	var listener api.ConsumerListener

	q.mu.Lock()
	if q.abandoned {
		// Disconnecting after abandonment is a no-op.
		q.mu.Unlock()
		return nil
	}
	if apiKind != q.connectedAPI {
		q.mu.Unlock()
		return api.NewError(api.ErrCodeBadValue, "disconnecting api does not match connected api").
			WithContext("connected", q.connectedAPI.String()).
			WithContext("requested", apiKind.String())
	}

	q.connectedAPI = api.NoConnectedAPI
	q.abandoned = true
	q.clearFIFOLocked()
	q.freeAllBuffersLocked()
	q.dequeueCond.Broadcast()
	listener = q.consumerListener
	q.mu.Unlock()

	if listener != nil {
		listener.OnBuffersReleased()
	}
	return nil
}

// SetAsyncMode toggles the queue-level async buffer option, raising or
// lowering the min-undequeued guarantee for subsequent operations.
func (q *BufferQueue) SetAsyncMode(async bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return api.ErrNoInit
	}
	q.useAsyncBuffer = async
	q.dequeueCond.Broadcast()
	return nil
}

// SetBuffersSize forwards a fixed allocation size to the allocator.
func (q *BufferQueue) SetBuffersSize(size int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.abandoned {
		return api.ErrNoInit
	}
	if size < 0 {
		return api.NewError(api.ErrCodeBadValue, "negative buffer size").
			WithContext("size", size)
	}
	q.allocator.SetGraphicBufferSize(size)
	return nil
}
