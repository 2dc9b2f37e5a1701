// File: api/producer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Producer-side contract of the buffer queue: dequeue a slot, fill the
// buffer out of band, queue it back with per-frame presentation metadata.

package api

// QueueInput carries the per-frame metadata handed in with QueueBuffer.
type QueueInput struct {
	// Timestamp is the presentation time in nanoseconds.
	Timestamp int64

	// IsAutoTimestamp marks a timestamp the producer generated rather than
	// one the application supplied.
	IsAutoTimestamp bool

	// Crop is the valid region of the buffer, must be contained in it.
	Crop Rect

	// ScalingMode must be a member of the ScalingMode set.
	ScalingMode ScalingMode

	// Transform bits, including TransformInverseDisplay.
	Transform uint32

	// Async requests the extra undequeued buffer for this frame.
	Async bool

	// Fence guards reads of the buffer contents. Must not be nil; use
	// NoFence when the buffer is already idle.
	Fence Fence
}

// QueueOutput reports queue-wide values back to the producer. The same
// shape is returned by Connect.
type QueueOutput struct {
	Width             uint32
	Height            uint32
	TransformHint     uint32
	NumPendingBuffers int
}

// Producer is the interface the frame source drives.
type Producer interface {
	// RequestBuffer fetches the buffer handle for a dequeued slot.
	RequestBuffer(slot int) (GraphicBuffer, error)

	// SetBufferCount overrides the max buffer count, or clears the
	// override when count is zero.
	SetBufferCount(count int) error

	// DequeueBuffer transfers ownership of a free slot to the producer.
	// May block until a slot frees up unless the queue is in cannot-block
	// mode. The returned fence must be waited on before writing pixels.
	DequeueBuffer(async bool, width, height uint32, format PixelFormat, usage uint32) (slot int, fence Fence, flags DequeueFlags, err error)

	// QueueBuffer hands a filled slot to the consumer side.
	QueueBuffer(slot int, input QueueInput) (QueueOutput, error)

	// CancelBuffer returns a dequeued slot without queueing it.
	CancelBuffer(slot int, fence Fence) error

	// Query reads one of the QueryKey values.
	Query(what QueryKey) (int, error)

	// Connect attaches the producer under the given API kind.
	Connect(apiKind ConnectionAPI, producerControlledByApp bool) (QueueOutput, error)

	// Disconnect detaches the producer and abandons the queue.
	Disconnect(apiKind ConnectionAPI) error

	// SetAsyncMode toggles the queue-level async buffer option.
	SetAsyncMode(async bool) error

	// SetBuffersSize sets the allocator's minimum byte size for future
	// allocations.
	SetBuffersSize(size int) error
}
