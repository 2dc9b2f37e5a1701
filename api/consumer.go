// File: api/consumer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Consumer-side contract: acquire queued frames, sample them, release the
// slots back to the free pool.

package api

// BufferItem is one entry of the queued-frame FIFO, copied out to the
// consumer on acquire.
type BufferItem struct {
	// Buffer is the slot's allocation. Nil when the consumer has already
	// seen this buffer (AcquireCalled was set) and holds the handle cached.
	Buffer GraphicBuffer

	// Fence guards reads of the buffer contents.
	Fence Fence

	Crop                      Rect
	Transform                 uint32
	TransformToDisplayInverse bool
	ScalingMode               ScalingMode
	Timestamp                 int64
	IsAutoTimestamp           bool
	FrameNumber               uint64
	Slot                      int

	// IsDroppable marks frames a later QueueBuffer may replace in place.
	IsDroppable bool

	// AcquireCalled records whether the consumer had observed the slot's
	// current buffer before this item was queued.
	AcquireCalled bool
}

// Consumer is the interface the compositor or texture sampler drives.
type Consumer interface {
	// AcquireBuffer extracts the FIFO head when one is ready. A non-zero
	// presentWhen only admits items whose timestamp is not later.
	AcquireBuffer(presentWhen int64) (BufferItem, error)

	// ReleaseBuffer returns an acquired slot. frameNumber must match the
	// slot's current frame, display is an opaque output handle stored with
	// the slot, fence guards the consumer's pending reads.
	ReleaseBuffer(slot int, frameNumber uint64, display any, fence Fence) error

	// ConsumerConnect attaches the consumer listener.
	ConsumerConnect(listener ConsumerListener, controlledByApp bool) error

	// ConsumerDisconnect detaches the consumer and abandons the queue.
	ConsumerDisconnect() error

	// SetConsumerListener swaps the callback target of a connected
	// consumer.
	SetConsumerListener(listener ConsumerListener) error

	SetDefaultBufferSize(width, height uint32) error
	SetDefaultBufferFormat(format PixelFormat) error
	SetConsumerUsageBits(usage uint32) error
	SetMaxAcquiredBufferCount(count int) error
	SetDefaultMaxBufferCount(count int) error
	SetConsumerName(name string)
	SetTransformHint(hint uint32) error

	// DisableAsyncBuffer drops min-undequeued back to one buffer. Only
	// legal before the consumer is connected.
	DisableAsyncBuffer() error

	// UpdateDirtyRegion records the dirty rectangle for a slot.
	UpdateDirtyRegion(slot int, left, top, right, bottom int32) error

	// SetCurrentDirtyRegion latches a slot's dirty rectangle as the
	// current region and clears the per-slot one.
	SetCurrentDirtyRegion(slot int) error

	// GetCurrentDirtyRegion reads the latched dirty region.
	GetCurrentDirtyRegion() (Rect, error)
}
