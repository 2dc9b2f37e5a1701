// Package api
// Author: momentics
//
// Graphic buffer contract: a large pixel allocation handed between producer
// and consumer by slot index. The allocation itself may be mmap, shared
// memory, or device-backed; the queue never touches pixel data.

package api

import "github.com/google/uuid"

// GraphicBuffer describes one pixel allocation owned by a slot.
type GraphicBuffer interface {
	// Handle returns the process-unique identity of this allocation.
	// Two buffers with equal handles are the same allocation.
	Handle() uuid.UUID

	// Width returns the buffer width in pixels.
	Width() uint32

	// Height returns the buffer height in pixels.
	Height() uint32

	// Format returns the pixel format the buffer was allocated with.
	Format() PixelFormat

	// Usage returns the usage bits the buffer was allocated with.
	Usage() uint32

	// Stride returns the row pitch in pixels.
	Stride() uint32

	// Bytes returns a view of the backing storage.
	Bytes() []byte

	// Release returns the backing storage to its allocator.
	// After Release, the buffer must not be used.
	Release() error
}

// Bounds returns the full rectangle of a buffer.
func Bounds(b GraphicBuffer) Rect {
	return RectOf(b.Width(), b.Height())
}
