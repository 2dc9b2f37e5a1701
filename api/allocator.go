// Package api
// Author: momentics <momentics@gmail.com>
//
// Allocator is the external collaborator that creates graphic buffer
// allocations. The queue calls it with its mutex released: allocation may
// take tens of milliseconds and must not stall the consumer.

package api

// Allocator creates and configures graphic buffer allocations.
type Allocator interface {
	// CreateGraphicBuffer allocates a buffer of the given geometry.
	// Returns ErrNoMemory (possibly wrapped) when the allocation fails.
	CreateGraphicBuffer(width, height uint32, format PixelFormat, usage uint32) (GraphicBuffer, error)

	// SetGraphicBufferSize sets a minimum byte size for subsequent
	// allocations; geometries that need more storage keep their
	// geometry-derived size. Zero restores geometry-derived sizing.
	SetGraphicBufferSize(size int)
}
