// File: pool/allocator.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Graphic buffer allocator: platform-backed pixel storage behind the
// api.Allocator contract. On Linux buffers live in anonymous shared
// memory (memfd + mmap); elsewhere they fall back to heap slices.

package pool

import (
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/hioload-gfx/api"
)

// rowAlignment is the pixel alignment of the row pitch, matching what
// scanout hardware commonly requires.
const rowAlignment = 16

// AllocStats aggregates allocation accounting.
type AllocStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
	BytesInUse int64
}

// GraphicBufferAllocator implements api.Allocator.
type GraphicBufferAllocator struct {
	mu        sync.Mutex
	fixedSize int
	stats     AllocStats
}

var _ api.Allocator = (*GraphicBufferAllocator)(nil)

// NewGraphicBufferAllocator creates an allocator with geometry-derived
// sizing.
func NewGraphicBufferAllocator() *GraphicBufferAllocator {
	return &GraphicBufferAllocator{}
}

// CreateGraphicBuffer allocates pixel storage for the given geometry.
func (a *GraphicBufferAllocator) CreateGraphicBuffer(width, height uint32, format api.PixelFormat, usage uint32) (api.GraphicBuffer, error) {
	bpp := format.BytesPerPixel()
	if width == 0 || height == 0 || bpp == 0 {
		return nil, api.NewError(api.ErrCodeBadValue, "invalid buffer geometry").
			WithContext("width", width).
			WithContext("height", height).
			WithContext("format", uint32(format))
	}

	stride := (width + rowAlignment - 1) &^ uint32(rowAlignment-1)
	size := int(stride) * int(height) * bpp

	a.mu.Lock()
	if a.fixedSize > size {
		size = a.fixedSize
	}
	a.mu.Unlock()

	data, unmap, err := mapAnonymous(size)
	if err != nil {
		return nil, api.NewError(api.ErrCodeNoMemory, "backing store allocation failed").
			WithContext("size", size).
			WithContext("cause", err.Error())
	}

	a.mu.Lock()
	a.stats.TotalAlloc++
	a.stats.InUse++
	a.stats.BytesInUse += int64(size)
	a.mu.Unlock()

	return &graphicBuffer{
		handle: uuid.New(),
		width:  width,
		height: height,
		format: format,
		usage:  usage,
		stride: stride,
		data:   data,
		free: func() error {
			a.mu.Lock()
			a.stats.TotalFree++
			a.stats.InUse--
			a.stats.BytesInUse -= int64(size)
			a.mu.Unlock()
			return unmap()
		},
	}, nil
}

// SetGraphicBufferSize sets a minimum byte size for subsequent
// allocations; a geometry that needs more storage keeps its
// geometry-derived size. Zero (or a negative size) restores
// geometry-derived sizing.
func (a *GraphicBufferAllocator) SetGraphicBufferSize(size int) {
	a.mu.Lock()
	if size < 0 {
		size = 0
	}
	a.fixedSize = size
	a.mu.Unlock()
}

// Stats returns an accounting snapshot.
func (a *GraphicBufferAllocator) Stats() AllocStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// graphicBuffer is one pixel allocation.
type graphicBuffer struct {
	handle uuid.UUID
	width  uint32
	height uint32
	format api.PixelFormat
	usage  uint32
	stride uint32

	mu       sync.Mutex
	data     []byte
	free     func() error
	released bool
}

var _ api.GraphicBuffer = (*graphicBuffer)(nil)

func (b *graphicBuffer) Handle() uuid.UUID      { return b.handle }
func (b *graphicBuffer) Width() uint32          { return b.width }
func (b *graphicBuffer) Height() uint32         { return b.height }
func (b *graphicBuffer) Format() api.PixelFormat { return b.format }
func (b *graphicBuffer) Usage() uint32          { return b.usage }
func (b *graphicBuffer) Stride() uint32         { return b.stride }

// Bytes returns the backing storage, or nil after Release.
func (b *graphicBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Release returns the storage to the platform. Idempotent.
func (b *graphicBuffer) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	b.released = true
	b.data = nil
	return b.free()
}
