// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake allocator and graphic buffer implementations for testing.

package fake

import (
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/hioload-gfx/api"
)

// Buffer is a fake implementation of api.GraphicBuffer.
type Buffer struct {
	ID        uuid.UUID
	W, H      uint32
	Fmt       api.PixelFormat
	UsageBits uint32

	mu       sync.Mutex
	data     []byte
	released bool
}

var _ api.GraphicBuffer = (*Buffer)(nil)

// NewBuffer creates a fake buffer of the given geometry.
func NewBuffer(w, h uint32, format api.PixelFormat, usage uint32) *Buffer {
	return &Buffer{
		ID:        uuid.New(),
		W:         w,
		H:         h,
		Fmt:       format,
		UsageBits: usage,
		data:      make([]byte, int(w)*int(h)*format.BytesPerPixel()),
	}
}

func (b *Buffer) Handle() uuid.UUID       { return b.ID }
func (b *Buffer) Width() uint32           { return b.W }
func (b *Buffer) Height() uint32          { return b.H }
func (b *Buffer) Format() api.PixelFormat { return b.Fmt }
func (b *Buffer) Usage() uint32           { return b.UsageBits }
func (b *Buffer) Stride() uint32          { return b.W }

func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *Buffer) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.data = nil
	return nil
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Allocator is a fake implementation of api.Allocator. It records every
// allocation and can be told to fail.
type Allocator struct {
	mu        sync.Mutex
	allocated []*Buffer
	fixedSize int
	FailNext  error
}

var _ api.Allocator = (*Allocator)(nil)

// NewAllocator creates an empty fake allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// CreateGraphicBuffer allocates a fake buffer, or returns FailNext once.
func (a *Allocator) CreateGraphicBuffer(w, h uint32, format api.PixelFormat, usage uint32) (api.GraphicBuffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailNext != nil {
		err := a.FailNext
		a.FailNext = nil
		return nil, err
	}
	b := NewBuffer(w, h, format, usage)
	a.allocated = append(a.allocated, b)
	return b, nil
}

// SetGraphicBufferSize records the fixed-size override.
func (a *Allocator) SetGraphicBufferSize(size int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fixedSize = size
}

// FixedSize returns the last recorded size override.
func (a *Allocator) FixedSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fixedSize
}

// AllocCount returns how many buffers were created.
func (a *Allocator) AllocCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocated)
}
