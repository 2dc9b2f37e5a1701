// File: pool/allocator_test.go
// Author: momentics <momentics@gmail.com>

package pool_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-gfx/api"
	"github.com/momentics/hioload-gfx/pool"
)

func TestCreateGraphicBuffer(t *testing.T) {
	a := pool.NewGraphicBufferAllocator()

	buf, err := a.CreateGraphicBuffer(100, 50, api.PixelFormatRGBA8888, 0x3)
	if err != nil {
		t.Fatalf("CreateGraphicBuffer: %v", err)
	}
	if buf.Width() != 100 || buf.Height() != 50 {
		t.Errorf("geometry = %dx%d, want 100x50", buf.Width(), buf.Height())
	}
	if buf.Usage() != 0x3 {
		t.Errorf("usage = %#x, want 0x3", buf.Usage())
	}
	if buf.Stride()%16 != 0 || buf.Stride() < 100 {
		t.Errorf("stride = %d, want 16-aligned and >= width", buf.Stride())
	}
	wantSize := int(buf.Stride()) * 50 * 4
	if len(buf.Bytes()) != wantSize {
		t.Errorf("backing size = %d, want %d", len(buf.Bytes()), wantSize)
	}

	other, err := a.CreateGraphicBuffer(100, 50, api.PixelFormatRGBA8888, 0x3)
	if err != nil {
		t.Fatalf("CreateGraphicBuffer: %v", err)
	}
	if buf.Handle() == other.Handle() {
		t.Error("distinct allocations must have distinct handles")
	}

	stats := a.Stats()
	if stats.TotalAlloc != 2 || stats.InUse != 2 {
		t.Errorf("stats = %+v, want 2 allocated in use", stats)
	}

	if err := buf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if buf.Bytes() != nil {
		t.Error("Bytes after Release must be nil")
	}
	if err := buf.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
	other.Release()

	stats = a.Stats()
	if stats.TotalFree != 2 || stats.InUse != 0 || stats.BytesInUse != 0 {
		t.Errorf("stats after release = %+v", stats)
	}
}

func TestCreateGraphicBufferValidation(t *testing.T) {
	a := pool.NewGraphicBufferAllocator()
	if _, err := a.CreateGraphicBuffer(0, 10, api.PixelFormatRGBA8888, 0); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("zero width = %v, want ErrBadValue", err)
	}
	if _, err := a.CreateGraphicBuffer(10, 10, api.PixelFormat(999), 0); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("unknown format = %v, want ErrBadValue", err)
	}
}

func TestFixedSizeOverride(t *testing.T) {
	a := pool.NewGraphicBufferAllocator()
	a.SetGraphicBufferSize(1 << 20)

	buf, err := a.CreateGraphicBuffer(4, 4, api.PixelFormatRGB565, 0)
	if err != nil {
		t.Fatalf("CreateGraphicBuffer: %v", err)
	}
	defer buf.Release()
	if len(buf.Bytes()) != 1<<20 {
		t.Errorf("backing size = %d, want fixed %d", len(buf.Bytes()), 1<<20)
	}

	// Zero restores geometry-derived sizing.
	a.SetGraphicBufferSize(0)
	small, err := a.CreateGraphicBuffer(4, 4, api.PixelFormatRGB565, 0)
	if err != nil {
		t.Fatalf("CreateGraphicBuffer: %v", err)
	}
	defer small.Release()
	if len(small.Bytes()) >= 1<<20 {
		t.Errorf("size override not cleared: %d bytes", len(small.Bytes()))
	}
}
