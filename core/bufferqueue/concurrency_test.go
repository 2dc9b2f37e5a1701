// File: core/bufferqueue/concurrency_test.go
// Author: momentics <momentics@gmail.com>
//
// Producer and consumer on separate goroutines pumping frames through the
// queue: order preservation for non-droppable items and no deadlock on the
// blocking dequeue path.

package bufferqueue_test

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-gfx/api"
)

func TestConcurrentRoundTrips(t *testing.T) {
	const frames = 200

	h := newHarness(t, false, false)
	if err := h.q.SetBufferCount(3); err != nil {
		t.Fatalf("SetBufferCount: %v", err)
	}

	prodErr := make(chan error, 1)
	go func() {
		for i := 0; i < frames; i++ {
			slot, _, _, err := h.q.DequeueBuffer(false, 64, 64, api.PixelFormatRGBA8888, 0)
			if err != nil {
				prodErr <- err
				return
			}
			if _, err := h.q.RequestBuffer(slot); err != nil {
				prodErr <- err
				return
			}
			in := api.QueueInput{
				Timestamp:   int64(i),
				ScalingMode: api.ScalingModeFreeze,
				Fence:       api.NoFence,
			}
			if _, err := h.q.QueueBuffer(slot, in); err != nil {
				prodErr <- err
				return
			}
		}
		prodErr <- nil
	}()

	deadline := time.After(10 * time.Second)
	var lastFrame uint64
	received := 0
	for received < frames {
		select {
		case err := <-prodErr:
			if err != nil {
				t.Fatalf("producer: %v", err)
			}
			// Producer done; keep draining.
			prodErr = nil
		case <-deadline:
			t.Fatalf("timed out after %d of %d frames", received, frames)
		default:
		}

		item, err := h.q.AcquireBuffer(0)
		if err != nil {
			if errors.Is(err, api.ErrNoBufferAvailable) {
				time.Sleep(time.Millisecond)
				continue
			}
			t.Fatalf("AcquireBuffer: %v", err)
		}
		if item.FrameNumber <= lastFrame {
			t.Fatalf("frame %d arrived after %d", item.FrameNumber, lastFrame)
		}
		if item.Timestamp != int64(received) {
			t.Fatalf("timestamp %d, want %d: frames reordered or dropped", item.Timestamp, received)
		}
		lastFrame = item.FrameNumber
		received++
		if err := h.q.ReleaseBuffer(item.Slot, item.FrameNumber, nil, api.NoFence); err != nil {
			t.Fatalf("ReleaseBuffer: %v", err)
		}
	}

	if h.listener.FrameAvailableCount() != frames {
		t.Errorf("OnFrameAvailable count = %d, want %d", h.listener.FrameAvailableCount(), frames)
	}
}
