// File: core/bufferqueue/consumer_test.go
// Author: momentics <momentics@gmail.com>
//
// Consumer-side behavior: acquire gating, handle elision, stale releases,
// guarded setters and dirty region tracking.

package bufferqueue_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-gfx/api"
	"github.com/momentics/hioload-gfx/core/bufferqueue"
	"github.com/momentics/hioload-gfx/fake"
)

func TestAcquireEmptyQueue(t *testing.T) {
	h := newHarness(t, true, false)
	if _, err := h.q.AcquireBuffer(0); !errors.Is(err, api.ErrNoBufferAvailable) {
		t.Errorf("acquire on empty = %v, want ErrNoBufferAvailable", err)
	}
}

func TestAcquirePresentWhenGate(t *testing.T) {
	h := newHarness(t, true, false)

	slot, _, _, err := h.q.DequeueBuffer(false, 32, 32, api.PixelFormatRGBA8888, 0)
	if err != nil {
		t.Fatalf("DequeueBuffer: %v", err)
	}
	if _, err := h.q.RequestBuffer(slot); err != nil {
		t.Fatalf("RequestBuffer: %v", err)
	}
	in := queueInput(false)
	in.Timestamp = 1000
	if _, err := h.q.QueueBuffer(slot, in); err != nil {
		t.Fatalf("QueueBuffer: %v", err)
	}

	// An item from the future is not ready yet.
	if _, err := h.q.AcquireBuffer(999); !errors.Is(err, api.ErrNoBufferAvailable) {
		t.Errorf("early acquire = %v, want ErrNoBufferAvailable", err)
	}
	// At or after its timestamp it is.
	item, err := h.q.AcquireBuffer(1000)
	if err != nil {
		t.Fatalf("AcquireBuffer: %v", err)
	}
	if item.Timestamp != 1000 {
		t.Errorf("timestamp = %d, want 1000", item.Timestamp)
	}
}

func TestAcquireCapAndHandleElision(t *testing.T) {
	h := newHarness(t, true, false)
	if err := h.q.SetBufferCount(4); err != nil {
		t.Fatalf("SetBufferCount: %v", err)
	}

	a := h.produce(t, false, 32, 32)
	h.produce(t, false, 32, 32)

	first, err := h.q.AcquireBuffer(0)
	if err != nil {
		t.Fatalf("AcquireBuffer: %v", err)
	}
	if first.Buffer == nil {
		t.Error("first acquire of a slot must carry the handle")
	}

	// The default cap is one acquired buffer.
	if _, err := h.q.AcquireBuffer(0); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("over-cap acquire = %v, want ErrInvalidState", err)
	}

	if err := h.q.ReleaseBuffer(first.Slot, first.FrameNumber, nil, api.NoFence); err != nil {
		t.Fatalf("ReleaseBuffer: %v", err)
	}
	second, err := h.q.AcquireBuffer(0)
	if err != nil {
		t.Fatalf("AcquireBuffer: %v", err)
	}
	if err := h.q.ReleaseBuffer(second.Slot, second.FrameNumber, nil, api.NoFence); err != nil {
		t.Fatalf("ReleaseBuffer: %v", err)
	}

	// Keep cycling until slot a comes around again: the consumer has seen
	// its buffer, so the handle is elided the second time.
	for i := 0; i < 8; i++ {
		h.produce(t, false, 32, 32)
		again, err := h.q.AcquireBuffer(0)
		if err != nil {
			t.Fatalf("AcquireBuffer: %v", err)
		}
		if err := h.q.ReleaseBuffer(again.Slot, again.FrameNumber, nil, api.NoFence); err != nil {
			t.Fatalf("ReleaseBuffer: %v", err)
		}
		if again.Slot == a {
			if again.Buffer != nil {
				t.Error("repeat acquire must elide the cached handle")
			}
			return
		}
	}
	t.Fatalf("slot %d never came around again", a)
}

func TestStaleReleaseRejected(t *testing.T) {
	h := newHarness(t, true, false)

	h.produce(t, false, 32, 32)
	item, err := h.q.AcquireBuffer(0)
	if err != nil {
		t.Fatalf("AcquireBuffer: %v", err)
	}

	if err := h.q.ReleaseBuffer(item.Slot, item.FrameNumber+7, nil, api.NoFence); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("stale release = %v, want ErrInvalidState", err)
	}
	if err := h.q.ReleaseBuffer(item.Slot, item.FrameNumber, nil, nil); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("nil fence release = %v, want ErrBadValue", err)
	}
	if err := h.q.ReleaseBuffer(item.Slot, item.FrameNumber, nil, api.NoFence); err != nil {
		t.Fatalf("ReleaseBuffer: %v", err)
	}
	// Releasing a slot that is no longer acquired fails.
	if err := h.q.ReleaseBuffer(item.Slot, item.FrameNumber, nil, api.NoFence); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("double release = %v, want ErrInvalidState", err)
	}
}

func TestConsumerDisconnectAbandons(t *testing.T) {
	h := newHarness(t, true, false)
	h.produce(t, false, 32, 32)

	if err := h.q.ConsumerDisconnect(); err != nil {
		t.Fatalf("ConsumerDisconnect: %v", err)
	}
	if err := h.q.ConsumerDisconnect(); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("second disconnect = %v, want ErrBadValue", err)
	}
	if _, _, _, err := h.q.DequeueBuffer(false, 32, 32, api.PixelFormatRGBA8888, 0); !errors.Is(err, api.ErrNoInit) {
		t.Errorf("dequeue after consumer disconnect = %v, want ErrNoInit", err)
	}
}

func TestGuardedSetters(t *testing.T) {
	alloc := fake.NewAllocator()
	q, err := bufferqueue.New(alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := q.SetDefaultBufferSize(0, 10); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("zero width = %v, want ErrBadValue", err)
	}
	if err := q.SetMaxAcquiredBufferCount(0); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("zero max acquired = %v, want ErrBadValue", err)
	}
	if err := q.SetMaxAcquiredBufferCount(2); err != nil {
		t.Fatalf("SetMaxAcquiredBufferCount: %v", err)
	}
	if err := q.SetDefaultMaxBufferCount(1); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("count below async minimum = %v, want ErrBadValue", err)
	}
	if err := q.SetDefaultMaxBufferCount(4); err != nil {
		t.Fatalf("SetDefaultMaxBufferCount: %v", err)
	}
	if err := q.SetTransformHint(api.TransformRot90); err != nil {
		t.Fatalf("SetTransformHint: %v", err)
	}
	q.SetConsumerName("test-queue")
	if got := q.ConsumerName(); got != "test-queue" {
		t.Errorf("ConsumerName = %q, want %q", got, "test-queue")
	}

	// DisableAsyncBuffer is only legal before the consumer connects.
	if err := q.ConsumerConnect(fake.NewListener(), false); err != nil {
		t.Fatalf("ConsumerConnect: %v", err)
	}
	if err := q.DisableAsyncBuffer(); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("late DisableAsyncBuffer = %v, want ErrInvalidState", err)
	}

	// Max acquired is frozen once a producer connects.
	if _, err := q.Connect(api.ConnectionAPIEGL, false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := q.SetMaxAcquiredBufferCount(3); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("late SetMaxAcquiredBufferCount = %v, want ErrInvalidState", err)
	}
}

func TestSetConsumerListenerSwapsTarget(t *testing.T) {
	h := newHarness(t, true, false)

	if err := h.q.SetConsumerListener(nil); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("nil listener = %v, want ErrBadValue", err)
	}
	replacement := fake.NewListener()
	if err := h.q.SetConsumerListener(replacement); err != nil {
		t.Fatalf("SetConsumerListener: %v", err)
	}
	h.produce(t, false, 32, 32)
	if replacement.FrameAvailableCount() != 1 {
		t.Errorf("replacement listener count = %d, want 1", replacement.FrameAvailableCount())
	}
	if h.listener.FrameAvailableCount() != 0 {
		t.Errorf("old listener count = %d, want 0", h.listener.FrameAvailableCount())
	}
}

func TestDirtyRegionTracking(t *testing.T) {
	h := newHarness(t, true, false)

	if err := h.q.UpdateDirtyRegion(-1, 0, 0, 1, 1); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("bad slot = %v, want ErrBadValue", err)
	}
	if err := h.q.UpdateDirtyRegion(3, 10, 20, 30, 40); err != nil {
		t.Fatalf("UpdateDirtyRegion: %v", err)
	}
	if err := h.q.SetCurrentDirtyRegion(3); err != nil {
		t.Fatalf("SetCurrentDirtyRegion: %v", err)
	}
	got, err := h.q.GetCurrentDirtyRegion()
	if err != nil {
		t.Fatalf("GetCurrentDirtyRegion: %v", err)
	}
	want := api.Rect{Left: 10, Top: 20, Right: 30, Bottom: 40}
	if got != want {
		t.Errorf("current dirty region = %+v, want %+v", got, want)
	}

	// Latching consumed the per-slot rectangle.
	if err := h.q.SetCurrentDirtyRegion(3); err != nil {
		t.Fatalf("SetCurrentDirtyRegion: %v", err)
	}
	got, err = h.q.GetCurrentDirtyRegion()
	if err != nil {
		t.Fatalf("GetCurrentDirtyRegion: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("second latch = %+v, want empty", got)
	}
}

func TestSetBuffersSizeForwards(t *testing.T) {
	h := newHarness(t, true, false)
	if err := h.q.SetBuffersSize(-1); !errors.Is(err, api.ErrBadValue) {
		t.Errorf("negative size = %v, want ErrBadValue", err)
	}
	if err := h.q.SetBuffersSize(1 << 20); err != nil {
		t.Fatalf("SetBuffersSize: %v", err)
	}
	if got := h.alloc.FixedSize(); got != 1<<20 {
		t.Errorf("allocator fixed size = %d, want %d", got, 1<<20)
	}
}
