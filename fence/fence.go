// File: fence/fence.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Software fence: a one-shot completion token signalled by whichever engine
// finishes touching a buffer. Channel-backed so waits compose with timers.

package fence

import (
	"sync"
	"time"

	"github.com/momentics/hioload-gfx/api"
)

// Fence is a signalable api.Fence.
type Fence struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
}

var _ api.Fence = (*Fence)(nil)

// New creates an unsignaled fence.
func New() *Fence {
	return &Fence{done: make(chan struct{})}
}

// Signal fires the fence. Subsequent calls are no-ops.
func (f *Fence) Signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		f.set = true
		close(f.done)
	}
}

// Wait blocks until Signal or the timeout. A zero or negative timeout
// waits forever.
func (f *Fence) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-f.done
		return nil
	}
	select {
	case <-f.done:
		return nil
	case <-time.After(timeout):
		return api.NewError(api.ErrCodeTimeout, "fence wait timed out").
			WithContext("timeout", timeout.String())
	}
}

// Signaled reports whether the fence has fired.
func (f *Fence) Signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Merge returns a fence that signals once every input fence has signaled.
// Inputs that are nil or already signaled are skipped; with nothing left to
// wait for, NoFence is returned.
func Merge(fences ...api.Fence) api.Fence {
	pending := make([]api.Fence, 0, len(fences))
	for _, f := range fences {
		if f == nil || f.Signaled() {
			continue
		}
		pending = append(pending, f)
	}
	if len(pending) == 0 {
		return api.NoFence
	}
	out := New()
	go func() {
		for _, f := range pending {
			f.Wait(0)
		}
		out.Signal()
	}()
	return out
}
