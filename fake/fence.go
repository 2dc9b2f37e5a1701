// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake fence recording wait calls for testing the bounded-wait path.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-gfx/api"
)

// Fence is a fake implementation of api.Fence. It never signals on its
// own; Wait returns WaitErr immediately and records the call.
type Fence struct {
	WaitErr error

	mu        sync.Mutex
	signaled  bool
	waitCalls []time.Duration
}

var _ api.Fence = (*Fence)(nil)

// NewFence creates an unsignaled fake fence.
func NewFence() *Fence {
	return &Fence{}
}

// SetSignaled flips the signaled flag.
func (f *Fence) SetSignaled(v bool) {
	f.mu.Lock()
	f.signaled = v
	f.mu.Unlock()
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls = append(f.waitCalls, timeout)
	if f.signaled {
		return nil
	}
	return f.WaitErr
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// WaitCalls returns the timeouts passed to Wait so far.
func (f *Fence) WaitCalls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.waitCalls))
	copy(out, f.waitCalls)
	return out
}
