// File: api/fence.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fence is the synchronization token that rides with a buffer across
// ownership transitions. Waiting on it blocks until the GPU (or whatever
// filled the buffer) is done; the queue's control path never waits except
// in DequeueBuffer, outside the lock.

package api

import "time"

// Fence is an opaque one-shot synchronization token.
type Fence interface {
	// Wait blocks until the fence signals or the timeout expires.
	// A zero or negative timeout waits forever.
	Wait(timeout time.Duration) error

	// Signaled reports whether the fence has already fired.
	Signaled() bool
}

// noFence is the always-signaled fence.
type noFence struct{}

func (noFence) Wait(time.Duration) error { return nil }
func (noFence) Signaled() bool           { return true }

// NoFence is attached to a slot whenever no synchronization is pending.
// It is a valid fence: Wait returns immediately.
var NoFence Fence = noFence{}
