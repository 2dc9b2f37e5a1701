// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake consumer listener recording callback counts for tests.

package fake

import (
	"sync"

	"github.com/momentics/hioload-gfx/api"
)

// Listener is a fake implementation of api.ConsumerListener.
type Listener struct {
	mu              sync.Mutex
	frameAvailable  int
	buffersReleased int
	sidebandChanged int
}

var _ api.ConsumerListener = (*Listener)(nil)

// NewListener creates a listener with zeroed counters.
func NewListener() *Listener {
	return &Listener{}
}

func (l *Listener) OnFrameAvailable() {
	l.mu.Lock()
	l.frameAvailable++
	l.mu.Unlock()
}

func (l *Listener) OnBuffersReleased() {
	l.mu.Lock()
	l.buffersReleased++
	l.mu.Unlock()
}

func (l *Listener) OnSidebandStreamChanged() {
	l.mu.Lock()
	l.sidebandChanged++
	l.mu.Unlock()
}

// FrameAvailableCount returns how many OnFrameAvailable calls landed.
func (l *Listener) FrameAvailableCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frameAvailable
}

// BuffersReleasedCount returns how many OnBuffersReleased calls landed.
func (l *Listener) BuffersReleasedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffersReleased
}
