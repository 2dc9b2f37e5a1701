// File: facade/listener_proxy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ProxyConsumerListener is the detachable listener handle the queue holds
// instead of the consumer itself, so the queue never extends the
// consumer's lifetime. The consumer detaches on teardown; callbacks
// arriving through a detached proxy are dropped.

package facade

import (
	"sync"

	"github.com/momentics/hioload-gfx/api"
)

// ProxyConsumerListener forwards callbacks to a detachable target.
type ProxyConsumerListener struct {
	mu     sync.RWMutex
	target api.ConsumerListener
}

var _ api.ConsumerListener = (*ProxyConsumerListener)(nil)

// NewProxyConsumerListener wraps target in a detachable handle.
func NewProxyConsumerListener(target api.ConsumerListener) *ProxyConsumerListener {
	return &ProxyConsumerListener{target: target}
}

// Detach severs the proxy. Safe to call from the consumer's teardown while
// a callback is in flight; later callbacks become no-ops.
func (p *ProxyConsumerListener) Detach() {
	p.mu.Lock()
	p.target = nil
	p.mu.Unlock()
}

// promote grabs a strong reference for the duration of one callback.
func (p *ProxyConsumerListener) promote() api.ConsumerListener {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target
}

func (p *ProxyConsumerListener) OnFrameAvailable() {
	if l := p.promote(); l != nil {
		l.OnFrameAvailable()
	}
}

func (p *ProxyConsumerListener) OnBuffersReleased() {
	if l := p.promote(); l != nil {
		l.OnBuffersReleased()
	}
}

func (p *ProxyConsumerListener) OnSidebandStreamChanged() {
	if l := p.promote(); l != nil {
		l.OnSidebandStreamChanged()
	}
}
