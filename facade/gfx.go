// File: facade/gfx.go
// Unified facade layer for hioload-gfx library.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Gfx struct, which aggregates the buffer queue, its
// allocator and the control plane behind a single facade. New wires the
// pieces together from immutable configuration and hands back the producer
// and consumer endpoints of the queue.

package facade

import (
	"github.com/momentics/hioload-gfx/api"
	"github.com/momentics/hioload-gfx/control"
	"github.com/momentics/hioload-gfx/core/bufferqueue"
	"github.com/momentics/hioload-gfx/pool"
)

// Config holds parameters immutable per queue.
type Config struct {
	DefaultWidth          uint32          // Geometry substituted for zero-sized dequeues
	DefaultHeight         uint32          //
	DefaultFormat         api.PixelFormat // Format substituted for format zero
	ConsumerUsageBits     uint32          // Usage bits or-ed into every dequeue
	DefaultMaxBufferCount int             // Slot budget while no override is set
	MaxAcquiredBuffers    int             // How many buffers the consumer may hold
	ConsumerName          string          // Queue name for logs and probes; empty keeps the generated one
	EnableMetrics         bool            // Whether to publish counters to the metrics registry
	EnableDebug           bool            // Whether to register debug probes
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		DefaultWidth:          1,
		DefaultHeight:         1,
		DefaultFormat:         api.PixelFormatRGBA8888,
		DefaultMaxBufferCount: 2,
		MaxAcquiredBuffers:    1,
		EnableMetrics:         true,
		EnableDebug:           true,
	}
}

// Gfx is the main facade type.
type Gfx struct {
	queue     *bufferqueue.BufferQueue
	allocator *pool.GraphicBufferAllocator
	metrics   *control.MetricsRegistry
	probes    *control.DebugProbes
	config    *Config
}

// New constructs the queue with the given configuration and returns the
// facade together with its producer and consumer endpoints.
func New(cfg *Config) (*Gfx, api.Producer, api.Consumer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	allocator := pool.NewGraphicBufferAllocator()
	q, err := bufferqueue.New(allocator)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.DefaultWidth != 0 && cfg.DefaultHeight != 0 {
		if err := q.SetDefaultBufferSize(cfg.DefaultWidth, cfg.DefaultHeight); err != nil {
			return nil, nil, nil, err
		}
	}
	if cfg.DefaultFormat != 0 {
		if err := q.SetDefaultBufferFormat(cfg.DefaultFormat); err != nil {
			return nil, nil, nil, err
		}
	}
	if cfg.ConsumerUsageBits != 0 {
		if err := q.SetConsumerUsageBits(cfg.ConsumerUsageBits); err != nil {
			return nil, nil, nil, err
		}
	}
	if cfg.DefaultMaxBufferCount != 0 {
		if err := q.SetDefaultMaxBufferCount(cfg.DefaultMaxBufferCount); err != nil {
			return nil, nil, nil, err
		}
	}
	if cfg.MaxAcquiredBuffers != 0 {
		if err := q.SetMaxAcquiredBufferCount(cfg.MaxAcquiredBuffers); err != nil {
			return nil, nil, nil, err
		}
	}
	if cfg.ConsumerName != "" {
		q.SetConsumerName(cfg.ConsumerName)
	}

	g := &Gfx{
		queue:     q,
		allocator: allocator,
		config:    cfg,
	}
	if cfg.EnableMetrics {
		g.metrics = control.NewMetricsRegistry()
	}
	if cfg.EnableDebug {
		g.probes = control.NewDebugProbes()
		g.probes.AttachQueue(q.DumpState)
		g.probes.AttachAllocator(func() any { return allocator.Stats() })
	}
	return g, q, q, nil
}

// Queue exposes the underlying queue for callers needing both roles.
func (g *Gfx) Queue() *bufferqueue.BufferQueue { return g.queue }

// Allocator exposes the allocator backing the queue.
func (g *Gfx) Allocator() *pool.GraphicBufferAllocator { return g.allocator }

// Metrics returns the metrics registry, nil when disabled.
func (g *Gfx) Metrics() *control.MetricsRegistry { return g.metrics }

// DebugProbes returns the probe registry, nil when disabled.
func (g *Gfx) DebugProbes() *control.DebugProbes { return g.probes }

// PublishMetrics snapshots queue and allocator counters into the metrics
// registry. Callers decide the cadence.
func (g *Gfx) PublishMetrics() {
	if g.metrics == nil {
		return
	}
	qs := g.queue.Stats()
	g.metrics.PublishQueue(control.QueueCounters{
		FramesQueued:       qs.FramesQueued,
		FramesDropped:      qs.FramesDropped,
		BuffersReallocated: qs.BuffersReallocated,
		FenceWaitTimeouts:  qs.FenceWaitTimeouts,
		PendingBuffers:     qs.PendingBuffers,
		FrameCounter:       qs.FrameCounter,
	})

	as := g.allocator.Stats()
	g.metrics.PublishAllocator(control.AllocCounters{
		BuffersInUse: as.InUse,
		BytesInUse:   as.BytesInUse,
	})
}
