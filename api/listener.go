// File: api/listener.go
// Author: momentics <momentics@gmail.com>
//
// Consumer-side callback contract. The queue holds the listener it was
// connected with and invokes it with the mutex released. Connecting through
// a detachable handle (facade.ProxyConsumerListener) lets the consumer
// detach; a detached handle turns every callback into a no-op.

package api

// ConsumerListener receives queue-side notifications on the consumer's
// behalf. All callbacks are dispatched without the queue lock held and may
// call back into the queue.
type ConsumerListener interface {
	// OnFrameAvailable fires once per item appended to the FIFO. It does
	// not fire when a droppable head item is replaced in place.
	OnFrameAvailable()

	// OnBuffersReleased fires when the queue frees buffers out from under
	// the consumer (buffer count change, disconnect).
	OnBuffersReleased()

	// OnSidebandStreamChanged signals a sideband stream change. The
	// BufferQueue in this module has no sideband stream and never invokes
	// it.
	OnSidebandStreamChanged()
}
