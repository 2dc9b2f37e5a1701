// Package bufferqueue
// Author: momentics <momentics@gmail.com>
//
// Bounded shared-memory rendezvous between one frame producer and one
// consumer. A fixed table of 32 slots cycles through the
// FREE -> DEQUEUED -> QUEUED -> ACQUIRED lifecycle under a single monitor;
// fences carry GPU synchronization alongside each ownership transfer so
// the control path never waits on pixels.
//
// The producer drives DequeueBuffer/RequestBuffer/QueueBuffer/CancelBuffer,
// the consumer AcquireBuffer/ReleaseBuffer. When the producer outruns the
// consumer the queue either blocks the next dequeue or, in cannot-block
// mode, replaces the droppable FIFO head in place, trading frames for
// latency.
package bufferqueue
