// Package rendergraph implements a render-graph context above the
// driver package's GPU abstraction: callers describe whole frames as
// an ordered sequence of resource requests and commands, and the
// context lazily allocates backing resources, tracks per-subresource
// access history, inserts barriers and layout transitions, caches
// descriptor sets and pipeline state, drives staging uploads, manages
// swap chains, submits on one or more hardware queues with
// timeline-semaphore synchronization, and defers destruction until
// the GPU has passed the batch that last used an object.
package rendergraph
