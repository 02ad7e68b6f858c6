package rendergraph

import "sync/atomic"

// resourceID uniquely identifies a logical resource for the lifetime
// of a Context: pools, images, buffers, swap chains, descriptor
// arrays, acceleration structures, dependencies, and cached
// descriptor sets all draw from the same counter.
type resourceID uint64

var resourceCounter atomic.Uint64

func newResourceID() resourceID {
	return resourceID(resourceCounter.Add(1))
}

// submissionIndex is assigned to every command when it is recorded,
// monotonically increasing across all queues of one Context.
type submissionIndex uint64

// batchIndex counts ExecuteAll invocations.
type batchIndex uint64

// queueSubmissionIndex counts native submissions on one queue.
type queueSubmissionIndex uint64
