package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// access is a single (sync, access mask) pair. Images additionally
// carry a layout; buffers do not.
type access struct {
	sync   driver.Sync
	mask   driver.Access
	layout driver.Layout // always LUndefined for buffers
}

// initialImageAccess is the state of every newly created image
// subresource before its first use.
var initialImageAccess = access{sync: driver.SAll, mask: driver.ANone, layout: driver.LUndefined}

// initialBufferAccess is the state of every newly created buffer.
var initialBufferAccess = access{sync: driver.SAll, mask: driver.ANone}

// forceSyncImage is the set of access-mask bits that force a barrier
// to be emitted even when the requested access equals the recorded
// one (spec: shader_write, copy_dst).
const forceSyncImage = driver.AShaderWrite | driver.ACopyWrite

// forceSyncBuffer additionally forces a barrier on as_write
// (acceleration-structure writes), per spec's buffer-specific rule.
const forceSyncBuffer = driver.AShaderWrite | driver.ACopyWrite | driver.AAnyWrite

// needsBarrier reports whether moving from cur to next requires a
// barrier, applying the "equal and not force-synced" elision rule
// from spec.md §4.1: only access and layout enter the equality test,
// never sync — two reads from different pipeline stages merge their
// sync scopes instead of forcing a barrier between them.
func needsBarrier(cur, next access, forceSync driver.Access) bool {
	if cur.layout != next.layout || cur.mask != next.mask {
		return true
	}
	return cur.mask&forceSync != 0
}

// merge combines next into cur when no barrier is required: sync
// points accumulate (multiple readers in the same state can run
// concurrently) while mask/layout stay as they were.
func (a access) merge(next access) access {
	a.sync |= next.sync
	return a
}
