package rendergraph

import (
	"sync"

	"github.com/volantgpu/rendergraph/driver"
	"github.com/volantgpu/rendergraph/internal/bitm"
)

// DefaultChunkSize is the chunk size used by RequestPool when the
// caller does not specify one, matching spec.md's 100 MiB default.
const DefaultChunkSize = 100 << 20

// poolBlock is the granularity of a pool's sub-allocator: every
// chunk is tracked as poolBlock-sized units in a bitm.Bitm[uint32],
// the same scheme the teacher uses for its staging buffer (see
// engine/staging.go in the reference pack) generalized from one
// fixed-purpose buffer to an arbitrary named pool.
const poolBlock = 256

// Token is an opaque handle into a Pool, returned by Pool.Allocate
// and consumed by Pool.Free. A token is valid for exactly one pool
// and must be freed at most once.
type Token struct {
	chunk  int
	offset int64
	size   int64
	freed  bool
}

type poolChunk struct {
	buf driver.Buffer
	bm  bitm.Bitm[uint32]
}

// Pool is a chunked sub-allocator over GPU memory: Allocate searches
// existing chunks for a free range and, when none fits, allocates a
// new chunk via the GPU. Pools back buffers, BLAS/TLAS storage, and
// the upload rings; they never back images directly since the driver
// contract creates images with their own dedicated allocation.
type Pool struct {
	resourceBase

	mu         sync.Mutex
	chunkSize  int64
	usage      driver.Usage
	chunks     []*poolChunk
}

// RequestPool creates a new pool. chunkSize is rounded up to the
// bitmap's natural granularity if 0 is not passed.
func (c *Context) RequestPool(name string, chunkSize int64, usage driver.Usage) *Pool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = alignUp(chunkSize, poolBlock*32)
	p := &Pool{
		resourceBase: newResourceBase(c, kindPool, name),
		chunkSize:    chunkSize,
		usage:        usage,
	}
	c.track(p)
	return p
}

// alignBlocks returns the number of poolBlock-sized units align
// spans, rounding up. Allocate assumes align is either no coarser
// than poolBlock (always satisfied: 256 is a multiple of every small
// alignment a buffer usage asks for) or a multiple of poolBlock
// itself (512, 1024, 65536, ...), matching how real GPU APIs state
// their alignment requirements.
func alignBlocks(align int64) int {
	n := int((align + poolBlock - 1) / poolBlock)
	if n < 1 {
		return 1
	}
	return n
}

// Allocate reserves size bytes aligned to align from the pool,
// allocating a new chunk if no existing one has room. The returned
// Token identifies the reservation for a later call to Free. Coarser
// alignments than poolBlock are honored by searching a padded range
// and only marking the correctly aligned subrange occupied, leaving
// the padding blocks free for a later, smaller allocation.
func (p *Pool) Allocate(size, align int64) (Token, error) {
	if size <= 0 {
		usagef("Pool.Allocate", p.name, "size must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	nblocks := int((size + poolBlock - 1) / poolBlock)
	ablocks := alignBlocks(align)
	search := nblocks
	if ablocks > 1 {
		search = nblocks + ablocks - 1
	}

	for i, c := range p.chunks {
		if idx, ok := c.bm.SearchRange(search); ok {
			start := alignUpBlocks(idx, ablocks)
			for j := 0; j < nblocks; j++ {
				c.bm.Set(start + j)
			}
			return Token{chunk: i, offset: int64(start) * poolBlock, size: size}, nil
		}
	}

	// No existing chunk fits: allocate a new one sized to the
	// greater of the pool's chunk size and the request, plus enough
	// slack to satisfy the alignment padding.
	newSize := p.chunkSize
	need := (size + poolBlock - 1) / poolBlock * poolBlock
	if ablocks > 1 {
		need += int64(ablocks) * poolBlock
	}
	need = alignUp(need, poolBlock*32)
	if need > newSize {
		newSize = need
	}
	buf, err := p.ctx.gpu.NewBuffer(newSize, false, p.usage)
	if err != nil {
		return Token{}, ErrOutOfDeviceMemory
	}
	ch := &poolChunk{buf: buf}
	ch.bm.Grow(int(newSize / poolBlock / 32))
	idx, ok := ch.bm.SearchRange(search)
	if !ok {
		buf.Destroy()
		return Token{}, ErrOutOfDeviceMemory
	}
	start := alignUpBlocks(idx, ablocks)
	for j := 0; j < nblocks; j++ {
		ch.bm.Set(start + j)
	}
	p.chunks = append(p.chunks, ch)
	return Token{chunk: len(p.chunks) - 1, offset: int64(start) * poolBlock, size: size}, nil
}

// alignUpBlocks rounds idx up to the nearest multiple of ablocks.
func alignUpBlocks(idx, ablocks int) int {
	if ablocks <= 1 {
		return idx
	}
	return (idx + ablocks - 1) / ablocks * ablocks
}

// Free releases a token back to its chunk's sub-allocator. Freeing a
// token twice is a usage error (spec.md §3's "released at most once"
// invariant).
func (p *Pool) Free(t *Token) {
	if t.freed {
		usagef("Pool.Free", p.name, "token already freed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.chunks[t.chunk]
	nblocks := int((t.size + poolBlock - 1) / poolBlock)
	idx := int(t.offset / poolBlock)
	for j := 0; j < nblocks; j++ {
		c.bm.Unset(idx + j)
	}
	t.freed = true
}

// Buffer returns the native backing buffer and offset for a token,
// for use when placing a resource (BLAS/TLAS storage, staging rings)
// at the token's range.
func (p *Pool) Buffer(t Token) (driver.Buffer, int64) {
	return p.chunks[t.chunk].buf, t.offset
}

func (p *Pool) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.chunks {
		p.ctx.graveyard.bury(p.ctx.currentBatch, c.buf)
	}
	p.chunks = nil
}

// Destroy defers destruction of every chunk in the pool to the
// current batch's graveyard.
func (p *Pool) Destroy() { p.destroy() }
