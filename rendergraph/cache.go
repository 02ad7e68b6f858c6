package rendergraph

import (
	"fmt"
	"sync"

	"github.com/volantgpu/rendergraph/driver"
)

// layoutKey is a content-addressed key for one space's descriptor
// layout (its ordered (type, stage-mask, register) shape), per spec.md
// §4.3's descriptor-set-layout cache.
type layoutKey string

func layoutKeyFor(bindings []EphemeralBinding) layoutKey {
	var s string
	for _, b := range bindings {
		s += fmt.Sprintf("%d:%d:%d,", b.Type, b.Stages, b.Register)
	}
	return layoutKey(s)
}

// pipelineResourcesKey is a content-addressed key over the layout
// keys of every space a pipeline binds, used to deduplicate pipeline
// layouts across draws/dispatches that bind the same shape of
// resources with different contents.
type pipelineResourcesKey string

func pipelineResourcesKeyFor(keys []layoutKey) pipelineResourcesKey {
	var s string
	for _, k := range keys {
		s += string(k) + "|"
	}
	return pipelineResourcesKey(s)
}

// samplerKey content-addresses a driver.Sampling descriptor so two
// identical sampler requests share one native driver.Sampler.
type samplerKey struct {
	minFilter, magFilter, mipFilter driver.Filter
	addrU, addrV, addrW             driver.AddrMode
	maxAniso                        int
	cmp                             driver.CmpFunc
	minLOD, maxLOD                  float32
}

func samplerKeyFor(s *driver.Sampling) samplerKey {
	return samplerKey{
		minFilter: s.Min, magFilter: s.Mag, mipFilter: s.Mipmap,
		addrU: s.AddrU, addrV: s.AddrV, addrW: s.AddrW,
		maxAniso: s.MaxAniso, cmp: s.Cmp, minLOD: s.MinLOD, maxLOD: s.MaxLOD,
	}
}

// graphStateKey and compStateKey content-address a full graphics or
// compute pipeline state description, per spec.md §4.3's PSO cache.
type graphStateKey string
type compStateKey string

// cacheSet holds every content-addressed cache the context keeps,
// per spec.md §4.3's table: samplers, descriptor-set layouts (folded
// into descriptor-table allocation below), graphics and compute
// pipeline state objects.
type cacheSet struct {
	mu sync.Mutex

	samplers map[samplerKey]driver.Sampler
	graphPSO map[graphStateKey]driver.Pipeline
	compPSO  map[compStateKey]driver.Pipeline
}

func (c *cacheSet) init() {
	c.samplers = make(map[samplerKey]driver.Sampler)
	c.graphPSO = make(map[graphStateKey]driver.Pipeline)
	c.compPSO = make(map[compStateKey]driver.Pipeline)
}

// sampler returns a cached driver.Sampler for s, creating one on
// first request. Samplers are never evicted: the number of distinct
// sampling states a real renderer uses is small and bounded.
func (c *cacheSet) sampler(gpu driver.GPU, s *driver.Sampling) (driver.Sampler, error) {
	key := samplerKeyFor(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	if splr, ok := c.samplers[key]; ok {
		return splr, nil
	}
	splr, err := gpu.NewSampler(s)
	if err != nil {
		return nil, err
	}
	c.samplers[key] = splr
	return splr, nil
}

// graphicsPipeline returns a cached graphics PSO for key, building it
// via build on a miss.
func (c *cacheSet) graphicsPipeline(key graphStateKey, build func() (driver.Pipeline, error)) (driver.Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pl, ok := c.graphPSO[key]; ok {
		return pl, nil
	}
	pl, err := build()
	if err != nil {
		return nil, err
	}
	c.graphPSO[key] = pl
	return pl, nil
}

// computePipeline returns a cached compute PSO for key, building it
// via build on a miss.
func (c *cacheSet) computePipeline(key compStateKey, build func() (driver.Pipeline, error)) (driver.Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pl, ok := c.compPSO[key]; ok {
		return pl, nil
	}
	pl, err := build()
	if err != nil {
		return nil, err
	}
	c.compPSO[key] = pl
	return pl, nil
}

// materialiseEphemeral builds a fresh, one-shot descriptor heap and
// table for bindings. Ephemeral sets are never cached by content:
// spec.md §4.3 reserves caching for samplers and pipeline state, and
// leaves per-draw descriptor contents to be rebuilt every time since
// the whole point of an ephemeral binding is that its contents change
// batch to batch.
func (c *cacheSet) materialiseEphemeral(gpu driver.GPU, bindings []EphemeralBinding) (driver.DescHeap, driver.DescTable, error) {
	descs := make([]driver.Descriptor, len(bindings))
	for i, b := range bindings {
		descs[i] = driver.Descriptor{Type: b.Type, Stages: b.Stages, Nr: b.Register, Len: 1}
	}
	heap, err := gpu.NewDescHeap(descs)
	if err != nil {
		return nil, nil, ErrOutOfDescriptors
	}
	if err := heap.New(1); err != nil {
		heap.Destroy()
		return nil, nil, ErrOutOfDescriptors
	}
	for i, b := range bindings {
		switch b.Type {
		case driver.DBuffer, driver.DConstant:
			if b.Buf == nil {
				continue
			}
			if err := b.Buf.ensureNative(gpu); err != nil {
				heap.Destroy()
				return nil, nil, err
			}
			heap.SetBuffer(0, i, 0, []driver.Buffer{b.Buf.native}, []int64{b.BufOff}, []int64{b.BufSize})
		case driver.DImage, driver.DTexture:
			if b.View == nil {
				continue
			}
			heap.SetImage(0, i, 0, []driver.ImageView{b.View.native})
		case driver.DSampler:
			if b.Sampler == nil {
				continue
			}
			heap.SetSampler(0, i, 0, []driver.Sampler{b.Sampler})
		}
	}
	table, err := gpu.NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		heap.Destroy()
		return nil, nil, ErrOutOfDescriptors
	}
	return heap, table, nil
}
