package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// BindingKind distinguishes the three ways a declarative binding set
// can supply descriptors for one register space, per spec.md §4.4.
type BindingKind int

const (
	// BindEphemeral supplies a fresh vector of (register, resource)
	// pairs materialised into a one-shot descriptor set.
	BindEphemeral BindingKind = iota
	// BindArray references an existing image or buffer DescArray.
	BindArray
	// BindCached references an existing CachedSet.
	BindCached
)

// EphemeralBinding is one (register, resource) pair of an ephemeral
// binding space.
type EphemeralBinding struct {
	Register int
	Type     driver.DescType
	Stages   driver.Stage
	Buf      *Buffer
	BufOff   int64
	BufSize  int64
	View     *ImageView
	Sampler  driver.Sampler
	// InlineConstant, when set for a DConstant binding, is copied
	// into the immediate-constant ring rather than read from Buf.
	InlineConstant []byte
}

// SpaceBinding is one numbered register space of a binding list.
type SpaceBinding struct {
	Space     int
	Kind      BindingKind
	Ephemeral []EphemeralBinding
	Array     descArrayRef
	Cached    *CachedSet
}

// Bindings is the declarative all_resource_bindings list spec.md
// §4.4 describes: an ordered list of (space, bindings).
type Bindings []SpaceBinding

// descArrayRef abstracts over the image/buffer DescArray variants so
// SpaceBinding need not know which one it holds.
type descArrayRef interface {
	flushIfNeeded(q *Queue)
	nativeTable() driver.DescTable
	clearSlot(index int)
}

// CachedSet is a reusable, client-named descriptor set that keeps
// its contents alive across batches (spec.md §3's
// cached_descriptor_set).
type CachedSet struct {
	resourceBase

	bindings []EphemeralBinding
	layout   layoutKey
	table    driver.DescTable
	heap     driver.DescHeap
	strong   []destroyer // strong references keeping bound resources alive
}

// RequestCachedDescriptorSet creates a cached descriptor set from a
// fixed binding list. The native set is materialised lazily on
// first use.
func (c *Context) RequestCachedDescriptorSet(name string, bindings []EphemeralBinding) *CachedSet {
	cs := &CachedSet{
		resourceBase: newResourceBase(c, kindCachedDescriptorSet, name),
		bindings:     bindings,
		layout:       layoutKeyFor(bindings),
	}
	c.track(cs)
	return cs
}

func (cs *CachedSet) materialise() error {
	if cs.table != nil {
		return nil
	}
	heap, table, err := cs.resourceBase.ctx.caches.materialiseEphemeral(cs.resourceBase.ctx.gpu, cs.bindings)
	if err != nil {
		return err
	}
	cs.heap, cs.table = heap, table
	return nil
}

// Destroy defers destruction of the set's native objects.
func (cs *CachedSet) Destroy() {
	ctx := cs.resourceBase.ctx
	if cs.table != nil {
		ctx.graveyard.bury(ctx.currentBatch, cs.table)
	}
	if cs.heap != nil {
		ctx.graveyard.bury(ctx.currentBatch, cs.heap)
	}
}

// materialiser resolves a Bindings list into a pipeline-resources
// key and the list of (native set, space) pairs to bind, per
// spec.md §4.4's final paragraph.
type materialisedBindings struct {
	resourcesKey pipelineResourcesKey
	sets         []boundSet
}

type boundSet struct {
	space int
	table driver.DescTable
}

func (q *Queue) materialise(b Bindings) (materialisedBindings, error) {
	ctx := q.ctx
	var keys []layoutKey
	var sets []boundSet
	for _, space := range b {
		switch space.Kind {
		case BindEphemeral:
			heap, table, err := ctx.caches.materialiseEphemeral(ctx.gpu, space.Ephemeral)
			if err != nil {
				return materialisedBindings{}, err
			}
			ctx.graveyard.bury(ctx.currentBatch, heap)
			q.stageBindingsOnce(space.Ephemeral)
			keys = append(keys, layoutKeyFor(space.Ephemeral))
			sets = append(sets, boundSet{space: space.Space, table: table})
		case BindArray:
			space.Array.flushIfNeeded(q)
			sets = append(sets, boundSet{space: space.Space, table: space.Array.nativeTable()})
		case BindCached:
			if err := space.Cached.materialise(); err != nil {
				return materialisedBindings{}, err
			}
			q.stageBindingsOnce(space.Cached.bindings)
			sets = append(sets, boundSet{space: space.Space, table: space.Cached.table})
		}
	}
	return materialisedBindings{resourcesKey: pipelineResourcesKeyFor(keys), sets: sets}, nil
}

// conflictKey identifies the single subresource (or whole buffer) an
// EphemeralBinding addresses, so two bindings in one flush that name
// the same underlying resource can be detected.
type conflictKey struct {
	buf          *Buffer
	view         *ImageView
	img          *Image
	layer, level int
}

// imageViewKey resolves a view to the subresource it addresses. A
// swap chain view (no owning Image) is keyed on the view itself,
// since it has no per-subresource access array to index into.
func imageViewKey(v *ImageView) conflictKey {
	if v.img == nil {
		return conflictKey{view: v}
	}
	return conflictKey{img: v.img, layer: v.layer, level: v.level}
}

// bindingAccess reports the conflictKey and access an EphemeralBinding
// would stage, and whether the binding names a tracked resource at
// all (false for an empty/unbound slot).
func bindingAccess(eb EphemeralBinding) (conflictKey, access, bool) {
	switch eb.Type {
	case driver.DBuffer:
		if eb.Buf == nil {
			return conflictKey{}, access{}, false
		}
		return conflictKey{buf: eb.Buf}, access{sync: driver.SAll, mask: driver.AShaderRead | driver.AShaderWrite}, true
	case driver.DConstant:
		if eb.Buf == nil {
			return conflictKey{}, access{}, false
		}
		return conflictKey{buf: eb.Buf}, access{sync: driver.SAll, mask: driver.AShaderRead}, true
	case driver.DImage:
		if eb.View == nil {
			return conflictKey{}, access{}, false
		}
		return imageViewKey(eb.View), access{sync: driver.SAll, mask: driver.AShaderRead | driver.AShaderWrite, layout: driver.LShaderRead}, true
	case driver.DTexture:
		if eb.View == nil {
			return conflictKey{}, access{}, false
		}
		return imageViewKey(eb.View), access{sync: driver.SAll, mask: driver.AShaderRead, layout: driver.LShaderRead}, true
	}
	return conflictKey{}, access{}, false
}

// stageBindingsOnce stages every binding in ebs exactly once per
// subresource, per spec.md §4.1's "conflicting transitions to the
// same subresource in one flush are reported as errors; the planner
// keeps the first" rule. A later binding whose target access differs
// from an already-staged one is logged and dropped instead of being
// staged, so the first transition wins.
func (q *Queue) stageBindingsOnce(ebs []EphemeralBinding) {
	seen := make(map[conflictKey]access, len(ebs))
	order := make([]EphemeralBinding, 0, len(ebs))
	for _, eb := range ebs {
		key, next, tracked := bindingAccess(eb)
		if !tracked {
			order = append(order, eb)
			continue
		}
		if prior, ok := seen[key]; ok {
			if prior != next {
				logger.Printf("rendergraph: conflicting transition for register %d in this flush; keeping the first", eb.Register)
			}
			continue
		}
		seen[key] = next
		order = append(order, eb)
	}
	for _, eb := range order {
		q.stageBindingAccess(eb)
	}
}

// stageBindingAccess translates one binding's type into the
// transition the bound resource needs, per spec.md §4.4's
// read_only/read_write/constant -> shader_ro/shader_rw/constant_buffer
// mapping.
func (q *Queue) stageBindingAccess(eb EphemeralBinding) {
	switch eb.Type {
	case driver.DBuffer:
		if eb.Buf != nil {
			q.ctx.planner.stageBuffer(eb.Buf, access{sync: driver.SAll, mask: driver.AShaderRead | driver.AShaderWrite})
		}
	case driver.DConstant:
		if eb.Buf != nil {
			q.ctx.planner.stageBuffer(eb.Buf, access{sync: driver.SAll, mask: driver.AShaderRead})
		}
	case driver.DImage:
		if eb.View != nil {
			q.ctx.planner.stageImageView(eb.View, access{sync: driver.SAll, mask: driver.AShaderRead | driver.AShaderWrite, layout: driver.LShaderRead})
		}
	case driver.DTexture:
		if eb.View != nil {
			q.ctx.planner.stageImageView(eb.View, access{sync: driver.SAll, mask: driver.AShaderRead, layout: driver.LShaderRead})
		}
	}
}
