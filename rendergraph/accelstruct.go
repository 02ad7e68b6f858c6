package rendergraph

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/volantgpu/rendergraph/driver"
)

// AccelStruct is a bottom- or top-level acceleration structure,
// backed by a placed range of a Pool like any other buffer-shaped
// resource, per spec.md §4.10.
type AccelStruct struct {
	resourceBase

	usage driver.AccelStructUsage
	pool  *Pool

	asToken     Token
	asSize      int64
	scratchSize int64

	native  driver.AccelStruct
	scratch *Buffer
}

// RequestBLAS declares a bottom-level acceleration structure built
// from a fixed set of geometries.
func (c *Context) RequestBLAS(name string, pool *Pool) *AccelStruct {
	as := &AccelStruct{resourceBase: newResourceBase(c, kindBLAS, name), usage: driver.ABLAS, pool: pool}
	c.track(as)
	return as
}

// RequestTLAS declares a top-level acceleration structure built from
// a list of instances referencing BLASes.
func (c *Context) RequestTLAS(name string, pool *Pool) *AccelStruct {
	as := &AccelStruct{resourceBase: newResourceBase(c, kindTLAS, name), usage: driver.ATLAS, pool: pool}
	c.track(as)
	return as
}

func (as *AccelStruct) ensureForGeometry(gpu driver.GPU, geom []driver.GeometryBuf) error {
	return as.ensure(gpu, geom, 0)
}

func (as *AccelStruct) ensureForInstances(gpu driver.GPU, instanceCount int) error {
	return as.ensure(gpu, nil, instanceCount)
}

func (as *AccelStruct) ensure(gpu driver.GPU, geom []driver.GeometryBuf, instanceCount int) error {
	if as.native != nil {
		return nil
	}
	asSize, scratchSize, err := gpu.ASBuildSizes(as.usage, geom, instanceCount)
	if err != nil {
		return err
	}
	asTok, err := as.pool.Allocate(asSize, 256)
	if err != nil {
		return ErrOutOfDeviceMemory
	}
	buf, off := as.pool.Buffer(asTok)
	native, err := gpu.NewAccelStruct(as.usage, buf, off, asSize)
	if err != nil {
		as.pool.Free(&asTok)
		return err
	}
	as.asToken, as.asSize = asTok, asSize
	as.native = native
	as.scratchSize = scratchSize
	return nil
}

func (as *AccelStruct) ensureScratch(ctx *Context) (*Buffer, error) {
	if as.scratch != nil {
		return as.scratch, nil
	}
	as.scratch = ctx.RequestBuffer(as.name+".scratch", as.scratchSize, driver.UShaderWrite, as.pool)
	if err := as.scratch.ensureNative(ctx.gpu); err != nil {
		return nil, err
	}
	return as.scratch, nil
}

func (as *AccelStruct) Destroy() {
	ctx := as.resourceBase.ctx
	if as.native != nil {
		ctx.graveyard.bury(ctx.currentBatch, as.native)
	}
	if as.scratch != nil {
		as.scratch.Destroy()
	}
}

// instanceTransform converts a column-major 4x4 world matrix (the
// representation mathgl's mgl32.Mat4 uses) to the row-major 3x4
// layout driver.Instance requires.
func instanceTransform(m mgl32.Mat4) [12]float32 {
	var t [12]float32
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			t[row*4+col] = m.At(row, col)
		}
	}
	return t
}

// NewInstance builds a driver.Instance referencing blas's native
// acceleration structure with a world transform expressed as a
// column-major mgl32.Mat4, per spec.md §4.10's instance buffer
// layout.
func NewInstance(blas *AccelStruct, world mgl32.Mat4, mask uint8, hitGroup int) driver.Instance {
	return driver.Instance{Blas: blas.native, Transform: instanceTransform(world), Mask: mask, HitGroup: hitGroup}
}

// RTPipeline is a ray tracing pipeline: a raygen shader, a list of
// miss shaders, and a list of hit groups, each addressable by index
// when assembling a ShaderTable.
type RTPipeline struct {
	Raygen       *shaderStage
	Miss         []*shaderStage
	HitGroups    []driver.HitGroup
	Layout       []EphemeralBinding
	MaxRecursion int
	MaxPayload   int
	MaxAttribute int

	native driver.Pipeline
	heap   driver.DescHeap
	table  driver.DescTable

	handleSize int
	handles    []byte // one ShaderGroupHandleSize-sized entry per raygen+miss+hitgroup, in that order
}

// NewRTPipeline declares a ray tracing pipeline.
func NewRTPipeline(raygen []byte, raygenEntry string, layout []EphemeralBinding) *RTPipeline {
	return &RTPipeline{Raygen: &shaderStage{code: raygen, entry: raygenEntry}, Layout: layout}
}

func (p *RTPipeline) ensure(ctx *Context) error {
	if p.native != nil {
		return nil
	}
	heap, table, err := ctx.caches.materialiseEphemeral(ctx.gpu, p.Layout)
	if err != nil {
		return err
	}
	rg, err := p.Raygen.ensureNative(ctx.gpu)
	if err != nil {
		return err
	}
	miss := make([]driver.ShaderFunc, len(p.Miss))
	for i, m := range p.Miss {
		miss[i], err = m.ensureNative(ctx.gpu)
		if err != nil {
			return err
		}
	}
	native, err := ctx.gpu.NewPipeline(&driver.RTState{
		Raygen: rg, Miss: miss, HitGroups: p.HitGroups, Desc: table,
		MaxRecursion: p.MaxRecursion, MaxPayload: p.MaxPayload, MaxAttribute: p.MaxAttribute,
	})
	if err != nil {
		heap.Destroy()
		return err
	}
	p.native, p.heap, p.table = native, heap, table

	handleSize := ctx.gpu.Limits().ShaderGroupHandleSize
	count := 1 + len(p.Miss) + len(p.HitGroups)
	handles, err := ctx.gpu.ShaderGroupHandles(native, 0, count)
	if err != nil {
		return err
	}
	p.handleSize, p.handles = handleSize, handles
	return nil
}

// assembleTable copies this pipeline's shader group handles into sbt
// at the alignment ctx.gpu.Limits().ShaderTableAlign requires,
// returning the driver.ShaderTable a TraceRays call consumes.
func (p *RTPipeline) assembleTable(ctx *Context, sbt *Buffer) (*driver.ShaderTable, error) {
	align := int64(ctx.gpu.Limits().ShaderTableAlign)
	bytes, err := sbt.Map(ctx.gpu)
	if err != nil {
		return nil, err
	}
	entry := func(i int) (int64, int64) {
		off := int64(i) * align
		copy(bytes[off:], p.handles[i*p.handleSize:(i+1)*p.handleSize])
		return off, align
	}
	rgOff, rgSize := entry(0)
	missOff, missSize := int64(0), int64(0)
	for i := range p.Miss {
		o, s := entry(1 + i)
		if i == 0 {
			missOff = o
		}
		missSize += s
	}
	hitOff, hitSize := int64(0), int64(0)
	for i := range p.HitGroups {
		o, s := entry(1 + len(p.Miss) + i)
		if i == 0 {
			hitOff = o
		}
		hitSize += s
	}
	return &driver.ShaderTable{
		Pipeline: p.native,
		Raygen:   driver.ShaderTableRegion{Buf: sbt.native, Off: rgOff, Stride: align, Size: rgSize},
		Miss:     driver.ShaderTableRegion{Buf: sbt.native, Off: missOff, Stride: align, Size: missSize},
		Hit:      driver.ShaderTableRegion{Buf: sbt.native, Off: hitOff, Stride: align, Size: hitSize},
	}, nil
}

func (p *RTPipeline) Destroy(ctx *Context) {
	if p.native != nil {
		ctx.graveyard.bury(ctx.currentBatch, p.native)
		ctx.graveyard.bury(ctx.currentBatch, p.table)
		ctx.graveyard.bury(ctx.currentBatch, p.heap)
	}
}
