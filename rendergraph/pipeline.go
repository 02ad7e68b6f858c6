package rendergraph

import (
	"fmt"

	"github.com/volantgpu/rendergraph/driver"
)

// RenderPassDesc wraps a driver.RenderPass plus the framebuffers
// built from it, content-addressed on the exact set of image views
// bound as attachments so repeated BeginPass calls against the same
// physical targets reuse one driver.Framebuf.
type RenderPassDesc struct {
	Attachments []driver.Attachment
	Subpasses   []driver.Subpass

	native driver.RenderPass
	fbs    map[string]driver.Framebuf
}

// RequestRenderPass declares a render pass shape. The native
// driver.RenderPass is created lazily on first use.
func (c *Context) RequestRenderPass(att []driver.Attachment, sub []driver.Subpass) *RenderPassDesc {
	return &RenderPassDesc{Attachments: att, Subpasses: sub, fbs: make(map[string]driver.Framebuf)}
}

func (rp *RenderPassDesc) ensureNative(gpu driver.GPU) error {
	if rp.native != nil {
		return nil
	}
	native, err := gpu.NewRenderPass(rp.Attachments, rp.Subpasses)
	if err != nil {
		return err
	}
	rp.native = native
	return nil
}

func fbKey(views []*ImageView) string {
	var s string
	for _, v := range views {
		if v.img == nil {
			s += fmt.Sprintf("%p:%d,%d;", v.native, v.layer, v.level)
			continue
		}
		s += fmt.Sprintf("%s:%d,%d;", v.img.name, v.layer, v.level)
	}
	return s
}

func (rp *RenderPassDesc) framebuffer(gpu driver.GPU, views []*ImageView, width, height, layers int) (driver.Framebuf, error) {
	if err := rp.ensureNative(gpu); err != nil {
		return nil, err
	}
	key := fbKey(views)
	if fb, ok := rp.fbs[key]; ok {
		return fb, nil
	}
	native := make([]driver.ImageView, len(views))
	for i, v := range views {
		native[i] = v.native
	}
	fb, err := rp.native.NewFB(native, width, height, layers)
	if err != nil {
		return nil, err
	}
	rp.fbs[key] = fb
	return fb, nil
}

// Pass represents one open render pass recording block, returned by
// Queue.BeginPass and closed with Queue.EndPass.
type Pass struct {
	q           *Queue
	desc        *RenderPassDesc
	attachments []*ImageView
	clear       []driver.ClearValue
}

// shaderStage is a (code, entry point) pair, mirroring
// driver.ShaderFunc but with the ShaderCode created lazily from raw
// bytes so callers can hand pipelines their compiled binaries
// directly.
type shaderStage struct {
	code  []byte
	entry string

	native driver.ShaderCode
}

func (s *shaderStage) ensureNative(gpu driver.GPU) (driver.ShaderFunc, error) {
	if s == nil || s.code == nil {
		return driver.ShaderFunc{}, nil
	}
	if s.native == nil {
		native, err := gpu.NewShaderCode(s.code)
		if err != nil {
			return driver.ShaderFunc{}, ErrInvalidShader
		}
		s.native = native
	}
	return driver.ShaderFunc{Code: s.native, Name: s.entry}, nil
}

// GraphicsPipeline is a draw-time pipeline description: vertex and
// fragment stages, fixed-function state, and the declared shape of
// resources its draws will bind. The native driver.Pipeline and its
// backing descriptor table are built lazily on first use and then
// cached for the pipeline's lifetime.
type GraphicsPipeline struct {
	Vert, Frag *shaderStage
	Input      []driver.VertexIn
	Topology   driver.Topology
	Raster     driver.RasterState
	Samples    int
	DS         driver.DSState
	Blend      driver.BlendState
	Pass       *RenderPassDesc
	Subpass    int
	Layout     []EphemeralBinding // declares (register, type, stage); Buf/View/Sampler values are ignored

	native driver.Pipeline
	heap   driver.DescHeap
	table  driver.DescTable
}

// NewGraphicsPipeline declares a graphics pipeline.
func NewGraphicsPipeline(vert, frag []byte, vertEntry, fragEntry string, layout []EphemeralBinding) *GraphicsPipeline {
	return &GraphicsPipeline{
		Vert:   &shaderStage{code: vert, entry: vertEntry},
		Frag:   &shaderStage{code: frag, entry: fragEntry},
		Layout: layout,
	}
}

func (p *GraphicsPipeline) ensure(ctx *Context) error {
	if p.native != nil {
		return nil
	}
	if err := p.Pass.ensureNative(ctx.gpu); err != nil {
		return err
	}
	heap, table, err := ctx.caches.materialiseEphemeral(ctx.gpu, p.Layout)
	if err != nil {
		return err
	}
	vf, err := p.Vert.ensureNative(ctx.gpu)
	if err != nil {
		return err
	}
	ff, err := p.Frag.ensureNative(ctx.gpu)
	if err != nil {
		return err
	}
	state := &driver.GraphState{
		VertFunc: vf, FragFunc: ff,
		Desc:     table,
		Input:    p.Input,
		Topology: p.Topology,
		Raster:   p.Raster,
		Samples:  p.Samples,
		DS:       p.DS,
		Blend:    p.Blend,
		Pass:     p.Pass.native,
		Subpass:  p.Subpass,
	}
	native, err := ctx.gpu.NewPipeline(state)
	if err != nil {
		heap.Destroy()
		return err
	}
	p.native, p.heap, p.table = native, heap, table
	return nil
}

func (p *GraphicsPipeline) Destroy(ctx *Context) {
	if p.native != nil {
		ctx.graveyard.bury(ctx.currentBatch, p.native)
		ctx.graveyard.bury(ctx.currentBatch, p.table)
		ctx.graveyard.bury(ctx.currentBatch, p.heap)
	}
}

// ComputePipeline is the compute-pipeline analogue of
// GraphicsPipeline.
type ComputePipeline struct {
	Func   *shaderStage
	Layout []EphemeralBinding

	native driver.Pipeline
	heap   driver.DescHeap
	table  driver.DescTable
}

// NewComputePipeline declares a compute pipeline.
func NewComputePipeline(code []byte, entry string, layout []EphemeralBinding) *ComputePipeline {
	return &ComputePipeline{Func: &shaderStage{code: code, entry: entry}, Layout: layout}
}

func (p *ComputePipeline) ensure(ctx *Context) error {
	if p.native != nil {
		return nil
	}
	heap, table, err := ctx.caches.materialiseEphemeral(ctx.gpu, p.Layout)
	if err != nil {
		return err
	}
	fn, err := p.Func.ensureNative(ctx.gpu)
	if err != nil {
		return err
	}
	native, err := ctx.gpu.NewPipeline(&driver.CompState{Func: fn, Desc: table})
	if err != nil {
		heap.Destroy()
		return err
	}
	p.native, p.heap, p.table = native, heap, table
	return nil
}

func (p *ComputePipeline) Destroy(ctx *Context) {
	if p.native != nil {
		ctx.graveyard.bury(ctx.currentBatch, p.native)
		ctx.graveyard.bury(ctx.currentBatch, p.table)
		ctx.graveyard.bury(ctx.currentBatch, p.heap)
	}
}
