package noop

import (
	"errors"

	"github.com/volantgpu/rendergraph/driver"
)

// block identifies which kind of logical recording block a
// cmdBuffer is currently inside, if any.
type block int

const (
	blockNone block = iota
	blockPass
	blockWork
	blockBlit
)

// cmdBuffer implements driver.CmdBuffer by recording every call
// into in-memory logs instead of submitting work to a GPU. Tests
// inspect the logs (Barriers, Transitions, Draws, Dispatches,
// Copies) to assert on the bookkeeping that produced them.
type cmdBuffer struct {
	recording bool
	submitted bool
	cur       block

	pipeline driver.Pipeline

	Barriers    []driver.Barrier
	Transitions []driver.Transition
	Draws       []DrawCall
	Dispatches  []DispatchCall
	ASBuilds    []driver.ASBuild
	TraceCalls  []TraceCall
	Copies      []CopyCall
}

// DrawCall records the parameters of a Draw or DrawIndexed call.
type DrawCall struct {
	Indexed                           bool
	VertCount, InstCount, Base, Vtx   int
}

// DispatchCall records the parameters of a Dispatch call.
type DispatchCall struct {
	X, Y, Z int
}

// TraceCall records the parameters of a TraceRays call.
type TraceCall struct {
	SBT                   *driver.ShaderTable
	Width, Height, Depth  int
}

// CopyCall records one of the Copy* commands, tagged by Kind (Fill
// is not recorded).
type CopyCall struct {
	Kind string
	Buf  *driver.BufferCopy
	Img  *driver.ImageCopy
	BI   *driver.BufImgCopy
}

func (c *cmdBuffer) Destroy() {}

func (c *cmdBuffer) Begin() error {
	if c.recording {
		return errors.New("noop: command buffer already recording")
	}
	c.recording = true
	c.submitted = false
	c.cur = blockNone
	c.Barriers = nil
	c.Transitions = nil
	c.Draws = nil
	c.Dispatches = nil
	c.ASBuilds = nil
	c.TraceCalls = nil
	c.Copies = nil
	return nil
}

func (c *cmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	c.cur = blockPass
}

func (c *cmdBuffer) NextSubpass() {}

func (c *cmdBuffer) EndPass() { c.cur = blockNone }

func (c *cmdBuffer) BeginWork(wait bool) { c.cur = blockWork }

func (c *cmdBuffer) EndWork() { c.cur = blockNone }

func (c *cmdBuffer) BeginBlit(wait bool) { c.cur = blockBlit }

func (c *cmdBuffer) EndBlit() { c.cur = blockNone }

func (c *cmdBuffer) SetPipeline(pl driver.Pipeline) { c.pipeline = pl }

func (c *cmdBuffer) SetViewport(vp []driver.Viewport) {}

func (c *cmdBuffer) SetScissor(sciss []driver.Scissor) {}

func (c *cmdBuffer) SetBlendColor(r, g, b, a float32) {}

func (c *cmdBuffer) SetStencilRef(value uint32) {}

func (c *cmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {}

func (c *cmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {}

func (c *cmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {}

func (c *cmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {}

func (c *cmdBuffer) SetDescTableRT(table driver.DescTable, start int, heapCopy []int) {}

func (c *cmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	c.Draws = append(c.Draws, DrawCall{VertCount: vertCount, InstCount: instCount, Base: baseVert, Vtx: baseInst})
}

func (c *cmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	c.Draws = append(c.Draws, DrawCall{Indexed: true, VertCount: idxCount, InstCount: instCount, Base: baseIdx, Vtx: vertOff})
}

func (c *cmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	c.Dispatches = append(c.Dispatches, DispatchCall{X: grpCountX, Y: grpCountY, Z: grpCountZ})
}

func (c *cmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	c.Copies = append(c.Copies, CopyCall{Kind: "buffer", Buf: param})
	dst := param.To.(*buffer)
	src := param.From.(*buffer)
	copy(dst.data[param.ToOff:], src.data[param.FromOff:param.FromOff+param.Size])
}

func (c *cmdBuffer) CopyImage(param *driver.ImageCopy) {
	c.Copies = append(c.Copies, CopyCall{Kind: "image", Img: param})
}

func (c *cmdBuffer) CopyBufToImg(param *driver.BufImgCopy) {
	c.Copies = append(c.Copies, CopyCall{Kind: "buf2img", BI: param})
}

func (c *cmdBuffer) CopyImgToBuf(param *driver.BufImgCopy) {
	c.Copies = append(c.Copies, CopyCall{Kind: "img2buf", BI: param})
}

func (c *cmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	b := buf.(*buffer)
	for i := off; i < off+size; i++ {
		b.data[i] = value
	}
}

func (c *cmdBuffer) Barrier(b []driver.Barrier) {
	c.Barriers = append(c.Barriers, b...)
}

func (c *cmdBuffer) Transition(t []driver.Transition) {
	c.Transitions = append(c.Transitions, t...)
}

func (c *cmdBuffer) BuildAS(param *driver.ASBuild) {
	c.ASBuilds = append(c.ASBuilds, *param)
}

func (c *cmdBuffer) TraceRays(sbt *driver.ShaderTable, width, height, depth int) {
	c.TraceCalls = append(c.TraceCalls, TraceCall{SBT: sbt, Width: width, Height: height, Depth: depth})
}

func (c *cmdBuffer) End() error {
	if !c.recording {
		return errors.New("noop: End called without Begin")
	}
	if c.cur != blockNone {
		c.recording = false
		return errors.New("noop: End called with an open pass/work/blit block")
	}
	return nil
}

func (c *cmdBuffer) Reset() error {
	c.recording = false
	c.submitted = false
	c.cur = blockNone
	return nil
}
