package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// command is one entry of a Queue's pending list. prepare lazily
// allocates native resources, materialises descriptor sets, and
// plans any barrier/transition the command needs before record
// issues the native driver.CmdBuffer calls. Both run in submission
// order for a given queue: there is no cross-command reordering, so
// access-history comparisons in the transition planner stay correct
// without a separate global scheduling pass.
type command interface {
	prepare(ctx *Context, q *Queue) error
	record(ctx *Context, q *Queue, cb driver.CmdBuffer)
}

// --- copies -----------------------------------------------------

type cmdCopyBuffer struct {
	from, to       *Buffer
	fromOff, toOff int64
	size           int64

	barFrom, barTo *driver.Barrier

	// releaseAfter lists buffers (typically a staging ring's host/
	// device pair) to Destroy once this copy has been recorded, so
	// their native handles stay valid for CopyBuffer's record call
	// instead of being nilled out while still queued.
	releaseAfter []*Buffer
}

func (c *cmdCopyBuffer) prepare(ctx *Context, q *Queue) error {
	if err := c.from.ensureNative(ctx.gpu); err != nil {
		return err
	}
	if err := c.to.ensureNative(ctx.gpu); err != nil {
		return err
	}
	c.barFrom = ctx.planner.stageBuffer(c.from, access{sync: driver.SCopy, mask: driver.ACopyRead})
	c.barTo = ctx.planner.stageBuffer(c.to, access{sync: driver.SCopy, mask: driver.ACopyWrite})
	return nil
}

func (c *cmdCopyBuffer) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	emitBarriers(cb, c.barFrom, c.barTo)
	cb.BeginBlit(false)
	cb.CopyBuffer(&driver.BufferCopy{From: c.from.native, FromOff: c.fromOff, To: c.to.native, ToOff: c.toOff, Size: c.size})
	cb.EndBlit()
	for _, b := range c.releaseAfter {
		b.Destroy()
	}
}

// cmdReleaseBuffers destroys every buf once recorded: it carries no
// native command of its own, existing only to place a staging ring's
// buffer release at a specific point in submission order (after the
// last command that still reads from it).
type cmdReleaseBuffers struct {
	bufs []*Buffer
}

func (c *cmdReleaseBuffers) prepare(ctx *Context, q *Queue) error { return nil }
func (c *cmdReleaseBuffers) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	for _, b := range c.bufs {
		b.Destroy()
	}
}

type cmdCopyBufToImg struct {
	buf              *Buffer
	bufOff           int64
	stride           [2]int64
	img              *Image
	layer, level     int
	off              driver.Off3D
	size             driver.Dim3D

	barBuf *driver.Barrier
	trImg  *driver.Transition
}

func (c *cmdCopyBufToImg) prepare(ctx *Context, q *Queue) error {
	if err := c.buf.ensureNative(ctx.gpu); err != nil {
		return err
	}
	tr, err := ctx.planner.stageImageWhole(ctx.gpu, c.img, access{sync: driver.SCopy, mask: driver.ACopyWrite, layout: driver.LCopyDst})
	if err != nil {
		return err
	}
	c.barBuf = ctx.planner.stageBuffer(c.buf, access{sync: driver.SCopy, mask: driver.ACopyRead})
	c.trImg = tr
	return nil
}

func (c *cmdCopyBufToImg) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	if c.barBuf != nil {
		cb.Barrier([]driver.Barrier{*c.barBuf})
	}
	if c.trImg != nil {
		cb.Transition([]driver.Transition{*c.trImg})
	}
	cb.BeginBlit(false)
	cb.CopyBufToImg(&driver.BufImgCopy{
		Buf: c.buf.native, BufOff: c.bufOff, Stride: c.stride,
		Img: c.img.native, ImgOff: c.off, Layer: c.layer, Level: c.level, Size: c.size,
	})
	cb.EndBlit()
}

func emitBarriers(cb driver.CmdBuffer, bars ...*driver.Barrier) {
	var list []driver.Barrier
	for _, b := range bars {
		if b != nil {
			list = append(list, *b)
		}
	}
	if len(list) > 0 {
		cb.Barrier(list)
	}
}

// --- compute ------------------------------------------------------

type cmdDispatch struct {
	pl       *ComputePipeline
	bindings Bindings
	x, y, z  int

	bound materialisedBindings
}

func (c *cmdDispatch) prepare(ctx *Context, q *Queue) error {
	if err := c.pl.ensure(ctx); err != nil {
		return err
	}
	bound, err := q.materialise(c.bindings)
	c.bound = bound
	return err
}

func (c *cmdDispatch) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	cb.BeginWork(false)
	cb.SetPipeline(c.pl.native)
	for i, set := range c.bound.sets {
		cb.SetDescTableComp(set.table, i, []int{0})
	}
	cb.Dispatch(c.x, c.y, c.z)
	cb.EndWork()
}

// --- render passes --------------------------------------------------

type cmdBeginPass struct {
	pass *Pass

	fb   driver.Framebuf
	trs  []driver.Transition
}

func (c *cmdBeginPass) prepare(ctx *Context, q *Queue) error {
	seen := make(map[conflictKey]bool, len(c.pass.attachments))
	for _, v := range c.pass.attachments {
		key := imageViewKey(v)
		if seen[key] {
			logger.Printf("rendergraph: conflicting attachment transition in this pass's flush; keeping the first")
			continue
		}
		seen[key] = true
		tr := ctx.planner.stageImageView(v, access{sync: driver.SColorOutput, mask: driver.AColorWrite, layout: driver.LColorTarget})
		if tr != nil {
			c.trs = append(c.trs, *tr)
		}
	}
	width, height := 0, 0
	if len(c.pass.attachments) > 0 {
		v := c.pass.attachments[0]
		width, height = v.width, v.height
	}
	fb, err := c.pass.desc.framebuffer(ctx.gpu, c.pass.attachments, width, height, 1)
	if err != nil {
		return err
	}
	c.fb = fb
	return nil
}

func (c *cmdBeginPass) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	if len(c.trs) > 0 {
		cb.Transition(c.trs)
	}
	cb.BeginPass(c.pass.desc.native, c.fb, c.pass.clear)
}

type cmdEndPass struct {
	pass *Pass
}

func (c *cmdEndPass) prepare(ctx *Context, q *Queue) error { return nil }
func (c *cmdEndPass) record(ctx *Context, q *Queue, cb driver.CmdBuffer) { cb.EndPass() }

type cmdDraw struct {
	pass                                      *Pass
	pl                                        *GraphicsPipeline
	bindings                                  Bindings
	vertCount, instCount, baseVert, baseInst  int

	bound materialisedBindings
}

func (c *cmdDraw) prepare(ctx *Context, q *Queue) error {
	if err := c.pl.ensure(ctx); err != nil {
		return err
	}
	bound, err := q.materialise(c.bindings)
	c.bound = bound
	return err
}

func (c *cmdDraw) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	cb.SetPipeline(c.pl.native)
	for i, set := range c.bound.sets {
		cb.SetDescTableGraph(set.table, i, []int{0})
	}
	cb.Draw(c.vertCount, c.instCount, c.baseVert, c.baseInst)
}

type cmdDrawIndexed struct {
	pass                                          *Pass
	pl                                             *GraphicsPipeline
	bindings                                       Bindings
	idx                                             *Buffer
	idxOff                                          int64
	idxFmt                                          driver.IndexFmt
	idxCount, instCount, baseIdx, vertOff, baseInst int

	bound materialisedBindings
}

func (c *cmdDrawIndexed) prepare(ctx *Context, q *Queue) error {
	if err := c.pl.ensure(ctx); err != nil {
		return err
	}
	if err := c.idx.ensureNative(ctx.gpu); err != nil {
		return err
	}
	bound, err := q.materialise(c.bindings)
	c.bound = bound
	return err
}

func (c *cmdDrawIndexed) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	cb.SetPipeline(c.pl.native)
	cb.SetIndexBuf(c.idxFmt, c.idx.native, c.idxOff)
	for i, set := range c.bound.sets {
		cb.SetDescTableGraph(set.table, i, []int{0})
	}
	cb.DrawIndexed(c.idxCount, c.instCount, c.baseIdx, c.vertOff, c.baseInst)
}

// --- acceleration structures -----------------------------------------

type cmdBuildAS struct {
	as        *AccelStruct
	geom      []driver.GeometryBuf
	instances []driver.Instance

	instBuf *Buffer
	param   *driver.ASBuild
}

func (c *cmdBuildAS) prepare(ctx *Context, q *Queue) error {
	var err error
	if c.geom != nil {
		err = c.as.ensureForGeometry(ctx.gpu, c.geom)
	} else {
		err = c.as.ensureForInstances(ctx.gpu, len(c.instances))
	}
	if err != nil {
		return err
	}
	scratch, err := c.as.ensureScratch(ctx)
	if err != nil {
		return err
	}
	param := &driver.ASBuild{AS: c.as.native, Geometry: c.geom, Scratch: scratch.native}
	if c.instances != nil {
		instBuf := ctx.RequestBuffer(c.as.name+".instances", int64(len(c.instances))*64, driver.UShaderRead, c.as.pool)
		if err := instBuf.ensureNative(ctx.gpu); err != nil {
			return err
		}
		param.InstanceBuf = instBuf.native
		c.instBuf = instBuf
	}
	param.Instances = c.instances
	c.param = param
	return nil
}

func (c *cmdBuildAS) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	cb.BeginBlit(false)
	cb.BuildAS(c.param)
	cb.EndBlit()
}

type cmdTraceRays struct {
	pl                   *RTPipeline
	bindings             Bindings
	width, height, depth int

	sbt   *Buffer
	table *driver.ShaderTable
	bound materialisedBindings
}

func (c *cmdTraceRays) prepare(ctx *Context, q *Queue) error {
	if err := c.pl.ensure(ctx); err != nil {
		return err
	}
	align := int64(ctx.gpu.Limits().ShaderTableAlign)
	entries := int64(1 + len(c.pl.Miss) + len(c.pl.HitGroups))
	c.sbt = ctx.RequestBuffer(ctx.nextSBTName(), align*entries, driver.UShaderRead, nil)
	c.sbt.visible = true
	var err error
	c.table, err = c.pl.assembleTable(ctx, c.sbt)
	if err != nil {
		return err
	}
	bound, err := q.materialise(c.bindings)
	c.bound = bound
	return err
}

func (c *cmdTraceRays) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	for i, set := range c.bound.sets {
		cb.SetDescTableRT(set.table, i, []int{0})
	}
	cb.TraceRays(c.table, c.width, c.height, c.depth)
}

// --- dependency hand-off ---------------------------------------------

type cmdReleaseDependency struct {
	dep   *Dependency
	queue *Queue
}

func (c *cmdReleaseDependency) prepare(ctx *Context, q *Queue) error { return nil }
func (c *cmdReleaseDependency) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	c.dep.release(c.queue)
}

type cmdAcquireDependency struct {
	dep   *Dependency
	queue *Queue
}

func (c *cmdAcquireDependency) prepare(ctx *Context, q *Queue) error { return nil }
func (c *cmdAcquireDependency) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	c.dep.acquire(c.queue)
}

// --- present -----------------------------------------------------------

type cmdPresent struct {
	sc    *SwapChain
	queue *Queue

	view *ImageView
	tr   *driver.Transition
}

func (c *cmdPresent) prepare(ctx *Context, q *Queue) error {
	c.view = c.sc.views[c.sc.acquiredIdx]
	c.tr = ctx.planner.stageImageView(c.view, access{sync: driver.SNone, mask: driver.ANone, layout: driver.LPresent})
	return nil
}

func (c *cmdPresent) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	if c.tr != nil {
		cb.Transition([]driver.Transition{*c.tr})
	}
	if err := c.sc.present(cb); err != nil {
		logger.Printf("rendergraph: present failed: %v", err)
	}
}

// --- timers and debugging -----------------------------------------------

// TimerResult reports one named GPU timer's elapsed duration,
// delivered to Context.OnBatchComplete at the end of the ExecuteAll
// call that submitted its batch.
type TimerResult struct {
	Name     string
	Elapsed  float64 // milliseconds; zero if the backend has no timer support
}

type cmdStartTimer struct {
	name string
	id   int
}

func (c *cmdStartTimer) prepare(ctx *Context, q *Queue) error { return nil }

// record opens a named timer-result slot. No driver.GPU in this
// package exposes timestamp queries, so the slot's Elapsed stays
// zero; the name still reaches Context.OnBatchComplete so a backend
// that does support queries has a slot to fill in later.
func (c *cmdStartTimer) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	if q.timerIndex == nil {
		q.timerIndex = make(map[int]int)
	}
	q.timerIndex[c.id] = len(q.timerResults)
	q.timerResults = append(q.timerResults, TimerResult{Name: c.name})
}

type cmdEndTimer struct {
	id int
}

func (c *cmdEndTimer) prepare(ctx *Context, q *Queue) error { return nil }
func (c *cmdEndTimer) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {}

// DebugBreak, when set, is called by PauseForDebugging at the exact
// point that command was recorded in submission order, letting a
// client attach a debugger or inspect state mid-batch.
var DebugBreak func()

type cmdPauseForDebugging struct{}

func (c *cmdPauseForDebugging) prepare(ctx *Context, q *Queue) error { return nil }
func (c *cmdPauseForDebugging) record(ctx *Context, q *Queue, cb driver.CmdBuffer) {
	if DebugBreak != nil {
		DebugBreak()
	}
}
