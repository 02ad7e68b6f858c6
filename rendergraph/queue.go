package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// Queue is a render-graph view of one hardware queue: clients append
// commands to it, and Context.ExecuteAll later turns the accumulated
// command list into a pseudo-execution pass (resource allocation,
// transition planning, cache materialisation) followed by a real
// recording pass into native driver.CmdBuffer calls.
type Queue struct {
	ctx    *Context
	kind   driver.QueueKind
	native driver.Queue

	timeline     driver.TimelineSemaphore
	lastSignaled uint64
	batchSignal  map[batchIndex]uint64

	pending []command

	withinPass bool
	timerSeq   int

	waits []driver.SemaphoreWait

	immediate  *stagingRing
	uploadRing *stagingRing

	timerResults []TimerResult
	timerIndex   map[int]int
}

func newQueue(ctx *Context, native driver.Queue) *Queue {
	return &Queue{
		ctx:         ctx,
		kind:        native.Kind(),
		native:      native,
		timeline:    native.Timeline(),
		batchSignal: make(map[batchIndex]uint64),
	}
}

// Kind returns the kind of hardware queue this Queue wraps.
func (q *Queue) Kind() driver.QueueKind { return q.kind }

// WaitOn makes the next Context.ExecuteAll's submission on this queue
// wait for other's timeline semaphore to reach the value it was last
// signaled with, implementing spec.md §4.8's cross-queue dependency.
func (q *Queue) WaitOn(other *Queue) {
	q.waits = append(q.waits, driver.SemaphoreWait{Semaphore: other.timeline, Value: other.lastSignaled})
}

func (q *Queue) push(c command) { q.pending = append(q.pending, c) }

// CopyBuffer records a buffer-to-buffer copy.
func (q *Queue) CopyBuffer(from *Buffer, fromOff int64, to *Buffer, toOff, size int64) {
	q.push(&cmdCopyBuffer{from: from, fromOff: fromOff, to: to, toOff: toOff, size: size})
}

// CopyBufferToImage records a buffer-to-image copy.
func (q *Queue) CopyBufferToImage(from *Buffer, fromOff int64, stride [2]int64, to *Image, layer, level int, off driver.Off3D, size driver.Dim3D) {
	q.push(&cmdCopyBufToImg{buf: from, bufOff: fromOff, stride: stride, img: to, layer: layer, level: level, off: off, size: size})
}

// Dispatch records a compute dispatch using pl, with resources bound
// from b, run over (x, y, z) thread groups.
func (q *Queue) Dispatch(pl *ComputePipeline, b Bindings, x, y, z int) {
	q.push(&cmdDispatch{pl: pl, bindings: b, x: x, y: y, z: z})
}

// BeginPass starts a render pass recording block: every DrawInstanced
// call up to the matching EndPass targets this pass.
func (q *Queue) BeginPass(rp *RenderPassDesc, attachments []*ImageView, clear []driver.ClearValue) *Pass {
	if q.withinPass {
		usagef("Queue.BeginPass", "", "a pass is already open on this queue")
	}
	q.withinPass = true
	p := &Pass{q: q, desc: rp, attachments: attachments, clear: clear}
	q.push(&cmdBeginPass{pass: p})
	return p
}

// EndPass closes the pass opened by BeginPass.
func (q *Queue) EndPass(p *Pass) {
	if !q.withinPass {
		usagef("Queue.EndPass", "", "no pass is open on this queue")
	}
	q.withinPass = false
	q.push(&cmdEndPass{pass: p})
}

// DrawInstanced records an instanced draw within p.
func (p *Pass) DrawInstanced(pl *GraphicsPipeline, b Bindings, vertCount, instCount, baseVert, baseInst int) {
	p.q.push(&cmdDraw{pass: p, pl: pl, bindings: b, vertCount: vertCount, instCount: instCount, baseVert: baseVert, baseInst: baseInst})
}

// DrawIndexed records an indexed instanced draw within p.
func (p *Pass) DrawIndexed(pl *GraphicsPipeline, b Bindings, idx *Buffer, idxOff int64, idxFmt driver.IndexFmt, idxCount, instCount, baseIdx, vertOff, baseInst int) {
	p.q.push(&cmdDrawIndexed{
		pass: p, pl: pl, bindings: b,
		idx: idx, idxOff: idxOff, idxFmt: idxFmt,
		idxCount: idxCount, instCount: instCount, baseIdx: baseIdx, vertOff: vertOff, baseInst: baseInst,
	})
}

// BuildBLAS records a bottom-level acceleration structure build.
func (q *Queue) BuildBLAS(as *AccelStruct, geom []driver.GeometryBuf) {
	q.push(&cmdBuildAS{as: as, geom: geom})
}

// BuildTLAS records a top-level acceleration structure build over
// the given instances.
func (q *Queue) BuildTLAS(as *AccelStruct, instances []driver.Instance) {
	q.push(&cmdBuildAS{as: as, instances: instances})
}

// TraceRays records a ray dispatch using an RT pipeline's shader
// binding table.
func (q *Queue) TraceRays(pl *RTPipeline, b Bindings, width, height, depth int) {
	q.push(&cmdTraceRays{pl: pl, bindings: b, width: width, height: height, depth: depth})
}

// ReleaseDependency marks d as released by this queue at the point
// this command executes, per spec.md §3's dependency hand-off.
func (q *Queue) ReleaseDependency(d *Dependency) {
	q.push(&cmdReleaseDependency{dep: d, queue: q})
}

// AcquireDependency blocks this queue's next submission on d having
// been released by whichever queue last held it.
func (q *Queue) AcquireDependency(d *Dependency) {
	q.push(&cmdAcquireDependency{dep: d, queue: q})
}

// Present records a swap chain present, per spec.md §4.6. sc must be
// presented on the queue it was requested with, since its recovery
// path waits that specific queue idle before recreating the chain.
func (q *Queue) Present(sc *SwapChain) {
	if sc.queue != nil && sc.queue != q {
		usagef("Queue.Present", sc.name, "presenting queue does not match the swap chain's declared queue")
	}
	q.push(&cmdPresent{sc: sc, queue: q})
}

// StartTimer begins a named GPU timer; EndTimer closes it. No
// timestamp query is recorded: each StartTimer adds a TimerResult
// carrying its name and a zero Elapsed to the slice passed to
// Context.OnBatchComplete, and EndTimer records nothing.
func (q *Queue) StartTimer(name string) int {
	id := q.timerSeq
	q.timerSeq++
	q.push(&cmdStartTimer{name: name, id: id})
	return id
}

func (q *Queue) EndTimer(id int) {
	q.push(&cmdEndTimer{id: id})
}

// PauseForDebugging calls the package-level DebugBreak hook, if set,
// at this exact point in command order.
func (q *Queue) PauseForDebugging() {
	q.push(&cmdPauseForDebugging{})
}
