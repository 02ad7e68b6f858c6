// Package noop implements the driver.Driver contract with no
// underlying GPU. Every resource is backed by plain Go memory and every
// command is recorded rather than submitted anywhere, which makes this
// package suitable for exercising the rendergraph package's bookkeeping
// (access tracking, barrier planning, descriptor materialisation) in
// tests that have no GPU available.
package noop

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/volantgpu/rendergraph/driver"
	"github.com/volantgpu/rendergraph/wsi"
)

func init() {
	driver.Register(drv{})
}

type drv struct{}

func (drv) Name() string { return "noop" }

func (drv) Open() (driver.GPU, error) {
	g := &gpu{}
	g.queues = []driver.Queue{
		newQueue(driver.QGraphics),
		newQueue(driver.QCompute),
		newQueue(driver.QCopy),
	}
	return g, nil
}

func (drv) Close() {}

// gpu implements driver.GPU.
type gpu struct {
	queues []driver.Queue
}

func (g *gpu) Driver() driver.Driver { return drv{} }

func (g *gpu) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	_, err := g.queues[0].Submit(cb, nil)
	ch <- err
}

func (g *gpu) NewCmdBuffer() (driver.CmdBuffer, error) {
	return g.queues[0].NewCmdBuffer()
}

func (g *gpu) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	return &renderPass{att: att, sub: sub}, nil
}

func (g *gpu) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	return &shaderCode{data: append([]byte(nil), data...)}, nil
}

func (g *gpu) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &descHeap{descs: ds}, nil
}

func (g *gpu) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	return &descTable{heaps: dh}, nil
}

func (g *gpu) NewPipeline(state any) (driver.Pipeline, error) {
	switch state.(type) {
	case *driver.GraphState, *driver.CompState, *driver.RTState:
		return &pipeline{state: state}, nil
	default:
		return nil, errors.New("noop: invalid pipeline state")
	}
}

func (g *gpu) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("noop: invalid buffer size")
	}
	return &buffer{data: make([]byte, size), visible: visible, usage: usg}, nil
}

func (g *gpu) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	if layers < 1 || levels < 1 || samples < 1 {
		return nil, errors.New("noop: invalid image parameters")
	}
	return &image{pf: pf, size: size, layers: layers, levels: levels, samples: samples, usage: usg}, nil
}

func (g *gpu) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	return &sampler{param: *spln}, nil
}

func (g *gpu) Limits() driver.Limits {
	return driver.Limits{
		MaxImage1D:            16384,
		MaxImage2D:            16384,
		MaxImageCube:          16384,
		MaxImage3D:            2048,
		MaxLayers:             2048,
		MaxDescHeaps:          8,
		MaxDBuffer:            1 << 20,
		MaxDImage:             1 << 20,
		MaxDConstant:          1 << 16,
		MaxDTexture:           1 << 20,
		MaxDSampler:           2048,
		MaxDBufferRange:       1 << 30,
		MaxDConstantRange:     1 << 16,
		MaxColorTargets:       8,
		MaxFBSize:             [2]int{16384, 16384},
		MaxFBLayers:           2048,
		MaxPointSize:          256,
		MaxViewports:          16,
		MaxVertexIn:           32,
		MaxFragmentIn:         32,
		MaxDispatch:           [3]int{65535, 65535, 65535},
		MaxRTRecursion:        31,
		ShaderGroupHandleSize: 32,
		ShaderTableAlign:      64,
	}
}

func (g *gpu) Queues() []driver.Queue { return g.queues }

// NewSwapchain implements driver.Presenter with an in-memory
// swapchain backed by plain Go images: no surface is actually
// presented anywhere, but the chain faithfully tracks the requesting
// window's size and can be made to fail its next acquire on demand
// (see FailNextAcquirer), which is what rendergraph's own swap-chain
// recovery tests need from a fake GPU.
func (g *gpu) NewSwapchain(win wsi.Window, imageCount int) (driver.Swapchain, error) {
	sc := &swapchain{win: win, imageCount: imageCount, format: driver.RGBA8un}
	sc.rebuild()
	return sc, nil
}

func (g *gpu) ASBuildSizes(usage driver.AccelStructUsage, geom []driver.GeometryBuf, instanceCount int) (asSize, scratchSize int64, err error) {
	switch usage {
	case driver.ABLAS:
		for _, x := range geom {
			asSize += int64(x.VertexCount*x.VertexStride + x.IndexCount*int(x.IndexFmt))
		}
		asSize += 256
	case driver.ATLAS:
		asSize = int64(instanceCount)*64 + 256
	default:
		return 0, 0, errors.New("noop: invalid acceleration structure usage")
	}
	scratchSize = asSize
	return
}

func (g *gpu) NewAccelStruct(usage driver.AccelStructUsage, buf driver.Buffer, off, size int64) (driver.AccelStruct, error) {
	if buf == nil || size <= 0 {
		return nil, errors.New("noop: invalid acceleration structure backing range")
	}
	return &accelStruct{usage: usage, buf: buf, off: off, size: size}, nil
}

func (g *gpu) ShaderGroupHandles(pl driver.Pipeline, first, count int) ([]byte, error) {
	b := make([]byte, count*32)
	for i := range b {
		b[i] = byte(first + i)
	}
	return b, nil
}

// queue implements driver.Queue synchronously: Submit executes
// immediately and advances the timeline without any concurrency.
type queue struct {
	kind driver.QueueKind
	tl   *timeline
	mu   sync.Mutex
}

func newQueue(kind driver.QueueKind) *queue {
	return &queue{kind: kind, tl: &timeline{}}
}

func (q *queue) Kind() driver.QueueKind        { return q.kind }
func (q *queue) Timeline() driver.TimelineSemaphore { return q.tl }

func (q *queue) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &cmdBuffer{}, nil
}

func (q *queue) Submit(cb []driver.CmdBuffer, wait []driver.SemaphoreWait) (uint64, error) {
	for _, w := range wait {
		if err := w.Semaphore.Wait(w.Value); err != nil {
			return 0, err
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range cb {
		cb := c.(*cmdBuffer)
		if !cb.recording {
			return 0, errors.New("noop: commit of non-recording command buffer")
		}
		cb.recording = false
		cb.submitted = true
	}
	return q.tl.advance(), nil
}

// timeline implements driver.TimelineSemaphore with a plain counter:
// every Submit on the owning queue happens synchronously on the host,
// so there is never an unreached value to wait for.
type timeline struct {
	value atomic.Uint64
}

func (t *timeline) advance() uint64        { return t.value.Add(1) }
func (t *timeline) CompletedValue() (uint64, error) { return t.value.Load(), nil }
func (t *timeline) Wait(value uint64) error {
	if t.value.Load() < value {
		return errors.New("noop: semaphore value never reached (no GPU to advance it)")
	}
	return nil
}
