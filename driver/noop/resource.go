package noop

import (
	"errors"

	"github.com/volantgpu/rendergraph/driver"
	"github.com/volantgpu/rendergraph/wsi"
)

// buffer implements driver.Buffer over plain Go memory.
type buffer struct {
	data    []byte
	visible bool
	usage   driver.Usage
}

func (b *buffer) Destroy()         {}
func (b *buffer) Visible() bool    { return b.visible }
func (b *buffer) Cap() int64       { return int64(len(b.data)) }

func (b *buffer) Bytes() []byte {
	if !b.visible {
		return nil
	}
	return b.data
}

// image implements driver.Image. No storage is allocated; views
// carry enough of the creation parameters to validate later calls.
type image struct {
	pf      driver.PixelFmt
	size    driver.Dim3D
	layers  int
	levels  int
	samples int
	usage   driver.Usage
}

func (i *image) Destroy() {}

func (i *image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	if layer < 0 || layer+layers > i.layers || level < 0 || level+levels > i.levels {
		return nil, errors.New("noop: image view out of range")
	}
	return &imageView{img: i, typ: typ, layer: layer, layers: layers, level: level, levels: levels}, nil
}

type imageView struct {
	img    *image
	typ    driver.ViewType
	layer  int
	layers int
	level  int
	levels int
}

func (v *imageView) Destroy() {}

// sampler implements driver.Sampler.
type sampler struct {
	param driver.Sampling
}

func (s *sampler) Destroy() {}

// descHeap implements driver.DescHeap. Each copy is a slice of
// bound resources mirroring the descriptor layout given at creation.
type descHeap struct {
	descs []driver.Descriptor
	cpys  [][]any
}

func (h *descHeap) Destroy() {}

func (h *descHeap) New(n int) error {
	if n == 0 {
		h.cpys = nil
		return nil
	}
	h.cpys = make([][]any, n)
	for i := range h.cpys {
		h.cpys[i] = make([]any, len(h.descs))
	}
	return nil
}

func (h *descHeap) Count() int { return len(h.cpys) }

func (h *descHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	for i, b := range buf {
		h.cpys[cpy][nr] = struct {
			buf     driver.Buffer
			off     int64
			size    int64
			startAt int
		}{b, off[i], size[i], start}
	}
}

func (h *descHeap) SetImage(cpy, nr, start int, iv []driver.ImageView) {
	for range iv {
		h.cpys[cpy][nr] = iv
	}
}

func (h *descHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {
	for range splr {
		h.cpys[cpy][nr] = splr
	}
}

// descTable implements driver.DescTable.
type descTable struct {
	heaps []driver.DescHeap
}

func (t *descTable) Destroy() {}

// pipeline implements driver.Pipeline, storing the state it was
// created from so tests can assert which kind of pipeline is bound.
type pipeline struct {
	state any
}

func (p *pipeline) Destroy() {}

// shaderCode implements driver.ShaderCode.
type shaderCode struct {
	data []byte
}

func (s *shaderCode) Destroy() {}

// renderPass implements driver.RenderPass.
type renderPass struct {
	att []driver.Attachment
	sub []driver.Subpass
}

func (r *renderPass) Destroy() {}

func (r *renderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	if len(iv) != len(r.att) {
		return nil, errors.New("noop: framebuffer view count mismatch")
	}
	return &framebuf{iv: iv, width: width, height: height, layers: layers}, nil
}

type framebuf struct {
	iv             []driver.ImageView
	width, height  int
	layers         int
}

func (f *framebuf) Destroy() {}

// FailNextAcquirer is implemented by driver.Swapchain values this
// package hands out, letting a test arm a one-shot lost-surface
// failure on the next Next call without reaching past the
// driver.Swapchain interface.
type FailNextAcquirer interface {
	FailNextAcquireOnce()
}

// swapchain implements driver.Swapchain over a fixed set of plain Go
// images sized to win's current extent.
type swapchain struct {
	win        wsi.Window
	imageCount int
	views      []driver.ImageView
	format     driver.PixelFmt

	// failNextAcquire, armed by FailNextAcquireOnce, makes the next
	// call to Next fail with driver.ErrSwapchain once, then clears
	// itself, simulating an out_of_date/surface_lost acquire.
	failNextAcquire bool
}

// FailNextAcquireOnce arms a single simulated lost-surface failure
// on the next call to Next.
func (sc *swapchain) FailNextAcquireOnce() { sc.failNextAcquire = true }

func (sc *swapchain) rebuild() {
	img := &image{pf: sc.format, size: driver.Dim3D{Width: sc.win.Width(), Height: sc.win.Height(), Depth: 1}, layers: 1, levels: 1, samples: 1}
	sc.views = make([]driver.ImageView, sc.imageCount)
	for i := range sc.views {
		sc.views[i] = &imageView{img: img, typ: driver.IView2D, layer: 0, layers: 1, level: 0, levels: 1}
	}
}

func (sc *swapchain) Destroy() {}

func (sc *swapchain) Views() []driver.ImageView { return sc.views }

func (sc *swapchain) Next(cb driver.CmdBuffer) (int, error) {
	if sc.failNextAcquire {
		sc.failNextAcquire = false
		return 0, driver.ErrSwapchain
	}
	return 0, nil
}

func (sc *swapchain) Present(index int, cb driver.CmdBuffer) error { return nil }

func (sc *swapchain) Recreate() error {
	sc.rebuild()
	return nil
}

func (sc *swapchain) Format() driver.PixelFmt { return sc.format }

// accelStruct implements driver.AccelStruct.
type accelStruct struct {
	usage driver.AccelStructUsage
	buf   driver.Buffer
	off   int64
	size  int64
}

func (a *accelStruct) Destroy()                           {}
func (a *accelStruct) Usage() driver.AccelStructUsage { return a.usage }
