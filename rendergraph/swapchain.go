package rendergraph

import (
	"github.com/volantgpu/rendergraph/driver"
	"github.com/volantgpu/rendergraph/wsi"
)

// SwapChain manages a driver.Swapchain's lifetime against a wsi.Window,
// recreating it whenever the window resizes or the driver reports
// ErrSwapchain, per spec.md §4.6.
type SwapChain struct {
	resourceBase

	win        wsi.Window
	imageCount int
	queue      *Queue

	native driver.Swapchain
	views  []*ImageView
	width  int
	height int

	acquired    bool
	acquiredIdx int
}

// RequestSwapChain declares a swap chain bound to win, presented on
// queue. The native driver.Swapchain is created lazily on first use;
// queue is recorded so a lost/resized swap chain can be recovered by
// waiting that queue idle before recreating, per spec.md §4.6.
func (c *Context) RequestSwapChain(name string, win wsi.Window, queue *Queue, imageCount int) *SwapChain {
	sc := &SwapChain{resourceBase: newResourceBase(c, kindSwapChain, name), win: win, queue: queue, imageCount: imageCount}
	c.track(sc)
	return sc
}

// waitQueueIdle blocks until every submission sc's presenting queue
// has made so far has retired, or returns immediately if the queue
// has never submitted anything yet.
func (sc *SwapChain) waitQueueIdle() error {
	if sc.queue == nil || sc.queue.lastSignaled == 0 {
		return nil
	}
	return sc.queue.timeline.Wait(sc.queue.lastSignaled)
}

// maybeUpdate recreates the native swap chain if it has never been
// created, or if the window's size no longer matches the swap
// chain's, per spec.md §4.6's "maybe_update_swap_chain". A resize
// recreates the chain transparently: the presenting queue is waited
// idle first, since the old images may still be in flight.
func (sc *SwapChain) maybeUpdate(gpu driver.GPU) error {
	w, h := sc.win.Width(), sc.win.Height()
	if sc.native != nil && w == sc.width && h == sc.height {
		return nil
	}
	pres, ok := gpu.(driver.Presenter)
	if !ok {
		return driver.ErrCannotPresent
	}
	if sc.native == nil {
		native, err := pres.NewSwapchain(sc.win, sc.imageCount)
		if err != nil {
			return err
		}
		sc.native = native
	} else {
		if err := sc.waitQueueIdle(); err != nil {
			return ErrSwapchainLost
		}
		if err := sc.native.Recreate(); err != nil {
			return ErrSwapchainLost
		}
	}
	sc.width, sc.height = w, h
	sc.wrapViews()
	return nil
}

func (sc *SwapChain) wrapViews() {
	native := sc.native.Views()
	sc.views = make([]*ImageView, len(native))
	for i, v := range native {
		a := initialImageAccess
		sc.views[i] = &ImageView{native: v, layer: 0, layers: 1, level: 0, levels: 1, width: sc.width, height: sc.height, swapAccess: &a}
	}
}

// Acquire advances the swap chain to its next writable image,
// returning the corresponding ImageView for use as a render target.
// A failed acquire (out_of_date, surface_lost) is recovered
// transparently, per spec.md §4.6/§7: the presenting queue is waited
// idle, the chain recreated, and the acquire retried once before
// giving up with ErrSwapchainLost.
func (sc *SwapChain) Acquire(gpu driver.GPU, cb driver.CmdBuffer) (*ImageView, error) {
	if err := sc.maybeUpdate(gpu); err != nil {
		return nil, err
	}
	idx, err := sc.native.Next(cb)
	if err != nil {
		if err := sc.waitQueueIdle(); err != nil {
			return nil, ErrSwapchainLost
		}
		if err := sc.native.Recreate(); err != nil {
			return nil, ErrSwapchainLost
		}
		sc.wrapViews()
		idx, err = sc.native.Next(cb)
		if err != nil {
			return nil, ErrSwapchainLost
		}
	}
	sc.acquired, sc.acquiredIdx = true, idx
	return sc.views[idx], nil
}

func (sc *SwapChain) present(cb driver.CmdBuffer) error {
	if !sc.acquired {
		usagef("SwapChain.present", sc.name, "present without a matching acquire")
	}
	sc.acquired = false
	return sc.native.Present(sc.acquiredIdx, cb)
}

func (sc *SwapChain) Destroy() {
	ctx := sc.resourceBase.ctx
	if sc.native != nil {
		ctx.graveyard.bury(ctx.currentBatch, sc.native)
	}
}
