package rendergraph

import (
	"testing"

	"github.com/volantgpu/rendergraph/driver"
	"github.com/volantgpu/rendergraph/driver/noop"
)

// fakeWindow implements wsi.Window without any real window system, so
// swap-chain tests can drive resize/acquire scenarios deterministically.
type fakeWindow struct {
	width, height int
}

func (w *fakeWindow) Map() error               { return nil }
func (w *fakeWindow) Unmap() error             { return nil }
func (w *fakeWindow) Resize(width, height int) error {
	w.width, w.height = width, height
	return nil
}
func (w *fakeWindow) SetTitle(string) error { return nil }
func (w *fakeWindow) Close()               {}
func (w *fakeWindow) Width() int           { return w.width }
func (w *fakeWindow) Height() int          { return w.height }
func (w *fakeWindow) Title() string        { return "" }

func TestSwapChainAcquirePresentRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QGraphics)
	if q == nil {
		t.Fatal("no graphics queue")
	}
	win := &fakeWindow{width: 640, height: 480}
	sc := ctx.RequestSwapChain("main", win, q, 2)

	cb, err := ctx.gpu.NewCmdBuffer()
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	view, err := sc.Acquire(ctx.gpu, cb)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if view == nil {
		t.Fatal("expected a non-nil acquired view")
	}

	q.Present(sc)
	if err := ctx.ExecuteAll(); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
}

func TestSwapChainResizeRecreates(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QGraphics)
	win := &fakeWindow{width: 640, height: 480}
	sc := ctx.RequestSwapChain("main", win, q, 2)

	cb, err := ctx.gpu.NewCmdBuffer()
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	if _, err := sc.Acquire(ctx.gpu, cb); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	firstNative := sc.native

	win.width, win.height = 1280, 720
	cb2, err := ctx.gpu.NewCmdBuffer()
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	view, err := sc.Acquire(ctx.gpu, cb2)
	if err != nil {
		t.Fatalf("Acquire after resize: %v", err)
	}
	if view == nil {
		t.Fatal("expected a non-nil view after resize")
	}
	if sc.width != 1280 || sc.height != 720 {
		t.Fatalf("expected swap chain to track new size, got %dx%d", sc.width, sc.height)
	}
	if sc.native != firstNative {
		t.Fatal("expected Recreate to reuse the same native swap chain, not replace it")
	}
}

func TestSwapChainRecoversFromLostAcquire(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QGraphics)
	win := &fakeWindow{width: 640, height: 480}
	sc := ctx.RequestSwapChain("main", win, q, 2)

	cb, err := ctx.gpu.NewCmdBuffer()
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	if _, err := sc.Acquire(ctx.gpu, cb); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	f, ok := sc.native.(noop.FailNextAcquirer)
	if !ok {
		t.Fatalf("expected noop swap chain to support forcing a lost acquire, got %T", sc.native)
	}
	f.FailNextAcquireOnce()

	cb2, err := ctx.gpu.NewCmdBuffer()
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	view, err := sc.Acquire(ctx.gpu, cb2)
	if err != nil {
		t.Fatalf("expected Acquire to recover transparently from a lost surface, got: %v", err)
	}
	if view == nil {
		t.Fatal("expected a non-nil view after recovery")
	}
}
