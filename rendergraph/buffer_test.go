package rendergraph

import (
	"testing"

	"github.com/volantgpu/rendergraph/driver"
	_ "github.com/volantgpu/rendergraph/driver/noop"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	var drv driver.Driver
	for _, d := range driver.Drivers() {
		if d.Name() == "noop" {
			drv = d
			break
		}
	}
	if drv == nil {
		t.Fatal("noop driver not registered")
	}
	gpu, err := drv.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, err := New(gpu)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ctx
}

func TestUploadBufferRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCopy)
	if q == nil {
		t.Fatal("no copy queue")
	}

	dst := ctx.RequestBuffer("dst", 256, driver.UShaderRead|driver.UShaderWrite, nil)
	// Read back through Bytes, which only host-visible buffers expose.
	dst.visible = true
	want := make([]byte, 64)
	for i := range want {
		want[i] = byte(i)
	}
	if err := q.UploadBuffer(dst, 0, want); err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	if err := ctx.ExecuteAll(); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}

	got := dst.native.Bytes()[:64]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestPoolAllocateFreeReuse(t *testing.T) {
	ctx := newTestContext(t)
	p := ctx.RequestPool("test-pool", 4096, driver.UShaderRead|driver.UShaderWrite)

	tok1, err := p.Allocate(512, 256)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Free(&tok1)

	tok2, err := p.Allocate(512, 256)
	if err != nil {
		t.Fatalf("Allocate after free: %v", err)
	}
	if tok2.offset != tok1.offset || tok2.chunk != tok1.chunk {
		t.Fatalf("expected reuse of freed range, got chunk=%d off=%d vs chunk=%d off=%d",
			tok2.chunk, tok2.offset, tok1.chunk, tok1.offset)
	}
}

func TestPoolFreeTwiceIsUsageError(t *testing.T) {
	ctx := newTestContext(t)
	p := ctx.RequestPool("test-pool", 4096, driver.UShaderRead)
	tok, err := p.Allocate(256, 256)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	p.Free(&tok)

	defer func() {
		r := recover()
		ue, ok := r.(*UsageError)
		if !ok {
			t.Fatalf("expected *UsageError panic, got %v", r)
		}
		_ = ue
	}()
	p.Free(&tok)
	t.Fatal("expected panic on double free")
}

func TestPoolAllocateHonorsCoarseAlignment(t *testing.T) {
	ctx := newTestContext(t)
	p := ctx.RequestPool("aligned-pool", 1<<20, driver.UShaderRead)

	// Force an odd starting offset so a naive allocator that ignores
	// align would hand back a token misaligned to 65536.
	spacer, err := p.Allocate(64, 256)
	if err != nil {
		t.Fatalf("Allocate spacer: %v", err)
	}
	_ = spacer

	tok, err := p.Allocate(4096, 65536)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if tok.offset%65536 != 0 {
		t.Fatalf("expected offset aligned to 65536, got %d", tok.offset)
	}
}

func TestPlacedBufferSharesChunk(t *testing.T) {
	ctx := newTestContext(t)
	pool := ctx.RequestPool("shared", 1<<20, driver.UShaderRead|driver.UShaderWrite)

	a := ctx.RequestBuffer("a", 1024, driver.UShaderRead|driver.UShaderWrite, pool)
	b := ctx.RequestBuffer("b", 1024, driver.UShaderRead|driver.UShaderWrite, pool)

	if err := a.ensureNative(ctx.gpu); err != nil {
		t.Fatalf("ensureNative a: %v", err)
	}
	if err := b.ensureNative(ctx.gpu); err != nil {
		t.Fatalf("ensureNative b: %v", err)
	}
	if !a.placed || !b.placed {
		t.Fatal("expected both buffers placed in the pool")
	}
	if len(pool.chunks) != 1 {
		t.Fatalf("expected one shared chunk, got %d", len(pool.chunks))
	}
}
