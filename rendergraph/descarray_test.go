package rendergraph

import (
	"testing"

	"github.com/volantgpu/rendergraph/driver"
)

func TestImageDescArrayOverwriteWaitsIdleAndRebindsBackRefs(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCompute)
	if q == nil {
		t.Fatal("no compute queue")
	}

	img1 := ctx.RequestImage2D("img1", 64, 64, 1, driver.RGBA8un, driver.UShaderRead, nil)
	img2 := ctx.RequestImage2D("img2", 64, 64, 1, driver.RGBA8un, driver.UShaderRead, nil)
	v1, err := img1.NewView(ctx.gpu, driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		t.Fatalf("NewView img1: %v", err)
	}
	v2, err := img2.NewView(ctx.gpu, driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		t.Fatalf("NewView img2: %v", err)
	}

	arr := ctx.RequestImageDescArray("bindless", 4, driver.DTexture, driver.SCompute)

	arr.Write(2, v1)
	if arr.hasOverwrites {
		t.Fatal("first write to an empty slot must not set hasOverwrites")
	}

	arr.Write(2, v2)
	if !arr.hasOverwrites {
		t.Fatal("expected hasOverwrites after writing over an occupied slot")
	}
	if len(img1.backRefs) != 0 {
		t.Fatalf("expected img1's back-reference to be dropped on overwrite, got %d", len(img1.backRefs))
	}
	if len(img2.backRefs) != 1 {
		t.Fatalf("expected img2 to have exactly one back-reference, got %d", len(img2.backRefs))
	}

	arr.flushIfNeeded(q)

	if arr.hasOverwrites {
		t.Fatal("expected hasOverwrites to be cleared after flush")
	}
	if arr.staged.Rem() != arr.staged.Len() {
		t.Fatal("expected every staged bit to be cleared after flush")
	}
	if arr.table == nil {
		t.Fatal("expected flush to materialise a native table")
	}
}

func TestBufferDescArrayOverwriteSetsFlag(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCompute)

	b1 := ctx.RequestBuffer("b1", 256, driver.UShaderRead, nil)
	b2 := ctx.RequestBuffer("b2", 256, driver.UShaderRead, nil)

	arr := ctx.RequestBufferDescArray("bindless-buf", 4, driver.DBuffer, driver.SCompute)

	arr.Write(1, b1, 0, 256)
	if arr.hasOverwrites {
		t.Fatal("first write to an empty slot must not set hasOverwrites")
	}

	arr.Write(1, b2, 0, 256)
	if !arr.hasOverwrites {
		t.Fatal("expected hasOverwrites after writing over an occupied slot")
	}
	if len(b1.backRefs) != 0 {
		t.Fatalf("expected b1's back-reference to be dropped on overwrite, got %d", len(b1.backRefs))
	}

	arr.flushIfNeeded(q)

	if arr.hasOverwrites {
		t.Fatal("expected hasOverwrites to be cleared after flush")
	}
}
