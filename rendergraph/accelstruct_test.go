package rendergraph

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/volantgpu/rendergraph/driver"
)

func TestBuildBLASAndTLAS(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCopy)

	pool := ctx.RequestPool("as-pool", 1<<20, driver.UShaderRead|driver.UShaderWrite)

	vbuf := ctx.RequestBuffer("verts", 1024, driver.UVertexData, nil)
	if err := vbuf.ensureNative(ctx.gpu); err != nil {
		t.Fatalf("ensureNative verts: %v", err)
	}

	blas := ctx.RequestBLAS("blas0", pool)
	q.BuildBLAS(blas, []driver.GeometryBuf{
		{VertexBuf: vbuf.native, VertexFmt: driver.Float32x3, VertexStride: 12, VertexCount: 3},
	})

	tlas := ctx.RequestTLAS("tlas0", pool)
	inst := NewInstance(blas, mgl32.Ident4(), 0xFF, 0)
	q.BuildTLAS(tlas, []driver.Instance{inst})

	if err := ctx.ExecuteAll(); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if blas.native == nil || tlas.native == nil {
		t.Fatal("expected both acceleration structures to be built")
	}
}
