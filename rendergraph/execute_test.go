package rendergraph

import (
	"testing"

	"github.com/volantgpu/rendergraph/driver"
)

func TestDispatchWithEphemeralBinding(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCompute)
	if q == nil {
		t.Fatal("no compute queue")
	}

	buf := ctx.RequestBuffer("scratch", 256, driver.UShaderRead|driver.UShaderWrite, nil)

	pl := NewComputePipeline([]byte("fake-spirv"), "main", []EphemeralBinding{
		{Register: 0, Type: driver.DBuffer, Stages: driver.SCompute},
	})

	bindings := Bindings{
		{Space: 0, Kind: BindEphemeral, Ephemeral: []EphemeralBinding{
			{Register: 0, Type: driver.DBuffer, Stages: driver.SCompute, Buf: buf, BufSize: 256},
		}},
	}

	q.Dispatch(pl, bindings, 8, 1, 1)

	if err := ctx.ExecuteAll(); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if pl.native == nil {
		t.Fatal("expected pipeline to be materialised")
	}
}

func TestCrossQueueDependencyOrdering(t *testing.T) {
	ctx := newTestContext(t)
	copyQ := ctx.Queue(driver.QCopy)
	compQ := ctx.Queue(driver.QCompute)
	if copyQ == nil || compQ == nil {
		t.Fatal("expected both copy and compute queues")
	}

	dep := ctx.RequestDependency("upload-done")

	src := ctx.RequestBuffer("src", 64, driver.UShaderRead, nil)
	dst := ctx.RequestBuffer("dst", 64, driver.UShaderRead|driver.UShaderWrite, nil)
	pl := NewComputePipeline([]byte("fake-spirv"), "main", nil)
	compQ.Dispatch(pl, nil, 1, 1, 1)
	compQ.ReleaseDependency(dep)

	copyQ.AcquireDependency(dep)
	copyQ.CopyBuffer(src, 0, dst, 0, 64)

	if err := ctx.ExecuteAll(); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
	if copyQ.lastSignaled == 0 {
		t.Fatal("expected copy queue to have submitted and signaled")
	}
}

func TestAcquireBeforeReleaseIsUsageError(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCompute)
	dep := ctx.RequestDependency("never-released")
	q.AcquireDependency(dep)

	err := ctx.ExecuteAll()
	if err == nil {
		t.Fatal("expected usage error from acquiring an unreleased dependency")
	}
	if _, ok := err.(*UsageError); !ok {
		t.Fatalf("expected *UsageError, got %T: %v", err, err)
	}
}

func TestReleaseDependencyTwiceIsUsageError(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCopy)
	dep := ctx.RequestDependency("double-release")
	q.ReleaseDependency(dep)
	q.ReleaseDependency(dep)

	err := ctx.ExecuteAll()
	if err == nil {
		t.Fatal("expected usage error from releasing a dependency twice")
	}
	if _, ok := err.(*UsageError); !ok {
		t.Fatalf("expected *UsageError, got %T: %v", err, err)
	}
}

func TestImmediateConstantStagingFlushesAheadOfConsumer(t *testing.T) {
	ctx := newTestContext(t)
	q := ctx.Queue(driver.QCompute)

	view, host, err := q.StageImmediateConstant(64, 256)
	if err != nil {
		t.Fatalf("StageImmediateConstant: %v", err)
	}
	copy(host, []byte("constant-data"))

	pl := NewComputePipeline([]byte("fake-spirv"), "main", []EphemeralBinding{
		{Register: 0, Type: driver.DConstant, Stages: driver.SCompute},
	})
	bindings := Bindings{
		{Space: 0, Kind: BindEphemeral, Ephemeral: []EphemeralBinding{
			{Register: 0, Type: driver.DConstant, Stages: driver.SCompute, Buf: view.Buf, BufOff: view.Off, BufSize: 64},
		}},
	}
	q.Dispatch(pl, bindings, 1, 1, 1)

	if err := ctx.ExecuteAll(); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}
}
